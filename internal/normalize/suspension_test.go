// SPDX-License-Identifier: MPL-2.0

package normalize

import (
	"errors"
	"strings"
	"testing"
)

const pairingPrelude = "const readline = require('readline');\n" +
	"const rl = readline.createInterface({ input: process.stdin, output: process.stdout });\n"

const pairingBlock = "const phoneNumber = await new Promise((resolve) => {\n" +
	"  rl.question('Number: ', resolve);\n" +
	"});\n" +
	"rl.close();"

func TestPatternStrategy(t *testing.T) {
	t.Parallel()

	s, err := NewPatternStrategy("")
	if err != nil {
		t.Fatalf("NewPatternStrategy() error = %v", err)
	}

	src := pairingPrelude + pairingBlock + "\nconsole.log(phoneNumber);\n"
	if !s.CanPatch([]byte(src)) {
		t.Fatal("CanPatch() = false for the pairing block")
	}

	got, err := s.Patch([]byte(src))
	if err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	want := pairingPrelude + "(async () => {\n" + pairingBlock + "\n})();" + "\nconsole.log(phoneNumber);\n"
	if string(got) != want {
		t.Errorf("Patch() =\n%s\nwant\n%s", got, want)
	}

	if s.CanPatch(got) {
		t.Error("CanPatch() = true on an already wrapped block")
	}
	if s.CanPatch([]byte("const x = await y();\n")) {
		t.Error("CanPatch() = true without the pattern")
	}
}

func TestNewPatternStrategy_InvalidPattern(t *testing.T) {
	t.Parallel()

	if _, err := NewPatternStrategy("(unclosed"); err == nil {
		t.Error("NewPatternStrategy() accepted an invalid pattern")
	}
}

func TestWrapStrategy(t *testing.T) {
	t.Parallel()

	var s WrapStrategy
	src := "const x = await fetchIt();\nconsole.log(x);\n"

	if !s.CanPatch([]byte(src)) {
		t.Fatal("CanPatch() = false for a top-level await")
	}
	got, err := s.Patch([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	want := "(async () => {\n" + src + "\n})();"
	if string(got) != want {
		t.Errorf("Patch() = %q, want %q", got, want)
	}

	if s.CanPatch(got) {
		t.Error("CanPatch() = true on a wrapped file")
	}
	if s.CanPatch([]byte("console.log('no suspension');\n")) {
		t.Error("CanPatch() = true without await")
	}
}

func TestSyntaxStrategy(t *testing.T) {
	t.Parallel()

	s := NewSyntaxStrategy()

	tests := []struct {
		name      string
		src       string
		canPatch  bool
		verified  bool
		wantPatch string
	}{
		{
			name: "wraps from the first suspending statement",
			src: "const fs = require('fs');\n" +
				"function helper() { return 1; }\n" +
				"const data = await load();\n" +
				"console.log(data);\n",
			canPatch: true,
			wantPatch: "const fs = require('fs');\n" +
				"function helper() { return 1; }\n" +
				"(async () => {\n" +
				"const data = await load();\n" +
				"console.log(data);\n" +
				"})();\n",
		},
		{
			name:     "for await loop",
			src:      "for await (const line of rl) { console.log(line); }\n",
			canPatch: true,
			wantPatch: "(async () => {\n" +
				"for await (const line of rl) { console.log(line); }\n" +
				"})();\n",
		},
		{
			name:     "await inside async function is legal",
			src:      "async function main() {\n  await start();\n}\nmain();\n",
			verified: true,
		},
		{
			name:     "await inside arrow function is legal",
			src:      "const run = async () => { await start(); };\nrun();\n",
			verified: true,
		},
		{
			name:     "await inside class method is legal",
			src:      "class Bot { async start() { await this.connect(); } }\n",
			verified: true,
		},
		{
			name: "unparsable source",
			src:  "const x = await foo(;\n",
		},
		{
			name: "hoisted function used before the await",
			src:  "setup();\nconst x = await load();\nfunction setup() { console.log('ready'); }\n",
		},
		{
			name: "class used by an earlier helper",
			src:  "function make() { return new Bot(); }\nawait init();\nclass Bot {}\nmake();\n",
		},
		{
			name: "awaited binding read by an earlier function",
			src:  "const show = () => console.log({ cfg });\nconst cfg = await load();\nshow();\n",
		},
		{
			name:     "later declarations unused before the await",
			src:      "const a = 1;\nawait init(a);\nfunction later() {}\nlater();\n",
			canPatch: true,
			wantPatch: "const a = 1;\n" +
				"(async () => {\n" +
				"await init(a);\nfunction later() {}\nlater();\n" +
				"})();\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := []byte(tt.src)
			if got := s.CanPatch(src); got != tt.canPatch {
				t.Errorf("CanPatch() = %v, want %v", got, tt.canPatch)
			}
			if got := s.Verify(src); got != tt.verified {
				t.Errorf("Verify() = %v, want %v", got, tt.verified)
			}
			if !tt.canPatch {
				return
			}

			got, err := s.Patch(src)
			if err != nil {
				t.Fatalf("Patch() error = %v", err)
			}
			if string(got) != tt.wantPatch {
				t.Errorf("Patch() =\n%s\nwant\n%s", got, tt.wantPatch)
			}
			if !s.Verify(got) {
				t.Errorf("patched source still suspends at top level:\n%s", got)
			}
		})
	}
}

func TestChain(t *testing.T) {
	t.Parallel()

	pairing := pairingPrelude + pairingBlock + "\n"
	broken := "const x = await foo(;\n"
	legal := "async function main() { await start(); }\nmain();\n"

	tests := []struct {
		name         string
		mode         SuspensionMode
		src          string
		wantStrategy string
		wantPrefix   string
	}{
		{name: "auto prefers pattern", mode: SuspensionAuto, src: pairing, wantStrategy: "pattern"},
		{name: "auto falls back to syntax", mode: SuspensionAuto, src: "await init();\n", wantStrategy: "syntax"},
		{name: "auto falls back to wrap", mode: SuspensionAuto, src: broken, wantStrategy: "wrap", wantPrefix: "(async () => {\n"},
		{name: "auto wraps whole file when hoisting matters", mode: SuspensionAuto, src: "setup();\nconst x = await load();\nfunction setup() {}\n", wantStrategy: "wrap", wantPrefix: "(async () => {\nsetup();"},
		{name: "auto leaves legal code alone", mode: SuspensionAuto, src: legal},
		{name: "wrap mode wraps legal code too", mode: SuspensionWrap, src: legal, wantStrategy: "wrap"},
		{name: "pattern mode without match", mode: SuspensionPattern, src: broken},
		{name: "off", mode: SuspensionOff, src: broken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			chain, err := NewChain(tt.mode, "")
			if err != nil {
				t.Fatalf("NewChain() error = %v", err)
			}
			got, strategy, err := chain.Patch([]byte(tt.src))
			if err != nil {
				t.Fatalf("Patch() error = %v", err)
			}
			if strategy != tt.wantStrategy {
				t.Errorf("strategy = %q, want %q", strategy, tt.wantStrategy)
			}
			if tt.wantStrategy == "" && string(got) != tt.src {
				t.Errorf("source changed without a strategy:\n%s", got)
			}
			if tt.wantPrefix != "" && !strings.HasPrefix(string(got), tt.wantPrefix) {
				t.Errorf("patched source %q lacks prefix %q", got, tt.wantPrefix)
			}
		})
	}
}

func TestChain_Idempotent(t *testing.T) {
	t.Parallel()

	chain, err := NewChain(SuspensionAuto, "")
	if err != nil {
		t.Fatal(err)
	}

	for _, src := range []string{
		pairingPrelude + pairingBlock + "\n",
		"await init();\n",
		"const x = await foo(;\n",
	} {
		once, _, err := chain.Patch([]byte(src))
		if err != nil {
			t.Fatal(err)
		}
		twice, strategy, err := chain.Patch(once)
		if err != nil {
			t.Fatal(err)
		}
		if string(once) != string(twice) {
			t.Errorf("second pass (%s) changed the source:\n%s\n---\n%s", strategy, once, twice)
		}
	}
}

func TestNewChain_InvalidMode(t *testing.T) {
	t.Parallel()

	if _, err := NewChain("aggressive", ""); !errors.Is(err, ErrInvalidSuspensionMode) {
		t.Errorf("NewChain() error = %v, want ErrInvalidSuspensionMode", err)
	}
}
