// SPDX-License-Identifier: MPL-2.0

package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	asyncIIFEOpen  = "(async () => {\n"
	asyncIIFEClose = "\n})();"

	// DefaultSuspensionPattern matches the interactive pairing-code prompt
	// that ES-module entry points run at top level.
	DefaultSuspensionPattern = `(const phoneNumber = await new Promise[\s\S]*?rl\.close\(\);)`
)

// SuspensionMode selects the strategies tried on the entry point.
type SuspensionMode string

const (
	SuspensionAuto    SuspensionMode = "auto"
	SuspensionPattern SuspensionMode = "pattern"
	SuspensionSyntax  SuspensionMode = "syntax"
	SuspensionWrap    SuspensionMode = "wrap"
	SuspensionOff     SuspensionMode = "off"
)

var (
	// ErrInvalidSuspensionMode is returned for an unknown SuspensionMode.
	ErrInvalidSuspensionMode = errors.New("invalid suspension mode")

	awaitToken   = []byte("await ")
	wrapperToken = []byte(strings.TrimSuffix(asyncIIFEOpen, "\n"))
)

type (
	// Strategy patches top-level suspension points out of a source file by
	// moving them inside an async function boundary.
	Strategy interface {
		// Name identifies the strategy in reports and logs.
		Name() string
		// CanPatch reports whether the strategy applies to src.
		CanPatch(src []byte) bool
		// Patch returns the patched source. It is only called when CanPatch is true.
		Patch(src []byte) ([]byte, error)
	}

	// PatternStrategy wraps the first region matched by a regular expression.
	PatternStrategy struct {
		re *regexp.Regexp
	}

	// WrapStrategy wraps the whole file. It is the blunt fallback for files
	// that still suspend at top level after every precise strategy passed.
	WrapStrategy struct{}

	// Chain tries its strategies in order and applies the first that fits.
	Chain []Strategy

	// verifier is implemented by strategies that can prove a file has no
	// top-level suspension point. A verified file ends the chain unchanged.
	verifier interface {
		Verify(src []byte) bool
	}
)

// Validate returns an error when m is not a known mode.
func (m SuspensionMode) Validate() error {
	switch m {
	case SuspensionAuto, SuspensionPattern, SuspensionSyntax, SuspensionWrap, SuspensionOff:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSuspensionMode, string(m))
	}
}

// NewPatternStrategy compiles pattern. An empty pattern selects DefaultSuspensionPattern.
func NewPatternStrategy(pattern string) (*PatternStrategy, error) {
	if pattern == "" {
		pattern = DefaultSuspensionPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling suspension pattern: %w", err)
	}
	return &PatternStrategy{re: re}, nil
}

func (s *PatternStrategy) Name() string { return string(SuspensionPattern) }

// CanPatch is true when the pattern matches a region that is not already
// wrapped.
func (s *PatternStrategy) CanPatch(src []byte) bool {
	loc := s.re.FindIndex(src)
	return loc != nil && !bytes.HasSuffix(src[:loc[0]], []byte(asyncIIFEOpen))
}

func (s *PatternStrategy) Patch(src []byte) ([]byte, error) {
	loc := s.re.FindIndex(src)
	if loc == nil {
		return nil, errors.New("pattern no longer matches")
	}
	return wrapRange(src, loc[0], loc[1]), nil
}

func (WrapStrategy) Name() string { return string(SuspensionWrap) }

// CanPatch is true when the file still awaits somewhere and carries no async
// wrapper yet.
func (WrapStrategy) CanPatch(src []byte) bool {
	return bytes.Contains(src, awaitToken) && !bytes.Contains(src, wrapperToken)
}

func (WrapStrategy) Patch(src []byte) ([]byte, error) {
	return wrapRange(src, 0, len(src)), nil
}

// Patch applies the first applicable strategy. It returns the name of that
// strategy, or an empty name and src unchanged when none applied.
func (c Chain) Patch(src []byte) ([]byte, string, error) {
	for _, s := range c {
		if v, ok := s.(verifier); ok && v.Verify(src) {
			return src, "", nil
		}
		if !s.CanPatch(src) {
			continue
		}
		out, err := s.Patch(src)
		if err != nil {
			return src, s.Name(), fmt.Errorf("%s strategy: %w", s.Name(), err)
		}
		return out, s.Name(), nil
	}
	return src, "", nil
}

// NewChain builds the strategy chain for mode.
func NewChain(mode SuspensionMode, pattern string) (Chain, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}

	var ps *PatternStrategy
	if mode == SuspensionAuto || mode == SuspensionPattern {
		var err error
		if ps, err = NewPatternStrategy(pattern); err != nil {
			return nil, err
		}
	}

	switch mode {
	case SuspensionAuto:
		return Chain{ps, NewSyntaxStrategy(), WrapStrategy{}}, nil
	case SuspensionPattern:
		return Chain{ps}, nil
	case SuspensionSyntax:
		return Chain{NewSyntaxStrategy()}, nil
	case SuspensionWrap:
		return Chain{WrapStrategy{}}, nil
	default:
		return Chain{}, nil
	}
}

// wrapRange encloses src[start:end] in an immediately invoked async arrow function.
func wrapRange(src []byte, start, end int) []byte {
	out := make([]byte, 0, len(src)+len(asyncIIFEOpen)+len(asyncIIFEClose))
	out = append(out, src[:start]...)
	out = append(out, asyncIIFEOpen...)
	out = append(out, src[start:end]...)
	out = append(out, asyncIIFEClose...)
	out = append(out, src[end:]...)
	return out
}
