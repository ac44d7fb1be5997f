// SPDX-License-Identifier: MPL-2.0

package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

const (
	manifestTypeKey    = "type"
	manifestModuleType = "module"
	manifestIndent     = "  "
)

// ErrManifestNotObject is returned when the manifest's top-level value is not a JSON object.
var ErrManifestNotObject = errors.New("manifest is not a JSON object")

type manifestMember struct {
	key   string
	value json.RawMessage
}

// PatchManifest removes a top-level "type": "module" declaration from the
// manifest at path. Remaining members keep their order and the file is
// re-indented with two spaces. The file is left untouched when it does not
// exist, when the field is absent, or when it holds any other value.
func PatchManifest(fs afero.Fs, path string) (bool, error) {
	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	members, err := decodeMembers(data)
	if err != nil {
		return false, fmt.Errorf("parsing %s: %w", path, err)
	}

	kept := members[:0:0]
	for _, m := range members {
		if m.key == manifestTypeKey && isModuleType(m.value) {
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) == len(members) {
		return false, nil
	}

	out, err := encodeMembers(kept)
	if err != nil {
		return false, fmt.Errorf("encoding %s: %w", path, err)
	}

	info, err := fs.Stat(path)
	if err != nil {
		return false, err
	}
	if err := afero.WriteFile(fs, path, out, info.Mode().Perm()); err != nil {
		return false, err
	}
	return true, nil
}

// decodeMembers reads the top-level object member by member so that the
// original key order survives.
func decodeMembers(data []byte) ([]manifestMember, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrManifestNotObject
	}

	var members []manifestMember
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		members = append(members, manifestMember{key: key, value: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after top-level object")
	}
	return members, nil
}

func encodeMembers(members []manifestMember) ([]byte, error) {
	var compact, key bytes.Buffer
	enc := json.NewEncoder(&key)
	enc.SetEscapeHTML(false)

	compact.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			compact.WriteByte(',')
		}
		key.Reset()
		if err := enc.Encode(m.key); err != nil {
			return nil, err
		}
		compact.Write(bytes.TrimSuffix(key.Bytes(), []byte("\n")))
		compact.WriteByte(':')
		compact.Write(m.value)
	}
	compact.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", manifestIndent); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func isModuleType(raw json.RawMessage) bool {
	var s string
	return json.Unmarshal(raw, &s) == nil && s == manifestModuleType
}
