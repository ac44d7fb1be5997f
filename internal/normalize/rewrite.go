// SPDX-License-Identifier: MPL-2.0

package normalize

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// quoteChars are the string delimiters a module specifier can appear in.
var quoteChars = []string{`'`, `"`, "`"}

// ReferenceRewriter rewrites relative module specifiers that still name the
// old extension. Bare package specifiers are never touched.
type ReferenceRewriter struct {
	patterns []*regexp.Regexp
	to       string
}

// NewReferenceRewriter builds a rewriter for specifiers ending in from.
func NewReferenceRewriter(from, to string) *ReferenceRewriter {
	ext := regexp.QuoteMeta(from)
	patterns := make([]*regexp.Regexp, 0, len(quoteChars))
	for _, q := range quoteChars {
		qm := regexp.QuoteMeta(q)
		// 'quote' './' or '../' 'path without the quote or a newline' 'ext' 'quote'
		patterns = append(patterns, regexp.MustCompile(qm+`(\.\.?/[^`+qm+`\r\n]*?)`+ext+qm))
	}
	return &ReferenceRewriter{patterns: patterns, to: to}
}

// Rewrite returns src with every matching specifier rewritten and reports
// whether anything changed.
func (r *ReferenceRewriter) Rewrite(src []byte) ([]byte, bool) {
	out := src
	for i, re := range r.patterns {
		q := quoteChars[i]
		out = re.ReplaceAll(out, []byte(q+"${1}"+r.to+q))
	}
	return out, !bytes.Equal(out, src)
}

// RewriteFile applies Rewrite to a file in place. Unchanged files are not written.
func (r *ReferenceRewriter) RewriteFile(afs afero.Fs, path string) (bool, error) {
	src, err := afero.ReadFile(afs, path)
	if err != nil {
		return false, err
	}
	out, changed := r.Rewrite(src)
	if !changed {
		return false, nil
	}
	info, err := afs.Stat(path)
	if err != nil {
		return false, err
	}
	if err := afero.WriteFile(afs, path, out, info.Mode().Perm()); err != nil {
		return false, err
	}
	return true, nil
}

// includeMatcher returns a predicate for paths under root matching any of the
// doublestar patterns. Patterns are matched against slash-separated paths
// relative to root.
func includeMatcher(root string, patterns []string) (func(string) bool, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid include pattern %q", p)
		}
	}
	return func(path string) bool {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return false
		}
		rel = filepath.ToSlash(rel)
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, rel); ok {
				return true
			}
		}
		return false
	}, nil
}
