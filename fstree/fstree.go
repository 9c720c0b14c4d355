// Copyright 2026 CoreOS, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fstree compares directory trees by structure and content.
package fstree

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coreos/pkg/capnslog"
	"github.com/kylelemons/godebug/diff"
	"github.com/pkg/errors"

	"github.com/coreos/journey/normalize"
)

var plog = capnslog.NewPackageLogger("github.com/coreos/journey", "fstree")

// Kind is the type of a directory entry.
type Kind int

const (
	File Kind = iota
	Dir
	Symlink
	Other
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Dir:
		return "directory"
	case Symlink:
		return "symlink"
	default:
		return "special file"
	}
}

func kindOf(m fs.FileMode) Kind {
	switch {
	case m.IsRegular():
		return File
	case m.IsDir():
		return Dir
	case m&fs.ModeSymlink != 0:
		return Symlink
	default:
		return Other
	}
}

// Options controls a comparison.
type Options struct {
	// Normalize is applied to the content of files on both sides, keyed
	// by their slash-separated path relative to the tree root.
	Normalize normalize.Rules

	// All collects every difference instead of stopping at the first.
	All bool

	// Skip lists path globs excluded from the comparison altogether,
	// including anything below a matching directory.
	Skip []string
}

func (o *Options) skipped(rel string) bool {
	for _, pat := range o.Skip {
		if ok, _ := path.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

// Difference describes one mismatch between two trees.
type Difference struct {
	Path   string
	Reason string
}

func (d Difference) String() string {
	return fmt.Sprintf("%s: %s", d.Path, d.Reason)
}

// MismatchError reports that two trees are not equivalent.
type MismatchError struct {
	Expected    string
	Actual      string
	Differences []Difference
}

func (e *MismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tree %s does not match %s", e.Actual, e.Expected)
	for _, d := range e.Differences {
		fmt.Fprintf(&b, "\n  %s", d)
	}
	return b.String()
}

type entry struct {
	kind Kind
	abs  string
}

// scan lists every entry below root, keyed by slash-separated relative path.
func scan(root string, opts *Options) (map[string]entry, error) {
	info, err := os.Lstat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.Errorf("fstree: %s is not a directory", root)
	}

	entries := make(map[string]entry)
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if opts.skipped(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		entries[rel] = entry{kind: kindOf(d.Type()), abs: p}
		return nil
	})
	return entries, err
}

// Compare walks expected and actual and reports how they differ: paths
// present on one side only, entries whose kind differs, symlinks pointing
// elsewhere and files whose normalized content differs. Differences are
// reported in path order. A non-nil error means a tree could not be read.
func Compare(expected, actual string, opts Options) ([]Difference, error) {
	want, err := scan(expected, &opts)
	if err != nil {
		return nil, errors.Wrapf(err, "fstree: reading expected tree")
	}
	got, err := scan(actual, &opts)
	if err != nil {
		return nil, errors.Wrapf(err, "fstree: reading actual tree")
	}

	paths := make([]string, 0, len(want)+len(got))
	for p := range want {
		paths = append(paths, p)
	}
	for p := range got {
		if _, ok := want[p]; !ok {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	var diffs []Difference
	for _, p := range paths {
		d, err := compareEntry(p, want, got, &opts)
		if err != nil {
			return diffs, err
		}
		if d == nil {
			continue
		}
		plog.Debugf("%s differs: %s", p, d.Reason)
		diffs = append(diffs, *d)
		if !opts.All {
			break
		}
	}
	return diffs, nil
}

func compareEntry(p string, want, got map[string]entry, opts *Options) (*Difference, error) {
	w, inWant := want[p]
	g, inGot := got[p]
	switch {
	case !inGot:
		return &Difference{p, fmt.Sprintf("missing %s", w.kind)}, nil
	case !inWant:
		return &Difference{p, fmt.Sprintf("unexpected %s", g.kind)}, nil
	case w.kind != g.kind:
		return &Difference{p, fmt.Sprintf("expected a %s, found a %s", w.kind, g.kind)}, nil
	}

	switch w.kind {
	case Symlink:
		wt, err := os.Readlink(w.abs)
		if err != nil {
			return nil, err
		}
		gt, err := os.Readlink(g.abs)
		if err != nil {
			return nil, err
		}
		if wt != gt {
			return &Difference{p, fmt.Sprintf("symlink points to %q, expected %q", gt, wt)}, nil
		}
	case File:
		if opts.Normalize.Ignored(p) {
			return nil, nil
		}
		wb, err := os.ReadFile(w.abs)
		if err != nil {
			return nil, err
		}
		gb, err := os.ReadFile(g.abs)
		if err != nil {
			return nil, err
		}
		wb = opts.Normalize.Apply(p, wb)
		gb = opts.Normalize.Apply(p, gb)
		if !bytes.Equal(wb, gb) {
			return &Difference{p, describe(wb, gb)}, nil
		}
	}
	return nil, nil
}

// describe explains how two differing file contents differ: a line diff for
// text, the first differing offset for binary data.
func describe(want, got []byte) string {
	if isBinary(want) || isBinary(got) {
		n := 0
		for n < len(want) && n < len(got) && want[n] == got[n] {
			n++
		}
		return fmt.Sprintf("binary content differs at byte %d (expected %d bytes, found %d)", n, len(want), len(got))
	}
	return "content differs:\n" + diff.Diff(string(want), string(got))
}

// isBinary uses the same heuristic as git: a NUL byte in the first 8000 bytes.
func isBinary(b []byte) bool {
	if len(b) > 8000 {
		b = b[:8000]
	}
	return bytes.IndexByte(b, 0) >= 0
}
