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

// Package sandbox provides throwaway working directories for scenarios that
// need an isolated place to run the binaries under test.
package sandbox

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/coreos/pkg/capnslog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var plog = capnslog.NewPackageLogger("github.com/coreos/journey", "sandbox")

// Sandbox is a fresh, empty temporary directory owned by a single scope.
type Sandbox struct {
	dir string
}

// New creates a sandbox below root, or below the default temporary
// directory if root is empty.
func New(root string) (*Sandbox, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, "sandbox: creating root %s", root)
	}
	// a short run-unique prefix makes leftovers from crashed runs easy to spot
	dir, err := os.MkdirTemp(root, "sandbox-"+uuid.NewString()[:8]+"-")
	if err != nil {
		return nil, errors.Wrapf(err, "sandbox: creating directory in %s", root)
	}
	// resolve symlinked temp roots so paths reported by the binaries under
	// test match the ones used for comparisons
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	plog.Debugf("Created sandbox %s", dir)
	return &Sandbox{dir: dir}, nil
}

// Dir returns the absolute path of the sandbox, or "" once destroyed.
func (s *Sandbox) Dir() string {
	return s.dir
}

// Destroy removes the sandbox and everything in it. Directories made
// read-only by the code under test are made writable first. Destroying a
// sandbox twice is a no-op.
func (s *Sandbox) Destroy() error {
	if s.dir == "" {
		return nil
	}
	dir := s.dir
	err := os.RemoveAll(dir)
	if err != nil {
		plog.Debugf("Retrying removal of %s after restoring permissions: %v", dir, err)
		makeWritable(dir)
		err = os.RemoveAll(dir)
	}
	if err != nil {
		return errors.Wrapf(err, "sandbox: removing %s", dir)
	}
	plog.Debugf("Removed sandbox %s", dir)
	s.dir = ""
	return nil
}

func makeWritable(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable directories are fixed up by their parent's visit
			return nil
		}
		if d.IsDir() {
			if info, err := d.Info(); err == nil {
				_ = os.Chmod(p, info.Mode().Perm()|0700)
			}
		}
		return nil
	})
}

// Run creates a sandbox below root, calls fn with its directory and removes
// the sandbox on every exit path. A panic in fn is re-raised after removal.
// If fn fails, its error is returned and a removal failure is only logged.
func Run(root string, fn func(dir string) error) (err error) {
	s, err := New(root)
	if err != nil {
		return err
	}
	defer func() {
		derr := s.Destroy()
		if derr == nil {
			return
		}
		if err != nil {
			plog.Errorf("%v", derr)
			return
		}
		err = derr
	}()
	return fn(s.Dir())
}
