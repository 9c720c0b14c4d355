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

// Package snapshot stores the reference data that captured output and
// directory trees are checked against.
//
// A store has two modes. In Verify mode, the default, recorded snapshots are
// only read and a missing snapshot is an error. In Record mode the actual
// data replaces whatever was recorded and the check passes. Switching modes
// is always an explicit choice of the caller.
package snapshot

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/coreos/pkg/capnslog"
	"github.com/kylelemons/godebug/diff"
	"github.com/pkg/errors"

	"github.com/coreos/journey/fstree"
)

var plog = capnslog.NewPackageLogger("github.com/coreos/journey", "snapshot")

type Mode int

const (
	Verify Mode = iota
	Record
)

func (m Mode) String() string {
	if m == Record {
		return "record"
	}
	return "verify"
}

// ParseMode accepts "verify" and "record".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "verify", "":
		return Verify, nil
	case "record":
		return Record, nil
	}
	return Verify, errors.Errorf("snapshot: unknown mode %q", s)
}

// NotRecordedError is returned in Verify mode when a scenario has no
// snapshot yet.
type NotRecordedError struct {
	Scenario string
	Path     string
}

func (e *NotRecordedError) Error() string {
	return fmt.Sprintf("no recorded snapshot for scenario %q (expected at %s); rerun with --record to create it", e.Scenario, e.Path)
}

// MismatchError is returned when captured data differs from the recorded
// snapshot. Diff is a line diff from recorded to actual.
type MismatchError struct {
	Scenario string
	Diff     string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("output of scenario %q does not match its snapshot (-recorded +actual):\n%s", e.Scenario, e.Diff)
}

// Store is a directory of snapshots addressed by scenario name.
type Store struct {
	Root string
}

func NewStore(root string) *Store {
	return &Store{Root: root}
}

// Path returns the location of the snapshot for scenario. Names are
// slash-separated and must stay below the store root.
func (s *Store) Path(scenario string) (string, error) {
	if scenario == "" {
		return "", errors.New("snapshot: empty scenario name")
	}
	clean := filepath.Clean(filepath.FromSlash(scenario))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("snapshot: scenario name %q escapes the store", scenario)
	}
	// the root itself holds every snapshot and is never one
	if clean == "." {
		return "", errors.Errorf("snapshot: scenario name %q names the store itself", scenario)
	}
	return filepath.Join(s.Root, clean), nil
}

// Load returns the recorded snapshot for scenario.
func (s *Store) Load(scenario string) ([]byte, error) {
	p, err := s.Path(scenario)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, &NotRecordedError{Scenario: scenario, Path: p}
	}
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot: reading %s", p)
	}
	return b, nil
}

// Save records data as the snapshot for scenario.
func (s *Store) Save(scenario string, data []byte) error {
	p, err := s.Path(scenario)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return errors.Wrapf(err, "snapshot: creating %s", filepath.Dir(p))
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return errors.Wrapf(err, "snapshot: writing %s", p)
	}
	plog.Infof("Recorded snapshot %s", p)
	return nil
}

// Check compares actual with the snapshot for scenario in Verify mode, or
// records it in Record mode.
func (s *Store) Check(scenario string, actual []byte, mode Mode) error {
	if mode == Record {
		return s.Save(scenario, actual)
	}
	want, err := s.Load(scenario)
	if err != nil {
		return err
	}
	if bytes.Equal(want, actual) {
		return nil
	}
	return &MismatchError{
		Scenario: scenario,
		Diff:     diff.Diff(string(want), string(actual)),
	}
}

// SaveTree records the tree at dir as the snapshot for scenario, replacing
// any previous recording.
func (s *Store) SaveTree(scenario, dir string) error {
	p, err := s.Path(scenario)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(p); err != nil {
		return errors.Wrapf(err, "snapshot: removing old recording %s", p)
	}
	if err := fstree.Copy(dir, p); err != nil {
		return errors.Wrapf(err, "snapshot: recording %s", p)
	}
	plog.Infof("Recorded tree snapshot %s", p)
	return nil
}

// CheckTree compares the tree at dir with the recorded tree for scenario in
// Verify mode, or records it in Record mode. A mismatch is reported as an
// *fstree.MismatchError.
func (s *Store) CheckTree(scenario, dir string, opts fstree.Options, mode Mode) error {
	if mode == Record {
		return s.SaveTree(scenario, dir)
	}
	p, err := s.Path(scenario)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return &NotRecordedError{Scenario: scenario, Path: p}
	}
	return CompareTrees(p, dir, opts)
}

// CompareTrees compares actual with expected and returns an
// *fstree.MismatchError describing any differences.
func CompareTrees(expected, actual string, opts fstree.Options) error {
	diffs, err := fstree.Compare(expected, actual, opts)
	if err != nil {
		return err
	}
	if len(diffs) > 0 {
		return &fstree.MismatchError{Expected: expected, Actual: actual, Differences: diffs}
	}
	return nil
}
