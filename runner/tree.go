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

package runner

import (
	"github.com/pkg/errors"

	"github.com/coreos/journey/fstree"
	"github.com/coreos/journey/normalize"
	"github.com/coreos/journey/snapshot"
)

// NormalizeSuffix names the optional rules file shipped next to a fixture.
const NormalizeSuffix = ".normalize.yaml"

// TreeExpectation describes a directory tree that must match a reference.
// Exactly one of Fixture, Scenario and Expected names the reference.
type TreeExpectation struct {
	// Actual is the tree produced by the binary under test.
	Actual string

	// Fixture is a read-only reference tree below the fixtures directory.
	// It is always verified, never recorded.
	Fixture string

	// Scenario is a recorded tree in the snapshot store, verified or
	// recorded according to the runner's mode.
	Scenario string

	// Expected is any other directory, such as one produced by a
	// reference implementation. It is always verified.
	Expected string

	Options fstree.Options
}

// FixtureRules loads the normalization rules shipped with fixture, if any.
func (r *Runner) FixtureRules(fixture string) (normalize.Rules, error) {
	return normalize.LoadOptional(r.Fixture(fixture) + NormalizeSuffix)
}

// Snapshot checks a directory tree against its reference. Differences are
// reported as an *fstree.MismatchError.
func (r *Runner) Snapshot(exp TreeExpectation) error {
	refs := 0
	for _, s := range []string{exp.Fixture, exp.Scenario, exp.Expected} {
		if s != "" {
			refs++
		}
	}
	if refs != 1 {
		return errors.New("runner: a tree expectation needs exactly one of fixture, scenario or expected tree")
	}
	if exp.Actual == "" {
		return errors.New("runner: a tree expectation needs an actual tree")
	}

	opts := exp.Options
	if err := opts.Normalize.Compile(); err != nil {
		return err
	}

	switch {
	case exp.Fixture != "":
		rules, err := r.FixtureRules(exp.Fixture)
		if err != nil {
			return err
		}
		opts.Normalize = append(append(normalize.Rules{}, opts.Normalize...), rules...)
		plog.Debugf("Comparing %s with fixture %s", exp.Actual, exp.Fixture)
		return snapshot.CompareTrees(r.Fixture(exp.Fixture), exp.Actual, opts)
	case exp.Scenario != "":
		plog.Debugf("Checking %s against snapshot %s (%v)", exp.Actual, exp.Scenario, r.cfg.Mode)
		return r.store.CheckTree(exp.Scenario, exp.Actual, opts, r.cfg.Mode)
	default:
		plog.Debugf("Comparing %s with %s", exp.Actual, exp.Expected)
		return snapshot.CompareTrees(exp.Expected, exp.Actual, opts)
	}
}
