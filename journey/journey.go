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

// Package journey declares the acceptance scenarios for a version control
// CLI: repository initialization through the porcelain binary and pack
// verification through the plumbing binary.
package journey

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"regexp"

	"github.com/coreos/go-semver/semver"
	"github.com/pkg/errors"

	"github.com/coreos/journey/fstree"
	"github.com/coreos/journey/harness"
	"github.com/coreos/journey/harness/testresult"
	"github.com/coreos/journey/normalize"
	"github.com/coreos/journey/precondition"
	"github.com/coreos/journey/runner"
)

const (
	// BaselineInit is the fixture an initialized repository is compared with.
	BaselineInit = "baseline-init"

	// Pack and Index are the fixture files verify-pack is run on.
	Pack  = "packs/pack-11fdfa9e156ab73caae3b6da867192221f2089c2.pack"
	Index = "packs/pack-11fdfa9e156ab73caae3b6da867192221f2089c2.idx"

	// InitFailExitCode is the status init must fail with in an existing
	// repository.
	InitFailExitCode = 1
)

// minGit is the first git release with a configurable initial branch.
var minGit = semver.Version{Major: 2, Minor: 28}

// Command is an executable and the arguments that precede the subcommand.
type Command struct {
	Path string
	Args []string
}

func (c Command) expect(dir string, args ...string) runner.Expectation {
	return runner.Expectation{
		Command: c.Path,
		Args:    append(append([]string{}, c.Args...), args...),
		Dir:     dir,
	}
}

type Config struct {
	Porcelain Command
	Plumbing  Command

	// Git is the reference implementation the porcelain is compared
	// with on CI. Defaults to git from $PATH.
	Git Command

	// Kind labels the flavor of the binaries under test in the report.
	Kind string

	Runner *runner.Runner
}

// Register declares the porcelain and plumbing scenarios in suite.
func Register(suite *harness.Suite, cfg Config) {
	if cfg.Git.Path == "" {
		cfg.Git = Command{Path: "git"}
	}
	Porcelain(suite, cfg)
	Plumbing(suite, cfg)
}

// sandboxRule hides the sandbox location, which differs on every run.
func sandboxRule(field, dir string) normalize.Rule {
	return normalize.Rule{Path: field, Pattern: regexp.QuoteMeta(dir), Replace: "<sandbox>"}
}

// Porcelain declares the scenarios for the porcelain binary.
func Porcelain(suite *harness.Suite, cfg Config) {
	r := cfg.Runner
	suite.Title("porcelain "+cfg.Kind, func(s *harness.Scope) {
		s.When("running init", func(s *harness.Scope) {
			s.WithSandbox("an empty directory", func(s *harness.Scope) {
				s.It("succeeds", func(h *harness.H) testresult.TestResult {
					_, err := r.Run(h.Context(), cfg.Porcelain.expect(h.Dir(), "init"))
					return h.Check(err)
				})
				s.It("matches the baseline repository layout", func(h *harness.H) testresult.TestResult {
					return h.Check(r.Snapshot(runner.TreeExpectation{
						Fixture: BaselineInit,
						Actual:  filepath.Join(h.Dir(), ".git"),
						Options: fstree.Options{All: true},
					}))
				})
				s.When("trying to initialize the same directory again", func(s *harness.Scope) {
					s.It("fails", func(h *harness.H) testresult.TestResult {
						exp := cfg.Porcelain.expect(h.Dir(), "init")
						exp.ExitCode = InitFailExitCode
						exp.Scenario = "init-fail"
						exp.Normalize = normalize.Rules{sandboxRule("output", h.Dir())}
						_, err := r.Run(h.Context(), exp)
						return h.Check(err)
					})
				})
			})
		})

		s.OnCI(func(s *harness.Scope) {
			version := append(append([]string{}, cfg.Git.Args...), "--version")
			s.Precondition("git is installed", precondition.MinVersion(cfg.Git.Path, minGit, version...), func(s *harness.Scope) {
				s.WithSandbox("git and the porcelain side by side", func(s *harness.Scope) {
					s.It("produces the same layout as git init", func(h *harness.H) testresult.TestResult {
						return h.Check(sideBySide(h, cfg))
					})
				})
			})
		})
	})
}

// isolatedConfig hides system and global git configuration from a process.
var isolatedConfig = []string{"GIT_CONFIG_NOSYSTEM=1", "GIT_CONFIG_GLOBAL=" + os.DevNull}

// sideBySide initializes a repository with git and one with the porcelain
// and compares the two.
func sideBySide(h *harness.H, cfg Config) error {
	r := cfg.Runner
	ours, theirs := filepath.Join(h.Dir(), "porcelain"), filepath.Join(h.Dir(), "git")
	for _, dir := range []string{ours, theirs} {
		if err := os.Mkdir(dir, 0755); err != nil {
			return err
		}
	}

	git := cfg.Git.expect(theirs, "init", "--quiet")
	porcelain := cfg.Porcelain.expect(ours, "init")
	// keep the host's git configuration out of both repositories
	git.Env = isolatedConfig
	porcelain.Env = isolatedConfig
	for _, exp := range []runner.Expectation{git, porcelain} {
		if _, err := r.Run(h.Context(), exp); err != nil {
			return err
		}
	}

	rules, err := r.FixtureRules(BaselineInit)
	if err != nil {
		return err
	}
	return r.Snapshot(runner.TreeExpectation{
		Expected: filepath.Join(theirs, ".git"),
		Actual:   filepath.Join(ours, ".git"),
		Options: fstree.Options{
			Normalize: rules,
			All:       true,
			// sample hooks vary between git releases
			Skip: []string{"hooks"},
		},
	})
}

// Plumbing declares the scenarios for the plumbing binary.
func Plumbing(suite *harness.Suite, cfg Config) {
	r := cfg.Runner
	verifyPack := func(h *harness.H, scenario string, args ...string) ([]byte, error) {
		exp := cfg.Plumbing.expect(h.Dir(), append([]string{"verify-pack"}, args...)...)
		exp.Stream = runner.Stdout
		exp.Scenario = scenario
		res, err := r.Run(h.Context(), exp)
		if err != nil {
			return nil, err
		}
		return res.Stdout, nil
	}

	suite.Title("plumbing "+cfg.Kind, func(s *harness.Scope) {
		s.When("running verify-pack", func(s *harness.Scope) {
			s.With("a valid pack file", func(s *harness.Scope) {
				s.It("succeeds", func(h *harness.H) testresult.TestResult {
					_, err := verifyPack(h, "plumbing-verify-pack-success", r.Fixture(Pack))
					return h.Check(err)
				})
			})
			s.With("a valid index file", func(s *harness.Scope) {
				s.It("succeeds", func(h *harness.H) testresult.TestResult {
					_, err := verifyPack(h, "plumbing-verify-pack-index-success", r.Fixture(Index))
					return h.Check(err)
				})
				s.With("statistics enabled", func(s *harness.Scope) {
					s.It("succeeds", func(h *harness.H) testresult.TestResult {
						_, err := verifyPack(h, "plumbing-verify-pack-index-with-statistics-success", "--statistics", r.Fixture(Index))
						return h.Check(err)
					})
				})
				s.It("reports more with statistics than without", func(h *harness.H) testresult.TestResult {
					plain, err := verifyPack(h, "", r.Fixture(Index))
					if err != nil {
						return h.Fail(err)
					}
					stats, err := verifyPack(h, "", "--statistics", r.Fixture(Index))
					if err != nil {
						return h.Fail(err)
					}
					return h.Check(moreInformative(plain, stats))
				})
			})
		})
	})
}

// moreInformative checks that every line of less appears in more and that
// more has additional lines.
func moreInformative(less, more []byte) error {
	have := make(map[string]int)
	total := 0
	sc := bufio.NewScanner(bytes.NewReader(more))
	for sc.Scan() {
		have[sc.Text()]++
		total++
	}
	n := 0
	sc = bufio.NewScanner(bytes.NewReader(less))
	for sc.Scan() {
		if have[sc.Text()] == 0 {
			return errors.Errorf("line %q is missing from the output with statistics", sc.Text())
		}
		have[sc.Text()]--
		n++
	}
	if total <= n {
		return errors.Errorf("output with statistics has %d lines, without %d", total, n)
	}
	return nil
}
