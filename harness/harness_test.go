// Copyright 2017 CoreOS, Inc.
// Copyright 2009 The Go Authors.
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

package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/kylelemons/godebug/diff"
	"github.com/pkg/errors"

	"github.com/coreos/journey/harness/reporters"
	"github.com/coreos/journey/harness/testresult"
)

func TestMain(m *testing.M) {
	g0 := runtime.NumGoroutine()

	code := m.Run()
	if code != 0 {
		os.Exit(code)
	}

	// Check that there are no goroutines left behind.
	t0 := time.Now()
	stacks := make([]byte, 1<<20)
	for {
		g1 := runtime.NumGoroutine()
		if g1 == g0 {
			return
		}
		stacks = stacks[:runtime.Stack(stacks, true)]
		time.Sleep(50 * time.Millisecond)
		if time.Since(t0) > 2*time.Second {
			fmt.Fprintf(os.Stderr, "Unexpected leftover goroutines detected: %v -> %v\n%s\n", g0, g1, stacks)
			os.Exit(1)
		}
	}
}

func pass(h *H) testresult.TestResult {
	return testresult.Pass
}

func failWith(msg string) Test {
	return func(h *H) testresult.TestResult {
		return h.Fail(errors.New(msg))
	}
}

func TestReport(t *testing.T) {
	noGit := func() error { return errors.New("git is not installed") }

	testCases := []struct {
		desc    string
		ok      bool
		verbose bool
		ci      bool
		output  string
		build   func(*Scope)
	}{{
		desc: "failure propagates to every ancestor",
		output: `
--- FAIL: title failure propagates to every ancestor (N.NNs)
    --- FAIL: when running init (N.NNs)
        --- PASS: it succeeds (N.NNs)
        --- FAIL: it fails (N.NNs)
            harness_test.go:NNN: boom
    --- PASS: with a valid pack (N.NNs)
        --- PASS: it succeeds (N.NNs)
FAIL`,
		build: func(s *Scope) {
			s.When("running init", func(s *Scope) {
				s.It("succeeds", pass)
				s.It("fails", failWith("boom"))
			})
			s.With("a valid pack", func(s *Scope) {
				s.It("succeeds", pass)
			})
		},
	}, {
		desc: "gates skip their subtree",
		ok:   true,
		output: `
--- PASS: title gates skip their subtree (N.NNs)
    --- PASS: it passes (N.NNs)
    --- SKIP: if running on CI (N.NNs)
        not running on CI
        --- SKIP: it compares with git (N.NNs)
            not running on CI
    --- SKIP: if git is installed (N.NNs)
        precondition "git is installed" not met: git is not installed
        --- SKIP: with a sandbox (N.NNs)
            --- SKIP: it compares with git (N.NNs)
                precondition "git is installed" not met: git is not installed
PASS`,
		build: func(s *Scope) {
			s.It("passes", pass)
			s.OnCI(func(s *Scope) {
				s.It("compares with git", failWith("must not run"))
			})
			s.Precondition("git is installed", noGit, func(s *Scope) {
				s.WithSandbox("a sandbox", func(s *Scope) {
					s.It("compares with git", failWith("must not run"))
				})
			})
		},
	}, {
		desc: "gates open on CI",
		ok:   false,
		ci:   true,
		output: `
--- FAIL: title gates open on CI (N.NNs)
    --- FAIL: if running on CI (N.NNs)
        --- FAIL: it runs (N.NNs)
            harness_test.go:NNN: ran on CI
FAIL`,
		build: func(s *Scope) {
			s.OnCI(func(s *Scope) {
				s.It("runs", failWith("ran on CI"))
			})
		},
	}, {
		desc: "empty scopes and skipped tests",
		ok:   true,
		output: `
--- SKIP: title empty scopes and skipped tests (N.NNs)
    --- SKIP: when nothing is declared (N.NNs)
    --- SKIP: it does not apply (N.NNs)
        harness_test.go:NNN: not on this platform
PASS`,
		build: func(s *Scope) {
			s.When("nothing is declared", nil)
			s.It("does not apply", func(h *H) testresult.TestResult {
				return h.Skipf("not on this platform")
			})
		},
	}, {
		desc: "failure outweighs the returned result",
		output: `
--- FAIL: title failure outweighs the returned result (N.NNs)
    --- FAIL: it fails then passes (N.NNs)
        harness_test.go:NNN: first check failed
    --- FAIL: it returns nothing (N.NNs)
        test returned no result
FAIL`,
		build: func(s *Scope) {
			s.It("fails then passes", func(h *H) testresult.TestResult {
				h.Failf("first check failed")
				return testresult.Pass
			})
			s.It("returns nothing", func(h *H) testresult.TestResult {
				return testresult.Pending
			})
		},
	}, {
		desc:    "verbose output",
		ok:      true,
		verbose: true,
		output: `
=== RUN   verbose_output/logs
--- PASS: title verbose output (N.NNs)
    --- PASS: it logs (N.NNs)
        harness_test.go:NNN: initialized in /tmp
PASS`,
		build: func(s *Scope) {
			s.It("logs", func(h *H) testresult.TestResult {
				h.Logf("initialized in %s", "/tmp")
				return h.Check(nil, nil)
			})
		},
	}}
	for _, tc := range testCases {
		buf := &bytes.Buffer{}
		suite := NewSuite(Options{
			Output:      buf,
			Verbose:     tc.verbose,
			CI:          tc.ci,
			SandboxRoot: t.TempDir(),
		}, "test")
		suite.Title(tc.desc, tc.build)
		err := suite.Run(context.Background())

		if ok := err == nil; ok != tc.ok {
			t.Errorf("%s:ok: got %v; want %v", tc.desc, err, tc.ok)
		}
		if !tc.ok && err != SuiteFailed {
			t.Errorf("%s: got %v; want SuiteFailed", tc.desc, err)
		}
		got := strings.TrimSpace(buf.String())
		want := strings.TrimSpace(tc.output)
		re := makeRegexp(want)
		if ok, err := regexp.MatchString(re, got); !ok || err != nil {
			t.Errorf("%s:output:\n%s", tc.desc, diff.Diff(want, got))
		}
	}
}

func makeRegexp(s string) string {
	s = regexp.QuoteMeta(s)
	s = strings.Replace(s, ":NNN:", `:\d+:`, -1)
	s = strings.Replace(s, `\(N\.NNs\)`, `\(\d*\.\d*s\)`, -1)
	return "^" + s + "$"
}

func TestPanic(t *testing.T) {
	buf := &bytes.Buffer{}
	suite := NewSuite(Options{Output: buf}, "test")
	var after bool
	var leaf *Node
	suite.Title("panics", func(s *Scope) {
		leaf = s.It("panics", func(h *H) testresult.TestResult {
			panic("boom")
		})
		s.It("runs after a panic", func(h *H) testresult.TestResult {
			after = true
			return testresult.Pass
		})
	})
	if err := suite.Run(context.Background()); err != SuiteFailed {
		t.Errorf("got %v; want SuiteFailed", err)
	}
	if leaf.Outcome != testresult.Fail {
		t.Errorf("panicking test resolved %s", leaf.Outcome)
	}
	if leaf.Reason != "panic: boom" {
		t.Errorf("panic not reported: %q", leaf.Reason)
	}
	if !after {
		t.Error("sibling of a panicking test did not run")
	}
}

func TestSandboxes(t *testing.T) {
	root := t.TempDir()
	var outer, first, second, nested string
	suite := NewSuite(Options{Output: &bytes.Buffer{}, SandboxRoot: root}, "test")
	suite.Title("sandboxes", func(s *Scope) {
		s.It("runs in the sandbox root", func(h *H) testresult.TestResult {
			outer = h.Dir()
			return testresult.Pass
		})
		s.WithSandbox("a first sandbox", func(s *Scope) {
			s.It("writes a file", func(h *H) testresult.TestResult {
				first = h.Dir()
				return h.Check(os.WriteFile(filepath.Join(h.Dir(), "HEAD"), nil, 0644))
			})
			s.It("sees its own file", func(h *H) testresult.TestResult {
				_, err := os.Stat(filepath.Join(h.Dir(), "HEAD"))
				return h.Check(err)
			})
			s.WithSandbox("a nested sandbox", func(s *Scope) {
				s.It("starts empty", func(h *H) testresult.TestResult {
					nested = h.Dir()
					entries, err := os.ReadDir(h.Dir())
					if err != nil {
						return h.Fail(err)
					}
					if len(entries) != 0 {
						return h.Failf("sandbox not empty: %v", entries)
					}
					return testresult.Pass
				})
			})
		})
		s.WithSandbox("a second sandbox", func(s *Scope) {
			s.It("does not see the first", func(h *H) testresult.TestResult {
				second = h.Dir()
				if _, err := os.Stat(filepath.Join(h.Dir(), "HEAD")); !os.IsNotExist(err) {
					return h.Failf("HEAD leaked into %s: %v", h.Dir(), err)
				}
				return testresult.Pass
			})
		})
	})
	if err := suite.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outer != root {
		t.Errorf("unsandboxed test ran in %s, want %s", outer, root)
	}
	for _, dir := range []string{first, second, nested} {
		if dir == "" || dir == root {
			t.Errorf("sandboxed test ran in %q", dir)
		}
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("sandbox %s was not removed", dir)
		}
	}
	if first == second || first == nested {
		t.Errorf("sandboxes were shared: %s %s %s", first, second, nested)
	}
}

func TestSandboxFailure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	ran := false
	var scope, leaf, sibling *Node
	suite := NewSuite(Options{Output: &bytes.Buffer{}, SandboxRoot: file}, "test")
	suite.Title("sandbox failure", func(s *Scope) {
		scope = s.WithSandbox("an unavailable sandbox", func(s *Scope) {
			leaf = s.It("never runs", func(h *H) testresult.TestResult {
				ran = true
				return testresult.Pass
			})
		})
		sibling = s.It("still runs", pass)
	})
	if err := suite.Run(context.Background()); err != SuiteFailed {
		t.Errorf("got %v; want SuiteFailed", err)
	}
	if ran {
		t.Error("test ran without its sandbox")
	}
	if scope.Outcome != testresult.Fail || leaf.Outcome != testresult.Fail {
		t.Errorf("scope %s and leaf %s, want FAIL", scope.Outcome, leaf.Outcome)
	}
	if !strings.HasPrefix(leaf.Reason, "sandbox unavailable: ") {
		t.Errorf("unexpected reason %q", leaf.Reason)
	}
	if sibling.Outcome != testresult.Pass {
		t.Errorf("sibling resolved %s", sibling.Outcome)
	}
}

func TestTimeout(t *testing.T) {
	buf := &bytes.Buffer{}
	suite := NewSuite(Options{Output: buf, Timeout: 100 * time.Millisecond}, "test")
	var slow, fast *Node
	suite.Title("timeouts", func(s *Scope) {
		slow = s.It("waits for its context", func(h *H) testresult.TestResult {
			select {
			case <-time.After(time.Minute):
			case <-h.Context().Done():
			}
			return testresult.Pass
		})
		fast = s.It("is quick", pass)
	})

	start := time.Now()
	if err := suite.Run(context.Background()); err != SuiteFailed {
		t.Errorf("got %v; want SuiteFailed", err)
	}
	if total := time.Since(start); total > 10*time.Second {
		t.Errorf("timeout took %v", total)
	}
	if slow.Outcome != testresult.Fail || slow.Reason != "test timed out after 100ms" {
		t.Errorf("slow test: %s %q", slow.Outcome, slow.Reason)
	}
	if fast.Outcome != testresult.Pass {
		t.Errorf("fast test resolved %s", fast.Outcome)
	}
}

func TestMatch(t *testing.T) {
	buf := &bytes.Buffer{}
	var ran []string
	record := func(h *H) testresult.TestResult {
		ran = append(ran, h.Name())
		return testresult.Pass
	}
	suite := NewSuite(Options{Output: buf, Match: "porcelain/running_init/succeeds"}, "test")
	suite.Title("porcelain", func(s *Scope) {
		s.When("running init", func(s *Scope) {
			s.It("succeeds", record)
			s.It("fails", record)
		})
		s.When("running verify-pack", func(s *Scope) {
			s.It("succeeds", record)
		})
	})
	suite.Title("plumbing", func(s *Scope) {
		s.It("succeeds", record)
	})
	if err := suite.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(ran) != 1 || ran[0] != "porcelain/running_init/succeeds" {
		t.Errorf("ran %v", ran)
	}
	want := `--- PASS: title porcelain (N.NNs)
    --- PASS: when running init (N.NNs)
        --- PASS: it succeeds (N.NNs)
PASS`
	got := strings.TrimSpace(buf.String())
	if ok, _ := regexp.MatchString(makeRegexp(want), got); !ok {
		t.Errorf("output:\n%s", diff.Diff(want, got))
	}
}

func TestUniqueNames(t *testing.T) {
	suite := NewSuite(Options{Output: &bytes.Buffer{}}, "test")
	var a, b *Node
	suite.Title("dup", func(s *Scope) {
		a = s.It("succeeds", pass)
		b = s.It("succeeds", pass)
	})
	if a.Name() != "dup/succeeds" || b.Name() != "dup/succeeds#01" {
		t.Errorf("names %q and %q", a.Name(), b.Name())
	}
}

func TestParents(t *testing.T) {
	suite := NewSuite(Options{Output: &bytes.Buffer{}}, "test")
	var leaf *Node
	title := suite.Title("porcelain", func(s *Scope) {
		s.When("running init", func(s *Scope) {
			s.OnCI(func(s *Scope) {
				leaf = s.It("succeeds", pass)
			})
		})
	})
	var kinds []string
	for n := leaf; n != nil; n = n.Parent() {
		kinds = append(kinds, n.Kind.String())
	}
	if got := strings.Join(kinds, " "); got != "it if when title" {
		t.Errorf("ancestry of the leaf: %s", got)
	}
	if title.Parent() != nil || leaf.depth() != 3 {
		t.Errorf("title parent %v, leaf depth %d", title.Parent(), leaf.depth())
	}
}

func TestEmptySuite(t *testing.T) {
	suite := NewSuite(Options{Output: &bytes.Buffer{}}, "test")
	suite.Title("nothing", func(s *Scope) {
		s.When("empty", nil)
	})
	if err := suite.Run(context.Background()); err != SuiteEmpty {
		t.Errorf("got %v; want SuiteEmpty", err)
	}
}

func TestInvalidMatch(t *testing.T) {
	suite := NewSuite(Options{Output: &bytes.Buffer{}, Match: "porcelain/("}, "test")
	suite.Title("porcelain", func(s *Scope) {
		s.It("succeeds", pass)
	})
	if err := suite.Run(context.Background()); err == nil {
		t.Error("invalid --run pattern accepted")
	}
}

func TestReporters(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	suite := NewSuite(Options{
		Output:    &bytes.Buffer{},
		OutputDir: dir,
		Reporters: reporters.Reporters{reporters.NewTAPReporter("test.tap")},
	}, "test")
	suite.Title("porcelain", func(s *Scope) {
		s.It("succeeds", pass)
		s.OnCI(func(s *Scope) {
			s.It("compares with git", pass)
		})
		s.It("fails", failWith("exit code 1"))
	})
	if err := suite.Run(context.Background()); err != SuiteFailed {
		t.Errorf("got %v; want SuiteFailed", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "test.tap"))
	if err != nil {
		t.Fatal(err)
	}
	want := `1..3
ok 1 - porcelain/succeeds
ok 2 - porcelain/running_on_CI/compares_with_git # SKIP
not ok 3 - porcelain/fails
# harness_test.go:NNN: exit code 1`
	if ok, _ := regexp.MatchString(makeRegexp(want), strings.TrimSpace(string(b))); !ok {
		t.Errorf("tap output:\n%s", diff.Diff(want, string(b)))
	}
}

func TestContextCancel(t *testing.T) {
	suite := NewSuite(Options{Output: &bytes.Buffer{}}, "test")
	suite.Title("context", func(s *Scope) {
		s.It("cancels", func(h *H) testresult.TestResult {
			ctx := h.Context()
			// Tests we don't leak this goroutine:
			go func() {
				<-ctx.Done()
			}()
			return testresult.Pass
		})
	})
	if err := suite.Run(context.Background()); err != nil {
		t.Errorf("Run failed: %v", err)
	}
}
