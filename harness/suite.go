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
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/coreos/journey/harness/reporters"
	"github.com/coreos/journey/harness/testresult"
	"github.com/coreos/journey/sandbox"
)

var (
	plog = capnslog.NewPackageLogger("github.com/coreos/journey", "harness")

	SuiteEmpty  = errors.New("harness: no tests to run")
	SuiteFailed = errors.New("harness: test suite failed")
)

// abandonAfter is how long a test may keep running once its context ended
// before the suite moves on without it.
const abandonAfter = 30 * time.Second

// Options
type Options struct {
	// The directory in which to write reports; empty disables them.
	OutputDir string

	// Print logs and results of passing tests too.
	Verbose bool

	// Run only tests matching a regexp.
	Match string

	// Fail a test that runs longer than this (0 means unlimited).
	Timeout time.Duration

	// Parent directory of sandboxes; the system temporary directory if empty.
	SandboxRoot string

	// Running on continuous integration; enables OnCI subtrees.
	CI bool

	// Highlight results with ANSI colors.
	Color bool

	// Where the report is printed; os.Stdout if nil.
	Output io.Writer

	Reporters reporters.Reporters
}

// FlagSet can be used to setup options via command line flags.
// An optional prefix can be prepended to each flag.
// Defaults can be specified prior to calling FlagSet.
func (o *Options) FlagSet(prefix string) *pflag.FlagSet {
	f := pflag.NewFlagSet("harness", pflag.ContinueOnError)
	f.StringVar(&o.OutputDir, prefix+"output-dir", o.OutputDir,
		"write JSON and TAP reports to `dir`")
	f.BoolVar(&o.Verbose, prefix+"report-all", o.Verbose,
		"verbose: print logs of passing tests and announce each test")
	f.StringVar(&o.Match, prefix+"run", o.Match,
		"run only tests matching `regexp`")
	f.DurationVar(&o.Timeout, prefix+"test-timeout", o.Timeout,
		"fail a test after duration `d` (0 means unlimited)")
	f.StringVar(&o.SandboxRoot, prefix+"sandbox-root", o.SandboxRoot,
		"create sandboxes below `dir`")
	f.BoolVar(&o.CI, prefix+"ci", o.CI,
		"run as on continuous integration (default from $CI)")
	f.BoolVar(&o.Color, prefix+"color", o.Color,
		"highlight results with colors (default when stdout is a terminal)")
	return f
}

// Suite is a tree of scenarios below one or more titles.
type Suite struct {
	opts   Options
	name   string
	titles []*Node
	match  *matcher
}

// NewSuite creates a new, empty test suite.
// All parameters in Options cannot be modified once given to Suite.
func NewSuite(opts Options, name string) *Suite {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Suite{
		opts:  opts,
		name:  name,
		match: newMatcher(opts.Match),
	}
}

// Title declares a top-level section; build declares its contents.
func (s *Suite) Title(text string, build func(*Scope)) *Node {
	n := &Node{
		Kind:        TitleNode,
		Description: text,
		name:        s.match.fullName("", text),
	}
	s.titles = append(s.titles, n)
	if build != nil {
		build(&Scope{suite: s, node: n})
	}
	return n
}

// Titles returns the declared top-level nodes.
func (s *Suite) Titles() []*Node {
	return s.titles
}

// Run runs the tests and prints the report. Returns SuiteFailed for any
// test failure and SuiteEmpty if no test was declared.
func (s *Suite) Run(ctx context.Context) (err error) {
	if s.match.err != nil {
		return s.match.err
	}
	leaves := 0
	for _, t := range s.titles {
		leaves += t.Leaves()
	}
	if leaves == 0 {
		return SuiteEmpty
	}

	if s.opts.OutputDir != "" {
		if err := os.MkdirAll(s.opts.OutputDir, 0777); err != nil {
			return errors.Wrapf(err, "harness: creating output directory")
		}
		defer func() {
			if reportErr := s.opts.Reporters.Output(s.opts.OutputDir); reportErr != nil && err == nil {
				err = reportErr
			}
		}()
	}

	dir := s.opts.SandboxRoot
	if dir == "" {
		dir = os.TempDir()
	}
	plog.Infof("Running %d tests of suite %s", leaves, s.name)
	for _, t := range s.titles {
		s.runNode(ctx, t, dir)
	}

	results := make([]testresult.TestResult, len(s.titles))
	for i, t := range s.titles {
		s.report(s.opts.Output, t)
		s.reportLeaves(t)
		results[i] = t.Outcome
	}
	result := testresult.Resolve(results)
	if result == testresult.Fail {
		fmt.Fprintln(s.opts.Output, testresult.Fail.Display(s.opts.Color))
		s.opts.Reporters.SetResult(testresult.Fail)
		return SuiteFailed
	}
	fmt.Fprintln(s.opts.Output, testresult.Pass.Display(s.opts.Color))
	s.opts.Reporters.SetResult(result)
	return nil
}

func (s *Suite) runNode(ctx context.Context, n *Node, dir string) {
	start := time.Now()
	defer func() {
		n.Duration = time.Since(start)
	}()

	switch {
	case n.Kind == ItNode:
		s.runTest(ctx, n, dir)
		return
	case n.Kind == GateNode:
		if reason := s.gate(n); reason != "" {
			plog.Infof("Skipping %s: %s", n.name, reason)
			n.Reason = reason
			n.Outcome = testresult.Skip
			n.settle(testresult.Skip, reason)
			return
		}
		s.runChildren(ctx, n, dir)
	case n.sandboxed && !n.hidden():
		err := sandbox.Run(s.opts.SandboxRoot, func(sbDir string) error {
			s.runChildren(ctx, n, sbDir)
			return nil
		})
		if err != nil {
			plog.Errorf("Sandbox of %s: %v", n.name, err)
			n.Reason = err.Error()
			n.Outcome = testresult.Fail
			// children that never ran share the failure
			n.settle(testresult.Fail, "sandbox unavailable: "+err.Error())
		}
	default:
		s.runChildren(ctx, n, dir)
	}
	n.resolve()
}

func (s *Suite) runChildren(ctx context.Context, n *Node, dir string) {
	for _, c := range n.Children {
		s.runNode(ctx, c, dir)
	}
}

// gate returns why the subtree of n must not run, or "" if it may.
func (s *Suite) gate(n *Node) string {
	if n.onCI && !s.opts.CI {
		return "not running on CI"
	}
	if n.assume != nil {
		if err := n.assume(); err != nil {
			return fmt.Sprintf("precondition %q not met: %v", n.Description, err)
		}
	}
	return ""
}

func (s *Suite) runTest(ctx context.Context, n *Node, dir string) {
	if n.filtered {
		n.Outcome = testresult.Skip
		return
	}
	if err := ctx.Err(); err != nil {
		n.Outcome = testresult.Fail
		n.Reason = fmt.Sprintf("not run: %v", err)
		return
	}
	if s.opts.Verbose {
		fmt.Fprintf(s.opts.Output, "=== RUN   %s\n", n.name)
	}

	parent := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		parent, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	h := newH(parent, n, dir, s.opts.Verbose)
	defer h.cancel()

	done := make(chan testresult.TestResult, 1)
	var panicked interface{}
	go func() {
		var result testresult.TestResult
		result, panicked = call(h, n.test)
		done <- result
	}()

	var reasons []string
	var result testresult.TestResult
	select {
	case result = <-done:
		if panicked != nil {
			reasons = append(reasons, fmt.Sprintf("panic: %v", panicked))
		}
	case <-h.ctx.Done():
		// a well-behaved test returns promptly once its context ends
		select {
		case result = <-done:
		case <-time.After(abandonAfter):
			reasons = append(reasons, fmt.Sprintf("test did not return %v after its context ended", abandonAfter))
		}
		result = testresult.Fail
	}
	if parent.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		reasons = append(reasons, fmt.Sprintf("test timed out after %v", s.opts.Timeout))
		result = testresult.Fail
	}

	switch {
	case h.Failed():
		result = testresult.Fail
	case !result.Terminal():
		reasons = append(reasons, "test returned no result")
		result = testresult.Fail
	}
	n.Outcome = result
	n.Reason = strings.Join(reasons, "\n")
	n.output = h.logs()
	plog.Infof("%s: %s", n.name, result)
}

// call runs test, turning a panic into a failure.
func call(h *H, test Test) (result testresult.TestResult, panicked interface{}) {
	defer func() {
		if r := recover(); r != nil {
			plog.Debugf("panic in %s: %v\n%s", h.Name(), r, debug.Stack())
			h.setFailed()
			result, panicked = testresult.Fail, r
		}
	}()
	return test(h), nil
}
