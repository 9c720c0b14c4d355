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

// Package runner runs the binaries under test and checks what they did:
// their exit code, their captured output against recorded snapshots, and
// the directory trees they leave behind.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"

	"github.com/coreos/journey/normalize"
	"github.com/coreos/journey/snapshot"
	"github.com/coreos/journey/system/exec"
)

var plog = capnslog.NewPackageLogger("github.com/coreos/journey", "runner")

// DefaultTimeout bounds a single invocation when nothing else is configured.
const DefaultTimeout = 5 * time.Minute

// Stream selects the captured output that is checked against a snapshot.
type Stream int

const (
	// Combined is stdout and stderr interleaved in write order, as a
	// shell's 2>&1 would produce.
	Combined Stream = iota
	Stdout
	Stderr
)

// Field is the name normalization rules use to address the stream.
func (s Stream) Field() string {
	switch s {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return "output"
	}
}

func (s Stream) String() string {
	return s.Field()
}

// Expectation describes one invocation and what it must produce.
type Expectation struct {
	// Command and Args are passed to the process verbatim.
	Command string
	Args    []string

	// Dir is the working directory of the process. It is required; the
	// harness's own working directory is never used implicitly.
	Dir string

	// Env is appended to the runner's environment.
	Env []string

	// ExitCode is the status the process must exit with.
	ExitCode int

	// Scenario, if set, names the snapshot the selected Stream is
	// checked against after applying Normalize.
	Scenario  string
	Stream    Stream
	Normalize normalize.Rules

	// Timeout overrides the runner's per-invocation timeout.
	Timeout time.Duration
}

func (e *Expectation) commandLine() string {
	return shellquote.Join(append([]string{e.Command}, e.Args...)...)
}

// Result is what a finished process produced. With the Combined stream
// only Output is captured; otherwise Stdout and Stderr are.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	Output   []byte
	ExitCode int
	Signal   syscall.Signal
	Duration time.Duration
}

// Text returns everything the process printed.
func (r *Result) Text() []byte {
	if r.Output != nil {
		return r.Output
	}
	return append(append([]byte{}, r.Stdout...), r.Stderr...)
}

func (r *Result) stream(s Stream) []byte {
	switch s {
	case Stdout:
		return r.Stdout
	case Stderr:
		return r.Stderr
	default:
		return r.Output
	}
}

// ExitCodeError is returned when a process exits with an unexpected status.
type ExitCodeError struct {
	Command  string
	Expected int
	Actual   int
	Signal   syscall.Signal
	Output   []byte
}

func (e *ExitCodeError) Error() string {
	got := fmt.Sprintf("exit code %d", e.Actual)
	if e.Signal != 0 {
		got = fmt.Sprintf("termination by signal %v", e.Signal)
	}
	return fmt.Sprintf("%s: expected exit code %d, got %s\n%s", e.Command, e.Expected, got, indent(e.Output))
}

// TimeoutError is returned when a process is killed for running too long.
type TimeoutError struct {
	Command string
	Timeout time.Duration
	Output  []byte
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: killed after %v\n%s", e.Command, e.Timeout, indent(e.Output))
}

func indent(b []byte) string {
	if len(b) == 0 {
		return "    (no output)"
	}
	lines := bytes.Split(bytes.TrimRight(b, "\n"), []byte("\n"))
	return "    " + string(bytes.Join(lines, []byte("\n    ")))
}

// Config is shared by every expectation a Runner checks.
type Config struct {
	Mode snapshot.Mode

	// CI is set on continuous integration, where reference data is
	// never rewritten.
	CI bool

	// Timeout bounds each invocation; zero means DefaultTimeout and a
	// negative value disables the bound.
	Timeout time.Duration

	// Env is appended to the harness's environment for every process.
	Env []string

	// Fixtures is the directory relative fixture names are resolved in.
	Fixtures string
}

type Runner struct {
	store *snapshot.Store
	cfg   Config
}

// New returns a Runner recording to or verifying against store. Recording
// on CI is refused.
func New(store *snapshot.Store, cfg Config) (*Runner, error) {
	if cfg.Mode == snapshot.Record && cfg.CI {
		return nil, errors.New("runner: refusing to record snapshots on CI")
	}
	if store == nil {
		return nil, errors.New("runner: no snapshot store")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Runner{store: store, cfg: cfg}, nil
}

func (r *Runner) Mode() snapshot.Mode {
	return r.cfg.Mode
}

func (r *Runner) Store() *snapshot.Store {
	return r.store
}

// lockedBuffer serializes writes from the stdout and stderr copiers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// Run executes exp synchronously and checks its exit code and, when a
// scenario is named, its output. The Result is returned whenever the
// process ran, even if a check failed.
func (r *Runner) Run(ctx context.Context, exp Expectation) (*Result, error) {
	if exp.Dir == "" {
		return nil, errors.Errorf("runner: %s: no working directory", exp.commandLine())
	}
	if err := exp.Normalize.Compile(); err != nil {
		return nil, err
	}

	timeout := r.cfg.Timeout
	if exp.Timeout != 0 {
		timeout = exp.Timeout
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, exp.Command, exp.Args...)
	cmd.Dir = exp.Dir
	env := append(os.Environ(), "PWD="+exp.Dir)
	cmd.Env = append(append(env, r.cfg.Env...), exp.Env...)

	var stdout, stderr lockedBuffer
	if exp.Stream == Combined {
		// the same writer on both makes os/exec share one pipe
		cmd.Stdout = &stdout
		cmd.Stderr = &stdout
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	line := exp.commandLine()
	plog.Debugf("Running %s in %s", line, exp.Dir)
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "runner: starting %s", line)
	}
	err := cmd.Wait()
	res := &Result{
		Duration: time.Since(start),
		ExitCode: cmd.ExitCode(),
		Signal:   cmd.Signal(),
	}
	if exp.Stream == Combined {
		res.Output = stdout.buf.Bytes()
	} else {
		res.Stdout = stdout.buf.Bytes()
		res.Stderr = stderr.buf.Bytes()
	}

	switch {
	case err == nil:
	case runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
		return res, &TimeoutError{Command: line, Timeout: timeout, Output: res.Text()}
	case ctx.Err() != nil:
		return res, errors.Wrapf(ctx.Err(), "runner: %s", line)
	case !exec.IsExitError(err):
		return res, errors.Wrapf(err, "runner: waiting for %s", line)
	}
	plog.Debugf("%s exited with %d after %v", line, res.ExitCode, res.Duration)

	if res.ExitCode != exp.ExitCode {
		return res, &ExitCodeError{
			Command:  line,
			Expected: exp.ExitCode,
			Actual:   res.ExitCode,
			Signal:   res.Signal,
			Output:   res.Text(),
		}
	}

	if exp.Scenario != "" {
		field := exp.Stream.Field()
		actual := exp.Normalize.Apply(field, res.stream(exp.Stream))
		if err := r.store.Check(exp.Scenario, actual, r.cfg.Mode); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Fixture resolves a fixture name against the fixtures directory.
func (r *Runner) Fixture(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(r.cfg.Fixtures, filepath.FromSlash(name))
}
