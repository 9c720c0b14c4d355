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
	"log"
	"sync"

	"github.com/coreos/journey/harness/testresult"
)

// H is passed to Test functions to manage test state and support formatted
// test logs. Logs are accumulated during execution and printed beneath the
// test's line in the report if it does not pass or if verbose output was
// requested.
type H struct {
	mu     sync.RWMutex
	output bytes.Buffer
	logger *log.Logger
	failed bool

	node    *Node
	dir     string
	verbose bool

	ctx    context.Context
	cancel context.CancelFunc
}

func newH(ctx context.Context, n *Node, dir string, verbose bool) *H {
	h := &H{
		node:    n,
		dir:     dir,
		verbose: verbose,
	}
	h.logger = log.New(&lockedWriter{h}, "", log.Lshortfile)
	h.ctx, h.cancel = context.WithCancel(ctx)
	return h
}

type lockedWriter struct {
	h *H
}

// Write is only called by the logger with h.mu held.
func (w *lockedWriter) Write(b []byte) (int, error) {
	return w.h.output.Write(b)
}

// Name returns the name of the running test.
func (h *H) Name() string {
	return h.node.name
}

// Dir returns the working directory of the test: the sandbox of the
// innermost enclosing WithSandbox scope, or the suite's sandbox root if
// there is none.
func (h *H) Dir() string {
	return h.dir
}

// Context returns the context for the current test.
// The context is cancelled when the test finishes or times out.
// A goroutine started during a test can wait for the
// context's Done channel to become readable as a signal that the
// test is over, so that the goroutine can exit.
func (h *H) Context() context.Context {
	return h.ctx
}

// Verbose reports whether verbose output was requested.
func (h *H) Verbose() bool {
	return h.verbose
}

// log generates the output. depth is the number of frames between the
// caller being reported and this function.
func (h *H) log(depth int, s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger.Output(depth, s)
}

// Log formats its arguments using default formatting, analogous to Println,
// and records the text in the test log.
func (h *H) Log(args ...interface{}) { h.log(3, fmt.Sprintln(args...)) }

// Logf formats its arguments according to the format, analogous to Printf, and
// records the text in the test log. A final newline is added if not provided.
func (h *H) Logf(format string, args ...interface{}) { h.log(3, fmt.Sprintf(format, args...)) }

func (h *H) setFailed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = true
}

// Fail records err in the log and marks the test as having failed. The
// test keeps running; return the result to end it:
//
//	if err != nil {
//		return h.Fail(err)
//	}
func (h *H) Fail(err error) testresult.TestResult {
	h.log(3, fmt.Sprintln(err))
	h.setFailed()
	return testresult.Fail
}

// Failf is equivalent to Logf followed by Fail.
func (h *H) Failf(format string, args ...interface{}) testresult.TestResult {
	h.log(3, fmt.Sprintf(format, args...))
	h.setFailed()
	return testresult.Fail
}

// Failed reports whether the test has failed.
func (h *H) Failed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.failed
}

// Skipf records why the test does not apply. If the test already failed
// it is still considered to have failed.
func (h *H) Skipf(format string, args ...interface{}) testresult.TestResult {
	h.log(3, fmt.Sprintf(format, args...))
	return testresult.Skip
}

// Check fails the test with the first non-nil error and passes it
// otherwise.
func (h *H) Check(errs ...error) testresult.TestResult {
	for _, err := range errs {
		if err != nil {
			h.log(3, fmt.Sprintln(err))
			h.setFailed()
			return testresult.Fail
		}
	}
	return testresult.Pass
}

func (h *H) logs() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]byte{}, h.output.Bytes()...)
}
