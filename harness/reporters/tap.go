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

package reporters

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/coreos/journey/harness/testresult"
)

type tapTest struct {
	name   string
	result testresult.TestResult
	output []byte
}

type tapReporter struct {
	filename string
	mutex    sync.Mutex
	tests    []tapTest
}

// NewTAPReporter creates a reporter writing a TAP version 12 stream to
// filename. Failed tests carry their output as diagnostic lines.
func NewTAPReporter(filename string) *tapReporter {
	return &tapReporter{filename: filename}
}

func (r *tapReporter) ReportTest(name string, result testresult.TestResult, _ time.Duration, b []byte) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.tests = append(r.tests, tapTest{name: name, result: result, output: b})
}

func (r *tapReporter) SetResult(testresult.TestResult) {}

func (r *tapReporter) Output(dir string) error {
	f, err := os.Create(filepath.Join(dir, r.filename))
	if err != nil {
		return err
	}
	defer f.Close()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "1..%d\n", len(r.tests))
	for i, t := range r.tests {
		switch t.result {
		case testresult.Pass:
			fmt.Fprintf(w, "ok %d - %s\n", i+1, t.name)
		case testresult.Skip:
			fmt.Fprintf(w, "ok %d - %s # SKIP\n", i+1, t.name)
		default:
			fmt.Fprintf(w, "not ok %d - %s\n", i+1, t.name)
			for _, line := range strings.Split(strings.TrimRight(string(t.output), "\n"), "\n") {
				if line != "" {
					fmt.Fprintf(w, "# %s\n", line)
				}
			}
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}
