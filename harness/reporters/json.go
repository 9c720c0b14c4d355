// Copyright 2017 CoreOS, Inc.
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
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coreos/journey/harness/testresult"
)

type jsonReporter struct {
	RunID  string                `json:"run_id"`
	Tests  []jsonTest            `json:"tests"`
	Result testresult.TestResult `json:"result"`

	// Context variables
	Suite string `json:"suite"`
	Kind  string `json:"kind"`

	filename string
	mutex    sync.Mutex
}

type jsonTest struct {
	Name     string                `json:"name"`
	Result   testresult.TestResult `json:"result"`
	Duration time.Duration         `json:"duration"`
	Output   string                `json:"output"`
}

// DeserialiseReport reads back a report written by a JSON reporter.
func DeserialiseReport(filename string) (*jsonReporter, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var data jsonReporter
	if err = json.Unmarshal(b, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// NewJSONReporter creates a reporter writing filename. Every report carries a
// fresh run id so results from repeated runs can be told apart.
func NewJSONReporter(filename, suite, kind string) *jsonReporter {
	return &jsonReporter{
		RunID:    uuid.New().String(),
		Suite:    suite,
		Kind:     kind,
		filename: filename,
	}
}

func (r *jsonReporter) ReportTest(name string, result testresult.TestResult, duration time.Duration, b []byte) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.Tests = append(r.Tests, jsonTest{
		Name:     name,
		Result:   result,
		Duration: duration,
		Output:   string(b),
	})
}

func (r *jsonReporter) Output(dir string) error {
	f, err := os.Create(filepath.Join(dir, r.filename))
	if err != nil {
		return err
	}
	defer f.Close()

	r.mutex.Lock()
	defer r.mutex.Unlock()
	return json.NewEncoder(f).Encode(r)
}

func (r *jsonReporter) SetResult(result testresult.TestResult) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.Result = result
}
