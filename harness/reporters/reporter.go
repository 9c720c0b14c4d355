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
	"time"

	"github.com/coreos/journey/harness/testresult"
)

type Reporters []Reporter

func (reps Reporters) ReportTest(name string, result testresult.TestResult, duration time.Duration, b []byte) {
	for _, r := range reps {
		r.ReportTest(name, result, duration, b)
	}
}

// Output writes every report into dir, stopping at the first error.
func (reps Reporters) Output(dir string) error {
	for _, r := range reps {
		if err := r.Output(dir); err != nil {
			return err
		}
	}
	return nil
}

func (reps Reporters) SetResult(s testresult.TestResult) {
	for _, r := range reps {
		r.SetResult(s)
	}
}

// Reporter receives the result of every leaf scenario once the suite has
// been traversed, followed by the overall result.
type Reporter interface {
	ReportTest(name string, result testresult.TestResult, duration time.Duration, output []byte)
	Output(dir string) error
	SetResult(testresult.TestResult)
}
