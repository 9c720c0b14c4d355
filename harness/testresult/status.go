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

package testresult

const (
	Pending TestResult = ""
	Fail    TestResult = "FAIL"
	Skip    TestResult = "SKIP"
	Pass    TestResult = "PASS"
)

type TestResult string

// Terminal reports whether the result is one of PASS, FAIL or SKIP.
// A node never leaves a terminal result once it has been assigned.
func (s TestResult) Terminal() bool {
	return s == Fail || s == Skip || s == Pass
}

func (s TestResult) String() string {
	if s == Pending {
		return "PENDING"
	}
	return string(s)
}

// Display returns the result, highlighted with ANSI colors if color is set.
func (s TestResult) Display(color bool) string {
	if !color {
		return s.String()
	}

	red := "\033[31m"
	blue := "\033[34m"
	green := "\033[32m"
	reset := "\033[0m"

	switch s {
	case Fail:
		return red + s.String() + reset
	case Skip:
		return blue + s.String() + reset
	case Pass:
		return green + s.String() + reset
	default:
		return s.String()
	}
}

// Resolve derives the result of a composite from the results of its
// children: FAIL if any child failed, Pending while any child is unresolved,
// SKIP if every child was skipped (including when there are none), and PASS
// otherwise.
func Resolve(children []TestResult) TestResult {
	pending, passed := false, false
	for _, c := range children {
		switch c {
		case Fail:
			return Fail
		case Pass:
			passed = true
		case Skip:
		default:
			pending = true
		}
	}
	switch {
	case pending:
		return Pending
	case passed:
		return Pass
	default:
		return Skip
	}
}
