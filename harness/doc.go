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

// Package harness is a framework for black-box acceptance tests of
// command-line tools, akin to the standard "testing" package but organized
// as a tree of readable scenarios:
//
//     suite := harness.NewSuite(opts, "journey")
//     suite.Title("porcelain", func(s *harness.Scope) {
//         s.When("running init", func(s *harness.Scope) {
//             s.WithSandbox("an empty directory", func(s *harness.Scope) {
//                 s.It("succeeds", func(h *harness.H) testresult.TestResult {
//                     _, err := r.Run(h.Context(), runner.Expectation{...Dir: h.Dir()})
//                     return h.Check(err)
//                 })
//             })
//         })
//     })
//     err := suite.Run(ctx)
//
// Build functions run when the tree is declared and only declare children.
// Test functions run later, one at a time, depth-first in declaration
// order. A failed test never stops its siblings.
//
// Working directories
//
// Tests never depend on the process working directory. Each test receives
// the directory of the innermost enclosing sandbox through H.Dir. A scope
// declared with WithSandbox owns a fresh empty directory while its children
// run and removes it afterwards, however they ended.
//
// Gates
//
// OnCI and Precondition declare subtrees that only run when a condition
// holds. Otherwise every node below is reported as SKIP with the reason,
// which is distinct from FAIL and does not fail the suite.
//
// Outcomes
//
// A test returns PASS, FAIL or SKIP. A panic, or calling H.Fail, makes it
// FAIL. A scope FAILs if anything below it failed, is SKIP if everything
// below it was skipped or if it is empty, and PASSes otherwise.
//
// The argument to the --run flag is an unanchored regular expression that
// matches a test's name: the slash-separated descriptions of the nodes
// leading to it, with white space replaced by underscores. Each
// slash-separated element of the expression matches the name element at the
// same depth. Tests that do not match are skipped and left out of the report.
package harness
