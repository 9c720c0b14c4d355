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

package harness

import (
	"time"

	"github.com/coreos/journey/harness/testresult"
)

// Kind is the role of a node in the scenario tree.
type Kind int

const (
	TitleNode Kind = iota
	WhenNode
	WithNode
	ItNode
	GateNode
)

func (k Kind) String() string {
	switch k {
	case TitleNode:
		return "title"
	case WhenNode:
		return "when"
	case WithNode:
		return "with"
	case ItNode:
		return "it"
	case GateNode:
		return "if"
	default:
		return "unknown"
	}
}

// Test is the body of a leaf. Its return value is the leaf's outcome.
type Test func(h *H) testresult.TestResult

// Assumption is a condition a gated subtree depends on. A non-nil error
// explains why it does not hold.
type Assumption func() error

// Node is one entry of the scenario tree. Its outcome is Pending until the
// suite has run and never changes afterwards.
type Node struct {
	Kind        Kind
	Description string
	Children    []*Node

	Outcome  testresult.TestResult
	Duration time.Duration

	// Reason explains a skipped gate, a failed sandbox or a failed test.
	Reason string

	parent *Node
	name   string

	test      Test
	sandboxed bool
	assume    Assumption
	onCI      bool

	output   []byte
	filtered bool
}

// Parent returns the enclosing node, nil for a title.
func (n *Node) Parent() *Node {
	return n.parent
}

// depth counts the nodes enclosing n; a title is at depth 0.
func (n *Node) depth() int {
	d := 0
	for p := n.Parent(); p != nil; p = p.Parent() {
		d++
	}
	return d
}

// Name is the unique slash-separated name used for filtering and reports.
func (n *Node) Name() string {
	return n.name
}

// Output returns what the test logged.
func (n *Node) Output() []byte {
	return n.output
}

// Leaves counts the tests at or below n.
func (n *Node) Leaves() int {
	if n.Kind == ItNode {
		return 1
	}
	c := 0
	for _, child := range n.Children {
		c += child.Leaves()
	}
	return c
}

// hidden reports whether nothing at or below n was selected to run.
func (n *Node) hidden() bool {
	if n.Kind == ItNode {
		return n.filtered
	}
	if len(n.Children) == 0 {
		return false
	}
	for _, c := range n.Children {
		if !c.hidden() {
			return false
		}
	}
	return true
}

// resolve derives a composite's outcome from its children. A failure of the
// scope itself takes precedence.
func (n *Node) resolve() {
	if n.Outcome == testresult.Fail {
		return
	}
	results := make([]testresult.TestResult, len(n.Children))
	for i, c := range n.Children {
		results[i] = c.Outcome
	}
	n.Outcome = testresult.Resolve(results)
}

// settle assigns outcome to every node below n that has none yet. Tests
// that were not selected are skipped regardless.
func (n *Node) settle(outcome testresult.TestResult, reason string) {
	for _, c := range n.Children {
		if c.Kind == ItNode && c.filtered {
			c.Outcome = testresult.Skip
			continue
		}
		if c.Outcome == testresult.Pending {
			c.Outcome = outcome
			if c.Kind == ItNode {
				c.Reason = reason
			}
		}
		c.settle(outcome, reason)
		if c.Kind != ItNode && outcome == testresult.Skip {
			c.resolve()
		}
	}
}
