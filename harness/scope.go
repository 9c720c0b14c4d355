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

// Scope declares the children of a node. It is only valid inside the build
// function it was passed to.
type Scope struct {
	suite *Suite
	node  *Node
}

func (s *Scope) add(kind Kind, text string) *Node {
	n := &Node{
		Kind:        kind,
		Description: text,
		parent:      s.node,
		name:        s.suite.match.fullName(s.node.name, text),
	}
	s.node.Children = append(s.node.Children, n)
	return n
}

func (s *Scope) nest(n *Node, build func(*Scope)) *Node {
	if build != nil {
		build(&Scope{suite: s.suite, node: n})
	}
	return n
}

// When declares a condition or action shared by the nodes build declares.
func (s *Scope) When(text string, build func(*Scope)) *Node {
	return s.nest(s.add(WhenNode, text), build)
}

// With declares a context shared by the nodes build declares.
func (s *Scope) With(text string, build func(*Scope)) *Node {
	return s.nest(s.add(WithNode, text), build)
}

// WithSandbox is With, except that the scope owns a fresh empty directory
// while its children run. The directory is what H.Dir returns below it.
func (s *Scope) WithSandbox(text string, build func(*Scope)) *Node {
	n := s.add(WithNode, text)
	n.sandboxed = true
	return s.nest(n, build)
}

// It declares a test.
func (s *Scope) It(text string, test Test) *Node {
	n := s.add(ItNode, text)
	n.test = test
	n.filtered = !s.suite.match.matches(n.name)
	return n
}

// OnCI declares nodes that only run on continuous integration.
func (s *Scope) OnCI(build func(*Scope)) *Node {
	n := s.add(GateNode, "running on CI")
	n.onCI = true
	return s.nest(n, build)
}

// Precondition declares nodes that only run if a holds when they are
// reached.
func (s *Scope) Precondition(name string, a Assumption, build func(*Scope)) *Node {
	n := s.add(GateNode, name)
	n.assume = a
	return s.nest(n, build)
}
