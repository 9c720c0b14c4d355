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
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/coreos/journey/harness/testresult"
)

// An indent of 4 spaces will neatly align the dashes with the status
// indicator of the parent.
const indent = "    "

// fmtDuration returns a string representing d in the form "87.00s".
func fmtDuration(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// indentLines prefixes every line of b with depth indents.
func indentLines(w io.Writer, depth int, b []byte) {
	prefix := strings.Repeat(indent, depth)
	for len(b) > 0 {
		end := bytes.IndexByte(b, '\n')
		if end == -1 {
			end = len(b)
		} else {
			end++
		}
		io.WriteString(w, prefix)
		w.Write(b[:end])
		b = b[end:]
	}
}

// report prints n and everything below it. Tests that were not selected
// are left out.
func (s *Suite) report(w io.Writer, n *Node) {
	if n.hidden() {
		return
	}
	depth := n.depth()
	prefix := strings.Repeat(indent, depth)
	fmt.Fprintf(w, "%s--- %s: %s %s (%s)\n", prefix, n.Outcome.Display(s.opts.Color), n.Kind, n.Description, fmtDuration(n.Duration))

	if logs := n.details(); len(logs) > 0 && (s.opts.Verbose || n.Outcome != testresult.Pass) {
		indentLines(w, depth+1, logs)
	}
	for _, c := range n.Children {
		s.report(w, c)
	}
}

// details returns the logs and the reason of n, newline terminated.
func (n *Node) details() []byte {
	var b bytes.Buffer
	b.Write(n.output)
	if n.Reason != "" {
		b.WriteString(n.Reason)
	}
	if b.Len() > 0 && !bytes.HasSuffix(b.Bytes(), []byte("\n")) {
		b.WriteByte('\n')
	}
	return b.Bytes()
}

// reportLeaves hands the results of every selected test to the reporters.
func (s *Suite) reportLeaves(n *Node) {
	if n.Kind == ItNode {
		if !n.filtered {
			s.opts.Reporters.ReportTest(n.name, n.Outcome, n.Duration, n.details())
		}
		return
	}
	for _, c := range n.Children {
		s.reportLeaves(c)
	}
}
