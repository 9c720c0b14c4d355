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

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/coreos/pkg/capnslog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newRoot(out *bytes.Buffer) (*cobra.Command, *bool) {
	ran := false
	root := &cobra.Command{Use: "journey"}
	run := &cobra.Command{
		Use:  "run <porcelain> <plumbing> <kind>",
		Args: ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ran = true
			if args[2] == "broken" {
				return errors.New("harness: test suite failed")
			}
			return nil
		},
	}
	run.Flags().Bool("record", false, "")
	root.AddCommand(run)
	root.SetOut(out)
	root.SetErr(out)
	return root, &ran
}

func TestRunExitCodes(t *testing.T) {
	for _, tt := range []struct {
		args   []string
		code   int
		ran    bool
		output string
	}{
		{[]string{"run", "gix", "gixp", "max"}, ExitOK, true, ""},
		{[]string{"run", "gix", "gixp", "broken"}, ExitError, true, "Error: harness: test suite failed\n"},
		{[]string{"run", "gix", "gixp"}, ExitUsage, false, "Error: accepts 3 arg(s), received 2\nUsage:"},
		{[]string{"run", "--no-such-flag", "gix", "gixp", "max"}, ExitUsage, false, "Error: unknown flag: --no-such-flag\nUsage:"},
		{[]string{"version"}, ExitOK, false, "journey version " + Version},
	} {
		out := &bytes.Buffer{}
		root, ran := newRoot(out)
		if code := Run(root, tt.args); code != tt.code {
			t.Errorf("%v: exit code %d, want %d\n%s", tt.args, code, tt.code, out)
		}
		if *ran != tt.ran {
			t.Errorf("%v: ran = %v, want %v", tt.args, *ran, tt.ran)
		}
		if !strings.HasPrefix(out.String(), tt.output) {
			t.Errorf("%v: output %q, want prefix %q", tt.args, out, tt.output)
		}
	}
}

func TestLoggingStartsOnce(t *testing.T) {
	t.Cleanup(func() { logLevel = capnslog.NOTICE })
	out := &bytes.Buffer{}
	root, _ := newRoot(out)
	if code := Run(root, []string{"-v", "run", "gix", "gixp", "max"}); code != ExitOK {
		t.Fatalf("exit code %d\n%s", code, out)
	}
	if n := strings.Count(out.String(), "Started logging at level INFO"); n != 1 {
		t.Errorf("logging started %d times:\n%s", n, out)
	}
}
