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

package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/coreos/journey/cli"
	"github.com/coreos/journey/harness"
	"github.com/coreos/journey/harness/reporters"
	"github.com/coreos/journey/journey"
	"github.com/coreos/journey/runner"
	"github.com/coreos/journey/snapshot"
	"github.com/coreos/journey/system/exec"
)

var plog = capnslog.NewPackageLogger("github.com/coreos/journey", "journey")

// options collects the flags of the run command.
type options struct {
	harness   harness.Options
	fixtures  string
	snapshots string
	mode      string
	record    bool
	modeSet   bool
	recordSet bool
	timeout   time.Duration
	git       string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "journey [command]",
		Short: "Black-box acceptance tests for version control CLIs",
	}

	opts := &options{
		harness: harness.Options{CI: envBool("CI")},
		record:  envBool("JOURNEY_RECORD"),
	}
	cmdRun := &cobra.Command{
		Use:   "run <porcelain-executable> <plumbing-executable> <kind-label>",
		Short: "Run the porcelain and plumbing journeys",
		Long: `Run the porcelain and plumbing journeys against the given executables.

Captured output and directory trees are verified against the recorded
snapshots. Pass --record to record them instead; recording is refused on CI.
`,
		Args: cli.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.modeSet = cmd.Flags().Changed("mode")
			opts.recordSet = cmd.Flags().Changed("record")
			if !cmd.Flags().Changed("color") {
				opts.harness.Color = term.IsTerminal(int(os.Stdout.Fd()))
			}
			return runRun(cmd.Context(), opts, args)
		},
	}
	f := cmdRun.Flags()
	f.AddFlagSet(opts.harness.FlagSet(""))
	f.StringVar(&opts.fixtures, "fixtures", filepath.Join("tests", "fixtures"), "read fixtures from `dir`")
	f.StringVar(&opts.snapshots, "snapshots", "", "read and record snapshots in `dir` (default <fixtures>/snapshots)")
	f.StringVar(&opts.mode, "mode", snapshot.Verify.String(), "snapshot `mode`: verify or record")
	f.BoolVar(&opts.record, "record", opts.record, "shorthand for --mode=record (default from $JOURNEY_RECORD)")
	f.DurationVar(&opts.timeout, "timeout", runner.DefaultTimeout, "kill an invocation of a binary under test after `d`")
	f.StringVar(&opts.git, "git", "git", "reference git `executable` compared with on CI")
	root.AddCommand(cmdRun)

	return root
}

// envBool reports whether the environment variable key is set to a true
// value. Values that are not booleans count as true unless empty.
func envBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err != nil || b
}

// executable resolves name like a shell would, keeping paths absolute so
// that they survive changing into sandboxes.
func executable(name string) (string, error) {
	if strings.Contains(name, "/") {
		abs, err := filepath.Abs(name)
		if err != nil {
			return "", err
		}
		name = abs
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", errors.Wrapf(err, "executable %s", name)
	}
	return p, nil
}

// snapshotMode combines --mode and --record. An explicit --mode wins over
// $JOURNEY_RECORD but not over an explicit --record.
func snapshotMode(opts *options) (snapshot.Mode, error) {
	mode, err := snapshot.ParseMode(opts.mode)
	if err != nil {
		return mode, &cli.UsageError{Err: err}
	}
	if !opts.record || mode == snapshot.Record {
		return mode, nil
	}
	switch {
	case opts.recordSet && opts.modeSet:
		return mode, cli.Usagef("--record conflicts with --mode=%s", mode)
	case opts.modeSet:
		return mode, nil
	}
	return snapshot.Record, nil
}

func runRun(ctx context.Context, opts *options, args []string) error {
	mode, err := snapshotMode(opts)
	if err != nil {
		return err
	}
	porcelain, err := executable(args[0])
	if err != nil {
		return err
	}
	plumbing, err := executable(args[1])
	if err != nil {
		return err
	}
	kind := args[2]

	fixtures, err := filepath.Abs(opts.fixtures)
	if err != nil {
		return err
	}
	snapshots := opts.snapshots
	if snapshots == "" {
		snapshots = filepath.Join(fixtures, "snapshots")
	}
	if snapshots, err = filepath.Abs(snapshots); err != nil {
		return err
	}

	r, err := runner.New(snapshot.NewStore(snapshots), runner.Config{
		Mode:     mode,
		CI:       opts.harness.CI,
		Timeout:  opts.timeout,
		Fixtures: fixtures,
	})
	if err != nil {
		return err
	}

	hopts := opts.harness
	if hopts.OutputDir != "" {
		hopts.Reporters = reporters.Reporters{
			reporters.NewJSONReporter("report.json", "journey", kind),
			reporters.NewTAPReporter("test.tap"),
		}
	}
	plog.Infof("Running %s journeys in %s mode with fixtures from %s", kind, mode, fixtures)

	suite := harness.NewSuite(hopts, "journey")
	journey.Register(suite, journey.Config{
		Porcelain: journey.Command{Path: porcelain},
		Plumbing:  journey.Command{Path: plumbing},
		Git:       journey.Command{Path: opts.git},
		Kind:      kind,
		Runner:    r,
	})

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return suite.Run(ctx)
}

func main() {
	cli.Execute(newRootCmd())
}
