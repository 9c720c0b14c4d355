// Copyright 2014 CoreOS, Inc.
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

// Package cli provides the command-line entrypoint shared by journey's
// binaries: logging flags, a version command and the mapping of errors to
// exit codes.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/coreos/pkg/capnslog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/coreos/journey/system/exec"
)

// Exit codes of Run.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// Version is replaced at link time.
var Version = "was not built properly"

var (
	logDebug   bool
	logVerbose bool
	logLevel   = capnslog.NOTICE

	plog = capnslog.NewPackageLogger("github.com/coreos/journey", "cli")
)

// UsageError reports a command line that cannot be acted upon. Nothing has
// been run when it is returned.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string {
	return e.Err.Error()
}

// Usagef returns a *UsageError with a formatted message.
func Usagef(format string, args ...interface{}) error {
	return &UsageError{Err: errors.Errorf(format, args...)}
}

// ExactArgs is cobra.ExactArgs reporting a *UsageError.
func ExactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return Usagef("accepts %d arg(s), received %d", n, len(args))
		}
		return nil
	}
}

// Execute sets up common features that all journey commands should share
// and then executes the command. It does not return.
func Execute(main *cobra.Command) {
	// If we were invoked via a multicall entrypoint run it instead.
	exec.MaybeExec()

	os.Exit(Run(main, os.Args[1:]))
}

// Run executes main with args and returns the process exit code: ExitUsage
// for a *UsageError or a bad flag, ExitError for any other error.
func Run(main *cobra.Command, args []string) int {
	main.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number and exit.",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("%s version %s\n", cmd.Root().Name(), Version)
		},
	})

	main.PersistentFlags().Var(&logLevel, "log-level",
		"Set global log level.")
	main.PersistentFlags().BoolVarP(&logVerbose, "verbose", "v", false,
		"Alias for --log-level=INFO")
	main.PersistentFlags().BoolVarP(&logDebug, "debug", "d", false,
		"Alias for --log-level=DEBUG")

	WrapPreRun(main, nil)

	main.SilenceErrors = true
	main.SilenceUsage = true
	main.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})
	main.SetArgs(args)

	cmd, err := main.ExecuteC()
	if err == nil {
		return ExitOK
	}
	var uerr *UsageError
	if errors.As(err, &uerr) || isUnknownCommand(err) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n%s", err, cmd.UsageString())
		return ExitUsage
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	return ExitError
}

// isUnknownCommand recognizes cobra's error for an unknown subcommand,
// which has no type of its own.
func isUnknownCommand(err error) bool {
	return strings.HasPrefix(err.Error(), "unknown command ")
}

func startLogging(cmd *cobra.Command) {
	switch {
	case logDebug:
		logLevel = capnslog.DEBUG
	case logVerbose:
		logLevel = capnslog.INFO
	}

	capnslog.SetFormatter(capnslog.NewStringFormatter(cmd.ErrOrStderr()))
	capnslog.SetGlobalLogLevel(logLevel)

	plog.Infof("Started logging at level %s", logLevel)
}

type PreRunEFunc func(cmd *cobra.Command, args []string) error

// WrapPreRun makes root start logging before running f, if any, and the
// persistent pre-run hooks root already had.
func WrapPreRun(root *cobra.Command, f PreRunEFunc) {
	preRun, preRunE := root.PersistentPreRun, root.PersistentPreRunE
	root.PersistentPreRun, root.PersistentPreRunE = nil, nil

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if f != nil {
			if err := f(cmd, args); err != nil {
				return err
			}
		}
		// Always inject startLogging to commands that are wrapping the preRun
		// due to github.com/spf13/cobra/issues/253 where parent command's
		// preRun & preRunE functions are overwritten by children
		startLogging(cmd)
		if preRun != nil {
			preRun(cmd, args)
		} else if preRunE != nil {
			return preRunE(cmd, args)
		}
		return nil
	}
}
