// Copyright 2015 CoreOS, Inc.
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

// inspired by github.com/docker/docker/pkg/reexec

package exec

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
)

// prefix of first argument if it is defining an entrypoint to be called.
const entryArgPrefix = "_MULTICALL_ENTRYPOINT_"

var exePath string

func init() {
	// save the program path
	var err error
	exePath, err = os.Executable()
	if err != nil {
		panic("cannot get current executable")
	}
}

type entrypointFn func(args []string) error

var entrypoints = make(map[string]entrypointFn)

// ExitCode may be returned by an entrypoint function to exit with a
// specific status without printing anything.
type ExitCode int

func (e ExitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

// Entrypoint provides the access to a multicall command.
type Entrypoint string

// NewEntrypoint adds a new multicall command. name is the command name
// and fn is the function that will be executed for the specified
// command. It returns the related Entrypoint. Packages adding new
// multicall commands should call Add in their init function.
// Tests use it to stand in for external binaries.
func NewEntrypoint(name string, fn entrypointFn) Entrypoint {
	if _, ok := entrypoints[name]; ok {
		panic(fmt.Errorf("command with name %q already exists", name))
	}
	entrypoints[name] = fn
	return Entrypoint(name)
}

// MaybeExec should be called at the start of the program, if the process argv[1] names
// an entrypoint registered with multicall, the related function will be executed.
// If the function returns an ExitCode the process exits with that status. Any other
// error is printed to stderr and the process exits with status 1, otherwise it
// exits with status 0.
func MaybeExec() {
	if len(os.Args) < 2 || !strings.HasPrefix(os.Args[1], entryArgPrefix) {
		return
	}
	name := os.Args[1][len(entryArgPrefix):]
	fn, ok := entrypoints[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown multicall entrypoint %q\n", name)
		os.Exit(127)
	}
	if err := fn(os.Args[2:]); err != nil {
		if code, ok := err.(ExitCode); ok {
			os.Exit(int(code))
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}

// Argv returns the program path and leading arguments that invoke the
// entrypoint, for callers that build the command line themselves.
func (e Entrypoint) Argv(args ...string) (string, []string) {
	return exePath, append([]string{entryArgPrefix + string(e)}, args...)
}

// Command prepares the entrypoint with the provided args.
func (e Entrypoint) Command(args ...string) *ExecCmd {
	return e.CommandContext(context.Background(), args...)
}

// CommandContext prepares the entrypoint like Command, killing it when ctx
// is done. The child is also signalled if the test binary dies first.
func (e Entrypoint) CommandContext(ctx context.Context, args ...string) *ExecCmd {
	name, argv := e.Argv(args...)
	cmd := CommandContext(ctx, name, argv...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGTERM,
	}
	return cmd
}
