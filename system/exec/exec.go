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

// Package exec extends os/exec with the pieces needed to run binaries under
// test: cancellation tied to a context, reliable kill, and decoding of how a
// process ended.
package exec

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

var (
	// for equivalence with os/exec
	ErrNotFound = exec.ErrNotFound
	LookPath    = exec.LookPath
)

// ExitError is the os/exec error for a process that ran and exited unsuccessfully.
type ExitError = exec.ExitError

// Basic Cmd implementation based on exec.Cmd
type ExecCmd struct {
	*exec.Cmd
	cancel context.CancelFunc
	wait   sync.Once
	err    error
}

func Command(name string, arg ...string) *ExecCmd {
	return CommandContext(context.Background(), name, arg...)
}

// CommandContext prepares a command that is killed when ctx is done. Once
// killed, Wait stops waiting for inherited output pipes after a short grace
// period so a stuck grandchild cannot hang the caller.
func CommandContext(ctx context.Context, name string, arg ...string) *ExecCmd {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.WaitDelay = 5 * time.Second
	return &ExecCmd{
		Cmd:    cmd,
		cancel: cancel,
	}
}

func (cmd *ExecCmd) Wait() error {
	cmd.wait.Do(func() {
		cmd.err = cmd.Cmd.Wait()
		cmd.cancel()
	})
	return cmd.err
}

// safe even if already dead
func (cmd *ExecCmd) Kill() error {
	cmd.cancel()
	err := cmd.Wait()
	if err == nil {
		return nil
	}

	var eerr *exec.ExitError
	if errors.As(err, &eerr) {
		status := eerr.Sys().(syscall.WaitStatus)
		if status.Signal() == syscall.SIGKILL {
			return nil
		}
	}
	return err
}

func (cmd *ExecCmd) Signaled() bool {
	if cmd.ProcessState == nil {
		return false
	}
	status := cmd.ProcessState.Sys().(syscall.WaitStatus)
	return status.Signaled()
}

// Signal returns the signal that terminated the process, if any.
func (cmd *ExecCmd) Signal() syscall.Signal {
	if !cmd.Signaled() {
		return 0
	}
	return cmd.ProcessState.Sys().(syscall.WaitStatus).Signal()
}

// ExitCode returns the exit status of the finished process, -1 if it was
// terminated by a signal or has not finished.
func (cmd *ExecCmd) ExitCode() int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

func (cmd *ExecCmd) Pid() int {
	return cmd.Process.Pid
}

// IsCmdNotFound reports true if the underlying error was exec.ErrNotFound.
func IsCmdNotFound(err error) bool {
	var eerr *exec.Error
	if errors.As(err, &eerr) && eerr.Err == ErrNotFound {
		return true
	}
	return false
}

// IsExitError reports whether err only says that the process exited with a
// non-zero status or by a signal, as opposed to failing to run at all.
func IsExitError(err error) bool {
	var eerr *exec.ExitError
	return errors.As(err, &eerr)
}
