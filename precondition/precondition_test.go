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

package precondition

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/coreos/go-semver/semver"

	"github.com/coreos/journey/system/exec"
)

var fakeGit = exec.NewEntrypoint("fake-git", func(args []string) error {
	if len(args) == 2 && args[1] == "--version" {
		fmt.Println(args[0])
		return nil
	}
	return exec.ExitCode(129)
})

func TestMain(m *testing.M) {
	exec.MaybeExec()
	os.Exit(m.Run())
}

// versionArgs makes the fake print banner in response to --version.
func versionArgs(banner string) (string, []string) {
	return fakeGit.Argv(banner, "--version")
}

func TestVersion(t *testing.T) {
	for banner, want := range map[string]string{
		"git version 2.43.0":                 "2.43.0",
		"git version 2.39.3 (Apple Git-146)": "2.39.3",
		"gix-plumbing 0.14":                  "0.14.0",
	} {
		name, args := versionArgs(banner)
		v, err := Version(name, args...)
		if err != nil {
			t.Errorf("%q: %v", banner, err)
			continue
		}
		if v.String() != want {
			t.Errorf("%q: parsed %v, want %s", banner, v, want)
		}
	}

	name, args := versionArgs("no version here")
	if _, err := Version(name, args...); err == nil {
		t.Error("expected an error without a version number")
	}
}

func TestMinVersion(t *testing.T) {
	name, args := versionArgs("git version 2.43.0")
	if err := MinVersion(name, *semver.New("2.28.0"), args...)(); err != nil {
		t.Errorf("2.43.0 >= 2.28.0: %v", err)
	}
	err := MinVersion(name, *semver.New("3.0.0"), args...)()
	if err == nil || !strings.Contains(err.Error(), "older than 3.0.0") {
		t.Errorf("2.43.0 < 3.0.0: %v", err)
	}
	if err := MinVersion("journey-no-such-git", *semver.New("1.0.0"))(); err == nil {
		t.Error("missing executable satisfied MinVersion")
	}
}

func TestExecutable(t *testing.T) {
	name, _ := fakeGit.Argv()
	if err := Executable(name)(); err != nil {
		t.Errorf("test binary not found: %v", err)
	}
	err := Executable("journey-no-such-git")()
	if err == nil || err.Error() != "journey-no-such-git is not installed" {
		t.Errorf("unexpected error %v", err)
	}
}
