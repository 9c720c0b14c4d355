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

// Package precondition provides assumptions about the host that scenarios
// can be gated on, such as a reference tool being installed.
package precondition

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/coreos/go-semver/semver"
	"github.com/coreos/pkg/capnslog"
	"github.com/pkg/errors"

	"github.com/coreos/journey/harness"
	"github.com/coreos/journey/system/exec"
)

var (
	plog = capnslog.NewPackageLogger("github.com/coreos/journey", "precondition")

	versionRe = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)
)

// versionTimeout bounds how long a --version probe may take.
const versionTimeout = 30 * time.Second

// Executable holds if name can be found in $PATH or, if it contains a
// slash, names an executable file.
func Executable(name string) harness.Assumption {
	return func() error {
		p, err := exec.LookPath(name)
		if err != nil {
			return errors.Errorf("%s is not installed", name)
		}
		plog.Debugf("Found %s at %s", name, p)
		return nil
	}
}

// MinVersion holds if name is installed and the first version number in
// the output of `name args...` is at least minimum. args default to
// --version.
func MinVersion(name string, minimum semver.Version, args ...string) harness.Assumption {
	if len(args) == 0 {
		args = []string{"--version"}
	}
	return func() error {
		if err := Executable(name)(); err != nil {
			return err
		}
		v, err := Version(name, args...)
		if err != nil {
			return err
		}
		if v.LessThan(minimum) {
			return errors.Errorf("%s %v is older than %v", name, v, minimum)
		}
		return nil
	}
}

// Version runs `name args...` and parses the first version number in its
// output. Two-component versions get a zero patch level.
func Version(name string, args ...string) (*semver.Version, error) {
	ctx, cancel := context.WithTimeout(context.Background(), versionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, errors.Wrapf(err, "running %s", name)
	}
	m := versionRe.FindSubmatch(out)
	if m == nil {
		return nil, errors.Errorf("no version number in output of %s: %q", name, out)
	}
	var parts [3]int64
	for i := range parts {
		if len(m[i+1]) == 0 {
			continue
		}
		n, err := strconv.ParseInt(string(m[i+1]), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing version of %s", name)
		}
		parts[i] = n
	}
	return &semver.Version{Major: parts[0], Minor: parts[1], Patch: parts[2]}, nil
}
