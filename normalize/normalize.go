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

// Package normalize rewrites the parts of captured output and recorded files
// that legitimately differ between environments, such as timestamps, host
// specific configuration lines or hashes depending on wall-clock time.
//
// Every rule names the field it applies to: a slash-separated path glob for
// files inside a tree, or one of the stream names "stdout", "stderr" and
// "output" for process output. Nothing is normalized unless a rule says so.
package normalize

import (
	"os"
	"path"
	"regexp"

	"github.com/coreos/pkg/capnslog"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var plog = capnslog.NewPackageLogger("github.com/coreos/journey", "normalize")

// Rule rewrites matches of Pattern with Replace in every field matching
// Path. If Ignore is set the content of matching fields is not compared at
// all; only their presence and kind are.
type Rule struct {
	Path    string `yaml:"path"`
	Pattern string `yaml:"pattern,omitempty"`
	Replace string `yaml:"replace,omitempty"`
	Ignore  bool   `yaml:"ignore,omitempty"`

	re *regexp.Regexp
}

type Rules []Rule

// Compile validates the rules and prepares their expressions. It must be
// called before Apply, which otherwise treats pattern rules as no-ops.
func (rs Rules) Compile() error {
	for i := range rs {
		r := &rs[i]
		if r.Path == "" {
			return errors.Errorf("normalize: rule %d has no path", i)
		}
		if _, err := path.Match(r.Path, ""); err != nil {
			return errors.Wrapf(err, "normalize: rule %d: bad path %q", i, r.Path)
		}
		if r.Ignore {
			if r.Pattern != "" {
				return errors.Errorf("normalize: rule %d for %q both ignores and rewrites", i, r.Path)
			}
			continue
		}
		if r.Pattern == "" {
			return errors.Errorf("normalize: rule %d for %q has neither pattern nor ignore", i, r.Path)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return errors.Wrapf(err, "normalize: rule %d for %q", i, r.Path)
		}
		r.re = re
	}
	return nil
}

func (r *Rule) matches(field string) bool {
	ok, _ := path.Match(r.Path, field)
	return ok
}

// Ignored reports whether the content of field is excluded from comparison.
func (rs Rules) Ignored(field string) bool {
	for i := range rs {
		if rs[i].Ignore && rs[i].matches(field) {
			return true
		}
	}
	return false
}

// Apply returns data with every rule for field applied in declaration order.
// data itself is never modified.
func (rs Rules) Apply(field string, data []byte) []byte {
	for i := range rs {
		r := &rs[i]
		if r.re == nil || !r.matches(field) {
			continue
		}
		data = r.re.ReplaceAll(data, []byte(r.Replace))
	}
	return data
}

// Load reads a YAML list of rules from filename and compiles them.
func Load(filename string) (Rules, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var rs Rules
	if err := yaml.Unmarshal(b, &rs); err != nil {
		return nil, errors.Wrapf(err, "normalize: parsing %s", filename)
	}
	if err := rs.Compile(); err != nil {
		return nil, errors.Wrapf(err, "normalize: %s", filename)
	}
	plog.Debugf("Loaded %d normalization rules from %s", len(rs), filename)
	return rs, nil
}

// LoadOptional is Load, except that a missing file yields no rules.
func LoadOptional(filename string) (Rules, error) {
	rs, err := Load(filename)
	if os.IsNotExist(errors.Cause(err)) {
		plog.Debugf("No normalization rules at %s", filename)
		return nil, nil
	}
	return rs, err
}
