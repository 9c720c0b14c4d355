// Copyright 2017 CoreOS, Inc.
// Copyright 2015 The Go Authors.
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
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// matcher sanitizes, uniques, and filters names of nodes.
type matcher struct {
	filter []*regexp.Regexp
	err    error

	subNames map[string]int64
}

func newMatcher(patterns string) *matcher {
	m := &matcher{subNames: map[string]int64{}}
	if patterns == "" {
		return m
	}
	for i, s := range splitRegexp(patterns) {
		re, err := regexp.Compile(rewrite(s))
		if err != nil {
			// reported by Suite.Run before anything runs
			m.err = errors.Wrapf(err, "harness: invalid regexp for element %d of --run (%q)", i, s)
			return m
		}
		m.filter = append(m.filter, re)
	}
	return m
}

// fullName returns the unique name of a node called subname below parent.
func (m *matcher) fullName(parent, subname string) string {
	subname = rewrite(subname)
	if parent == "" {
		return m.unique("", subname)
	}
	return m.unique(parent+"/", subname)
}

// matches reports whether name is selected by the filter. We check the
// full array of paths each time to allow for the case that a pattern
// contains a '/'.
func (m *matcher) matches(name string) bool {
	for i, s := range strings.Split(name, "/") {
		if i >= len(m.filter) {
			break
		}
		if !m.filter[i].MatchString(s) {
			return false
		}
	}
	return true
}

func splitRegexp(s string) []string {
	a := make([]string, 0, strings.Count(s, "/"))
	cs := 0
	cp := 0
	for i := 0; i < len(s); {
		switch s[i] {
		case '[':
			cs++
		case ']':
			if cs--; cs < 0 { // An unmatched ']' is legal.
				cs = 0
			}
		case '(':
			if cs == 0 {
				cp++
			}
		case ')':
			if cs == 0 {
				cp--
			}
		case '\\':
			i++
		case '/':
			if cs == 0 && cp == 0 {
				a = append(a, s[:i])
				s = s[i+1:]
				i = 0
				continue
			}
		}
		i++
	}
	return append(a, s)
}

// unique creates a unique name for the given prefix and subname by affixing it
// with one ore more counts, if necessary.
func (m *matcher) unique(prefix, subname string) string {
	name := prefix + subname
	empty := subname == ""
	for {
		next, exists := m.subNames[name]
		if !empty && !exists {
			m.subNames[name] = 1 // next count is 1
			return name
		}
		// Name was already used. We increment with the count and append a
		// string with the count.
		m.subNames[name] = next + 1

		// Add a count to guarantee uniqueness.
		name = fmt.Sprintf("%s#%02d", name, next)
		empty = false
	}
}

// rewrite rewrites a subname to having only printable characters and no white
// space.
func rewrite(s string) string {
	b := []byte{}
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			b = append(b, '_')
		case !strconv.IsPrint(r):
			s := strconv.QuoteRune(r)
			b = append(b, s[1:len(s)-1]...)
		default:
			b = append(b, string(r)...)
		}
	}
	return string(b)
}
