package orchestration

import (
	"regexp"
	"sort"
)

// placeholderRe matches ${name...} references in templates. Bare $name
// is left to the shell.
var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)`)

// FetchedParameters returns the names of the named groups in the effective
// output fetcher, sorted. An invalid pattern yields none.
func (s *Step) FetchedParameters() []string {
	pattern := s.RegexpFetch()
	if pattern == "" {
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	set := make(map[string]struct{})
	for _, name := range re.SubexpNames() {
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// UserParameters returns the parameters referenced by the code or by
// parameter values that are not defined by any layer, sorted. These must
// be supplied by the caller at run time.
func (s *Step) UserParameters() []string {
	params := s.Parameters()
	referenced := make(map[string]struct{})
	for _, name := range Placeholders(s.Code()) {
		referenced[name] = struct{}{}
	}
	for _, v := range params {
		if str, ok := v.(string); ok {
			for _, name := range Placeholders(str) {
				referenced[name] = struct{}{}
			}
		}
	}
	for name := range params {
		delete(referenced, name)
	}
	return sortedKeys(referenced)
}

// Placeholders returns the distinct placeholder names in a template, in
// order of first appearance. "$$" escapes are skipped.
func Placeholders(template string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(template, -1) {
		if m[0] > 0 && template[m[0]-1] == '$' {
			continue
		}
		name := template[m[2]:m[3]]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
