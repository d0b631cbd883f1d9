package scan

import (
	"sort"
	"strings"
)

// Flag is one scanner command-line flag. Name is given without leading
// dashes; an empty Value renders a bare boolean flag.
type Flag struct {
	Name  string
	Value string
}

// ParseFlag reads "name=value", "--name=value" or "name".
func ParseFlag(s string) Flag {
	s = strings.TrimLeft(strings.TrimSpace(s), "-")
	name, value, _ := strings.Cut(s, "=")
	return Flag{Name: strings.TrimSpace(name), Value: value}
}

// mergeFlags replaces defaults that share a name with an override; the
// last override for a name wins. An empty override never strips the value
// of a valued default. Overrides for new names follow the defaults, sorted
// by name.
func mergeFlags(defaults, overrides []Flag) []Flag {
	last := make(map[string]string, len(overrides))
	for _, f := range overrides {
		name := strings.TrimLeft(f.Name, "-")
		if name == "" {
			continue
		}
		last[name] = f.Value
	}

	out := make([]Flag, 0, len(defaults)+len(last))
	used := make(map[string]bool, len(last))
	for _, f := range defaults {
		if v, ok := last[f.Name]; ok {
			if v != "" || f.Value == "" {
				f.Value = v
			}
			used[f.Name] = true
		}
		out = append(out, f)
	}

	var extra []string
	for name := range last {
		if !used[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		out = append(out, Flag{Name: name, Value: last[name]})
	}
	return out
}

func flagValue(flags []Flag, name string) string {
	for _, f := range flags {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

func renderFlags(flags []Flag) []string {
	args := make([]string, 0, len(flags)*2)
	for _, f := range flags {
		args = append(args, "--"+f.Name)
		if f.Value != "" {
			args = append(args, f.Value)
		}
	}
	return args
}
