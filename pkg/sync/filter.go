package sync

import (
	"regexp"
	"strings"
)

// patternFilter applies include and exclude globs to root-relative
// slash paths. Includes run first: when any are set, a path must match
// one of them. Excludes then reject. A filtered-out directory is not
// recursed into.
type patternFilter struct {
	includes []*regexp.Regexp
	excludes []*regexp.Regexp
}

func newPatternFilter(includes, excludes []string) (*patternFilter, error) {
	f := &patternFilter{}
	for _, pattern := range includes {
		re, err := translateGlob(pattern)
		if err != nil {
			return nil, err
		}
		f.includes = append(f.includes, re)
	}
	for _, pattern := range excludes {
		re, err := translateGlob(pattern)
		if err != nil {
			return nil, err
		}
		f.excludes = append(f.excludes, re)
	}
	return f, nil
}

// match reports whether the relative path survives the filters
func (f *patternFilter) match(relPath string) bool {
	if len(f.includes) > 0 {
		included := false
		for _, re := range f.includes {
			if re.MatchString(relPath) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}

	for _, re := range f.excludes {
		if re.MatchString(relPath) {
			return false
		}
	}
	return true
}

// translateGlob compiles a shell-style glob into an anchored regexp.
// Unlike path matching, * and ? cross slashes, so "*.log" catches a log
// file at any depth.
func translateGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`(?s)^`)

	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		case '[':
			j := i + 1
			if j < len(pattern) && pattern[j] == '!' {
				j++
			}
			if j < len(pattern) && pattern[j] == ']' {
				j++
			}
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j >= len(pattern) {
				// Unterminated set matches a literal bracket
				b.WriteString(`\[`)
				continue
			}
			set := strings.ReplaceAll(pattern[i+1:j], `\`, `\\`)
			i = j
			switch {
			case strings.HasPrefix(set, "!"):
				set = "^" + set[1:]
			case strings.HasPrefix(set, "^") || strings.HasPrefix(set, "["):
				set = `\` + set
			}
			b.WriteString("[" + set + "]")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	b.WriteString(`$`)
	return regexp.Compile(b.String())
}
