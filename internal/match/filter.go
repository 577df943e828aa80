package match

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter is a compiled include/exclude name matcher.
// Params: include and exclude regular expression lists.
// Returns: reusable matcher for many Allow calls.
type Filter struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// CompileFilter compiles include/exclude lists into a reusable filter.
// Params: include patterns (empty means every name qualifies); exclude patterns.
// Returns: compiled filter or the first pattern compile error.
func CompileFilter(include, exclude []string) (*Filter, error) {
	inc, err := CompilePatterns(include)
	if err != nil {
		return nil, fmt.Errorf("include: %w", err)
	}
	exc, err := CompilePatterns(exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude: %w", err)
	}
	return &Filter{include: inc, exclude: exc}, nil
}

// CompilePatterns compiles unanchored regular expressions in order.
// Params: patterns raw expression list.
// Returns: compiled expressions or error naming the failing index.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for idx, pattern := range patterns {
		if strings.TrimSpace(pattern) == "" {
			return nil, fmt.Errorf("pattern[%d] cannot be empty", idx)
		}
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern[%d] %q: %w", idx, pattern, err)
		}
		out = append(out, compiled)
	}
	return out, nil
}

// Allow reports whether name passes the filter; exclusion wins over inclusion.
// Params: name is compared field name.
// Returns: true when name matches an include pattern (or none are set) and no exclude pattern.
func (f *Filter) Allow(name string) bool {
	if f == nil {
		return true
	}
	if len(f.include) > 0 && !matchAny(f.include, name) {
		return false
	}
	return !matchAny(f.exclude, name)
}

func matchAny(patterns []*regexp.Regexp, value string) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}
