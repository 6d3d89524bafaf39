package middleware

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jgorset/fandjango/internal/config"
)

// pathFilter decides which request paths the authenticators apply to.
// Patterns match against the path with its leading slash stripped.
type pathFilter struct {
	enabled  []*regexp.Regexp
	disabled []*regexp.Regexp
}

// newPathFilter compiles the configured pattern lists. Configuring both lists
// at once is a deployment mistake and fails loud.
func newPathFilter(cfg config.Config) (*pathFilter, error) {
	if len(cfg.EnabledPaths) > 0 && len(cfg.DisabledPaths) > 0 {
		return nil, fmt.Errorf("%w: enabled and disabled path lists are mutually exclusive", config.ErrConfiguration)
	}
	filter := &pathFilter{}
	for _, pattern := range cfg.EnabledPaths {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: enabled path %q: %v", config.ErrConfiguration, pattern, err)
		}
		filter.enabled = append(filter.enabled, re)
	}
	for _, pattern := range cfg.DisabledPaths {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: disabled path %q: %v", config.ErrConfiguration, pattern, err)
		}
		filter.disabled = append(filter.disabled, re)
	}
	return filter, nil
}

// skip reports whether authentication is bypassed for the path.
func (f *pathFilter) skip(path string) bool {
	trimmed := strings.TrimPrefix(path, "/")
	for _, re := range f.disabled {
		if re.MatchString(trimmed) {
			return true
		}
	}
	if len(f.enabled) > 0 {
		for _, re := range f.enabled {
			if re.MatchString(trimmed) {
				return false
			}
		}
		return true
	}
	return false
}
