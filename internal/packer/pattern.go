package packer

import (
	"fmt"
	"regexp"
	"strings"

	glob "github.com/ryanuber/go-glob"
)

// PatternType selects the pattern dialect, mirroring bar's
// PATTERN_TYPE_GLOB/PATTERN_TYPE_REGEX/PATTERN_TYPE_EXTENDED_REGEX.
// Only Glob is matched by a vendored matcher (go-glob); Regex and
// ExtendedRegex delegate to the standard library, which already
// implements POSIX extended syntax.
type PatternType int

const (
	Glob PatternType = iota
	Regex
	ExtendedRegex
)

// MatchMode anchors a pattern against the candidate name.
type MatchMode int

const (
	// Begin matches if the pattern matches a leading substring.
	Begin MatchMode = iota
	// End matches if the pattern matches a trailing substring.
	End
	// Exact requires the pattern to match the whole name.
	Exact
)

// Pattern is one compiled include/exclude pattern.
type Pattern struct {
	raw  string
	typ  PatternType
	mode MatchMode
	re   *regexp.Regexp
}

// Compile builds a Pattern from raw text of the given type and mode.
func Compile(raw string, typ PatternType, mode MatchMode) (*Pattern, error) {
	p := &Pattern{raw: raw, typ: typ, mode: mode}
	if typ == Glob {
		return p, nil
	}

	body := raw
	flags := ""
	if typ == Regex {
		// regexp's syntax is already extended (RE2); basic POSIX
		// backreferences to grouping are not offered either way, so
		// Regex and ExtendedRegex share a compiler and differ only in
		// how the caller is expected to write patterns.
		flags = "(?i)"
	} else {
		flags = "(?i)"
	}
	switch mode {
	case Begin:
		body = "^(?:" + body + ")"
	case End:
		body = "(?:" + body + ")$"
	case Exact:
		body = "^(?:" + body + ")$"
	}
	re, err := regexp.Compile(flags + body)
	if err != nil {
		return nil, fmt.Errorf("packer: invalid pattern %q: %w", raw, err)
	}
	p.re = re
	return p, nil
}

// Match reports whether name satisfies the pattern.
func (p *Pattern) Match(name string) bool {
	if p.typ == Glob {
		switch p.mode {
		case Exact:
			return glob.Glob(p.raw, name)
		case Begin:
			return glob.Glob(ensureSuffix(p.raw, "*"), name)
		case End:
			return glob.Glob(ensurePrefix(p.raw, "*"), name)
		}
	}
	return p.re.MatchString(name)
}

func ensureSuffix(s, suffix string) string {
	if strings.HasSuffix(s, suffix) {
		return s
	}
	return s + suffix
}

func ensurePrefix(s, prefix string) string {
	if strings.HasPrefix(s, prefix) {
		return s
	}
	return prefix + s
}

// IsPattern reports whether s contains an unescaped glob metacharacter
// (`* ? [ {`), the test bar uses to decide a string names a pattern
// rather than a literal path.
func IsPattern(s string) bool {
	escaped := false
	for _, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

// BasePath returns the longest leading run of '/'-delimited path
// components containing no unescaped glob metacharacter.
func BasePath(pattern string) string {
	segs := strings.Split(pattern, "/")
	var base []string
	for _, seg := range segs {
		if IsPattern(seg) {
			break
		}
		base = append(base, seg)
	}
	if len(base) == 0 {
		return "."
	}
	joined := strings.Join(base, "/")
	if joined == "" {
		return "/"
	}
	return joined
}
