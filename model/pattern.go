package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidPattern = errors.New("invalid key pattern")

// Pattern selects a set of keys for bulk deletion.
//
// Glob is the canonical dialect since the external tier understands it natively
// (SCAN MATCH). Rules: '*' matches any run of characters, '?' a single character,
// '[...]' a character class ('[^...]' negated) and '\x' the literal x.
// The local tier matches the same glob through its regexp translation.
//
// A Regex pattern is matched verbatim against the full key on the local tier.
// On the external tier keys are listed with the widest glob implied by the
// regexp's anchored literal prefix and then filtered with the same regexp,
// so both tiers always delete the same logical key set.
type Pattern struct {
	glob string
	re   *regexp.Regexp
}

// Glob compiles a glob pattern.
func Glob(glob string) (Pattern, error) {
	expr, err := globToRegexp(glob)
	if err != nil {
		return Pattern{}, err
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: %s: %v", ErrInvalidPattern, glob, err)
	}
	return Pattern{glob: glob, re: re}, nil
}

// MustGlob is Glob for patterns known at compile time.
func MustGlob(glob string) Pattern {
	p, err := Glob(glob)
	if err != nil {
		panic(err)
	}
	return p
}

// Regex compiles a regular expression pattern.
func Regex(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: %s: %v", ErrInvalidPattern, expr, err)
	}
	glob := "*"
	if strings.HasPrefix(expr, "^") && !strings.Contains(expr, "|") {
		if prefix, _ := re.LiteralPrefix(); prefix != "" {
			glob = EscapeGlob(prefix) + "*"
		}
	}
	return Pattern{glob: glob, re: re}, nil
}

// MustRegex is Regex for patterns known at compile time.
func MustRegex(expr string) Pattern {
	p, err := Regex(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// PrefixPattern matches every key of namespace whose leading components equal parts.
func PrefixPattern(namespace string, parts ...string) Pattern {
	k := NewKey(namespace, parts...)
	return MustGlob(EscapeGlob(k.String()) + Delimiter + "*")
}

// Match reports whether key belongs to the pattern.
func (p Pattern) Match(key string) bool {
	return p.re != nil && p.re.MatchString(key)
}

// BackendGlob is the glob handed to the external tier's key listing.
func (p Pattern) BackendGlob() string { return p.glob }

func (p Pattern) String() string {
	if p.re == nil {
		return ""
	}
	return p.re.String()
}

// EscapeGlob quotes glob metacharacters in s.
func EscapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func globToRegexp(glob string) (string, error) {
	var b strings.Builder
	b.WriteString("^")
	runes := []rune(glob)
	for i := 0; i < len(runes); i++ {
		switch c := runes[i]; c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '\\':
			if i+1 >= len(runes) {
				return "", fmt.Errorf("%w: trailing escape in %q", ErrInvalidPattern, glob)
			}
			i++
			b.WriteString(regexp.QuoteMeta(string(runes[i])))
		case '[':
			end := i + 1
			if end < len(runes) && runes[end] == '^' {
				end++
			}
			for end < len(runes) && runes[end] != ']' {
				end++
			}
			if end >= len(runes) {
				return "", fmt.Errorf("%w: unterminated class in %q", ErrInvalidPattern, glob)
			}
			b.WriteByte('[')
			j := i + 1
			if runes[j] == '^' {
				b.WriteByte('^')
				j++
			}
			for ; j < end; j++ {
				if runes[j] == '\\' || runes[j] == '[' || runes[j] == ']' {
					b.WriteByte('\\')
				}
				b.WriteRune(runes[j])
			}
			b.WriteByte(']')
			i = end
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return b.String(), nil
}
