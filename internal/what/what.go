// Package what implements the search predicate: a literal substring or a
// compiled regular expression, tested against single lines of text.
package what

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind selects the matching backend.
type Kind int

const (
	// Text matches by substring containment.
	Text Kind = iota
	// Regex matches by regular-expression search.
	Regex
)

func (k Kind) String() string {
	if k == Regex {
		return "regex"
	}
	return "text"
}

// PatternError is returned by New when a regular expression fails to compile.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// What is an immutable predicate, safe for concurrent use.
type What struct {
	kind    Kind
	pattern string
	re      *regexp.Regexp
}

// New builds a predicate. With insensitive set, the pattern is lower-cased
// here once (ASCII only) and callers are expected to lower-case each line
// with LowerASCII before calling Matches.
func New(pattern string, regex, insensitive bool) (*What, error) {
	if insensitive {
		pattern = LowerASCII(pattern)
	}
	if !regex {
		return &What{kind: Text, pattern: pattern}, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &PatternError{Pattern: pattern, Err: err}
	}
	return &What{kind: Regex, pattern: pattern, re: re}, nil
}

// Kind reports which backend the predicate uses.
func (w *What) Kind() Kind { return w.kind }

// Pattern returns the pattern as it is matched, after any lower-casing.
func (w *What) Pattern() string { return w.pattern }

// Matches reports whether text contains the pattern.
func (w *What) Matches(text string) bool {
	switch w.kind {
	case Regex:
		return w.re.MatchString(text)
	default:
		return strings.Contains(text, w.pattern)
	}
}

// Replace substitutes every non-overlapping match in text with to. For
// regular expressions, to may reference capture groups as $1 or ${name}.
func (w *What) Replace(text, to string) string {
	switch w.kind {
	case Regex:
		return w.re.ReplaceAllString(text, to)
	default:
		return strings.ReplaceAll(text, w.pattern, to)
	}
}

// LowerASCII lower-cases ASCII letters only. Non-ASCII bytes are left as is.
func LowerASCII(s string) string {
	i := 0
	for ; i < len(s); i++ {
		if 'A' <= s[i] && s[i] <= 'Z' {
			break
		}
	}
	if i == len(s) {
		return s
	}
	b := []byte(s)
	for ; i < len(b); i++ {
		if 'A' <= b[i] && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// Unescape strips one leading backslash from a search term made of
// backslashes followed by a '-', so that "\--foo" searches for "--foo" and
// "\\--foo" for "\--foo". Any other term is returned unchanged.
func Unescape(term string) string {
	if !strings.HasPrefix(term, `\`) {
		return term
	}
	remove := false
	for _, c := range term[1:] {
		if c == '-' {
			remove = true
		} else if c != '\\' {
			break
		}
	}
	if remove {
		return term[1:]
	}
	return term
}
