// Package text splits input text into special and literal fragments.
//
// Special patterns are regular expressions declared in the voicebank. They are
// joined into one alternation, longest source first, so that an idiom is taken as
// one unit before any shorter overlapping pattern gets a chance to match.
package text

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/AS042971/otto/internal/voicebank"
)

// FragmentKind tells whether a fragment matched a special pattern.
type FragmentKind int

const (
	// Literal is ordinary text that goes through syllable conversion.
	Literal FragmentKind = iota
	// Special matched a declared pattern.
	Special
)

// String returns a short name for the kind.
func (k FragmentKind) String() string {
	if k == Special {
		return "special"
	}

	return "literal"
}

// Fragment is a non-empty slice of the input. Text is exactly the input slice;
// Pattern is the canonical pattern source for special fragments.
type Fragment struct {
	Text    string
	Pattern string
	Kind    FragmentKind
}

// Key is the lookup key for the fragment: the pattern source for special
// fragments, the text otherwise.
func (f Fragment) Key() string {
	if f.Kind == Special {
		return f.Pattern
	}

	return f.Text
}

type compiledPattern struct {
	full   *regexp.Regexp
	prefix *regexp.Regexp
	source string
}

// Matcher is built once from the voicebank patterns and is safe for concurrent use.
type Matcher struct {
	combined *regexp.Regexp
	patterns []compiledPattern
}

const (
	errFmtCompilePattern  = "failed to compile pattern %q: %w"
	errFmtCompileCombined = "failed to compile combined pattern: %w"
)

// NewMatcher precompiles every pattern and their combined alternation.
// Entries are ordered by (-length, declaration index) regardless of input order.
func NewMatcher(entries []voicebank.PatternEntry) (*Matcher, error) {
	ordered := slices.Clone(entries)
	slices.SortFunc(ordered, voicebank.ComparePatterns)

	patterns := make([]compiledPattern, 0, len(ordered))
	alternatives := make([]string, 0, len(ordered))

	for _, entry := range ordered {
		full, err := regexp.Compile(`\A(?:` + entry.Source + `)\z`)
		if err != nil {
			return nil, fmt.Errorf(errFmtCompilePattern, entry.Source, err)
		}

		prefix, err := regexp.Compile(`\A(?:` + entry.Source + `)`)
		if err != nil {
			return nil, fmt.Errorf(errFmtCompilePattern, entry.Source, err)
		}

		patterns = append(patterns, compiledPattern{full: full, prefix: prefix, source: entry.Source})
		alternatives = append(alternatives, "(?:"+entry.Source+")")
	}

	matcher := &Matcher{combined: nil, patterns: patterns}
	if len(alternatives) == 0 {
		return matcher, nil
	}

	combined, err := regexp.Compile(strings.Join(alternatives, "|"))
	if err != nil {
		return nil, fmt.Errorf(errFmtCompileCombined, err)
	}

	matcher.combined = combined

	return matcher, nil
}

// Segment partitions input into fragments in their original order.
// Joining the Text of every fragment gives back input.
func (m *Matcher) Segment(input string) []Fragment {
	if input == "" {
		return nil
	}

	if m.combined == nil {
		return []Fragment{literal(input)}
	}

	var fragments []Fragment

	last := 0

	for pos := 0; pos < len(input); {
		loc := m.combined.FindStringIndex(input[pos:])
		if loc == nil {
			break
		}

		start, end := pos+loc[0], pos+loc[1]
		if start == end {
			// an empty match still lets a later alternative match here
			end = start + m.nonEmptyPrefix(input[start:])
			if end == start {
				_, size := utf8.DecodeRuneInString(input[start:])
				pos = start + size

				continue
			}
		}

		pos = end

		pattern, ok := m.canonical(input[start:end])
		if !ok {
			// stays in the surrounding literal run
			continue
		}

		if start > last {
			fragments = append(fragments, literal(input[last:start]))
		}

		fragments = append(fragments, Fragment{Text: input[start:end], Pattern: pattern, Kind: Special})
		last = end
	}

	if last < len(input) {
		fragments = append(fragments, literal(input[last:]))
	}

	return fragments
}

// nonEmptyPrefix returns the length of the first non-empty match of the
// ordered patterns at the start of s, or 0.
func (m *Matcher) nonEmptyPrefix(s string) int {
	for _, pattern := range m.patterns {
		loc := pattern.prefix.FindStringIndex(s)
		if loc != nil && loc[1] > 0 {
			return loc[1]
		}
	}

	return 0
}

// canonical returns the source of the first pattern that fully matches s.
func (m *Matcher) canonical(s string) (string, bool) {
	for _, pattern := range m.patterns {
		if pattern.full.MatchString(s) {
			return pattern.source, true
		}
	}

	return "", false
}

// Len reports the number of patterns.
func (m *Matcher) Len() int {
	return len(m.patterns)
}

func literal(s string) Fragment {
	return Fragment{Text: s, Pattern: "", Kind: Literal}
}
