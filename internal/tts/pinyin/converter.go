// Package pinyin converts literal text to pinyin syllables with go-pinyin.
//
// Han characters become one syllable each. Runs of anything else are kept
// together as a single token, which normally has no clip and therefore reads as
// silence.
package pinyin

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	gopinyin "github.com/mozillazg/go-pinyin"
)

// Style selects how syllables are spelled.
type Style string

const (
	// StyleNormal spells syllables without tones, e.g. "ni".
	StyleNormal Style = "normal"
	// StyleTone3 appends the tone number, e.g. "ni3".
	StyleTone3 Style = "tone3"
)

// ErrUnknownStyle is returned for an unsupported style name.
var ErrUnknownStyle = errors.New("unknown pinyin style")

// ParseStyle maps a configuration value to a Style. An empty value selects StyleNormal.
func ParseStyle(name string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(name))) {
	case "", StyleNormal:
		return StyleNormal, nil
	case StyleTone3:
		return StyleTone3, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStyle, name)
	}
}

// Converter implements core.SyllableConverter. It holds no mutable state.
type Converter struct {
	args gopinyin.Args
}

// New creates a converter for the given style.
func New(style Style) *Converter {
	args := gopinyin.NewArgs()
	args.Style = gopinyin.Normal

	if style == StyleTone3 {
		args.Style = gopinyin.Tone3
	}

	// Han characters missing from the dictionary stay as themselves.
	args.Fallback = func(r rune, _ gopinyin.Args) []string {
		return []string{string(r)}
	}

	return &Converter{args: args}
}

// Syllables returns the ordered syllable tokens for text.
func (c *Converter) Syllables(text string) []string {
	var (
		syllables []string
		han       strings.Builder
		other     strings.Builder
	)

	flushHan := func() {
		if han.Len() > 0 {
			syllables = append(syllables, gopinyin.LazyPinyin(han.String(), c.args)...)
			han.Reset()
		}
	}

	flushOther := func() {
		if other.Len() > 0 {
			syllables = append(syllables, other.String())
			other.Reset()
		}
	}

	for _, char := range text {
		if unicode.Is(unicode.Han, char) {
			flushOther()
			han.WriteRune(char)

			continue
		}

		flushHan()
		other.WriteRune(char)
	}

	flushHan()
	flushOther()

	return syllables
}
