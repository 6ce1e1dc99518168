package text

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// NumberBaseTen represents the base for decimal number system.
	NumberBaseTen = 10
	// GroupBase is the size of a Chinese digit group (万).
	GroupBase = 10000
	// MaxDigitsForWords is the longest digit run read as a quantity; longer runs
	// and runs with leading zeros are read digit by digit.
	MaxDigitsForWords = 12
)

const (
	numberRegexPattern = `[0-9]+`
	digitsPerGroup     = 4
	zeroWord           = "零"
	oneWord            = "一"
	tenWord            = "十"
)

// NumberReader rewrites Arabic digit runs as Chinese numerals so that they can be
// converted to syllables like any other Han text.
type NumberReader struct {
	numberPattern *regexp.Regexp
	digits        []string
	units         []string
	groupUnits    []string
}

// NewNumberReader creates a reader with its pattern compiled upfront.
func NewNumberReader() *NumberReader {
	return &NumberReader{
		numberPattern: regexp.MustCompile(numberRegexPattern),
		digits:        []string{"零", "一", "二", "三", "四", "五", "六", "七", "八", "九"},
		units:         []string{"", "十", "百", "千"},
		groupUnits:    []string{"", "万", "亿"},
	}
}

// ReadNumbers replaces every digit run in text by its Chinese reading.
func (r *NumberReader) ReadNumbers(text string) string {
	return r.numberPattern.ReplaceAllStringFunc(text, r.readNumber)
}

func (r *NumberReader) readNumber(s string) string {
	if len(s) > MaxDigitsForWords || (len(s) > 1 && s[0] == '0') {
		return r.readDigits(s)
	}

	number, err := strconv.ParseInt(s, NumberBaseTen, 64)
	if err != nil {
		return r.readDigits(s)
	}

	return r.integerToWords(number)
}

func (r *NumberReader) readDigits(s string) string {
	var result strings.Builder

	for _, char := range s {
		result.WriteString(r.digits[char-'0'])
	}

	return result.String()
}

// integerToWords reads 0 <= number < 10^12.
func (r *NumberReader) integerToWords(number int64) string {
	if number == 0 {
		return zeroWord
	}

	var groups []int

	for remaining := number; remaining > 0; remaining /= GroupBase {
		groups = append(groups, int(remaining%GroupBase))
	}

	var (
		result   strings.Builder
		needZero bool
	)

	for index := len(groups) - 1; index >= 0; index-- {
		group := groups[index]
		if group == 0 {
			needZero = result.Len() > 0

			continue
		}

		if result.Len() > 0 && (needZero || group < GroupBase/NumberBaseTen) {
			result.WriteString(zeroWord)
		}

		needZero = false

		result.WriteString(r.groupToWords(group))
		result.WriteString(r.groupUnits[index])
	}

	words := result.String()

	// 一十 is read as 十 at the start of a number.
	if strings.HasPrefix(words, oneWord+tenWord) {
		return strings.TrimPrefix(words, oneWord)
	}

	return words
}

// groupToWords reads 1 <= group <= 9999.
func (r *NumberReader) groupToWords(group int) string {
	var (
		result  strings.Builder
		started bool
		zero    bool
	)

	divisor := GroupBase / NumberBaseTen

	for position := digitsPerGroup - 1; position >= 0; position-- {
		digit := (group / divisor) % NumberBaseTen
		divisor /= NumberBaseTen

		if digit == 0 {
			zero = started

			continue
		}

		if zero {
			result.WriteString(zeroWord)

			zero = false
		}

		result.WriteString(r.digits[digit])
		result.WriteString(r.units[position])

		started = true
	}

	return result.String()
}
