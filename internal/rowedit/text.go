package rowedit

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
	ansiPattern    = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(\x07|\x1b\\)|\x1b[@-Z\\-_]`)
)

// ToNumber converts s the way JavaScript's Number() does for form input:
// surrounding whitespace is ignored, blank is 0 and anything else that is
// not a decimal, Infinity or 0x/0o/0b literal is not a number.
func ToNumber(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	switch t {
	case "":
		return 0, true
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}
	if len(t) > 2 && t[0] == '0' {
		base := 0
		switch t[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(t[2:], base, 64)
			if err != nil {
				return 0, false
			}
			return float64(n), true
		}
	}
	if !decimalPattern.MatchString(t) {
		return 0, false
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil && !isRangeErr(err) {
		return 0, false
	}
	return f, true
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

// NumberOrNull returns the coerced number, or nil where JSON would carry
// null (NaN and the infinities).
func NumberOrNull(s string) interface{} {
	f, ok := ToNumber(s)
	if !ok || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return f
}

// Sanitize strips terminal escape sequences and control characters from
// server-supplied text before it is drawn; newlines and tabs become spaces.
func Sanitize(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
}
