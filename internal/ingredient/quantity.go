package ingredient

import (
	"math"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// vulgarFractions maps single-glyph fractions to their ASCII form.
var vulgarFractions = map[rune]string{
	'½': "1/2",
	'⅓': "1/3",
	'⅔': "2/3",
	'¼': "1/4",
	'¾': "3/4",
	'⅛': "1/8",
	'⅜': "3/8",
	'⅝': "5/8",
	'⅞': "7/8",
}

// Quantity is the leading amount of an ingredient line.
type Quantity struct {
	Value float64
	// Unit is the word that followed the amount, as written.
	Unit string
	// Span covers the amount, any separating whitespace and the unit.
	Span string
}

// ParseQuantity reads a leading "<number> <word>" from s. The number may be an
// integer, a decimal, a fraction, a mixed number or a vulgar fraction glyph,
// optionally preceded by a whole number. It reports false when s does not
// start with a number followed by a word.
func ParseQuantity(s string) (Quantity, bool) {
	sc := &scanner{s: s}

	value, ok := sc.number()
	if !ok || math.IsInf(value, 0) || math.IsNaN(value) {
		return Quantity{}, false
	}
	sc.spaces()
	unitStart := sc.pos
	if !sc.word() {
		return Quantity{}, false
	}

	return Quantity{
		Value: value,
		Unit:  s[unitStart:sc.pos],
		Span:  s[:sc.pos],
	}, true
}

// scanner walks a line left to right. It never backtracks further than the
// start of the token it is reading.
type scanner struct {
	s   string
	pos int
}

func (sc *scanner) number() (float64, bool) {
	if v, ok := sc.vulgar(); ok {
		return v, true
	}

	whole := sc.digits()
	if whole == "" {
		return 0, false
	}
	w, err := strconv.ParseFloat(whole, 64)
	if err != nil {
		return 0, false
	}
	mark := sc.pos

	switch {
	case sc.consume('.'):
		frac := sc.digits()
		if frac == "" {
			sc.pos = mark
			return w, true
		}
		v, err := strconv.ParseFloat(whole+"."+frac, 64)
		return v, err == nil
	case sc.consume('/'):
		den := sc.digits()
		if den == "" {
			sc.pos = mark
			return w, true
		}
		return ratio(whole, den)
	}

	// Mixed number: "1 3/4", "1½" or "1 ½".
	sc.spaces()
	if v, ok := sc.vulgar(); ok {
		return w + v, true
	}
	num := sc.digits()
	if num != "" && sc.consume('/') {
		if den := sc.digits(); den != "" {
			if f, ok := ratio(num, den); ok {
				return w + f, true
			}
		}
	}
	sc.pos = mark
	return w, true
}

func (sc *scanner) vulgar() (float64, bool) {
	r, size := utf8.DecodeRuneInString(sc.s[sc.pos:])
	ascii, ok := vulgarFractions[r]
	if !ok {
		return 0, false
	}
	sc.pos += size
	for i := 0; i < len(ascii); i++ {
		if ascii[i] == '/' {
			return ratio(ascii[:i], ascii[i+1:])
		}
	}
	return 0, false
}

func (sc *scanner) digits() string {
	start := sc.pos
	for sc.pos < len(sc.s) && sc.s[sc.pos] >= '0' && sc.s[sc.pos] <= '9' {
		sc.pos++
	}
	return sc.s[start:sc.pos]
}

func (sc *scanner) spaces() {
	for sc.pos < len(sc.s) && (sc.s[sc.pos] == ' ' || sc.s[sc.pos] == '\t') {
		sc.pos++
	}
}

func (sc *scanner) word() bool {
	start := sc.pos
	for sc.pos < len(sc.s) {
		r, size := utf8.DecodeRuneInString(sc.s[sc.pos:])
		if !unicode.IsLetter(r) {
			break
		}
		sc.pos += size
	}
	return sc.pos > start
}

func (sc *scanner) consume(b byte) bool {
	if sc.pos < len(sc.s) && sc.s[sc.pos] == b {
		sc.pos++
		return true
	}
	return false
}

func ratio(num, den string) (float64, bool) {
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, false
	}
	return n / d, true
}
