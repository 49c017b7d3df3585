package ingredient

import (
	"math"
	"strconv"
)

// fractions are the kitchen fractions a remainder may be rounded to, in
// search order. On an exact tie the earlier entry wins.
var fractions = []struct {
	value float64
	text  string
}{
	{0, ""},
	{1.0 / 8.0, "1/8"},
	{1.0 / 4.0, "1/4"},
	{3.0 / 8.0, "3/8"},
	{1.0 / 3.0, "1/3"},
	{1.0 / 2.0, "1/2"},
	{5.0 / 8.0, "5/8"},
	{2.0 / 3.0, "2/3"},
	{3.0 / 4.0, "3/4"},
	{7.0 / 8.0, "7/8"},
	{1, ""},
}

// MixedNumber renders v as "<whole> <fraction>", "<whole>", "<fraction>" or
// "0", using the closest kitchen fraction for the remainder.
func MixedNumber(v float64) string {
	if !(v > 0) || math.IsInf(v, 0) {
		return "0"
	}

	whole := math.Floor(v)
	rem := v - whole

	best := 0
	for i := 1; i < len(fractions); i++ {
		if math.Abs(rem-fractions[i].value) < math.Abs(rem-fractions[best].value) {
			best = i
		}
	}
	if best == len(fractions)-1 {
		whole++
	}
	frac := fractions[best].text

	switch {
	case whole == 0 && frac == "":
		return "0"
	case whole == 0:
		return frac
	case frac == "":
		return strconv.FormatFloat(whole, 'f', -1, 64)
	}
	return strconv.FormatFloat(whole, 'f', -1, 64) + " " + frac
}
