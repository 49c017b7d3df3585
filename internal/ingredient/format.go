// Package ingredient normalizes the leading quantity of free-text ingredient
// lines ("1 3/4 cup flour", "3 cloves garlic") into kitchen-friendly units and
// fractions. Every function here is pure and safe for concurrent use.
package ingredient

import "strings"

// bullets are list markers stripped from the start of a line.
var bullets = []string{"•", "-"}

// FormatLine rewrites the leading quantity and unit of line. Volumetric amounts
// are converted between tsp, Tbsp and cup; count amounts are rounded to the
// nearest half. Anything it does not recognise is returned unchanged.
func FormatLine(line string) string {
	body := stripBullet(line)

	q, ok := ParseQuantity(body)
	if !ok {
		return line
	}

	var replacement string
	switch class, unit := lookupUnit(q.Unit); class {
	case Volumetric:
		value, to := normalizeVolume(q.Value, unit)
		replacement = MixedNumber(value) + " " + to.label
	case Count:
		replacement = MixedNumber(roundTo(q.Value, countStep)) + " " + q.Unit
	default:
		return line
	}

	return reassemble(line, body, q.Span, replacement)
}

// FormatLines formats each line, keeping input order.
func FormatLines(lines []string) []string {
	if lines == nil {
		return nil
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = FormatLine(line)
	}
	return out
}

func stripBullet(line string) string {
	s := strings.TrimLeft(line, " \t")
	for _, b := range bullets {
		if strings.HasPrefix(s, b) {
			return strings.TrimLeft(s[len(b):], " \t")
		}
	}
	return s
}

// reassemble swaps span for replacement inside body, falling back to the
// untouched line if span is not there.
func reassemble(line, body, span, replacement string) string {
	if span == "" || !strings.Contains(body, span) {
		return line
	}
	return strings.Replace(body, span, replacement, 1)
}
