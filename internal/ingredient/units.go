package ingredient

import (
	"math"

	"golang.org/x/text/cases"
)

// Class groups unit words by how their amounts are normalized.
type Class int

const (
	Unknown Class = iota
	Volumetric
	Count
)

// volume is a display unit for volumetric amounts.
type volume struct {
	label  string
	perCup float64
}

var (
	teaspoon   = volume{label: "tsp", perCup: 48}
	tablespoon = volume{label: "Tbsp", perCup: 16}
	cup        = volume{label: "cup", perCup: 1}
)

var volumeAliases = map[string]volume{
	"tsp":         teaspoon,
	"tsps":        teaspoon,
	"teaspoon":    teaspoon,
	"teaspoons":   teaspoon,
	"tbsp":        tablespoon,
	"tbsps":       tablespoon,
	"tbs":         tablespoon,
	"tbl":         tablespoon,
	"tablespoon":  tablespoon,
	"tablespoons": tablespoon,
	"cup":         cup,
	"cups":        cup,
}

var countAliases = map[string]bool{
	"clove":  true,
	"cloves": true,
	"egg":    true,
	"eggs":   true,
	"can":    true,
	"cans":   true,
	"piece":  true,
	"pieces": true,
}

const (
	minCups            = 0.25
	cupStep            = 0.25
	thirdTolerance     = 0.04
	promoteTablespoons = 3.999999
	tablespoonStep     = 0.5
	teaspoonStep       = 0.25
	countStep          = 0.5

	// settlePasses bounds how often a result is fed back through the policy.
	settlePasses = 3
)

// lookupUnit reports the class of a unit word and, for volumetric words, its
// display unit. Matching is case-insensitive.
func lookupUnit(unit string) (Class, volume) {
	folded := cases.Fold().String(unit)
	if v, ok := volumeAliases[folded]; ok {
		return Volumetric, v
	}
	if countAliases[folded] {
		return Count, volume{}
	}
	return Unknown, volume{}
}

// normalizeVolume picks the display unit and amount for a volumetric quantity.
// The chosen pair is run through the policy again until it reproduces itself,
// so that a formatted line formats to the same text.
func normalizeVolume(amount float64, from volume) (float64, volume) {
	value, to := decideVolume(amount, from)
	for i := 0; i < settlePasses; i++ {
		v, u := decideVolume(value, to)
		if v == value && u == to {
			break
		}
		value, to = v, u
	}
	return value, to
}

func decideVolume(amount float64, from volume) (float64, volume) {
	if cups := convert(amount, from, cup); cups >= minCups {
		return roundCups(cups), cup
	}

	tbsp := convert(amount, from, tablespoon)
	if tbsp >= promoteTablespoons {
		return minCups, cup
	}
	if t := roundTo(tbsp, tablespoonStep); t >= 1 {
		return t, tablespoon
	}

	return roundTo(convert(amount, from, teaspoon), teaspoonStep), teaspoon
}

// convert multiplies before dividing so whole-number ratios stay exact.
func convert(amount float64, from, to volume) float64 {
	return amount * to.perCup / from.perCup
}

// roundCups snaps to a third of a cup when close to one, otherwise to a quarter.
func roundCups(cups float64) float64 {
	whole := math.Floor(cups)
	frac := cups - whole
	switch {
	case math.Abs(frac-1.0/3.0) <= thirdTolerance:
		return whole + 1.0/3.0
	case math.Abs(frac-2.0/3.0) <= thirdTolerance:
		return whole + 2.0/3.0
	}
	return roundTo(cups, cupStep)
}

func roundTo(v, step float64) float64 {
	return math.Round(v/step) * step
}
