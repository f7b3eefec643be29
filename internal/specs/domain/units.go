package specs

import "fmt"

type unitScale struct {
	family string
	factor float64
}

// factors convert a value in the unit into the family's reference unit.
var unitScales = map[string]unitScale{
	"":        {family: "dimensionless", factor: 1},
	"%":       {family: "fraction", factor: 0.01},
	"mag":     {family: "magnitude", factor: 1},
	"mmag":    {family: "magnitude", factor: 1e-3},
	"deg":     {family: "angle", factor: 3600},
	"arcmin":  {family: "angle", factor: 60},
	"arcsec":  {family: "angle", factor: 1},
	"marcsec": {family: "angle", factor: 1e-3},
	"mas":     {family: "angle", factor: 1e-3},
}

// UnitsCompatible reports whether values in from can be expressed in to.
func UnitsCompatible(from, to string) bool {
	if from == to {
		return true
	}
	a, okA := unitScales[from]
	b, okB := unitScales[to]
	return okA && okB && a.family == b.family
}

// ConvertUnit converts value from one unit into another of the same family.
func ConvertUnit(value float64, from, to string) (float64, error) {
	if from == to {
		return value, nil
	}
	a, okA := unitScales[from]
	b, okB := unitScales[to]
	if !okA || !okB || a.family != b.family {
		return 0, fmt.Errorf("%w: cannot convert %q to %q", ErrUnitMismatch, from, to)
	}
	return value * a.factor / b.factor, nil
}
