package scoring

import "math"

// band awards points to values in [lo, hi].
type band struct {
	lo, hi float64
	points int
}

// ruleTable is an ordered list of bands. A value that falls in no band (a gap
// between integer bands, or NaN) scores 0.
type ruleTable []band

func (t ruleTable) points(v float64) int {
	for _, b := range t {
		if v >= b.lo && v <= b.hi {
			return b.points
		}
	}
	return 0
}

var (
	negInf = math.Inf(-1)
	posInf = math.Inf(1)
)

var news2RespiratoryRate = ruleTable{
	{negInf, 8, 3},
	{9, 11, 1},
	{12, 20, 0},
	{21, 24, 2},
	{25, posInf, 3},
}

var news2OxygenSaturation = ruleTable{
	{negInf, 91, 3},
	{92, 93, 2},
	{94, 95, 1},
	{96, posInf, 0},
}

var news2Temperature = ruleTable{
	{negInf, 35.0, 3},
	{35.1, 36.0, 1},
	{36.1, 38.0, 0},
	{38.1, 39.0, 1},
	{39.1, posInf, 2},
}

var news2SystolicBP = ruleTable{
	{negInf, 90, 3},
	{91, 100, 2},
	{101, 110, 1},
	{111, 219, 0},
	{220, posInf, 3},
}

var news2HeartRate = ruleTable{
	{negInf, 40, 3},
	{41, 50, 1},
	{51, 90, 0},
	{91, 110, 1},
	{111, 130, 2},
	{131, posInf, 3},
}

var qsofaRespiratoryRate = ruleTable{
	{22, posInf, 1},
}

var qsofaSystolicBP = ruleTable{
	{negInf, 100, 1},
}
