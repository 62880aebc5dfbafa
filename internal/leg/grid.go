package leg

import (
	"math"
	"time"
)

// DefaultHalfRows is the number of spot rows above and below the grid center.
const DefaultHalfRows = 20

// stepTable maps a price ceiling to the spot increment used below it.
var stepTable = []struct {
	below float64
	step  float64
}{
	{2.50, 0.10},
	{5.00, 0.25},
	{25.00, 0.50},
	{100.00, 1.00},
	{200.00, 2.50},
	{500.00, 5.00},
	{1000.00, 10.00},
	{2000.00, 20.00},
}

// StepFor returns the spot increment for a price magnitude.
func StepFor(price float64) float64 {
	for _, s := range stepTable {
		if price < s.below {
			return s.step
		}
	}
	return 30.00
}

// Grid describes the spot rows of a value table.
type Grid struct {
	Center   float64
	Step     float64
	HalfRows int
}

// DefaultGrid centers the rows on strike.
func DefaultGrid(strike float64, halfRows int) Grid {
	if halfRows <= 0 {
		halfRows = DefaultHalfRows
	}
	return Grid{Center: strike, Step: StepFor(strike), HalfRows: halfRows}
}

// SharedGrid returns one grid covering every strike so the tables of all
// legs of a strategy line up row for row. The center is the strike
// midpoint snapped to the step, and rows are added until every strike is
// at least two rows inside the edge.
func SharedGrid(strikes []float64, halfRows int) Grid {
	if len(strikes) == 0 {
		return Grid{}
	}
	if halfRows <= 0 {
		halfRows = DefaultHalfRows
	}

	lo, hi := strikes[0], strikes[0]
	for _, k := range strikes[1:] {
		lo = math.Min(lo, k)
		hi = math.Max(hi, k)
	}

	mid := (lo + hi) / 2
	step := StepFor(mid)
	center := roundPrice(math.Round(mid/step) * step)

	need := int(math.Ceil(math.Max(hi-center, center-lo)/step)) + 2
	if need > halfRows {
		halfRows = need
	}
	return Grid{Center: center, Step: step, HalfRows: halfRows}
}

// Spots returns the row prices from highest to lowest. Non-positive
// prices are dropped.
func (g Grid) Spots() []float64 {
	spots := make([]float64, 0, 2*g.HalfRows+1)
	for i := g.HalfRows; i >= -g.HalfRows; i-- {
		s := roundPrice(g.Center + float64(i)*g.Step)
		if s > 0 {
			spots = append(spots, s)
		}
	}
	return spots
}

func roundPrice(p float64) float64 {
	return math.Round(p*1e6) / 1e6
}

// columnDates returns dates from today to expiry every stepDays, always
// ending on expiry.
func columnDates(today, expiry time.Time, stepDays int) []time.Time {
	if stepDays <= 0 {
		stepDays = 1
	}

	var dates []time.Time
	for d := today; d.Before(expiry); d = d.AddDate(0, 0, stepDays) {
		dates = append(dates, d)
	}
	return append(dates, expiry)
}

// ValueTable is a grid of single-option prices. Rows are spot prices in
// descending order and columns are calendar dates; the last column is the
// expiry date.
type ValueTable struct {
	Spots  []float64   `json:"spots"`
	Dates  []time.Time `json:"dates"`
	Values [][]float64 `json:"values"`
}

// NewValueTable allocates a zeroed table.
func NewValueTable(spots []float64, dates []time.Time) *ValueTable {
	values := make([][]float64, len(spots))
	for i := range values {
		values[i] = make([]float64, len(dates))
	}
	return &ValueTable{Spots: spots, Dates: dates, Values: values}
}

// Rows returns the number of spot rows.
func (t *ValueTable) Rows() int { return len(t.Spots) }

// Cols returns the number of date columns.
func (t *ValueTable) Cols() int { return len(t.Dates) }

// At returns the cell value.
func (t *ValueTable) At(row, col int) float64 { return t.Values[row][col] }

// ExpiryColumn returns the values in the last column.
func (t *ValueTable) ExpiryColumn() []float64 {
	col := make([]float64, len(t.Spots))
	last := len(t.Dates) - 1
	for i := range t.Values {
		col[i] = t.Values[i][last]
	}
	return col
}

// Row returns the index of spot, or -1.
func (t *ValueTable) Row(spot float64) int {
	for i, s := range t.Spots {
		if math.Abs(s-spot) < 1e-9 {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy.
func (t *ValueTable) Clone() *ValueTable {
	c := NewValueTable(append([]float64(nil), t.Spots...), append([]time.Time(nil), t.Dates...))
	for i := range t.Values {
		copy(c.Values[i], t.Values[i])
	}
	return c
}
