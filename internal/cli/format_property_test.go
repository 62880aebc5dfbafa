package cli

import (
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/smq100/inish-optionanalysis-sub000/internal/leg"
	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
	"github.com/smq100/inish-optionanalysis-sub000/internal/strategy"
)

func tableWithCols(n int) *leg.ValueTable {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = now.AddDate(0, 0, i)
	}
	return leg.NewValueTable([]float64{101, 100, 99}, dates)
}

// For any table and column limit, the selected columns are strictly
// increasing, within the limit, and keep the first and expiry columns.
func TestTableColumnsKeepsEnds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("columns are ordered, bounded and keep both ends", prop.ForAll(
		func(n, limit int) bool {
			cols := tableColumns(tableWithCols(n), limit)
			if len(cols) == 0 || cols[len(cols)-1] != n-1 {
				return false
			}
			if limit > 0 && len(cols) > limit {
				return false
			}
			if (limit <= 0 || limit > 1) && cols[0] != 0 {
				return false
			}
			for i := 1; i < len(cols); i++ {
				if cols[i] <= cols[i-1] {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 120),
		gen.IntRange(0, 15),
	))

	properties.TestingRun(t)
}

// FormatStrike round-trips any cent-precision strike.
func TestFormatStrikeRoundTrips(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("parsed strike equals the input", prop.ForAll(
		func(cents int) bool {
			strike := float64(cents) / 100
			parsed, err := strconv.ParseFloat(FormatStrike(strike), 64)
			return err == nil && parsed == strike
		},
		gen.IntRange(1, 1000000),
	))

	properties.TestingRun(t)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "100", FormatStrike(100))
	assert.Equal(t, "102.5", FormatStrike(102.5))
	assert.Equal(t, "0.25", FormatStrike(0.25))

	assert.Equal(t, "-", FormatBreakevens(nil))
	assert.Equal(t, "104.61 / 95.39", FormatBreakevens([]float64{104.61, 95.39}))

	positions := []strategy.Position{
		{Contract: models.OptionContract{Product: models.ProductPut, Strike: 95}, Direction: models.DirectionLong, Quantity: 2},
		{Contract: models.OptionContract{Product: models.ProductPut, Strike: 100}, Direction: models.DirectionShort, Quantity: 2},
	}
	assert.Equal(t, "+2 P95 -2 P100", FormatLegs(positions))

	assert.Equal(t, []int{0, 1, 2}, tableColumns(tableWithCols(3), 8))
	assert.Equal(t, []int{2}, tableColumns(tableWithCols(3), 1))
	assert.Equal(t, "03-02", FormatColumnDate(now))
}
