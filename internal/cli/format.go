package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/smq100/inish-optionanalysis-sub000/internal/leg"
	"github.com/smq100/inish-optionanalysis-sub000/internal/strategy"
	"github.com/smq100/inish-optionanalysis-sub000/pkg/utils"
)

// FormatPrice formats an option or underlying price.
func FormatPrice(price float64) string {
	return fmt.Sprintf("%.2f", price)
}

// FormatStrike drops trailing zeros from a strike, e.g. 102.5 or 100.
func FormatStrike(strike float64) string {
	s := fmt.Sprintf("%.2f", strike)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// FormatBreakevens joins breakeven prices.
func FormatBreakevens(levels []float64) string {
	if len(levels) == 0 {
		return "-"
	}
	parts := make([]string, len(levels))
	for i, b := range levels {
		parts[i] = FormatPrice(b)
	}
	return strings.Join(parts, " / ")
}

// FormatLegs describes a strategy's legs in one line, e.g.
// "+1 C105 -1 C110".
func FormatLegs(positions []strategy.Position) string {
	parts := make([]string, len(positions))
	for i, p := range positions {
		sign := "+"
		if p.Direction.Sign() < 0 {
			sign = "-"
		}
		product := strings.ToUpper(string(p.Contract.Product)[:1])
		parts[i] = fmt.Sprintf("%s%d %s%s", sign, p.Quantity, product, FormatStrike(p.Contract.Strike))
	}
	return strings.Join(parts, " ")
}

// FormatColumnDate labels a table column with month and day.
func FormatColumnDate(t time.Time) string {
	return t.Format("01-02")
}

// tableColumns picks at most limit column indexes, always keeping the
// first and the expiry column.
func tableColumns(table *leg.ValueTable, limit int) []int {
	n := table.Cols()
	if limit <= 0 || n <= limit {
		cols := make([]int, n)
		for i := range cols {
			cols[i] = i
		}
		return cols
	}
	if limit == 1 {
		return []int{n - 1}
	}
	cols := make([]int, 0, limit)
	step := float64(n-1) / float64(limit-1)
	for i := 0; i < limit; i++ {
		idx := int(float64(i)*step + 0.5)
		if len(cols) > 0 && cols[len(cols)-1] == idx {
			continue
		}
		cols = append(cols, idx)
	}
	cols[len(cols)-1] = n - 1
	return cols
}

// renderValueTable prints a value or profit table. Profit cells are colored
// by sign.
func renderValueTable(output *Output, table *leg.ValueTable, limit int, profit bool) {
	cols := tableColumns(table, limit)
	headers := make([]string, 0, len(cols)+1)
	headers = append(headers, "Spot")
	for _, c := range cols {
		headers = append(headers, FormatColumnDate(table.Dates[c]))
	}

	t := NewTable(output, headers...)
	for r, spot := range table.Spots {
		row := make([]string, 0, len(cols)+1)
		row = append(row, FormatPrice(spot))
		for _, c := range cols {
			v := table.At(r, c)
			switch {
			case !profit:
				row = append(row, FormatPrice(v))
			case v > 0:
				row = append(row, output.Green(FormatPrice(v)))
			case v < 0:
				row = append(row, output.Red(FormatPrice(v)))
			default:
				row = append(row, FormatPrice(v))
			}
		}
		t.AddRow(row...)
	}
	t.Render()
}

// displayAnalysis prints the summary of one strategy analysis.
func displayAnalysis(output *Output, a *strategy.Analysis) {
	output.Bold("%s %s %s", a.Ticker, a.Direction, a.Strategy)
	output.Printf("  Legs:        %s\n", FormatLegs(a.Positions))
	output.Printf("  %-12s %s\n", titleCase(string(a.CreditDebit))+":", utils.FormatCurrency(a.Amount))
	output.Printf("  Max gain:    %s\n", utils.FormatAmount(a.MaxGain))
	output.Printf("  Max loss:    %s\n", utils.FormatAmount(a.MaxLoss))
	output.Printf("  Breakeven:   %s\n", FormatBreakevens(a.Breakevens))
	output.Printf("  Sentiment:   %s\n", output.Sentiment(string(a.Sentiment)))
	output.Printf("  POP:         %s\n", utils.FormatPercent(a.Pop))
	output.Printf("  Score:       %.4f\n", a.Score)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
