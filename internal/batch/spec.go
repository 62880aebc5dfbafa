package batch

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/smq100/inish-optionanalysis-sub000/internal/errors"
	"github.com/smq100/inish-optionanalysis-sub000/internal/leg"
	"github.com/smq100/inish-optionanalysis-sub000/internal/market"
	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
	"github.com/smq100/inish-optionanalysis-sub000/internal/pricing"
	"github.com/smq100/inish-optionanalysis-sub000/internal/strategy"
	"github.com/smq100/inish-optionanalysis-sub000/pkg/utils"
)

// Spec describes one candidate strategy.
type Spec struct {
	Ticker     string      `yaml:"ticker" json:"ticker"`
	Type       string      `yaml:"type" json:"type"`
	Product    string      `yaml:"product,omitempty" json:"product,omitempty"`
	Strike     float64     `yaml:"strike" json:"strike"`
	Widths     []float64   `yaml:"widths,omitempty" json:"widths,omitempty"`
	Direction  string      `yaml:"direction" json:"direction"`
	Quantity   int         `yaml:"quantity,omitempty" json:"quantity,omitempty"`
	Expiry     string      `yaml:"expiry,omitempty" json:"expiry,omitempty"`
	ExpiryDays int         `yaml:"expiry_days,omitempty" json:"expiry_days,omitempty"`
	Method     string      `yaml:"method,omitempty" json:"method,omitempty"`
	Volatility *float64    `yaml:"volatility,omitempty" json:"volatility,omitempty"`
	Chain      bool        `yaml:"chain,omitempty" json:"chain,omitempty"`
	Quotes     []QuoteSpec `yaml:"quotes,omitempty" json:"quotes,omitempty"`
	Market     *MarketSpec `yaml:"market,omitempty" json:"market,omitempty"`
}

// QuoteSpec is a pre-loaded option chain row.
type QuoteSpec struct {
	ContractID        string  `yaml:"contract_id,omitempty" json:"contract_id,omitempty"`
	Product           string  `yaml:"product" json:"product"`
	Strike            float64 `yaml:"strike" json:"strike"`
	LastPrice         float64 `yaml:"last_price" json:"last_price"`
	ImpliedVolatility float64 `yaml:"implied_volatility" json:"implied_volatility"`
}

// MarketSpec supplies market inputs directly instead of loading them.
type MarketSpec struct {
	Spot       float64 `yaml:"spot" json:"spot"`
	Volatility float64 `yaml:"volatility" json:"volatility"`
	Rate       float64 `yaml:"rate" json:"rate"`
	Dividend   float64 `yaml:"dividend,omitempty" json:"dividend,omitempty"`
}

// File is the layout of a spec file.
type File struct {
	Specs []Spec `yaml:"specs"`
}

// LoadSpecs reads candidate specs from a YAML file.
func LoadSpecs(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewDataError("spec_file", "", path, apperrors.ErrDataNotFound)
		}
		return nil, apperrors.Wrapf(err, "reading %s", path)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, apperrors.NewValidationError("spec_file", path, err.Error(), apperrors.ErrConfigInvalid)
	}
	return f.Specs, nil
}

// Label names the spec in logs and failure lists.
func (s Spec) Label() string {
	return s.Ticker + " " + s.Type + " " + s.Direction
}

// ExpiryDate resolves the spec expiry against today.
func (s Spec) ExpiryDate(today time.Time) (time.Time, error) {
	if s.Expiry != "" {
		t, err := utils.ParseDate(s.Expiry)
		if err != nil {
			return time.Time{}, apperrors.NewValidationError("expiry", s.Expiry, "expected YYYY-MM-DD", nil)
		}
		return t, nil
	}
	if s.ExpiryDays > 0 {
		return models.Date(today).AddDate(0, 0, s.ExpiryDays), nil
	}
	return time.Time{}, apperrors.NewValidationError("expiry", "", "expiry or expiry_days is required", nil)
}

// ChainQuotes converts the pre-loaded quotes.
func (s Spec) ChainQuotes() ([]models.ChainQuote, error) {
	out := make([]models.ChainQuote, 0, len(s.Quotes))
	for _, q := range s.Quotes {
		product, err := models.ParseProduct(q.Product)
		if err != nil {
			return nil, apperrors.NewValidationError("quote.product", q.Product, err.Error(), apperrors.ErrUnknownEnum)
		}
		out = append(out, models.ChainQuote{
			ContractID:        q.ContractID,
			Product:           product,
			Strike:            q.Strike,
			LastPrice:         q.LastPrice,
			ImpliedVolatility: q.ImpliedVolatility,
		})
	}
	return out, nil
}

func (s Spec) width(i int) (float64, error) {
	if i >= len(s.Widths) {
		return 0, apperrors.NewValidationError("widths", s.Widths, "missing width", apperrors.ErrInvalidStrike)
	}
	return s.Widths[i], nil
}

// Build constructs the strategy a spec describes. Construction errors are
// returned; shape errors surface later from Analyze.
func Build(spec Spec, mkt *market.Context, cfg leg.Config) (strategy.Strategy, error) {
	kind, err := strategy.ParseKind(spec.Type)
	if err != nil {
		return nil, err
	}
	direction, err := models.ParseDirection(spec.Direction)
	if err != nil {
		return nil, apperrors.NewValidationError("direction", spec.Direction, err.Error(), apperrors.ErrUnknownEnum)
	}
	if spec.Method != "" {
		if cfg.Method, err = pricing.ParseMethod(spec.Method); err != nil {
			return nil, err
		}
	}
	quantity := spec.Quantity
	if quantity == 0 {
		quantity = 1
	}
	expiry, err := spec.ExpiryDate(mkt.Today())
	if err != nil {
		return nil, err
	}

	var s strategy.Strategy
	switch kind {
	case strategy.KindCall:
		s, err = strategy.NewCall(mkt, direction, spec.Strike, expiry, quantity, cfg)
	case strategy.KindPut:
		s, err = strategy.NewPut(mkt, direction, spec.Strike, expiry, quantity, cfg)
	case strategy.KindVertical:
		product, perr := models.ParseProduct(spec.Product)
		if perr != nil {
			return nil, apperrors.NewValidationError("product", spec.Product, perr.Error(), apperrors.ErrUnknownEnum)
		}
		width, werr := spec.width(0)
		if werr != nil {
			return nil, werr
		}
		s, err = strategy.NewVertical(mkt, product, direction, spec.Strike, width, expiry, quantity, cfg)
	case strategy.KindIronCondor:
		inner, werr := spec.width(0)
		if werr != nil {
			return nil, werr
		}
		wing, werr := spec.width(1)
		if werr != nil {
			return nil, werr
		}
		s, err = strategy.NewIronCondor(mkt, direction, spec.Strike, inner, wing, expiry, quantity, cfg)
	case strategy.KindIronButterfly:
		wing, werr := spec.width(0)
		if werr != nil {
			return nil, werr
		}
		s, err = strategy.NewIronButterfly(mkt, direction, spec.Strike, wing, expiry, quantity, cfg)
	}
	if err != nil {
		return nil, err
	}

	if spec.Volatility != nil {
		for _, l := range s.Legs() {
			if err := l.SetVolatility(spec.Volatility); err != nil {
				return nil, err
			}
		}
	}

	quotes, err := spec.ChainQuotes()
	if err != nil {
		return nil, err
	}
	MatchQuotes(s, quotes)

	return s, nil
}

// MatchQuotes applies chain rows to every leg with a matching contract.
// Returns the number of legs matched.
func MatchQuotes(s strategy.Strategy, quotes []models.ChainQuote) int {
	if len(quotes) == 0 {
		return 0
	}
	n := 0
	for _, l := range s.Legs() {
		if l.MatchChain(quotes) {
			n++
		}
	}
	return n
}
