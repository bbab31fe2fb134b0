// Package cost estimates research spend before and after a batch run.
// Per-token model pricing lives with the Anthropic client, which sees the
// actual usage; this package only carries the flat per-entity estimate used
// when token counts are not yet known.
package cost

// Rates holds pricing configuration for batch projections.
type Rates struct {
	Research ResearchRate `yaml:"research" mapstructure:"research"`
}

// ResearchRate holds the flat per-entity research estimate.
type ResearchRate struct {
	PerCall float64 `yaml:"per_call" mapstructure:"per_call"`
}

// Calculator computes projected costs for batch runs.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// PerCall returns the flat per-entity research estimate.
func (c *Calculator) PerCall() float64 {
	return c.rates.Research.PerCall
}

// Projection estimates the spend for a batch of n entities, assuming every
// entity misses the cache. Actual spend is lower whenever fresh profiles are
// reused within the cache window.
func (c *Calculator) Projection(n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n) * c.rates.Research.PerCall
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Research: ResearchRate{PerCall: 0.017},
	}
}
