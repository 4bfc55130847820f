package usage

// PriceTable maps a provider id to its price in USD per 1K tokens.
// Providers missing from the table cost nothing.
type PriceTable map[string]float64

// DefaultPrices is a blended input/output price per provider.
var DefaultPrices = PriceTable{
	"anthropic": 0.003,
	"openai":    0.0025,
	"ollama":    0,
	"offline":   0,
}

// Price returns the per-1K price for id.
func (p PriceTable) Price(id string) float64 {
	if p == nil {
		return 0
	}
	return p[id]
}

// Merge returns a copy of p with overrides applied on top.
func (p PriceTable) Merge(overrides map[string]float64) PriceTable {
	out := make(PriceTable, len(p)+len(overrides))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
