package cityname

import (
	"strings"

	"github.com/joanabot/joana-weather/internal/geo"
	"github.com/joanabot/joana-weather/internal/observability"
)

// Rule names the step that produced a normalized name.
type Rule string

const (
	RuleEmpty       Rule = "empty"
	RuleAlias       Rule = "alias"
	RuleAliasFold   Rule = "alias_fold"
	RuleProximity   Rule = "proximity"
	RuleCanonical   Rule = "canonical"
	RulePassthrough Rule = "passthrough"
)

// Normalizer corrects provider-returned city names to the product's
// canonical vocabulary. It is safe for concurrent use; its tables are
// never mutated after New.
type Normalizer struct {
	aliases   map[string]string
	ordered   []Alias
	cities    []KnownCity
	canonical map[string]struct{}
	radiusKm  float64
	bounds    geo.BoundingBox
	metrics   *observability.Metrics
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithMetrics counts which rule fired on every call.
func WithMetrics(m *observability.Metrics) Option {
	return func(n *Normalizer) {
		n.metrics = m
	}
}

// New builds a Normalizer from a validated table.
func New(t Table, opts ...Option) *Normalizer {
	n := &Normalizer{
		aliases:   make(map[string]string, len(t.Aliases)),
		ordered:   append([]Alias(nil), t.Aliases...),
		cities:    append([]KnownCity(nil), t.Cities...),
		canonical: make(map[string]struct{}, len(t.Canonical)),
		radiusKm:  t.ProximityRadiusKm,
		bounds:    t.Bounds,
	}
	for _, a := range t.Aliases {
		// First occurrence wins, matching the ordered scan.
		if _, ok := n.aliases[a.From]; !ok {
			n.aliases[a.From] = a.To
		}
	}
	for _, c := range t.Canonical {
		n.canonical[c] = struct{}{}
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Default builds a Normalizer from the embedded table.
func Default(opts ...Option) (*Normalizer, error) {
	t, err := DefaultTable()
	if err != nil {
		return nil, err
	}
	return New(t, opts...), nil
}

// Normalize returns the canonical name for raw, or raw unchanged when no
// rule applies. coords may be nil.
func (n *Normalizer) Normalize(raw string, coords *geo.Point) string {
	name, _ := n.Resolve(raw, coords)
	return name
}

// Resolve is Normalize that also reports which rule decided the result.
func (n *Normalizer) Resolve(raw string, coords *geo.Point) (string, Rule) {
	name, rule := n.resolve(raw, coords)
	if n.metrics != nil {
		n.metrics.NormalizerRules.WithLabelValues(string(rule)).Inc()
	}
	return name, rule
}

func (n *Normalizer) resolve(raw string, coords *geo.Point) (string, Rule) {
	if raw == "" {
		return raw, RuleEmpty
	}

	clean := strings.TrimSpace(raw)
	if canonical, ok := n.aliases[clean]; ok {
		return canonical, RuleAlias
	}

	for _, a := range n.ordered {
		if strings.EqualFold(a.From, clean) {
			return a.To, RuleAliasFold
		}
	}

	if coords != nil && n.InBounds(*coords) {
		if city, dist, ok := n.Nearest(*coords); ok && dist < n.radiusKm {
			return city.Name, RuleProximity
		}
	}

	if n.IsCanonical(clean) {
		return raw, RuleCanonical
	}
	return raw, RulePassthrough
}

// InBounds reports whether p lies in the table's country bounding box.
func (n *Normalizer) InBounds(p geo.Point) bool {
	return n.bounds.Contains(p)
}

// Nearest returns the known city closest to p. Ties keep the first city
// in table order. ok is false when the table has no cities.
func (n *Normalizer) Nearest(p geo.Point) (KnownCity, float64, bool) {
	var (
		best  KnownCity
		bestD float64
		found bool
	)
	for _, c := range n.cities {
		d := p.DistanceTo(c.Point())
		if !found || d < bestD {
			best, bestD, found = c, d, true
		}
	}
	return best, bestD, found
}

// IsCanonical reports whether name is in the canonical allow-list.
func (n *Normalizer) IsCanonical(name string) bool {
	_, ok := n.canonical[name]
	return ok
}

// Aliases returns a copy of the ordered alias list.
func (n *Normalizer) Aliases() []Alias {
	return append([]Alias(nil), n.ordered...)
}

// Canonical returns the canonical names in no particular order.
func (n *Normalizer) Canonical() []string {
	out := make([]string, 0, len(n.canonical))
	for name := range n.canonical {
		out = append(out, name)
	}
	return out
}

// RadiusKm is the proximity threshold in kilometres.
func (n *Normalizer) RadiusKm() float64 {
	return n.radiusKm
}
