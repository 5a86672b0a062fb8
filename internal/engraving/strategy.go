package engraving

import "fmt"

// Strategy names form a closed enumeration selected via configuration.
const (
	StrategyCleanSimple = "clean-simple"
	StrategyFeature     = "feature"
	StrategyUniform     = "uniform"
)

// Strategy bundles the filters a rendering method offers. When AliasStyles is
// set the strategy renders once and publishes that single result under every
// advertised style name; this mirrors methods whose styles are deliberately
// identical rather than a bug.
type Strategy struct {
	Name        string
	Filters     []StyleFilter
	AliasStyles bool
}

// StyleNames returns the styles the strategy advertises, in rendering order.
func (s *Strategy) StyleNames() []string {
	names := make([]string, len(s.Filters))
	for i, f := range s.Filters {
		names[i] = f.Name()
	}
	return names
}

// NewStrategy resolves a strategy by name from the closed enumeration.
func NewStrategy(name string) (*Strategy, error) {
	switch name {
	case StrategyCleanSimple, "":
		return &Strategy{
			Name: StrategyCleanSimple,
			Filters: []StyleFilter{
				NewStyleFilter(StyleStandard, StandardParams()),
				NewStyleFilter(StyleDetailed, DetailedParams()),
				NewStyleFilter(StyleBold, BoldParams()),
			},
		}, nil
	case StrategyFeature:
		return &Strategy{
			Name: StrategyFeature,
			Filters: []StyleFilter{
				NewStyleFilter(StyleStandard, featureParams(StyleStandard)),
				NewStyleFilter(StyleDetailed, featureParams(StyleDetailed)),
				NewStyleFilter(StyleBold, featureParams(StyleBold)),
			},
		}, nil
	case StrategyUniform:
		return &Strategy{
			Name: StrategyUniform,
			Filters: []StyleFilter{
				NewAdaptiveFilter(StyleStandard, DefaultAdaptiveParams()),
				NewAdaptiveFilter(StyleDetailed, DefaultAdaptiveParams()),
				NewAdaptiveFilter(StyleBold, DefaultAdaptiveParams()),
			},
			AliasStyles: true,
		}, nil
	default:
		return nil, fmt.Errorf("unknown engraving strategy: %q", name)
	}
}
