// Package generation produces strategy artifacts from a generative model:
// prompt construction, code generation with bounded retries, markdown fence
// cleanup, and validation before an artifact is ever returned.
package generation

import "fmt"

// StrategyType tags the named strategy archetypes. Each tag has one prompt
// template entry.
type StrategyType int

const (
	ImpressionFocused StrategyType = iota
	ConversionFocused
	Aggressive
	Conservative
	Adaptive
	Hybrid
)

// AllStrategyTypes lists every archetype in declaration order.
var AllStrategyTypes = []StrategyType{
	ImpressionFocused,
	ConversionFocused,
	Aggressive,
	Conservative,
	Adaptive,
	Hybrid,
}

var strategyTypeNames = map[StrategyType]string{
	ImpressionFocused: "Impression-Focused",
	ConversionFocused: "Conversion-Focused",
	Aggressive:        "Aggressive",
	Conservative:      "Conservative",
	Adaptive:          "Adaptive",
	Hybrid:            "Hybrid",
}

func (t StrategyType) String() string {
	if name, ok := strategyTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("StrategyType(%d)", int(t))
}

// ParseStrategyType resolves a display name back to its tag.
func ParseStrategyType(name string) (StrategyType, error) {
	for t, n := range strategyTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown strategy type %q", name)
}
