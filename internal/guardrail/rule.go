package guardrail

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnrecognizedRule = errors.New("unrecognized guardrail rule")
	ErrAmbiguousRule    = errors.New("ambiguous guardrail rule")
)

// Kind identifies how a guardrail compares treatment against baseline.
type Kind int

const (
	MaxDropPP Kind = iota + 1
	MaxDropPct
	MaxIncreasePP
	MaxIncreaseMs
	MaxIncreasePct
)

// Unit is the scale a threshold is expressed in.
type Unit int

const (
	PercentagePoints Unit = iota + 1
	Percent
	Milliseconds
)

// Matched in order; no key is a prefix of another.
var kindKeys = []struct {
	key  string
	kind Kind
}{
	{"max_drop_pp", MaxDropPP},
	{"max_drop_pct", MaxDropPct},
	{"max_increase_pp", MaxIncreasePP},
	{"max_increase_ms", MaxIncreaseMs},
	{"max_increase_pct", MaxIncreasePct},
}

func (k Kind) String() string {
	for _, kk := range kindKeys {
		if kk.kind == k {
			return kk.key
		}
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Unit returns the unit thresholds of this kind are expressed in.
func (k Kind) Unit() Unit {
	switch k {
	case MaxDropPP, MaxIncreasePP:
		return PercentagePoints
	case MaxDropPct, MaxIncreasePct:
		return Percent
	case MaxIncreaseMs:
		return Milliseconds
	default:
		return 0
	}
}

func (u Unit) String() string {
	switch u {
	case PercentagePoints:
		return "pp"
	case Percent:
		return "%"
	case Milliseconds:
		return "ms"
	default:
		return "?"
	}
}

// Threshold is a tolerance tagged with its unit. Percentage-point
// thresholds are on the same scale as the metric values they are compared
// with; the evaluator never rescales.
type Threshold struct {
	Value float64
	Unit  Unit
}

// Rule is a single guardrail constraint.
type Rule struct {
	Kind      Kind
	Threshold Threshold
}

// NewRule builds a rule with the unit implied by kind.
func NewRule(kind Kind, value float64) Rule {
	return Rule{Kind: kind, Threshold: Threshold{Value: value, Unit: kind.Unit()}}
}

// ParseRule resolves a key/threshold mapping such as {"max_drop_pp": 0.3}.
// Exactly one key may match a known rule prefix.
func ParseRule(m map[string]float64) (Rule, error) {
	if len(m) == 0 {
		return Rule{}, fmt.Errorf("%w: rule must be a non-empty mapping", ErrUnrecognizedRule)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		matched []string
		rule    Rule
	)
	for _, key := range keys {
		kind, ok := kindForKey(key)
		if !ok {
			continue
		}
		matched = append(matched, key)
		rule = NewRule(kind, m[key])
	}

	switch len(matched) {
	case 0:
		return Rule{}, fmt.Errorf("%w: no recognized key in %v", ErrUnrecognizedRule, keys)
	case 1:
		return rule, nil
	default:
		return Rule{}, fmt.Errorf("%w: keys %s all name a rule", ErrAmbiguousRule, strings.Join(matched, ", "))
	}
}

func kindForKey(key string) (Kind, bool) {
	for _, kk := range kindKeys {
		if strings.HasPrefix(key, kk.key) {
			return kk.kind, true
		}
	}
	return 0, false
}

// UnmarshalYAML decodes a rule written as a one-entry mapping.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	var m map[string]float64
	if err := node.Decode(&m); err != nil {
		return fmt.Errorf("failed to decode guardrail rule: %w", err)
	}
	parsed, err := ParseRule(m)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalYAML writes the rule back in its mapping form.
func (r Rule) MarshalYAML() (interface{}, error) {
	return map[string]float64{r.Kind.String(): r.Threshold.Value}, nil
}
