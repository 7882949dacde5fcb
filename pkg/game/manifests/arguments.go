package manifests

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Argument is one fragment of a modern argument list: either a literal
// string, or values gated by rules.
type Argument struct {
	Rules  []Rule
	Values []string

	conditional bool
}

// Literal builds an unconditional fragment.
func Literal(value string) Argument {
	return Argument{Values: []string{value}}
}

// Conditional builds a rule-gated fragment.
func Conditional(rules []Rule, values ...string) Argument {
	return Argument{Rules: rules, Values: values, conditional: true}
}

func (a Argument) IsConditional() bool { return a.conditional }

type conditionalArgument struct {
	Rules []Rule          `json:"rules"`
	Value json.RawMessage `json:"value"`
}

func (a *Argument) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Literal(s)
		return nil
	}

	var c conditionalArgument
	if err := json.Unmarshal(b, &c); err != nil {
		return fmt.Errorf("argument fragment: %w", err)
	}
	values, err := stringOrStrings(c.Value)
	if err != nil {
		return fmt.Errorf("argument value: %w", err)
	}
	*a = Conditional(c.Rules, values...)
	return nil
}

func (a Argument) MarshalJSON() ([]byte, error) {
	if !a.conditional && len(a.Values) == 1 {
		return json.Marshal(a.Values[0])
	}
	var value any = a.Values
	if len(a.Values) == 1 {
		value = a.Values[0]
	}
	return json.Marshal(struct {
		Rules []Rule `json:"rules"`
		Value any    `json:"value"`
	}{a.Rules, value})
}

func stringOrStrings(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing value")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	var ss []string
	if err := json.Unmarshal(raw, &ss); err != nil {
		return nil, err
	}
	return ss, nil
}

/////////////////////////////////////////////////////////////////////
// ArgumentSet: modern lists or legacy template
/////////////////////////////////////////////////////////////////////

// ArgumentSet is implemented by ModernArguments and LegacyArguments only.
type ArgumentSet interface {
	isArgumentSet()
}

type ModernArguments struct {
	JVM  []Argument
	Game []Argument
}

type LegacyArguments struct {
	Template string
}

func (ModernArguments) isArgumentSet() {}
func (LegacyArguments) isArgumentSet() {}
