package runner

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/viant/toolbox"
)

// TypeConstraint declares the contract of one template input variable, as
// reported by the runner's template/variables endpoint. Required and Secured
// arrive loosely typed (booleans or "true"/"false" style tokens).
type TypeConstraint struct {
	Name        string      `json:"name"`
	Type        string      `json:"type,omitempty"`
	Description string      `json:"description,omitempty"`
	Required    interface{} `json:"required,omitempty"`
	Secured     interface{} `json:"secured,omitempty"`
	Default     interface{} `json:"default,omitempty"`
}

// Param is one input variable in the runner's wire format. Secured is a
// "true"/"false" string, matching what the service expects.
type Param struct {
	Name    string      `json:"name"`
	Value   interface{} `json:"value"`
	Secured string      `json:"secured"`
}

// InvalidVariableError reports an input variable that violates its declared
// type constraint.
type InvalidVariableError struct {
	Name   string
	Reason string
}

func (e *InvalidVariableError) Error() string {
	return fmt.Sprintf("the variable %q %s", e.Name, e.Reason)
}

// truthy tokens accepted for boolean coercion
var trueTokens = map[string]bool{"T": true, "t": true, "true": true, "True": true, "TRUE": true}

// Truthy reports whether the value belongs to the fixed truthy-token set
// {T, t, true, True, TRUE, boolean true}. Everything else is false.
func Truthy(value interface{}) bool {
	switch actual := value.(type) {
	case bool:
		return actual
	case string:
		return trueTokens[actual]
	}
	return false
}

// NormalizeParameters converts raw input values into the runner's typed
// parameter list, enforcing each variable's declared type constraint.
// Variables without a constraint pass through unchanged, unsecured. Output
// order is deterministic (sorted by variable name). It fails with
// *InvalidVariableError naming the offending variable.
func NormalizeParameters(inputVars map[string]interface{}, constraints map[string]*TypeConstraint) ([]*Param, error) {
	names := make([]string, 0, len(inputVars))
	for name := range inputVars {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]*Param, 0, len(names))
	for _, name := range names {
		value := inputVars[name]
		secured := false

		if constraint := constraints[name]; constraint != nil {
			secured = Truthy(constraint.Secured)
			coerced, err := coerceValue(name, value, constraint)
			if err != nil {
				return nil, err
			}
			value = coerced
		}

		params = append(params, &Param{
			Name:    name,
			Value:   value,
			Secured: securedToken(secured),
		})
	}
	return params, nil
}

func coerceValue(name string, value interface{}, constraint *TypeConstraint) (interface{}, error) {
	switch constraint.Type {
	case "boolean":
		return Truthy(value), nil
	case "map":
		return coerceContainer(name, value, constraint, "map", toolbox.IsMap)
	case "list":
		return coerceContainer(name, value, constraint, "array", toolbox.IsSlice)
	default:
		// string/number: the runner performs numeric coercion itself
		if Truthy(constraint.Required) && isBlank(value) {
			return nil, &InvalidVariableError{Name: name, Reason: "cannot be empty"}
		}
		return value, nil
	}
}

func coerceContainer(name string, value interface{}, constraint *TypeConstraint, kind string, isKind func(interface{}) bool) (interface{}, error) {
	invalid := &InvalidVariableError{Name: name, Reason: fmt.Sprintf("does not have valid %s value", kind)}

	if text, ok := value.(string); ok {
		if strings.TrimSpace(text) == "" {
			value = nil
		} else {
			var parsed interface{}
			if err := json.Unmarshal([]byte(text), &parsed); err != nil {
				return nil, invalid
			}
			value = parsed
		}
	}
	if value == nil {
		if Truthy(constraint.Required) {
			return nil, invalid
		}
		return nil, nil
	}
	if !isKind(value) {
		return nil, invalid
	}
	return value, nil
}

func isBlank(value interface{}) bool {
	if value == nil {
		return true
	}
	return strings.TrimSpace(toolbox.AsString(value)) == ""
}

func securedToken(secured bool) string {
	if secured {
		return "true"
	}
	return "false"
}
