package dao

// Parameter is a list filter criterion.
type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter creates a list criterion.
func NewParameter(name string, value interface{}) *Parameter {
	return &Parameter{Name: name, Value: value}
}

// StateFilter extracts the value of a "state" criterion, if present.
func StateFilter(parameters []*Parameter) (interface{}, bool) {
	for _, p := range parameters {
		if p != nil && p.Name == "state" {
			return p.Value, true
		}
	}
	return nil, false
}
