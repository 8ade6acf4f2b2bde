package dao

// Parameter is a named List filter. Value holds a string or a []string of
// accepted values.
type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter accepts any of values for name.
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}

// Values returns the accepted values; ok is false for an unsupported Value.
func (p *Parameter) Values() (values []string, ok bool) {
	switch actual := p.Value.(type) {
	case string:
		return []string{actual}, true
	case []string:
		return actual, true
	}
	return nil, false
}
