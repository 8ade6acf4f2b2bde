package criteria

import (
	"slices"

	"github.com/viant/lodstream/service/dao"
)

// Matches reports whether actual is accepted by every parameter called name.
// Parameters with other names, or with values that are not strings, are
// ignored.
func Matches(name, actual string, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil || parameter.Name != name {
			continue
		}
		values, ok := parameter.Values()
		if ok && !slices.Contains(values, actual) {
			return false
		}
	}
	return true
}
