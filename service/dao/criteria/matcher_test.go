package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/viant/lodstream/service/dao"
)

func TestMatches(t *testing.T) {
	testCases := []struct {
		description string
		actual      string
		parameters  []*dao.Parameter
		expect      bool
	}{
		{description: "no parameters", actual: "complete", expect: true},
		{description: "other name", actual: "complete", parameters: []*dao.Parameter{dao.NewParameter("Format", "pop")}, expect: true},
		{description: "single match", actual: "complete", parameters: []*dao.Parameter{dao.NewParameter("State", "complete")}, expect: true},
		{description: "single mismatch", actual: "idle", parameters: []*dao.Parameter{dao.NewParameter("State", "complete")}},
		{description: "list match", actual: "idle", parameters: []*dao.Parameter{dao.NewParameter("State", "complete", "idle")}, expect: true},
		{description: "list mismatch", actual: "disposed", parameters: []*dao.Parameter{dao.NewParameter("State", "complete", "idle")}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			assert.Equal(t, testCase.expect, Matches("State", testCase.actual, testCase.parameters))
		})
	}
}

func TestParameter_Values(t *testing.T) {
	values, ok := dao.NewParameter("State", "idle").Values()
	assert.True(t, ok)
	assert.Equal(t, []string{"idle"}, values)
	_, ok = (&dao.Parameter{Name: "Lod", Value: 3}).Values()
	assert.False(t, ok)
	assert.True(t, Matches("Lod", "1", []*dao.Parameter{{Name: "Lod", Value: 3}}), "unsupported values are ignored")
}
