package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/lodstream/service/dao"
	"github.com/viant/lodstream/service/dao/criteria"
)

type record struct {
	ID    string
	State string
}

func newStore() *MemoryStore[string, record] {
	return NewMemoryStore[string, record](
		func(r *record) string { return r.ID },
		WithMatcher[string, record](func(r *record, parameters []*dao.Parameter) bool {
			return criteria.Matches("State", r.State, parameters)
		}),
		WithOrder[string, record](func(a, b *record) bool { return a.ID < b.ID }),
	)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	require.NoError(t, s.Save(ctx, &record{ID: "b", State: "idle"}))
	require.NoError(t, s.Save(ctx, &record{ID: "a", State: "complete"}))
	require.NoError(t, s.Save(ctx, &record{ID: "c", State: "complete"}))
	assert.ErrorIs(t, s.Save(ctx, nil), dao.ErrNilEntity)
	assert.ErrorIs(t, s.Save(ctx, &record{State: "idle"}), dao.ErrInvalidID)

	loaded, err := s.Load(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "idle", loaded.State)
	_, err = s.Load(ctx, "missing")
	assert.ErrorIs(t, err, dao.ErrNotFound)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []*record{{ID: "a", State: "complete"}, {ID: "b", State: "idle"}, {ID: "c", State: "complete"}}, all)

	complete, err := s.List(ctx, dao.NewParameter("State", "complete"))
	require.NoError(t, err)
	assert.Len(t, complete, 2)

	require.NoError(t, s.Delete(ctx, "a"))
	assert.Equal(t, 2, s.Len())
}
