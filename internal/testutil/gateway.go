package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhuluh247/MySchool/core"
)

// RunGatewaySuite checks that a core.Gateway driver honours the gateway contract.
// open must return an empty gateway.
func RunGatewaySuite(t *testing.T, open func(t *testing.T) core.Gateway) {
	ctx := context.Background()

	t.Run("add assigns ids and get returns the record", func(t *testing.T) {
		gw := open(t)
		rec, err := gw.Add(ctx, core.Students, core.Record{"name": "Ada", "class": "JSS1"})
		require.NoError(t, err)
		require.NotEmpty(t, rec.ID())

		got, err := gw.Get(ctx, core.Students, rec.ID())
		require.NoError(t, err)
		assert.Equal(t, "Ada", got["name"])
		assert.Equal(t, rec.ID(), got.ID())

		_, err = gw.Get(ctx, core.Students, "missing")
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("get all keeps insertion order", func(t *testing.T) {
		gw := open(t)
		var ids []string
		for _, n := range []string{"c", "a", "b", "e", "d"} {
			rec, err := gw.Add(ctx, core.Subjects, core.Record{"name": n})
			require.NoError(t, err)
			ids = append(ids, rec.ID())
		}
		recs, err := gw.GetAll(ctx, core.Subjects)
		require.NoError(t, err)
		got := make([]string, 0, len(recs))
		for _, r := range recs {
			got = append(got, r.ID())
		}
		assert.Equal(t, ids, got)

		empty, err := gw.GetAll(ctx, core.Documents)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("collections are isolated", func(t *testing.T) {
		gw := open(t)
		rec, err := gw.Add(ctx, core.Classes, core.Record{"name": "JSS1"})
		require.NoError(t, err)
		_, err = gw.Get(ctx, core.Subjects, rec.ID())
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("update replaces the record", func(t *testing.T) {
		gw := open(t)
		rec, err := gw.Add(ctx, core.Results, core.Record{"score": 40, "grade": "F", "position": 2})
		require.NoError(t, err)

		require.NoError(t, gw.Update(ctx, core.Results, rec.ID(), core.Record{"score": 95, "grade": "A+"}))
		got, err := gw.Get(ctx, core.Results, rec.ID())
		require.NoError(t, err)
		assert.Equal(t, core.Record{"id": rec.ID(), "score": float64(95), "grade": "A+"}, got)

		assert.True(t, core.IsNotFound(gw.Update(ctx, core.Results, "missing", core.Record{})))
	})

	t.Run("delete", func(t *testing.T) {
		gw := open(t)
		rec, err := gw.Add(ctx, core.Behavior, core.Record{"type": "positive"})
		require.NoError(t, err)
		require.NoError(t, gw.Delete(ctx, core.Behavior, rec.ID()))

		_, err = gw.Get(ctx, core.Behavior, rec.ID())
		assert.True(t, core.IsNotFound(err))
		assert.True(t, core.IsNotFound(gw.Delete(ctx, core.Behavior, rec.ID())))

		recs, err := gw.GetAll(ctx, core.Behavior)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("query", func(t *testing.T) {
		gw := open(t)
		for _, r := range []core.Record{
			{"name": "Ada", "class": "JSS1", "term": 1, "parent": "mum@test.cd"},
			{"name": "Bola", "class": "JSS2", "term": 2},
			{"name": "Chidi", "class": "JSS1", "term": 3, "parent": "Mum@test.cd"},
		} {
			_, err := gw.Add(ctx, core.Students, r)
			require.NoError(t, err)
		}

		names := func(f core.Filter) []string {
			recs, err := gw.Query(ctx, core.Students, f)
			require.NoError(t, err)
			out := make([]string, 0, len(recs))
			for _, r := range recs {
				out = append(out, r["name"].(string))
			}
			return out
		}

		assert.Equal(t, []string{"Ada", "Chidi"}, names(core.Where("class", core.OpEq, "JSS1")))
		assert.Equal(t, []string{"Bola"}, names(core.Where("class", core.OpNeq, "JSS1")))
		assert.Equal(t, []string{"Ada"}, names(core.Where("parent", core.OpEq, "mum@test.cd")))
		assert.Equal(t, []string{"Bola", "Chidi"}, names(core.Where("term", core.OpGt, 1)))
		assert.Equal(t, []string{"Ada", "Bola"}, names(core.Where("term", core.OpLte, 2)))
		assert.Equal(t, []string{"Ada"}, names(core.Where("term", core.OpLt, 2)))
		assert.Equal(t, []string{"Chidi"}, names(core.Where("term", core.OpGte, 3)))
		assert.Empty(t, names(core.Where("class", core.OpEq, "SS3")))

		_, err := gw.Query(ctx, core.Students, core.Where("class", "in", "JSS1"))
		assert.ErrorIs(t, err, core.ErrInvalidOperator)
	})
}
