package reconcile_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/casebook/pkg/core"
	"github.com/aretw0/casebook/pkg/reconcile"
)

func records(n int) []core.Record {
	out := make([]core.Record, n)
	for i := range out {
		out[i] = core.NewRecord()
		out[i].Title = string(rune('a' + i%26))
	}
	return out
}

func roundTrip(t *testing.T, prev, next []core.Record) []reconcile.Op {
	t.Helper()
	ops := reconcile.Diff(prev, next)
	got, err := reconcile.Apply(prev, ops)
	require.NoError(t, err)
	assert.True(t, core.Snapshot(next).Equal(got), "apply(diff) != next; ops=%v", ops)
	return ops
}

func count(ops []reconcile.Op, typ reconcile.OpType) int {
	n := 0
	for _, op := range ops {
		if op.Type == typ {
			n++
		}
	}
	return n
}

func TestDiff_EmptyToNonEmpty(t *testing.T) {
	next := records(4)
	ops := roundTrip(t, nil, next)
	assert.Equal(t, 4, count(ops, reconcile.OpInsert))
	assert.Len(t, ops, 4)
}

func TestDiff_FullRemoval(t *testing.T) {
	prev := records(5)
	ops := roundTrip(t, prev, nil)
	assert.Equal(t, 5, count(ops, reconcile.OpRemove))
	assert.Len(t, ops, 5)
}

func TestDiff_NoChange(t *testing.T) {
	prev := records(3)
	assert.Empty(t, roundTrip(t, prev, prev))
}

func TestDiff_ContentChangeIsUpdate(t *testing.T) {
	prev := records(3)
	next := append([]core.Record(nil), prev...)
	next[1].Solved = true

	ops := roundTrip(t, prev, next)
	require.Len(t, ops, 1)
	assert.Equal(t, reconcile.OpUpdate, ops[0].Type)
	assert.Equal(t, prev[1].ID, ops[0].ID)
}

func TestDiff_ReorderOnly(t *testing.T) {
	prev := records(6)
	next := reconcile.NewestFirst(prev)

	ops := roundTrip(t, prev, next)
	assert.Zero(t, count(ops, reconcile.OpInsert))
	assert.Zero(t, count(ops, reconcile.OpRemove))
	assert.Zero(t, count(ops, reconcile.OpUpdate))
}

func TestDiff_SingleRelocationIsOneMove(t *testing.T) {
	prev := records(5)
	next := append(append([]core.Record(nil), prev[1:]...), prev[0])

	ops := roundTrip(t, prev, next)
	require.Len(t, ops, 1)
	assert.Equal(t, reconcile.OpMove, ops[0].Type)
	assert.Equal(t, prev[0].ID, ops[0].ID)
}

func TestDiff_Randomized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pool := records(30)

	for i := 0; i < 500; i++ {
		prev := sample(rng, pool)
		next := sample(rng, pool)
		for j := range next {
			if rng.Intn(4) == 0 {
				next[j].Solved = !next[j].Solved
			}
		}

		ops := roundTrip(t, prev, next)

		// Exact removals and insertions.
		kept := make(map[core.ID]bool)
		for _, r := range next {
			kept[r.ID] = true
		}
		removed := 0
		for _, r := range prev {
			if !kept[r.ID] {
				removed++
			}
		}
		assert.Equal(t, removed, count(ops, reconcile.OpRemove))
		assert.Equal(t, len(next)-(len(prev)-removed), count(ops, reconcile.OpInsert))
	}
}

func TestApply_RejectsBadScript(t *testing.T) {
	prev := records(2)
	_, err := reconcile.Apply(prev, []reconcile.Op{{Type: reconcile.OpRemove, Index: 5}})
	assert.Error(t, err)

	_, err = reconcile.Apply(prev, []reconcile.Op{{Type: reconcile.OpUpdate, Index: 0, ID: prev[1].ID}})
	assert.Error(t, err)
}

// sample returns a random ordered subset of pool.
func sample(rng *rand.Rand, pool []core.Record) []core.Record {
	perm := rng.Perm(len(pool))
	n := rng.Intn(len(pool) + 1)
	out := make([]core.Record, 0, n)
	for _, i := range perm[:n] {
		out = append(out, pool[i])
	}
	return out
}
