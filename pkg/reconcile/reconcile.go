// Package reconcile computes edit scripts that keep a displayed list of
// records in sync with successive store snapshots without rebuilding
// unaffected items.
package reconcile

import (
	"fmt"
	"sort"

	"github.com/aretw0/casebook/pkg/core"
)

// OpType represents the kind of edit.
type OpType string

const (
	OpRemove OpType = "REMOVE"
	OpMove   OpType = "MOVE"
	OpInsert OpType = "INSERT"
	OpUpdate OpType = "UPDATE"
)

// Op is a single edit. Ops are applied in order; every index refers to the
// list as it stands after the previous op.
//
//   - REMOVE deletes the item at Index.
//   - MOVE removes the item at From and re-inserts it at To.
//   - INSERT places Record at Index.
//   - UPDATE replaces the content of the item at Index (identified by ID).
type Op struct {
	Type   OpType
	Index  int
	From   int
	To     int
	ID     core.ID
	Record core.Record
}

func (o Op) String() string {
	switch o.Type {
	case OpRemove:
		return fmt.Sprintf("remove %d (%s)", o.Index, o.ID)
	case OpMove:
		return fmt.Sprintf("move %d -> %d (%s)", o.From, o.To, o.ID)
	case OpInsert:
		return fmt.Sprintf("insert %d (%s)", o.Index, o.ID)
	default:
		return fmt.Sprintf("update %d (%s)", o.Index, o.ID)
	}
}

// Diff returns an edit script transforming prev into next.
//
// Identity (ID) decides whether two items are the same logical entry;
// structural equality decides whether a retained entry gets an UPDATE.
// Removals and insertions are exact. Retained entries that keep their
// relative order (a longest increasing subsequence) never move; the others
// are relocated with MOVE.
func Diff(prev, next []core.Record) []Op {
	var ops []Op

	inNext := make(map[core.ID]int, len(next))
	for i, r := range next {
		inNext[r.ID] = i
	}
	inPrev := make(map[core.ID]core.Record, len(prev))
	for _, r := range prev {
		inPrev[r.ID] = r
	}

	// Removals, back to front so earlier indices stay valid.
	working := make([]core.ID, 0, len(prev))
	for _, r := range prev {
		if _, ok := inNext[r.ID]; ok {
			working = append(working, r.ID)
		}
	}
	for i := len(prev) - 1; i >= 0; i-- {
		if _, ok := inNext[prev[i].ID]; !ok {
			ops = append(ops, Op{Type: OpRemove, Index: i, ID: prev[i].ID})
		}
	}

	// Target order of the retained entries.
	target := make([]core.ID, 0, len(working))
	for _, r := range next {
		if _, ok := inPrev[r.ID]; ok {
			target = append(target, r.ID)
		}
	}

	positions := make([]int, len(working))
	for i, id := range working {
		positions[i] = inNext[id]
	}
	stable := make(map[core.ID]bool, len(working))
	for _, i := range longestIncreasing(positions) {
		stable[working[i]] = true
	}

	// Place every unstable entry right after its predecessor in target order.
	for j, id := range target {
		if stable[id] {
			continue
		}
		from := indexOf(working, id)
		working = append(working[:from], working[from+1:]...)
		to := 0
		if j > 0 {
			to = indexOf(working, target[j-1]) + 1
		}
		working = append(working[:to], append([]core.ID{id}, working[to:]...)...)
		if from != to {
			ops = append(ops, Op{Type: OpMove, From: from, To: to, ID: id})
		}
	}

	// Insertions in ascending order land on their final index.
	for i, r := range next {
		if _, ok := inPrev[r.ID]; !ok {
			ops = append(ops, Op{Type: OpInsert, Index: i, ID: r.ID, Record: r})
		}
	}

	for i, r := range next {
		if old, ok := inPrev[r.ID]; ok && !old.Equal(r) {
			ops = append(ops, Op{Type: OpUpdate, Index: i, ID: r.ID, Record: r})
		}
	}

	return ops
}

// Apply runs ops against a copy of prev and returns the result.
func Apply(prev []core.Record, ops []Op) ([]core.Record, error) {
	out := make([]core.Record, len(prev))
	copy(out, prev)

	for n, op := range ops {
		switch op.Type {
		case OpRemove:
			if op.Index < 0 || op.Index >= len(out) {
				return nil, fmt.Errorf("op %d: remove index %d out of range", n, op.Index)
			}
			out = append(out[:op.Index], out[op.Index+1:]...)
		case OpMove:
			if op.From < 0 || op.From >= len(out) || op.To < 0 || op.To >= len(out) {
				return nil, fmt.Errorf("op %d: move %d -> %d out of range", n, op.From, op.To)
			}
			r := out[op.From]
			out = append(out[:op.From], out[op.From+1:]...)
			out = append(out[:op.To], append([]core.Record{r}, out[op.To:]...)...)
		case OpInsert:
			if op.Index < 0 || op.Index > len(out) {
				return nil, fmt.Errorf("op %d: insert index %d out of range", n, op.Index)
			}
			out = append(out[:op.Index], append([]core.Record{op.Record}, out[op.Index:]...)...)
		case OpUpdate:
			if op.Index < 0 || op.Index >= len(out) || out[op.Index].ID != op.ID {
				return nil, fmt.Errorf("op %d: no entry %s at index %d", n, op.ID, op.Index)
			}
			out[op.Index] = op.Record
		default:
			return nil, fmt.Errorf("op %d: unknown type %q", n, op.Type)
		}
	}
	return out, nil
}

// NewestFirst returns a reversed copy of a snapshot for most-recent-first displays.
func NewestFirst(snap []core.Record) []core.Record {
	out := make([]core.Record, len(snap))
	for i, r := range snap {
		out[len(snap)-1-i] = r
	}
	return out
}

func indexOf(ids []core.ID, id core.ID) int {
	for i, cur := range ids {
		if cur == id {
			return i
		}
	}
	return -1
}

// longestIncreasing returns the indices of one longest strictly increasing
// subsequence of seq.
func longestIncreasing(seq []int) []int {
	if len(seq) == 0 {
		return nil
	}
	tails := make([]int, 0, len(seq)) // indices into seq
	parent := make([]int, len(seq))
	for i, v := range seq {
		k := sort.Search(len(tails), func(j int) bool { return seq[tails[j]] >= v })
		if k > 0 {
			parent[i] = tails[k-1]
		} else {
			parent[i] = -1
		}
		if k == len(tails) {
			tails = append(tails, i)
		} else {
			tails[k] = i
		}
	}

	out := make([]int, len(tails))
	for i, k := len(tails)-1, tails[len(tails)-1]; i >= 0; i-- {
		out[i] = k
		k = parent[k]
	}
	return out
}
