package dedupe

import (
	"context"
	"sort"

	"github.com/quidome/archivetools/pkg/createdat"
	"github.com/quidome/archivetools/pkg/resolve"
)

// Candidate is a group member with its resolved date.
type Candidate struct {
	Item   *createdat.Item
	Result resolve.Result
}

// Selection is the outcome of keeper selection for one group.
type Selection struct {
	Keeper    Candidate
	Removable []Candidate
}

// SelectKeeper resolves every item of g under mode and picks the survivor.
//
// Newest keeps the latest resolved date; every other mode keeps the earliest.
// Resolved items always beat unresolved ones. Ties go to the item whose date
// came from the more trusted source, then to the smallest path.
func SelectKeeper(ctx context.Context, g Group, mode resolve.Mode, o createdat.Observer) Selection {
	cands := make([]Candidate, 0, len(g.Items))
	for _, it := range g.Items {
		cands = append(cands, Candidate{Item: it, Result: resolve.Resolve(it.Observations(ctx, o), mode)})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return preferred(cands[i], cands[j], mode == resolve.Newest)
	})
	return Selection{Keeper: cands[0], Removable: cands[1:]}
}

// SelectAnchor keeps anchor and marks every other member removable.
func SelectAnchor(ctx context.Context, g Group, anchor *createdat.Item, mode resolve.Mode, o createdat.Observer) Selection {
	var sel Selection
	for _, it := range g.Items {
		c := Candidate{Item: it, Result: resolve.Resolve(it.Observations(ctx, o), mode)}
		if it == anchor {
			sel.Keeper = c
			continue
		}
		sel.Removable = append(sel.Removable, c)
	}
	return sel
}

func preferred(a, b Candidate, newest bool) bool {
	if a.Result.Found != b.Result.Found {
		return a.Result.Found
	}
	if a.Result.Found {
		ta, tb := a.Result.CreatedAt, b.Result.CreatedAt
		if !ta.Equal(tb) {
			if newest {
				return ta.After(tb)
			}
			return ta.Before(tb)
		}
		if ra, rb := a.Result.Source.Rank(), b.Result.Source.Rank(); ra != rb {
			return ra < rb
		}
	}
	return a.Item.Path < b.Item.Path
}
