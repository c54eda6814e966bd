package batch

import "sort"

// groupIntents partitions intents into per-resource groups, preserving
// first-arrival order of resources and submission order inside each group.
// When every intent in a group carries a SequenceHint the group is
// stable-sorted by hint instead; a partially hinted group keeps submission
// order, since a partial hint ordering is ambiguous.
func groupIntents(intents []Intent) ([]Group, error) {
	byResource := make(map[string]int)
	groups := make([]Group, 0)

	for i, in := range intents {
		if in.ResourceID == "" {
			return nil, &CompileError{Index: i, Reason: "empty resource id"}
		}
		idx, ok := byResource[in.ResourceID]
		if !ok {
			idx = len(groups)
			byResource[in.ResourceID] = idx
			groups = append(groups, Group{ResourceID: in.ResourceID})
		}
		groups[idx].Intents = append(groups[idx].Intents, in)
	}

	for gi := range groups {
		applySequenceHints(&groups[gi])
	}
	return groups, nil
}

// applySequenceHints reorders a fully hinted group by hint value.
func applySequenceHints(g *Group) {
	for _, in := range g.Intents {
		if in.SequenceHint == nil {
			return
		}
	}
	sort.SliceStable(g.Intents, func(i, j int) bool {
		return *g.Intents[i].SequenceHint < *g.Intents[j].SequenceHint
	})
}

// packGroup splits a group's intents into batches of at most cap
// sub-operations, filling each batch before starting the next. Order is
// never disturbed across the cap boundary.
func packGroup(g Group, cap int) []Batch {
	if cap < 1 {
		cap = 1
	}
	batches := make([]Batch, 0, (len(g.Intents)+cap-1)/cap)
	for start := 0; start < len(g.Intents); start += cap {
		end := start + cap
		if end > len(g.Intents) {
			end = len(g.Intents)
		}
		batches = append(batches, Batch{
			ResourceID: g.ResourceID,
			Seq:        len(batches),
			Intents:    g.Intents[start:end],
		})
	}
	return batches
}
