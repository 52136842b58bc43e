package briefing

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/sells-group/deal-briefing/internal/model"
)

// ApplyRankPolicy turns the model's entries into a dense ranking over the
// submitted deals. Entries for unknown or repeated deal ids are dropped,
// the rest are ordered by (model rank, model order) and renumbered 1..N,
// and history is capped. Every repair is described in the returned
// warnings.
func ApplyRankPolicy(entries []model.DealPriority, submitted []int64) ([]model.DealPriority, []string) {
	var warnings []string

	known := make(map[int64]bool, len(submitted))
	for _, id := range submitted {
		known[id] = true
	}

	seen := make(map[int64]bool, len(entries))
	kept := make([]model.DealPriority, 0, len(entries))
	for _, e := range entries {
		switch {
		case !known[e.DealID]:
			warnings = append(warnings, fmt.Sprintf("dropped ranking for unknown deal %d", e.DealID))
			continue
		case seen[e.DealID]:
			warnings = append(warnings, fmt.Sprintf("dropped duplicate ranking for deal %d", e.DealID))
			continue
		}
		seen[e.DealID] = true
		if len(e.History) > model.MaxHistoryEntries {
			e.History = e.History[:model.MaxHistoryEntries]
		}
		kept = append(kept, e)
	}

	SortByRank(kept)

	original := make([]int, len(kept))
	renumbered := false
	for i := range kept {
		original[i] = kept[i].Rank
		if kept[i].Rank != i+1 {
			renumbered = true
		}
		kept[i].Rank = i + 1
	}
	if renumbered {
		warnings = append(warnings, fmt.Sprintf("ranks renumbered to 1..%d (model returned %v)", len(kept), original))
	}

	for _, id := range submitted {
		if !seen[id] {
			warnings = append(warnings, fmt.Sprintf("deal %d was not ranked by the model", id))
		}
	}

	return kept, warnings
}

// SortByRank orders entries by rank ascending, keeping the relative order
// of equal ranks.
func SortByRank(entries []model.DealPriority) {
	slices.SortStableFunc(entries, func(a, b model.DealPriority) int {
		return cmp.Compare(a.Rank, b.Rank)
	})
}

// DuplicateRanks returns the ranks held by more than one entry.
func DuplicateRanks(entries []model.DealPriority) []int {
	counts := make(map[int]int, len(entries))
	for _, e := range entries {
		counts[e.Rank]++
	}
	var dups []int
	for r, n := range counts {
		if n > 1 {
			dups = append(dups, r)
		}
	}
	slices.Sort(dups)
	return dups
}
