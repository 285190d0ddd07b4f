package registration

import "time"

// ComputeTotal derives the registration fee from the current draft state.
//
// Per selected module the unit price is 0 when the module is waivable and the
// team is affiliated; otherwise the early-bird price strictly before the
// cutoff and the normal price from the cutoff instant onwards. Each module
// contributes unit price × participant count. Unknown module ids contribute
// nothing. Pure function; an empty selection totals 0, which callers must
// treat as "incomplete" rather than "free".
func ComputeTotal(d Draft, cat Catalog, cutoff, now time.Time) int {
	var total int
	for _, id := range d.Modules {
		mod, ok := cat.Get(id)
		if !ok {
			continue
		}
		var unit int
		switch {
		case mod.Waivable && d.Affiliated:
			unit = 0
		case now.Before(cutoff):
			unit = mod.EarlyPrice
		default:
			unit = mod.NormalPrice
		}
		total += unit * len(d.Participants)
	}
	return total
}
