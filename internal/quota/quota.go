// Package quota distributes a per-user daily item budget across creators.
package quota

import "creatorpulse/internal/model"

// Allocate grants each active creator a share of budget.
//
// When the sum of requested counts fits within budget, every creator gets
// exactly what it asked for. Otherwise each grant is
// floor(requested*budget/sum) with a minimum of 1, and the allocation is
// marked scaled. The minimum is applied after the proportional step and
// does not re-normalize the other shares, so the granted total may exceed
// budget when many creators need the top-up; fairness wins over strict
// budget adherence here.
//
// Inactive creators receive no allocation. An empty active set yields an
// empty slice, not an error.
func Allocate(creators []model.Creator, budget int) []model.Allocation {
	active := make([]model.Creator, 0, len(creators))
	sum := 0
	for _, c := range creators {
		if !c.Active {
			continue
		}
		active = append(active, c)
		sum += c.Requested
	}
	out := make([]model.Allocation, 0, len(active))
	if len(active) == 0 {
		return out
	}
	scaled := sum > budget
	for _, c := range active {
		granted := c.Requested
		if scaled {
			granted = c.Requested * budget / sum
			if granted < 1 {
				granted = 1
			}
		}
		out = append(out, model.Allocation{Creator: c, Requested: c.Requested, Granted: granted, Scaled: scaled})
	}
	return out
}
