package materials

import "github.com/shopspring/decimal"

// Match is the outcome of an upward search: the chosen item and how much
// larger it is than requested, summed over the profile.
type Match struct {
	Item     Item
	Profile  []Dim
	Oversize decimal.Decimal
}

// FindNearestUpward returns the smallest live catalog item of the same category
// and shape whose every profile dimension is >= the requested one. All profile
// dimensions are millimetres, so candidates are ranked by summed oversize, ties
// by item ID. ok is false when nothing is large enough; that is an ordinary
// outcome, not an error.
func FindNearestUpward(items []Item, categoryID int64, shape Shape, required []Dim) (Match, bool) {
	var best Match
	found := false

	for _, it := range items {
		if it.Deleted() || it.CategoryID != categoryID || it.Shape != shape {
			continue
		}
		profile, err := DecodeProfile(it.Shape, it.Dims)
		if err != nil || len(profile) != len(required) {
			continue
		}

		oversize := decimal.Zero
		fits := true
		for i, req := range required {
			diff := profile[i].Value.Sub(req.Value)
			if diff.IsNegative() {
				fits = false
				break
			}
			oversize = oversize.Add(diff)
		}
		if !fits {
			continue
		}

		if !found || oversize.LessThan(best.Oversize) || (oversize.Equal(best.Oversize) && it.ID < best.Item.ID) {
			best = Match{Item: it, Profile: profile, Oversize: oversize}
			found = true
		}
	}
	return best, found
}
