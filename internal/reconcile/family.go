package reconcile

import (
	"waiver-reconciler/internal/models"
	"waiver-reconciler/internal/roster"
)

// Inference result of guessing the parents of an account's minors
type Inference struct {
	// Candidates adults that pass the age window
	Candidates []*models.Member
	// Parents committed parents, empty when ambiguous
	Parents []*models.Member
}

// Ambiguous reports whether no parents could be committed to.
func (i Inference) Ambiguous() bool {
	return len(i.Parents) == 0
}

// InferParents guesses which adults of an account are the parents of its
// minors from age gaps. Accounts without minors yield an empty result.
func InferParents(r *roster.Roster, accountID string, p Policy) Inference {
	minors := r.MinorsOf(accountID)
	if len(minors) == 0 {
		return Inference{}
	}

	// 1. age range of minors with known birthdates
	minMinor, maxMinor := models.AdultAge, 0
	for _, m := range minors {
		if age, ok := r.Age(m); ok {
			minMinor = min(minMinor, age)
			maxMinor = max(maxMinor, age)
		}
	}

	// 2. adults old enough for the oldest minor and young enough for the youngest
	var candidates []*models.Member
	for _, m := range r.MembersOf(accountID) {
		if m.Category != models.CategoryAdult || r.IsMinor(m) {
			continue
		}
		if age, ok := r.Age(m); ok {
			if age-maxMinor < p.ParentMinGap || age-minMinor > p.ParentMaxGap {
				continue
			}
		}
		candidates = append(candidates, m)
	}

	result := Inference{Candidates: candidates}

	// 3. commit only to one parent or a plausible pair
	switch len(candidates) {
	case 1:
		result.Parents = candidates
	case 2:
		a, okA := r.Age(candidates[0])
		b, okB := r.Age(candidates[1])
		if okA && okB && abs(a-b) > p.CoParentMaxSpread {
			break
		}
		result.Parents = candidates
	}
	return result
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
