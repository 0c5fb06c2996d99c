package reconcile

import "waiver-reconciler/internal/models"

type slotKey struct {
	kind      models.RecordKind
	accountID string
	memberID  string
}

type priorSlot struct {
	slot   models.SignerSlot
	minors map[string]bool
}

// CarryOver copies signature state from the previous run's records into
// freshly grouped ones. A slot inherits when the same adult held a slot in
// the same kind of record for the same account, and that record already
// listed every minor of the fresh one. It returns the number of slots
// inherited as signed.
func CarryOver(fresh, previous *models.Partitions) int {
	if previous == nil {
		return 0
	}

	prior := make(map[slotKey]priorSlot)
	for _, rec := range previous.All() {
		for _, s := range rec.Adults {
			if s.Member == nil {
				continue
			}
			k := slotKey{rec.Kind, rec.AccountID, s.Member.ID}
			if _, ok := prior[k]; !ok {
				prior[k] = priorSlot{slot: s, minors: memberSet(rec.Minors)}
			}
		}
	}

	inherited := 0
	for _, rec := range fresh.All() {
		for i := range rec.Adults {
			slot := &rec.Adults[i]
			p, ok := prior[slotKey{rec.Kind, rec.AccountID, slot.Member.ID}]
			if !ok || !coversMinors(p.minors, rec.Minors) {
				continue
			}
			old := p.slot
			slot.Signed = old.Signed
			slot.WebLink = old.WebLink
			if old.Signed {
				inherited++
			}
		}
		rec.UpdateSigned()
	}
	return inherited
}

// coversMinors a new minor in the family voids the old signature
func coversMinors(prior map[string]bool, minors []*models.Member) bool {
	for _, m := range minors {
		if !prior[m.ID] {
			return false
		}
	}
	return true
}
