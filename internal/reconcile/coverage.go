package reconcile

import (
	"go.uber.org/zap"

	"waiver-reconciler/internal/models"
)

// CoverageStats counters from one coverage pass
type CoverageStats struct {
	AdultsSigned     int
	FamiliesSigned   int
	SlotsUpgraded    int
	AdultsDowngraded int
}

// CoverageEngine marks required waiver records signed from the document
// index. It only mutates signature state.
type CoverageEngine struct {
	logger *zap.Logger
}

// NewCoverageEngine creates a coverage engine.
func NewCoverageEngine(logger *zap.Logger) *CoverageEngine {
	return &CoverageEngine{logger: logger}
}

// Apply updates every adult and family record. Unknown records are never
// signed off.
func (c *CoverageEngine) Apply(parts *models.Partitions, ix *DocumentIndex) CoverageStats {
	var stats CoverageStats

	for _, rec := range parts.Adults {
		c.coverAdult(rec, ix, &stats)
		if rec.Signed {
			stats.AdultsSigned++
		}
	}
	for _, rec := range parts.Families {
		c.coverFamily(rec, ix, &stats)
		if rec.Signed {
			stats.FamiliesSigned++
		}
	}
	for _, rec := range parts.Unknown {
		rec.Signed = false
	}

	c.logger.Info("coverage computed",
		zap.Int("adult_records", len(parts.Adults)),
		zap.Int("adults_signed", stats.AdultsSigned),
		zap.Int("family_records", len(parts.Families)),
		zap.Int("families_signed", stats.FamiliesSigned),
		zap.Int("slots_upgraded", stats.SlotsUpgraded))
	return stats
}

// coverAdult a member waiver decides the slot outright; failing that an
// attestation signed by the member is sufficient.
func (c *CoverageEngine) coverAdult(rec *models.RequiredWaiver, ix *DocumentIndex, stats *CoverageStats) {
	slot := &rec.Adults[0]
	if doc, ok := ix.Waivers.Get(slot.Member.ID); ok {
		// Unknown is only left behind when no signer resolved; the index
		// bound this one, so only an explicit No withholds the slot
		signed := doc.Completeness() != models.No
		if slot.Signed && !signed {
			stats.AdultsDowngraded++
			c.logger.Info("adult waiver on file is incomplete",
				zap.String("member_id", slot.Member.ID),
				zap.String("doc_file", doc.FileName()))
		}
		if signed && !slot.Signed {
			stats.SlotsUpgraded++
		}
		slot.Signed = signed
		slot.WebLink = doc.WebLink()
	} else if doc, ok := ix.Attestations.Get(slot.Member.ID); ok {
		if !slot.Signed {
			stats.SlotsUpgraded++
		}
		slot.Signed = true
		slot.WebLink = doc.WebLink()
	}
	rec.UpdateSigned()
}

// coverFamily each slot is upgraded independently; slots already signed
// keep their state and link.
func (c *CoverageEngine) coverFamily(rec *models.RequiredWaiver, ix *DocumentIndex, stats *CoverageStats) {
	for i := range rec.Adults {
		slot := &rec.Adults[i]
		if slot.Signed {
			continue
		}
		for _, index := range []*Index{ix.Waivers, ix.Attestations} {
			doc, ok := index.Get(slot.Member.ID)
			if !ok || !acceptsFamily(doc, rec) {
				continue
			}
			slot.Signed = true
			slot.WebLink = doc.WebLink()
			stats.SlotsUpgraded++
			break
		}
	}
	rec.UpdateSigned()
}

// acceptsFamily a document satisfies a family slot when it is a family
// document not marked incomplete that lists at least as many minors as the
// record.
func acceptsFamily(doc models.Document, rec *models.RequiredWaiver) bool {
	return doc.IsFamily() && doc.Completeness() != models.No && doc.MinorCount() >= len(rec.Minors)
}
