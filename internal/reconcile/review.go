package reconcile

import (
	"errors"

	"go.uber.org/zap"

	"waiver-reconciler/internal/models"
	"waiver-reconciler/internal/roster"
)

func isAmbiguous(err error) bool {
	return errors.Is(err, roster.ErrAmbiguousNameMatch)
}

// recordsByMember maps each adult slot member to its record. Adult and
// family partitions only; unknown records are not matched.
func recordsByMember(parts *models.Partitions) map[string]*models.RequiredWaiver {
	out := make(map[string]*models.RequiredWaiver)
	for _, rec := range parts.All() {
		for _, s := range rec.Adults {
			if _, ok := out[s.Member.ID]; !ok {
				out[s.Member.ID] = rec
			}
		}
	}
	return out
}

// ReviewCompleteness decides completeness for every document still marked
// Unknown, by comparing its minors against the record of its first signer
// that resolves. Documents with no resolvable signer stay Unknown.
// It returns the number of documents decided.
func ReviewCompleteness(r *roster.Roster, parts *models.Partitions, docs *models.DocumentSet, logger *zap.Logger) int {
	byMember := recordsByMember(parts)
	decided := 0

	review := func(doc models.Document) {
		if doc.Completeness() != models.Unknown {
			return
		}
		// BuildIndex reports unresolved names; stay quiet here
		opts := resolveOpts(doc)
		opts.Reviewed = true
		var signer *models.Member
		for _, name := range doc.SignerNames() {
			if m, err := r.ResolveOne(name, opts); err == nil {
				signer = m
				break
			}
		}
		if signer == nil {
			return
		}

		var complete bool
		if rec, ok := byMember[signer.ID]; ok {
			switch rec.Kind {
			case models.KindFamily:
				complete = doc.MinorCount() >= len(rec.Minors)
			default:
				complete = true
			}
		} else {
			complete = doc.MinorCount() >= len(r.MinorsOf(signer.AccountID))
		}
		doc.SetComplete(complete)
		decided++
		logger.Debug("document completeness decided",
			zap.String("doc_file", doc.FileName()),
			zap.String("member_id", signer.ID),
			zap.Bool("complete", complete))
	}

	for _, w := range docs.MemberWaivers {
		review(w)
	}
	for _, a := range docs.Attestations {
		review(a)
	}
	return decided
}
