package reconcile

import (
	"go.uber.org/zap"

	"waiver-reconciler/internal/models"
	"waiver-reconciler/internal/roster"
)

// Index best document per member id
type Index struct {
	entries map[string]models.Document
}

func newIndex() *Index {
	return &Index{entries: make(map[string]models.Document)}
}

// Get returns the preferred document for a member.
func (ix *Index) Get(memberID string) (models.Document, bool) {
	d, ok := ix.entries[memberID]
	return d, ok
}

// Len number of members with a document.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// offer stores doc for memberID if it is preferred over the current entry.
func (ix *Index) offer(memberID string, doc models.Document) {
	current, ok := ix.entries[memberID]
	if !ok || preferred(current, doc) {
		ix.entries[memberID] = doc
	}
}

// preferred reports whether candidate should replace current. A complete
// family document beats anything that is not one; otherwise an incomplete
// current entry gives way to any newer candidate. Remaining ties keep the
// first document seen.
func preferred(current, candidate models.Document) bool {
	if isCompleteFamily(candidate) && !isCompleteFamily(current) {
		return true
	}
	if isCompleteFamily(current) {
		return false
	}
	return !models.IsComplete(current)
}

func isCompleteFamily(d models.Document) bool {
	return d.IsFamily() && models.IsComplete(d)
}

// DocumentIndex per-variant indexes consulted by the coverage engine,
// member waivers first.
type DocumentIndex struct {
	Waivers      *Index
	Attestations *Index

	Unmatched int
	Ambiguous int
}

// BuildIndex resolves every signer on every document and keeps the best
// document per member. Attestations are indexed under their signer only.
func BuildIndex(r *roster.Roster, docs *models.DocumentSet, logger *zap.Logger) *DocumentIndex {
	ix := &DocumentIndex{Waivers: newIndex(), Attestations: newIndex()}

	for _, w := range docs.MemberWaivers {
		for _, name := range w.SignerNames() {
			if m := ix.resolve(r, name, resolveOpts(w)); m != nil {
				ix.Waivers.offer(m.ID, w)
			}
		}
	}
	for _, a := range docs.Attestations {
		if len(a.Adults) == 0 {
			continue
		}
		if m := ix.resolve(r, a.Signer().Name, resolveOpts(a)); m != nil {
			ix.Attestations.offer(m.ID, a)
		}
	}

	logger.Info("document index built",
		zap.Int("waiver_members", ix.Waivers.Len()),
		zap.Int("attestation_members", ix.Attestations.Len()),
		zap.Int("unmatched_names", ix.Unmatched),
		zap.Int("ambiguous_names", ix.Ambiguous))
	return ix
}

func (ix *DocumentIndex) resolve(r *roster.Roster, name string, opts roster.ResolveOptions) *models.Member {
	m, err := r.ResolveOne(name, opts)
	if err != nil {
		if isAmbiguous(err) {
			ix.Ambiguous++
		} else {
			ix.Unmatched++
		}
		return nil
	}
	return m
}

// resolveOpts attestations supply the signer email for disambiguation.
func resolveOpts(doc models.Document) roster.ResolveOptions {
	opts := roster.ResolveOptions{Reviewed: doc.IsReviewed(), DocFile: doc.FileName()}
	if a, ok := doc.(*models.Attestation); ok {
		opts.Email = a.Signer().Email
	}
	return opts
}
