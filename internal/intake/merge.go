package intake

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"waiver-reconciler/internal/dates"
	"waiver-reconciler/internal/models"
)

// Kind document template
type Kind string

const (
	KindMemberWaiver Kind = "member"
	KindAttestation  Kind = "attest"
	KindGuestWaiver  Kind = "guest"
)

// ErrUnknownKind unsupported document template
var ErrUnknownKind = errors.New("unknown document kind")

// ParseKind accepts member, attest or guest.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindMemberWaiver, KindAttestation, KindGuestWaiver:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// MergeStats result of one merge
type MergeStats struct {
	Added     int
	Skipped   int
	Truncated int
}

// Merger adds parsed new documents to a document set
type Merger struct {
	parser *dates.Parser
	logger *zap.Logger
}

// NewMerger creates a merger
func NewMerger(parser *dates.Parser, logger *zap.Logger) *Merger {
	return &Merger{parser: parser, logger: logger}
}

// Merge parses docs with the kind's template and appends them to set.
// Documents whose file name is already in the set (or earlier in the
// batch) are skipped.
func (m *Merger) Merge(kind Kind, set *models.DocumentSet, docs []NewDocument) (MergeStats, error) {
	var stats MergeStats

	known, err := knownFiles(kind, set)
	if err != nil {
		return stats, err
	}

	for _, doc := range docs {
		if known[doc.FileName] {
			m.logger.Debug("document already on file, skipping", zap.String("doc_file", doc.FileName))
			stats.Skipped++
			continue
		}
		known[doc.FileName] = true

		switch kind {
		case KindMemberWaiver:
			w := ParseMemberWaiver(doc, m.parser)
			if m.capWaiver(w) {
				stats.Truncated++
			}
			set.MemberWaivers = append(set.MemberWaivers, w)
		case KindAttestation:
			a := ParseAttestation(doc, m.parser)
			if m.capAttestation(a) {
				stats.Truncated++
			}
			set.Attestations = append(set.Attestations, a)
		case KindGuestWaiver:
			g := ParseGuestWaiver(doc, m.parser)
			if len(g.Minors) > models.MaxMinors {
				m.overflow(doc.FileName, "minors", len(g.Minors), models.MaxMinors)
				g.Minors = g.Minors[:models.MaxMinors]
				stats.Truncated++
			}
			set.Guests = append(set.Guests, g)
		}
		stats.Added++
	}

	m.logger.Info("merged new documents",
		zap.String("kind", string(kind)),
		zap.Int("added", stats.Added),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}

func knownFiles(kind Kind, set *models.DocumentSet) (map[string]bool, error) {
	known := make(map[string]bool)
	switch kind {
	case KindMemberWaiver:
		for _, w := range set.MemberWaivers {
			known[w.File] = true
		}
	case KindAttestation:
		for _, a := range set.Attestations {
			known[a.File] = true
		}
	case KindGuestWaiver:
		for _, g := range set.Guests {
			known[g.File] = true
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return known, nil
}

func (m *Merger) capWaiver(w *models.MemberWaiver) bool {
	truncated := false
	if len(w.Signatures) > models.MaxWaiverSigners {
		m.overflow(w.File, "signatures", len(w.Signatures), models.MaxWaiverSigners)
		w.Signatures = w.Signatures[:models.MaxWaiverSigners]
		truncated = true
	}
	if len(w.Minors) > models.MaxMinors {
		m.overflow(w.File, "minors", len(w.Minors), models.MaxMinors)
		w.Minors = w.Minors[:models.MaxMinors]
		truncated = true
	}
	return truncated
}

func (m *Merger) capAttestation(a *models.Attestation) bool {
	truncated := false
	if len(a.Adults) > models.MaxAttestationAdult {
		m.overflow(a.File, "adults", len(a.Adults), models.MaxAttestationAdult)
		a.Adults = a.Adults[:models.MaxAttestationAdult]
		truncated = true
	}
	if len(a.Minors) > models.MaxMinors {
		m.overflow(a.File, "minors", len(a.Minors), models.MaxMinors)
		a.Minors = a.Minors[:models.MaxMinors]
		truncated = true
	}
	return truncated
}

func (m *Merger) overflow(file, field string, got, limit int) {
	m.logger.Warn("document exceeds persisted capacity, extra entries dropped",
		zap.String("issue", string(models.IssueCapacityExceeded)),
		zap.String("doc_file", file),
		zap.String("field", field),
		zap.Int("count", got),
		zap.Int("limit", limit))
}
