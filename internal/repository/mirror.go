package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"waiver-reconciler/internal/models"
	"waiver-reconciler/internal/reconcile"
)

// RunRecord one reconciliation run as mirrored to Postgres
type RunRecord struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    reconcile.Summary
}

// RegistryMirror copies each run's registries into Postgres for ad hoc
// querying. The CSV registries stay authoritative.
type RegistryMirror struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRegistryMirror creates a mirror
func NewRegistryMirror(db *sql.DB, logger *zap.Logger) *RegistryMirror {
	return &RegistryMirror{db: db, logger: logger}
}

const mirrorSchema = `
	CREATE TABLE IF NOT EXISTS waiver_runs (
		run_id                  TEXT PRIMARY KEY,
		started_at              TIMESTAMPTZ NOT NULL,
		finished_at             TIMESTAMPTZ NOT NULL,
		adults_signed           INTEGER NOT NULL,
		adults_unsigned         INTEGER NOT NULL,
		family_records_signed   INTEGER NOT NULL,
		family_records_unsigned INTEGER NOT NULL,
		unknown_accounts        INTEGER NOT NULL,
		covered_members         INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS required_waivers (
		run_id      TEXT NOT NULL REFERENCES waiver_runs (run_id),
		disposition TEXT NOT NULL,
		account_id  TEXT NOT NULL,
		member_id   TEXT NOT NULL,
		adults      TEXT NOT NULL,
		minors      TEXT NOT NULL,
		signed      BOOLEAN NOT NULL,
		has_key     BOOLEAN NOT NULL,
		key_enabled BOOLEAN NOT NULL,
		web_link    TEXT NOT NULL
	);
`

// EnsureSchema creates the mirror tables if they do not exist.
func (m *RegistryMirror) EnsureSchema(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, mirrorSchema); err != nil {
		return fmt.Errorf("failed to create mirror schema: %w", err)
	}
	return nil
}

// Mirror records run and replaces all required_waivers rows with parts,
// in one transaction.
func (m *RegistryMirror) Mirror(ctx context.Context, run RunRecord, parts *models.Partitions) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin mirror transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. Run row
	s := run.Summary
	_, err = tx.ExecContext(ctx, `
		INSERT INTO waiver_runs (
			run_id, started_at, finished_at,
			adults_signed, adults_unsigned,
			family_records_signed, family_records_unsigned,
			unknown_accounts, covered_members
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, run.RunID, run.StartedAt, run.FinishedAt,
		s.AdultsSigned, s.AdultsUnsigned,
		s.FamilyRecordsSigned, s.FamilyRecordsUnsigned,
		s.UnknownAccounts, s.CoveredMembers)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.RunID, err)
	}

	// 2. Replace the registry snapshot
	if _, err := tx.ExecContext(ctx, `DELETE FROM required_waivers`); err != nil {
		return fmt.Errorf("failed to clear required waivers: %w", err)
	}

	// 3. Insert every record
	groups := []struct {
		disposition string
		recs        []*models.RequiredWaiver
	}{
		{"adult", parts.Adults},
		{"family", parts.Families},
		{"unknown", parts.Unknown},
	}
	count := 0
	for _, g := range groups {
		for _, rec := range g.recs {
			if err := insertRecord(ctx, tx, run.RunID, g.disposition, rec); err != nil {
				return err
			}
			count++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mirror transaction: %w", err)
	}
	m.logger.Info("registries mirrored",
		zap.String("run_id", run.RunID),
		zap.Int("records", count))
	return nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, runID, disposition string, rec *models.RequiredWaiver) error {
	adults := make([]string, 0, len(rec.Adults))
	for _, s := range rec.Adults {
		if s.Member != nil {
			adults = append(adults, s.Member.FullName())
		}
	}
	minors := make([]string, 0, len(rec.Minors))
	for _, mi := range rec.Minors {
		minors = append(minors, mi.FullName())
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO required_waivers (
			run_id, disposition, account_id, member_id, adults, minors,
			signed, has_key, key_enabled, web_link
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, runID, disposition, rec.AccountID, rec.MemberID(),
		strings.Join(adults, "; "), strings.Join(minors, "; "),
		rec.Signed, rec.HasKey, rec.KeyEnabled, rec.WebLink())
	if err != nil {
		return fmt.Errorf("failed to insert %s record for account %s: %w", disposition, rec.AccountID, err)
	}
	return nil
}
