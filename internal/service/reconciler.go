// Package service wires the roster, the reconciliation core and the
// persisted registries into the batch operations of the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"waiver-reconciler/internal/config"
	"waiver-reconciler/internal/dates"
	"waiver-reconciler/internal/intake"
	"waiver-reconciler/internal/lock"
	"waiver-reconciler/internal/models"
	"waiver-reconciler/internal/reconcile"
	"waiver-reconciler/internal/repository"
	"waiver-reconciler/internal/roster"
)

// ErrRosterUnavailable the accounts or members table could not be loaded
var ErrRosterUnavailable = errors.New("roster unavailable")

// WorkbookFile name of the reporting workbook in the reports directory
const WorkbookFile = "waiver_report.xlsx"

// DraftOverridesFile name of the parent override draft written by Parents
const DraftOverridesFile = "parents_draft.csv"

// LockFactory returns the run lock for a run, using token as its owner.
type LockFactory func(token string) lock.Locker

// RunResult totals of one reconciliation run
type RunResult struct {
	RunID    string
	Grouping reconcile.GroupStats
	Coverage reconcile.CoverageStats
	Summary  reconcile.Summary

	Carried   int
	Reviewed  int
	Unmatched int
	Ambiguous int
}

// Reconciler runs the reconciliation pipeline against the configured files.
type Reconciler struct {
	cfg     *config.Config
	store   *repository.Store
	lockFor LockFactory
	mirror  *repository.RegistryMirror // nil when the database is disabled
	parser  *dates.Parser
	logger  *zap.Logger

	now func() time.Time
}

// NewReconciler creates a reconciler. mirror may be nil.
func NewReconciler(cfg *config.Config, lockFor LockFactory, mirror *repository.RegistryMirror, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		cfg:     cfg,
		store:   repository.NewStore(cfg.Output.Backup, logger),
		lockFor: lockFor,
		mirror:  mirror,
		parser:  dates.NewParser(cfg.Policy.YearPivot),
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Reconciler) policy() reconcile.Policy {
	return reconcile.Policy{
		EligibleAccountTypes: s.cfg.Policy.EligibleAccountTypes,
		ParentMinGap:         s.cfg.Policy.ParentMinGap,
		ParentMaxGap:         s.cfg.Policy.ParentMaxGap,
		CoParentMaxSpread:    s.cfg.Policy.CoParentMaxSpread,
	}
}

func (s *Reconciler) documentPaths() repository.DocumentPaths {
	return repository.DocumentPaths{
		MemberWaivers: s.cfg.OutputPath(s.cfg.Output.MemberWaiversFile),
		Attestations:  s.cfg.OutputPath(s.cfg.Output.AttestationsFile),
		Guests:        s.cfg.OutputPath(s.cfg.Output.GuestWaiversFile),
	}
}

func (s *Reconciler) registryPaths() (adult, family, unknown string) {
	return s.cfg.OutputPath(s.cfg.Output.AdultRecordsFile),
		s.cfg.OutputPath(s.cfg.Output.FamilyRecordsFile),
		s.cfg.OutputPath(s.cfg.Output.UnknownFile)
}

// withLock runs fn while holding the run lock.
func (s *Reconciler) withLock(ctx context.Context, runID string, fn func() error) error {
	l := s.lockFor(runID)
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer func() {
		if err := l.Release(ctx); err != nil {
			s.logger.Warn("failed to release run lock", zap.String("run_id", runID), zap.Error(err))
		}
	}()
	return fn()
}

// loadRoster builds the roster with overrides applied and binds the key
// registry to it.
func (s *Reconciler) loadRoster() (*roster.Roster, *roster.Credentials, error) {
	accounts, err := s.store.LoadAccounts(s.cfg.Input.AccountsFile, s.cfg.Policy.ActiveAccountTypes)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRosterUnavailable, err)
	}
	members, err := s.store.LoadMembers(s.cfg.Input.MembersFile)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRosterUnavailable, err)
	}
	r := roster.New(accounts, members, s.now(), s.logger)

	overrides, err := s.store.LoadOverrides(s.cfg.Input.ParentsFile)
	if err != nil {
		return nil, nil, err
	}
	r.SetOverrides(overrides)

	entries, err := s.store.LoadKeys(s.cfg.Input.KeysFile)
	if err != nil {
		return nil, nil, err
	}
	return r, roster.BindCredentials(r, entries, s.logger), nil
}

// Run executes one full reconciliation pass and rewrites every registry
// and report.
func (s *Reconciler) Run(ctx context.Context) (*RunResult, error) {
	res := &RunResult{RunID: uuid.NewString()}
	started := s.now()
	logger := s.logger.With(zap.String("run_id", res.RunID))

	err := s.withLock(ctx, res.RunID, func() error {
		// 1. Roster, overrides and keys
		r, creds, err := s.loadRoster()
		if err != nil {
			return err
		}

		// 2. Required waivers
		p := s.policy()
		grouper := reconcile.NewGrouper(r, p, logger)
		parts := grouper.Group()
		res.Grouping = grouper.Stats()
		reconcile.ApplyCredentials(parts, creds)

		// 3. Carry signatures over from the previous run
		adultPath, familyPath, unknownPath := s.registryPaths()
		previous, err := s.store.LoadPartitions(adultPath, familyPath, unknownPath, r)
		if err != nil {
			return fmt.Errorf("failed to load previous registries: %w", err)
		}
		res.Carried = reconcile.CarryOver(parts, previous)

		// 4. Documents: review completeness, index, cover
		docPaths := s.documentPaths()
		docs, err := s.store.LoadDocuments(docPaths, s.parser)
		if err != nil {
			return err
		}
		res.Reviewed = reconcile.ReviewCompleteness(r, parts, docs, logger)
		ix := reconcile.BuildIndex(r, docs, logger)
		res.Unmatched, res.Ambiguous = ix.Unmatched, ix.Ambiguous
		res.Coverage = reconcile.NewCoverageEngine(logger).Apply(parts, ix)
		res.Summary = reconcile.Summarize(parts)

		// 5. Registries
		if err := s.store.SavePartitions(adultPath, familyPath, unknownPath, parts); err != nil {
			return fmt.Errorf("failed to save registries: %w", err)
		}
		if err := s.store.SaveDocuments(docPaths, docs); err != nil {
			return fmt.Errorf("failed to save documents: %w", err)
		}

		// 6. Reports
		if err := s.writeReports(r, p, parts, ix, creds, res.Summary); err != nil {
			return err
		}

		// 7. Mirror
		if s.mirror == nil {
			return nil
		}
		run := repository.RunRecord{RunID: res.RunID, StartedAt: started, FinishedAt: s.now(), Summary: res.Summary}
		return s.mirror.Mirror(ctx, run, parts)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("reconciliation run complete",
		zap.Int("adults_signed", res.Summary.AdultsSigned),
		zap.Int("adults_unsigned", res.Summary.AdultsUnsigned),
		zap.Int("family_records_signed", res.Summary.FamilyRecordsSigned),
		zap.Int("family_records_unsigned", res.Summary.FamilyRecordsUnsigned),
		zap.Int("unknown_accounts", res.Summary.UnknownAccounts),
		zap.Int("covered_members", res.Summary.CoveredMembers),
		zap.Int("carried_slots", res.Carried),
		zap.Int("reviewed_documents", res.Reviewed),
		zap.Int("unmatched_names", res.Unmatched),
		zap.Int("ambiguous_names", res.Ambiguous),
		zap.Duration("elapsed", s.now().Sub(started)))
	return res, nil
}

func (s *Reconciler) writeReports(r *roster.Roster, p reconcile.Policy, parts *models.Partitions,
	ix *reconcile.DocumentIndex, creds *roster.Credentials, summary reconcile.Summary) error {
	sheets := []repository.Sheet{
		repository.SummarySheet(summary),
		repository.MemberRecordsSheet(reconcile.MemberRecords(parts)),
		repository.SignerRequestsSheet(reconcile.SingleSignerRequests(r, parts), false),
		repository.SignerRequestsSheet(reconcile.FamilySignerRequests(r, parts), true),
		repository.AttestationRequestsSheet(reconcile.AttestationRequests(r, p, parts, ix, s.logger)),
		repository.CoveredMembersSheet(reconcile.CoveredMembers(parts)),
		repository.AccountStatusSheet(reconcile.AccountStatuses(r, p, parts, ix, creds)),
		repository.KeyStatusSheet(creds),
	}
	for _, sh := range sheets {
		if err := repository.WriteSheet(s.cfg.ReportPath(sh.File), sh); err != nil {
			return fmt.Errorf("failed to write report %s: %w", sh.File, err)
		}
	}
	if s.cfg.Output.Workbook {
		if err := repository.WriteWorkbook(s.cfg.ReportPath(WorkbookFile), sheets); err != nil {
			return err
		}
	}
	s.logger.Info("reports written", zap.Int("sheets", len(sheets)), zap.Bool("workbook", s.cfg.Output.Workbook))
	return nil
}

// Ingest parses the new-document records in inboxPath as kind and merges
// them into the persisted document table.
func (s *Reconciler) Ingest(ctx context.Context, kind intake.Kind, inboxPath string) (intake.MergeStats, error) {
	var stats intake.MergeStats
	err := s.withLock(ctx, uuid.NewString(), func() error {
		inbox, err := s.store.LoadInbox(inboxPath)
		if err != nil {
			return err
		}
		paths := s.documentPaths()
		docs, err := s.store.LoadDocuments(paths, s.parser)
		if err != nil {
			return err
		}
		stats, err = intake.NewMerger(s.parser, s.logger).Merge(kind, docs, inbox)
		if err != nil {
			return err
		}
		if stats.Added == 0 {
			return nil
		}
		return s.store.SaveDocuments(paths, docs)
	})
	if err != nil {
		return intake.MergeStats{}, err
	}
	return stats, nil
}

// Parents prints the family inference decision of every eligible account
// with minors and writes an override draft to the reports directory.
// Accounts that already have an override are listed as such.
func (s *Reconciler) Parents(ctx context.Context, w io.Writer) ([]models.ParentOverride, error) {
	r, _, err := s.loadRoster()
	if err != nil {
		return nil, err
	}
	p := s.policy()

	var drafts []models.ParentOverride
	for _, account := range r.EligibleAccounts(p.EligibleAccountTypes) {
		minors := r.MinorsOf(account.ID)
		if len(minors) == 0 {
			continue
		}
		if r.HasOverride(account.ID) {
			fmt.Fprintf(w, "%s\toverride\n", account.ID)
			continue
		}

		inf := reconcile.InferParents(r, account.ID, p)
		draft := models.ParentOverride{AccountID: account.ID, Minors: fullNames(minors)}
		if inf.Ambiguous() {
			fmt.Fprintf(w, "%s\tambiguous\tcandidates: %s\tminors: %s\n",
				account.ID, strings.Join(fullNames(inf.Candidates), ", "), strings.Join(draft.Minors, ", "))
		} else {
			draft.Parents = fullNames(inf.Parents)
			fmt.Fprintf(w, "%s\tparents: %s\tminors: %s\n",
				account.ID, strings.Join(draft.Parents, ", "), strings.Join(draft.Minors, ", "))
		}
		if len(draft.Minors) > models.MaxMinors {
			draft.Minors = draft.Minors[:models.MaxMinors]
		}
		drafts = append(drafts, draft)
	}

	path := s.cfg.ReportPath(DraftOverridesFile)
	if err := repository.NewStore(false, s.logger).SaveOverrides(path, drafts); err != nil {
		return nil, fmt.Errorf("failed to write override draft: %w", err)
	}
	s.logger.Info("override draft written", zap.String("path", path), zap.Int("accounts", len(drafts)))
	return drafts, nil
}

func fullNames(members []*models.Member) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.FullName())
	}
	return out
}
