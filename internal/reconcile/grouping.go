package reconcile

import (
	"go.uber.org/zap"

	"waiver-reconciler/internal/models"
	"waiver-reconciler/internal/roster"
)

// GroupStats counters from one grouping pass
type GroupStats struct {
	NoMinorAccounts     int
	KnownParentAccounts int
	OverrideAccounts    int
	UnknownAccounts     int
	InconsistentCounts  int
}

// Grouper partitions eligible accounts into required waiver records.
type Grouper struct {
	roster *roster.Roster
	policy Policy
	logger *zap.Logger

	stats GroupStats
}

// NewGrouper creates a grouper.
func NewGrouper(r *roster.Roster, p Policy, logger *zap.Logger) *Grouper {
	return &Grouper{roster: r, policy: p, logger: logger}
}

// Stats counters of the last Group call.
func (g *Grouper) Stats() GroupStats {
	return g.stats
}

// Group builds the adult, family and unknown partitions. Output depends only
// on the roster and override contents.
func (g *Grouper) Group() *models.Partitions {
	g.stats = GroupStats{}
	parts := &models.Partitions{}

	for _, account := range g.roster.EligibleAccounts(g.policy.EligibleAccountTypes) {
		g.groupAccount(account, parts)
	}

	g.logger.Info("required waivers grouped",
		zap.Int("adult_records", len(parts.Adults)),
		zap.Int("family_records", len(parts.Families)),
		zap.Int("unknown_records", len(parts.Unknown)),
		zap.Int("inconsistent_overrides", g.stats.InconsistentCounts))
	return parts
}

func (g *Grouper) groupAccount(account *models.Account, parts *models.Partitions) {
	r := g.roster
	minors := r.MinorsOf(account.ID)

	var (
		families []*models.RequiredWaiver
		parents  map[string]bool
	)
	if len(minors) == 0 {
		g.stats.NoMinorAccounts++
	} else if r.HasOverride(account.ID) {
		families, parents = g.overrideFamilies(account, minors)
		if len(families) > 0 {
			g.stats.OverrideAccounts++
		}
	}

	// no override, or none of its entries could be used
	if len(minors) > 0 && len(families) == 0 {
		inf := InferParents(r, account.ID, g.policy)
		parents = memberSet(inf.Candidates)
		if inf.Ambiguous() {
			g.stats.UnknownAccounts++
			g.logger.Info("parents could not be determined",
				zap.String("issue", string(models.IssueAmbiguousParentage)),
				zap.String("account_id", account.ID),
				zap.Int("candidates", len(inf.Candidates)))
			if len(inf.Candidates) > models.MaxFamilyAdults {
				g.logger.Warn("unknown family has more adults than the record can hold",
					zap.String("issue", string(models.IssueCapacityExceeded)),
					zap.String("account_id", account.ID),
					zap.Int("adults", len(inf.Candidates)))
			}
			parts.Unknown = append(parts.Unknown, models.NewFamilyRecord(account.ID, inf.Candidates, minors))
		} else {
			g.stats.KnownParentAccounts++
			families = append(families, models.NewFamilyRecord(account.ID, inf.Parents, minors))
		}
	}

	for _, m := range r.MembersOf(account.ID) {
		if r.IsMinor(m) || parents[m.ID] {
			continue
		}
		parts.Adults = append(parts.Adults, models.NewAdultRecord(m))
	}
	for _, f := range families {
		g.checkCapacity(f)
	}
	parts.Families = append(parts.Families, families...)
}

// overrideFamilies builds one family record per override entry, resolving
// names within the account.
func (g *Grouper) overrideFamilies(account *models.Account, minors []*models.Member) ([]*models.RequiredWaiver, map[string]bool) {
	r := g.roster
	parents := make(map[string]bool)
	var families []*models.RequiredWaiver

	declaredMinors := 0
	for _, o := range r.Overrides(account.ID) {
		adults := g.resolveOverrideNames(account.ID, o.Parents)
		kids := g.resolveOverrideNames(account.ID, o.Minors)
		declaredMinors += len(o.Minors)

		if len(adults) == 0 {
			g.logger.Warn("override entry has no resolvable parent",
				zap.String("issue", string(models.IssueNoAccountMatch)),
				zap.String("account_id", account.ID),
				zap.Strings("parents", o.Parents))
			continue
		}
		for _, a := range adults {
			parents[a.ID] = true
		}
		families = append(families, models.NewFamilyRecord(account.ID, adults, kids))
	}

	if declaredMinors != len(minors) {
		g.stats.InconsistentCounts++
		g.logger.Warn("override minors disagree with roster",
			zap.String("issue", string(models.IssueInconsistentParentCount)),
			zap.String("account_id", account.ID),
			zap.Int("override_minors", declaredMinors),
			zap.Int("roster_minors", len(minors)))
	}
	return families, parents
}

func (g *Grouper) resolveOverrideNames(accountID string, names []string) []*models.Member {
	var out []*models.Member
	for _, name := range names {
		m := g.roster.ResolveInAccount(accountID, name)
		if m == nil {
			g.logger.Warn("override name not found in account",
				zap.String("issue", string(models.IssueNoAccountMatch)),
				zap.String("account_id", accountID),
				zap.String("name", name))
			continue
		}
		out = append(out, m)
	}
	return out
}

func (g *Grouper) checkCapacity(f *models.RequiredWaiver) {
	if len(f.Adults) > models.MaxFamilyAdults || len(f.Minors) > models.MaxMinors {
		g.logger.Warn("family record exceeds persisted capacity",
			zap.String("issue", string(models.IssueCapacityExceeded)),
			zap.String("account_id", f.AccountID),
			zap.Int("adults", len(f.Adults)),
			zap.Int("minors", len(f.Minors)))
	}
}

// ApplyCredentials sets the key flags of every record from the members it
// covers.
func ApplyCredentials(parts *models.Partitions, creds *roster.Credentials) {
	for _, group := range [][]*models.RequiredWaiver{parts.Adults, parts.Families, parts.Unknown} {
		for _, rec := range group {
			rec.HasKey, rec.KeyEnabled, rec.KeyEmail = false, false, ""
			for _, m := range rec.Members() {
				if m == nil {
					continue
				}
				rec.HasKey = rec.HasKey || creds.HasKey(m.ID)
				rec.KeyEnabled = rec.KeyEnabled || creds.HasEnabledKey(m.ID)
			}
			for _, s := range rec.Adults {
				if email := creds.KeyEmail(s.Member.ID); email != "" {
					rec.KeyEmail = email
					break
				}
			}
		}
	}
}

func memberSet(members []*models.Member) map[string]bool {
	set := make(map[string]bool, len(members))
	for _, m := range members {
		set[m.ID] = true
	}
	return set
}
