// Package roster indexes the accounts and members of one snapshot and
// resolves free-text names to members.
package roster

import (
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"waiver-reconciler/internal/models"
)

var (
	// ErrNoAccountMatch a name matched no roster member
	ErrNoAccountMatch = errors.New("no roster member matches name")
	// ErrAmbiguousNameMatch a name matched more than one roster member
	ErrAmbiguousNameMatch = errors.New("name matches more than one roster member")
)

// Roster in-memory index of accounts, members and parent overrides.
// Iteration is always in id order.
type Roster struct {
	asOf   time.Time
	logger *zap.Logger

	accounts   map[string]*models.Account
	accountIDs []string

	members   map[string]*models.Member
	memberIDs []string
	byAccount map[string][]*models.Member
	byName    map[string][]*models.Member
	names     []string // sorted keys of byName

	overrides map[string][]models.ParentOverride
}

// New builds a roster. Members whose account is not among accounts are
// skipped, as are duplicate member ids after the first.
func New(accounts []*models.Account, members []*models.Member, asOf time.Time, logger *zap.Logger) *Roster {
	r := &Roster{
		asOf:      asOf,
		logger:    logger,
		accounts:  make(map[string]*models.Account, len(accounts)),
		members:   make(map[string]*models.Member, len(members)),
		byAccount: make(map[string][]*models.Member),
		byName:    make(map[string][]*models.Member),
		overrides: make(map[string][]models.ParentOverride),
	}

	for _, a := range accounts {
		if _, dup := r.accounts[a.ID]; dup {
			logger.Warn("duplicate account id", zap.String("account_id", a.ID))
			continue
		}
		r.accounts[a.ID] = a
		r.accountIDs = append(r.accountIDs, a.ID)
	}
	SortIDs(r.accountIDs)

	skipped := 0
	for _, m := range members {
		if _, ok := r.accounts[m.AccountID]; !ok {
			skipped++
			continue
		}
		if _, dup := r.members[m.ID]; dup {
			logger.Warn("duplicate member id", zap.String("member_id", m.ID))
			continue
		}
		r.members[m.ID] = m
		r.memberIDs = append(r.memberIDs, m.ID)
	}
	SortIDs(r.memberIDs)

	for _, id := range r.memberIDs {
		m := r.members[id]
		r.byAccount[m.AccountID] = append(r.byAccount[m.AccountID], m)
		key := NormalizeName(m.FullName())
		if _, ok := r.byName[key]; !ok {
			r.names = append(r.names, key)
		}
		r.byName[key] = append(r.byName[key], m)
	}
	sort.Strings(r.names)

	for _, key := range r.names {
		if n := len(r.byName[key]); n > 1 {
			logger.Info("multiple members share a name",
				zap.String("name", r.byName[key][0].FullName()),
				zap.Int("count", n))
		}
	}

	logger.Info("roster loaded",
		zap.Int("accounts", len(r.accountIDs)),
		zap.Int("members", len(r.memberIDs)),
		zap.Int("members_skipped", skipped))
	return r
}

// AsOf date ages are computed on.
func (r *Roster) AsOf() time.Time { return r.asOf }

// Accounts all accounts in id order.
func (r *Roster) Accounts() []*models.Account {
	out := make([]*models.Account, 0, len(r.accountIDs))
	for _, id := range r.accountIDs {
		out = append(out, r.accounts[id])
	}
	return out
}

// EligibleAccounts accounts whose category is in categories, in id order.
func (r *Roster) EligibleAccounts(categories []string) []*models.Account {
	var out []*models.Account
	for _, id := range r.accountIDs {
		if a := r.accounts[id]; a.HasCategory(categories) {
			out = append(out, a)
		}
	}
	return out
}

// Account looks up an account by id.
func (r *Roster) Account(id string) (*models.Account, bool) {
	a, ok := r.accounts[id]
	return a, ok
}

// Member looks up a member by id.
func (r *Roster) Member(id string) (*models.Member, bool) {
	m, ok := r.members[id]
	return m, ok
}

// Members all members in id order.
func (r *Roster) Members() []*models.Member {
	out := make([]*models.Member, 0, len(r.memberIDs))
	for _, id := range r.memberIDs {
		out = append(out, r.members[id])
	}
	return out
}

// MembersOf members of an account in id order.
func (r *Roster) MembersOf(accountID string) []*models.Member {
	return r.byAccount[accountID]
}

// IsMinor evaluates m on the roster date.
func (r *Roster) IsMinor(m *models.Member) bool {
	return m.IsMinor(r.asOf)
}

// Age of m on the roster date.
func (r *Roster) Age(m *models.Member) (int, bool) {
	return m.Age(r.asOf)
}

// MinorsOf minors of an account in id order.
func (r *Roster) MinorsOf(accountID string) []*models.Member {
	var out []*models.Member
	for _, m := range r.byAccount[accountID] {
		if r.IsMinor(m) {
			out = append(out, m)
		}
	}
	return out
}

// PrimaryMember the member whose name equals the billing name, or nil.
func (r *Roster) PrimaryMember(accountID string) *models.Member {
	a, ok := r.accounts[accountID]
	if !ok {
		return nil
	}
	billing := NormalizeName(a.BillingName())
	for _, m := range r.byAccount[accountID] {
		if NormalizeName(m.FullName()) == billing {
			return m
		}
	}
	return nil
}

// SetOverrides replaces the parent override table. Entries for accounts
// that are not loaded are ignored.
func (r *Roster) SetOverrides(overrides []models.ParentOverride) {
	r.overrides = make(map[string][]models.ParentOverride)
	for _, o := range overrides {
		if _, ok := r.accounts[o.AccountID]; !ok {
			r.logger.Debug("override for unloaded account", zap.String("account_id", o.AccountID))
			continue
		}
		r.overrides[o.AccountID] = append(r.overrides[o.AccountID], o)
	}
}

// Overrides parent override entries for an account, in table order.
func (r *Roster) Overrides(accountID string) []models.ParentOverride {
	return r.overrides[accountID]
}

// HasOverride reports whether accountID has override entries.
func (r *Roster) HasOverride(accountID string) bool {
	return len(r.overrides[accountID]) > 0
}
