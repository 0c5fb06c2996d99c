package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"waiver-reconciler/internal/models"
	"waiver-reconciler/internal/roster"
)

func TestGroup_Scenario(t *testing.T) {
	parts := NewGrouper(doeFamily(), DefaultPolicy(), zap.NewNop()).Group()

	assert.Empty(t, parts.Adults)
	assert.Empty(t, parts.Unknown)
	require.Len(t, parts.Families, 1)

	fam := parts.Families[0]
	assert.Equal(t, "A100", fam.AccountID)
	assert.Equal(t, []string{"1", "2"}, slotIDs(fam))
	assert.Equal(t, []string{"3"}, memberIDs(fam.Minors))
	assert.False(t, fam.Signed)
}

func TestGroup_AdultsAndGrandparent(t *testing.T) {
	r := newRoster(
		[]*models.Account{acct("10", annual), acct("20", annual)},
		adult("101", "10", "Solo One", 50),
		adult("102", "10", "Solo Two", 52),
		adult("201", "20", "Pat Park", 40),
		adult("202", "20", "Gran Park", 75),
		child("203", "20", "Kid Park", 10),
	)
	g := NewGrouper(r, DefaultPolicy(), zap.NewNop())
	parts := g.Group()

	var adultIDs []string
	for _, rec := range parts.Adults {
		assert.Equal(t, models.KindAdult, rec.Kind)
		adultIDs = append(adultIDs, rec.MemberID())
	}
	assert.Equal(t, []string{"101", "102", "202"}, adultIDs)

	require.Len(t, parts.Families, 1)
	assert.Equal(t, []string{"201"}, slotIDs(parts.Families[0]))
	assert.Equal(t, 1, g.Stats().NoMinorAccounts)
	assert.Equal(t, 1, g.Stats().KnownParentAccounts)
}

func TestGroup_AmbiguousGoesToUnknown(t *testing.T) {
	r := newRoster(
		[]*models.Account{acct("30", annual)},
		adult("301", "30", "Ann Lo", 30),
		adult("302", "30", "Bea Lo", 60),
		child("303", "30", "Cy Lo", 8),
	)
	logger, logs := observed()
	parts := NewGrouper(r, DefaultPolicy(), logger).Group()

	assert.Empty(t, parts.Adults, "possible parents get no adult-only record")
	assert.Empty(t, parts.Families)
	require.Len(t, parts.Unknown, 1)
	assert.Equal(t, []string{"301", "302"}, slotIDs(parts.Unknown[0]))
	assert.Equal(t, []string{"303"}, memberIDs(parts.Unknown[0].Minors))
	assert.Equal(t, 1, issueCount(logs, models.IssueAmbiguousParentage))
}

func TestGroup_UnknownOverflowLogged(t *testing.T) {
	r := newRoster(
		[]*models.Account{acct("30", annual)},
		adult("301", "30", "Ann Lo", 35),
		adult("302", "30", "Bea Lo", 36),
		adult("304", "30", "Dee Lo", 37),
		child("303", "30", "Cy Lo", 8),
	)
	logger, logs := observed()
	parts := NewGrouper(r, DefaultPolicy(), logger).Group()

	require.Len(t, parts.Unknown, 1)
	assert.Len(t, parts.Unknown[0].Adults, 3)
	assert.Equal(t, 1, issueCount(logs, models.IssueCapacityExceeded))
}

func TestGroup_Overrides(t *testing.T) {
	r := newRoster(
		[]*models.Account{acct("40", annual)},
		adult("401", "40", "Ann Mix", 45),
		adult("402", "40", "Bob Mix", 47),
		adult("403", "40", "Cal Nix", 44),
		adult("404", "40", "Uncle Mix", 50),
		child("405", "40", "Dot Mix", 12),
		child("406", "40", "Eli Nix", 9),
		child("407", "40", "Fay Nix", 7),
	)
	r.SetOverrides([]models.ParentOverride{
		{AccountID: "40", Parents: []string{"Ann Mix", "Bob Mix"}, Minors: []string{"Dot Mix"}},
		{AccountID: "40", Parents: []string{"Cal Nix"}, Minors: []string{"Eli Nix"}},
	})
	logger, logs := observed()
	g := NewGrouper(r, DefaultPolicy(), logger)
	parts := g.Group()

	require.Len(t, parts.Families, 2)
	assert.Equal(t, []string{"401", "402"}, slotIDs(parts.Families[0]))
	assert.Equal(t, []string{"405"}, memberIDs(parts.Families[0].Minors))
	assert.Equal(t, []string{"403"}, slotIDs(parts.Families[1]))
	assert.Equal(t, []string{"406"}, memberIDs(parts.Families[1].Minors))
	assert.Empty(t, parts.Unknown)

	require.Len(t, parts.Adults, 1)
	assert.Equal(t, "404", parts.Adults[0].MemberID())

	// Fay is missing from the override: logged, override still applied
	assert.Equal(t, 1, issueCount(logs, models.IssueInconsistentParentCount))
	assert.Equal(t, 1, g.Stats().InconsistentCounts)
	assert.Equal(t, 1, g.Stats().OverrideAccounts)
}

func TestGroup_UnusableOverrideFallsBackToInference(t *testing.T) {
	r := doeFamily()
	r.SetOverrides([]models.ParentOverride{
		{AccountID: "A100", Parents: []string{"Nobody Known"}, Minors: []string{"Sam Doe"}},
	})
	logger, logs := observed()
	parts := NewGrouper(r, DefaultPolicy(), logger).Group()

	require.Len(t, parts.Families, 1)
	assert.Equal(t, []string{"1", "2"}, slotIDs(parts.Families[0]))
	assert.Positive(t, issueCount(logs, models.IssueNoAccountMatch))
}

func TestGroup_SkipsIneligibleAccounts(t *testing.T) {
	r := newRoster(
		[]*models.Account{acct("50", "Staff"), acct("60", "Special Leave with Alumni Passes")},
		adult("501", "50", "Staff Person", 30),
		adult("601", "60", "Alum Person", 60),
	)
	parts := NewGrouper(r, DefaultPolicy(), zap.NewNop()).Group()
	require.Len(t, parts.Adults, 1)
	assert.Equal(t, "601", parts.Adults[0].MemberID())
}

func mixedRoster() *roster.Roster {
	return newRoster(
		[]*models.Account{acct("10", annual), acct("20", annual), acct("30", annual), acct("A100", annual)},
		adult("101", "10", "Solo One", 50),
		adult("201", "20", "Pat Park", 40),
		adult("202", "20", "Gran Park", 75),
		child("203", "20", "Kid Park", 10),
		adult("301", "30", "Ann Lo", 30),
		adult("302", "30", "Bea Lo", 60),
		child("303", "30", "Cy Lo", 8),
		adult("1", "A100", "Jane Doe", 40),
		adult("2", "A100", "John Doe", 42),
		child("3", "A100", "Sam Doe", 10),
	)
}

func TestGroup_PartitionCompleteness(t *testing.T) {
	r := mixedRoster()
	parts := NewGrouper(r, DefaultPolicy(), zap.NewNop()).Group()

	family := map[string]bool{}
	for _, rec := range parts.Families {
		family[rec.AccountID] = true
	}
	for _, rec := range parts.Unknown {
		assert.False(t, family[rec.AccountID], "account %s is both family and unknown", rec.AccountID)
	}

	seen := map[string]bool{}
	for _, rec := range parts.Adults {
		seen[rec.AccountID] = true
	}
	for _, rec := range parts.Families {
		seen[rec.AccountID] = true
	}
	for _, rec := range parts.Unknown {
		seen[rec.AccountID] = true
	}
	for _, a := range r.Accounts() {
		assert.True(t, seen[a.ID], "account %s missing from partitions", a.ID)
	}
}

func TestGroup_Deterministic(t *testing.T) {
	first := NewGrouper(mixedRoster(), DefaultPolicy(), zap.NewNop()).Group()
	second := NewGrouper(mixedRoster(), DefaultPolicy(), zap.NewNop()).Group()
	assert.Equal(t, first, second)
}

func TestApplyCredentials(t *testing.T) {
	r := doeFamily()
	parts := NewGrouper(r, DefaultPolicy(), zap.NewNop()).Group()
	creds := roster.BindCredentials(r, []*models.CredentialEntry{
		{FirstName: "John", LastName: "Doe", AccountID: "A100", Enabled: false, Email: "john@keys"},
		{FirstName: "Sam", LastName: "Doe", AccountID: "A100", Enabled: true},
	}, zap.NewNop())

	ApplyCredentials(parts, creds)
	fam := parts.Families[0]
	assert.True(t, fam.HasKey)
	assert.True(t, fam.KeyEnabled, "a minor's enabled key counts for the family")
	assert.Equal(t, "john@keys", fam.KeyEmail)
}
