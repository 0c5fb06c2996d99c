package roster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"waiver-reconciler/internal/models"
)

var asOf = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func born(age int) *time.Time {
	t := time.Date(asOf.Year()-age, 1, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

func member(id, account, first, last string, age int) *models.Member {
	m := &models.Member{ID: id, AccountID: account, FirstName: first, LastName: last, Category: models.CategoryAdult}
	if age >= 0 {
		m.Birthdate = born(age)
		if age < models.AdultAge {
			m.Category = models.CategoryChild
		}
	}
	return m
}

func testRoster(t *testing.T) (*Roster, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	accounts := []*models.Account{
		{ID: "200", Category: "Proprietary Member Annual", BillingFirstName: "Ann", BillingLastName: "Lee"},
		{ID: "100", Category: "Proprietary Member Annual", BillingFirstName: "Jane", BillingLastName: "Doe"},
		{ID: "300", Category: "Staff", BillingFirstName: "Sam", BillingLastName: "Staff"},
	}
	members := []*models.Member{
		member("12", "100", "John", "Doe", 42),
		member("11", "100", "Jane", "Doe", 40),
		member("13", "100", "Sam", "Doe", 10),
		member("21", "200", "Ann", "Lee", 35),
		member("22", "200", "Jane", "Doe", 60),
		member("9", "999", "Ghost", "Member", 30),
	}
	return New(accounts, members, asOf, zap.New(core)), logs
}

func TestNew_IndexesInIDOrder(t *testing.T) {
	r, logs := testRoster(t)

	var ids []string
	for _, a := range r.Accounts() {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"100", "200", "300"}, ids)

	var memberIDs []string
	for _, m := range r.MembersOf("100") {
		memberIDs = append(memberIDs, m.ID)
	}
	assert.Equal(t, []string{"11", "12", "13"}, memberIDs)

	_, ok := r.Member("9")
	assert.False(t, ok, "members of unloaded accounts are skipped")

	assert.Equal(t, 1, logs.FilterMessage("multiple members share a name").Len())
}

func TestEligibleAccounts(t *testing.T) {
	r, _ := testRoster(t)
	got := r.EligibleAccounts([]string{"Proprietary Member Annual"})
	require.Len(t, got, 2)
	assert.Equal(t, "100", got[0].ID)
	assert.Equal(t, "200", got[1].ID)
}

func TestMinorsAndPrimary(t *testing.T) {
	r, _ := testRoster(t)

	minors := r.MinorsOf("100")
	require.Len(t, minors, 1)
	assert.Equal(t, "13", minors[0].ID)

	primary := r.PrimaryMember("100")
	require.NotNil(t, primary)
	assert.Equal(t, "11", primary.ID)
	assert.Nil(t, r.PrimaryMember("300"))
	assert.Nil(t, r.PrimaryMember("nope"))
}

func TestSetOverrides(t *testing.T) {
	r, _ := testRoster(t)
	r.SetOverrides([]models.ParentOverride{
		{AccountID: "100", Parents: []string{"Jane Doe"}, Minors: []string{"Sam Doe"}},
		{AccountID: "999", Parents: []string{"Ghost Member"}},
	})
	assert.True(t, r.HasOverride("100"))
	assert.False(t, r.HasOverride("999"))
	assert.Len(t, r.Overrides("100"), 1)
}

func TestCompareIDs(t *testing.T) {
	assert.Equal(t, -1, CompareIDs("999", "1000"))
	assert.Equal(t, 1, CompareIDs("1000", "999"))
	assert.Equal(t, 0, CompareIDs("42", "42"))
	assert.Equal(t, -1, CompareIDs("42", "A1"))
	assert.Equal(t, -1, CompareIDs("A1", "B1"))

	ids := []string{"B", "10", "9", "A"}
	SortIDs(ids)
	assert.Equal(t, []string{"9", "10", "A", "B"}, ids)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "jane doe", NormalizeName("  Jane   DOE "))
}
