package reconcile

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"waiver-reconciler/internal/models"
	"waiver-reconciler/internal/roster"
)

var asOf = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

const annual = "Proprietary Member Annual"

func born(age int) *time.Time {
	t := time.Date(asOf.Year()-age, 1, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

// adult builds an Adult member; age < 0 means unknown birthdate.
func adult(id, account, name string, age int) *models.Member {
	m := &models.Member{ID: id, AccountID: account, Category: models.CategoryAdult}
	m.FirstName, m.LastName = splitName(name)
	if age >= 0 {
		m.Birthdate = born(age)
	}
	return m
}

// child builds a Child member; age < 0 means unknown birthdate.
func child(id, account, name string, age int) *models.Member {
	m := adult(id, account, name, age)
	m.Category = models.CategoryChild
	return m
}

func splitName(name string) (string, string) {
	for i := 0; i < len(name); i++ {
		if name[i] == ' ' {
			return name[:i], name[i+1:]
		}
	}
	return name, ""
}

func acct(id, category string) *models.Account {
	return &models.Account{ID: id, Category: category}
}

func newRoster(accounts []*models.Account, members ...*models.Member) *roster.Roster {
	return roster.New(accounts, members, asOf, zap.NewNop())
}

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func issueCount(logs *observer.ObservedLogs, issue models.Issue) int {
	return logs.FilterField(zap.String("issue", string(issue))).Len()
}

func memberIDs(members []*models.Member) []string {
	out := []string{}
	for _, m := range members {
		out = append(out, m.ID)
	}
	return out
}

func slotIDs(rec *models.RequiredWaiver) []string {
	out := []string{}
	for _, s := range rec.Adults {
		out = append(out, s.Member.ID)
	}
	return out
}

// doeFamily the A100 household: Jane 40, John 42, Sam 10.
func doeFamily() *roster.Roster {
	return newRoster(
		[]*models.Account{acct("A100", annual)},
		adult("1", "A100", "Jane Doe", 40),
		adult("2", "A100", "John Doe", 42),
		child("3", "A100", "Sam Doe", 10),
	)
}
