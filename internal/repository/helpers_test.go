package repository

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"waiver-reconciler/internal/models"
	"waiver-reconciler/internal/roster"
)

var asOf = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func person(id, account, first, last string, age int) *models.Member {
	b := time.Date(asOf.Year()-age, 1, 1, 0, 0, 0, 0, time.UTC)
	m := &models.Member{
		ID:        id,
		AccountID: account,
		FirstName: first,
		LastName:  last,
		Email:     first + "@example.com",
		Category:  models.CategoryAdult,
		Birthdate: &b,
	}
	if age < models.AdultAge {
		m.Category = models.CategoryChild
	}
	return m
}

// testRoster account 100 is the Doe family, 200 a single adult
func testRoster() *roster.Roster {
	accounts := []*models.Account{
		{ID: "100", Category: "Proprietary Member Annual", BillingFirstName: "Jane", BillingLastName: "Doe"},
		{ID: "200", Category: "Proprietary Member Annual", BillingFirstName: "Ann", BillingLastName: "Lee"},
	}
	members := []*models.Member{
		person("1", "100", "Jane", "Doe", 40),
		person("2", "100", "John", "Doe", 42),
		person("3", "100", "Sam", "Doe", 10),
		person("4", "200", "Ann", "Lee", 30),
	}
	return roster.New(accounts, members, asOf, zap.NewNop())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}
