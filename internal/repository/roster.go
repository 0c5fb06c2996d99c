package repository

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"waiver-reconciler/internal/models"
)

// Roster export columns
const (
	colAcctNum    = "Acct #"
	colAcctType   = "Acct Type"
	colFirstName  = "First Name"
	colLastName   = "Last Name"
	colEmail      = "Email"
	colMemberID   = "Member ID"
	colMemberType = "Member Type"
	colBirthdate  = "Birthdate"

	colUserName   = "UserName"
	colCredStatus = "Credential Status"
	colExternKey  = "ExternKeyID"
)

// Overrides table columns
const (
	colAccountNum = "Account#"
	colParent     = "parent"
	colMinor      = "minor"
)

var (
	accountColumns = []string{colAcctNum, colAcctType, colFirstName, colLastName, colEmail}
	memberColumns  = []string{colAcctNum, colMemberID, colMemberType, colFirstName, colLastName, colEmail, colBirthdate}
	keyColumns     = []string{colFirstName, colLastName, colEmail, colUserName, colCredStatus, colExternKey}
)

// OverrideHeader columns of the manual parent table
func OverrideHeader() []string {
	h := []string{colAccountNum}
	h = append(h, numbered(colParent, models.MaxFamilyAdults)...)
	return append(h, numbered(colMinor, models.MaxMinors)...)
}

// Store typed access to the reconciler's tables
type Store struct {
	backup bool
	logger *zap.Logger
}

// NewStore creates a store. With backup set, every overwritten CSV is
// first rotated to <name>.<n>.csv.
func NewStore(backup bool, logger *zap.Logger) *Store {
	return &Store{backup: backup, logger: logger}
}

// LoadAccounts reads the accounts export, keeping accounts whose
// category is one of active.
func (s *Store) LoadAccounts(path string, active []string) ([]*models.Account, error) {
	rows, err := ReadTable(path, accountColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	var accounts []*models.Account
	for i, row := range rows {
		a := &models.Account{
			ID:               row.Get(colAcctNum),
			Category:         row.Get(colAcctType),
			BillingFirstName: row.Get(colFirstName),
			BillingLastName:  row.Get(colLastName),
			Email:            row.Get(colEmail),
		}
		if a.ID == "" {
			s.malformed(path, i, "account id is empty")
			continue
		}
		if !a.HasCategory(active) {
			continue
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

// LoadMembers reads the members export. Birthdates are ISO dates; an
// unparseable one is kept as unknown.
func (s *Store) LoadMembers(path string) ([]*models.Member, error) {
	rows, err := ReadTable(path, memberColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}

	members := make([]*models.Member, 0, len(rows))
	for i, row := range rows {
		m := &models.Member{
			ID:        row.Get(colMemberID),
			AccountID: row.Get(colAcctNum),
			FirstName: row.Get(colFirstName),
			LastName:  row.Get(colLastName),
			Category:  models.ParseMemberCategory(row.Get(colMemberType)),
			Email:     row.Get(colEmail),
		}
		if m.ID == "" || m.AccountID == "" {
			s.malformed(path, i, "member or account id is empty")
			continue
		}
		if b := row.Get(colBirthdate); b != "" {
			if d, err := parseISODate(b); err == nil {
				m.Birthdate = &d
			} else {
				s.logger.Info("unparseable birthdate, treating as unknown",
					zap.String("member_id", m.ID),
					zap.String("birthdate", b))
			}
		}
		members = append(members, m)
	}
	return members, nil
}

// LoadOverrides reads the manual parent table. A missing file means no
// overrides.
func (s *Store) LoadOverrides(path string) ([]models.ParentOverride, error) {
	if path == "" || !Exists(path) {
		return nil, nil
	}
	rows, err := ReadTable(path, []string{colAccountNum})
	if err != nil {
		return nil, fmt.Errorf("failed to load parent overrides: %w", err)
	}

	var out []models.ParentOverride
	for i, row := range rows {
		o := models.ParentOverride{
			AccountID: row.Get(colAccountNum),
			Parents:   nonEmpty(row, numbered(colParent, models.MaxFamilyAdults)),
			Minors:    nonEmpty(row, numbered(colMinor, models.MaxMinors)),
		}
		if o.AccountID == "" {
			s.malformed(path, i, "account id is empty")
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// SaveOverrides writes the manual parent table.
func (s *Store) SaveOverrides(path string, overrides []models.ParentOverride) error {
	rows := make([][]string, 0, len(overrides))
	for _, o := range overrides {
		row := []string{o.AccountID}
		row = append(row, padded(o.Parents, models.MaxFamilyAdults)...)
		rows = append(rows, append(row, padded(o.Minors, models.MaxMinors)...))
	}
	return WriteTable(path, OverrideHeader(), rows, s.backup)
}

// LoadKeys reads the key system export. Staff keys are skipped. A
// missing file means no keys.
func (s *Store) LoadKeys(path string) ([]*models.CredentialEntry, error) {
	if path == "" || !Exists(path) {
		return nil, nil
	}
	rows, err := ReadTable(path, keyColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to load keys: %w", err)
	}

	var out []*models.CredentialEntry
	for _, row := range rows {
		e := &models.CredentialEntry{
			FirstName: row.Get(colFirstName),
			LastName:  row.Get(colLastName),
			Email:     row.Get(colEmail),
			AccountID: row.Get(colUserName),
			Enabled:   row.Get(colCredStatus) == "Active",
			KeyID:     row.Get(colExternKey),
		}
		if e.IsStaff() {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) malformed(path string, index int, reason string) {
	s.logger.Warn("dropping malformed row",
		zap.String("issue", string(models.IssueMalformedRecord)),
		zap.String("file", path),
		zap.Int("row", index+2), // 1-based, after the header
		zap.String("reason", reason))
}

func parseISODate(s string) (time.Time, error) {
	// spreadsheet exports may append a midnight time
	if len(s) > len("2006-01-02") {
		s = s[:len("2006-01-02")]
	}
	return time.Parse("2006-01-02", s)
}

func nonEmpty(row Row, cols []string) []string {
	var out []string
	for _, c := range cols {
		if v := row.Get(c); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// padded copies values into a slice of exactly n cells.
func padded(values []string, n int) []string {
	out := make([]string, n)
	copy(out, values)
	return out
}
