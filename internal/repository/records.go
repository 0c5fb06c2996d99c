package repository

import (
	"fmt"

	"go.uber.org/zap"

	"waiver-reconciler/internal/models"
	"waiver-reconciler/internal/roster"
)

// Registry columns
const (
	colMemberNum  = "Member#"
	colSigned     = "signed"
	colHasKey     = "has_key"
	colKeyEnabled = "key_enabled"
	colName       = "name"
	colEmailAddr  = "email_address"
	colKeyEmail   = "key_email"
	colWebLink    = "web_link"
)

// slot columns of family records; slot 1 uses the plain name and
// email_address columns
var familySlotColumns = [models.MaxFamilyAdults]struct {
	name, email, signed, link string
}{
	{colName, colEmailAddr, "signed1", "web_link1"},
	{"name2", "email_address2", "signed2", "web_link2"},
}

// AdultRecordHeader columns of the adult-only registry
func AdultRecordHeader() []string {
	return []string{
		colAccountNum, colMemberNum, colSigned, colHasKey, colKeyEnabled,
		colName, colEmailAddr, colKeyEmail, colWebLink,
	}
}

// FamilyRecordHeader columns of the family and unknown-parentage registries
func FamilyRecordHeader() []string {
	h := []string{colAccountNum, colMemberNum, colSigned, colHasKey, colKeyEnabled}
	for _, c := range familySlotColumns {
		h = append(h, c.name, c.email, c.signed, c.link)
	}
	return append(h, numbered(colMinor, models.MaxMinors)...)
}

// SaveAdultRecords writes the adult-only registry.
func (s *Store) SaveAdultRecords(path string, recs []*models.RequiredWaiver) error {
	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		m := rec.Adult()
		if m == nil {
			continue
		}
		slot := rec.Adults[0]
		rows = append(rows, []string{
			rec.AccountID, m.ID, yesNo(rec.Signed), yesNo(rec.HasKey), yesNo(rec.KeyEnabled),
			m.FullName(), m.Email, rec.KeyEmail, slot.WebLink,
		})
	}
	return WriteTable(path, AdultRecordHeader(), rows, s.backup)
}

// SaveFamilyRecords writes family-shaped records, used for both the
// family and the unknown-parentage registries.
func (s *Store) SaveFamilyRecords(path string, recs []*models.RequiredWaiver) error {
	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, familyRow(rec))
	}
	return WriteTable(path, FamilyRecordHeader(), rows, s.backup)
}

func familyRow(rec *models.RequiredWaiver) []string {
	row := []string{rec.AccountID, rec.MemberID(), yesNo(rec.Signed), yesNo(rec.HasKey), yesNo(rec.KeyEnabled)}
	for i := 0; i < models.MaxFamilyAdults; i++ {
		if i < len(rec.Adults) && rec.Adults[i].Member != nil {
			s := rec.Adults[i]
			row = append(row, s.Member.FullName(), s.Member.Email, yesNo(s.Signed), s.WebLink)
		} else {
			row = append(row, "", "", "", "")
		}
	}
	minors := make([]string, 0, models.MaxMinors)
	for i, m := range rec.Minors {
		if i == models.MaxMinors {
			break
		}
		minors = append(minors, m.FullName())
	}
	return append(row, padded(minors, models.MaxMinors)...)
}

// LoadAdultRecords reads the adult-only registry, re-resolving members by
// id against r. Rows for members no longer on the roster are dropped.
// A missing file yields no records.
func (s *Store) LoadAdultRecords(path string, r *roster.Roster) ([]*models.RequiredWaiver, error) {
	if !Exists(path) {
		return nil, nil
	}
	rows, err := ReadTable(path, []string{colAccountNum, colMemberNum, colSigned})
	if err != nil {
		return nil, fmt.Errorf("failed to load adult records: %w", err)
	}

	var out []*models.RequiredWaiver
	for i, row := range rows {
		m, ok := s.member(path, i, r, row.Get(colMemberNum))
		if !ok {
			continue
		}
		rec := models.NewAdultRecord(m)
		rec.Adults[0].Signed = isYes(row.Get(colSigned))
		rec.Adults[0].WebLink = row.Get(colWebLink)
		rec.HasKey = isYes(row.Get(colHasKey))
		rec.KeyEnabled = isYes(row.Get(colKeyEnabled))
		rec.KeyEmail = row.Get(colKeyEmail)
		rec.UpdateSigned()
		out = append(out, rec)
	}
	return out, nil
}

// LoadFamilyRecords reads a family-shaped registry. The first adult is
// re-resolved by member id; the second adult and minors by name within
// the record's account. A row whose first adult is gone is dropped; an
// unresolvable second adult or minor is left out of the record. Rows with
// no adult at all are skipped.
func (s *Store) LoadFamilyRecords(path string, r *roster.Roster) ([]*models.RequiredWaiver, error) {
	if !Exists(path) {
		return nil, nil
	}
	rows, err := ReadTable(path, []string{colAccountNum, colMemberNum, colSigned})
	if err != nil {
		return nil, fmt.Errorf("failed to load family records: %w", err)
	}

	var out []*models.RequiredWaiver
	for i, row := range rows {
		// unknown-parentage rows without candidates hold no signatures
		if row.Get(colMemberNum) == "" && row.Get(familySlotColumns[0].name) == "" {
			continue
		}
		first, ok := s.member(path, i, r, row.Get(colMemberNum))
		if !ok {
			continue
		}
		accountID := first.AccountID

		rec := models.NewFamilyRecord(accountID, []*models.Member{first}, nil)
		rec.Adults[0].Signed = isYes(row.Get(familySlotColumns[0].signed))
		rec.Adults[0].WebLink = row.Get(familySlotColumns[0].link)
		for _, c := range familySlotColumns[1:] {
			name := row.Get(c.name)
			if name == "" {
				continue
			}
			m := r.ResolveInAccount(accountID, name)
			if m == nil {
				s.unresolved(path, i, accountID, name)
				continue
			}
			rec.Adults = append(rec.Adults, models.SignerSlot{
				Member:  m,
				Signed:  isYes(row.Get(c.signed)),
				WebLink: row.Get(c.link),
			})
		}
		for _, name := range nonEmpty(row, numbered(colMinor, models.MaxMinors)) {
			m := r.ResolveInAccount(accountID, name)
			if m == nil {
				s.unresolved(path, i, accountID, name)
				continue
			}
			rec.Minors = append(rec.Minors, m)
		}
		rec.HasKey = isYes(row.Get(colHasKey))
		rec.KeyEnabled = isYes(row.Get(colKeyEnabled))
		rec.UpdateSigned()
		out = append(out, rec)
	}
	return out, nil
}

// LoadPartitions reads the three registries of a previous run.
func (s *Store) LoadPartitions(adultPath, familyPath, unknownPath string, r *roster.Roster) (*models.Partitions, error) {
	adults, err := s.LoadAdultRecords(adultPath, r)
	if err != nil {
		return nil, err
	}
	families, err := s.LoadFamilyRecords(familyPath, r)
	if err != nil {
		return nil, err
	}
	unknown, err := s.LoadFamilyRecords(unknownPath, r)
	if err != nil {
		return nil, err
	}
	for _, rec := range unknown {
		rec.Signed = false
	}
	return &models.Partitions{Adults: adults, Families: families, Unknown: unknown}, nil
}

// SavePartitions writes the three registries.
func (s *Store) SavePartitions(adultPath, familyPath, unknownPath string, parts *models.Partitions) error {
	if err := s.SaveAdultRecords(adultPath, parts.Adults); err != nil {
		return err
	}
	if err := s.SaveFamilyRecords(familyPath, parts.Families); err != nil {
		return err
	}
	return s.SaveFamilyRecords(unknownPath, parts.Unknown)
}

func (s *Store) member(path string, index int, r *roster.Roster, id string) (*models.Member, bool) {
	if id == "" {
		s.malformed(path, index, "member id is empty")
		return nil, false
	}
	m, ok := r.Member(id)
	if !ok {
		s.logger.Warn("persisted record references a member not on the roster",
			zap.String("issue", string(models.IssueMalformedRecord)),
			zap.String("file", path),
			zap.String("member_id", id))
		return nil, false
	}
	return m, true
}

func (s *Store) unresolved(path string, index int, accountID, name string) {
	s.logger.Warn("persisted record names a member not on the account",
		zap.String("issue", string(models.IssueMalformedRecord)),
		zap.String("file", path),
		zap.Int("row", index+2),
		zap.String("account_id", accountID),
		zap.String("name", name))
}
