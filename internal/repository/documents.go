package repository

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"waiver-reconciler/internal/dates"
	"waiver-reconciler/internal/intake"
	"waiver-reconciler/internal/models"
)

// Document table columns
const (
	colType     = "type"
	colComplete = "complete"
	colReviewed = "reviewed"
	colLink     = "link"
	colFile     = "file"
	colSigner   = "signer"
	colDate     = "date"
	colAdult    = "adult"
)

// MemberWaiverHeader columns of the member waiver table
func MemberWaiverHeader() []string {
	var h []string
	for i := 1; i <= models.MaxWaiverSigners; i++ {
		h = append(h, fmt.Sprintf("%s%d", colSigner, i), fmt.Sprintf("%s%d", colDate, i))
	}
	h = append(h, numbered(colMinor, models.MaxMinors)...)
	return append(h, colType, colComplete, colReviewed, colLink, colFile)
}

// AttestationHeader columns of the attestation table
func AttestationHeader() []string {
	var h []string
	for _, a := range numbered(colAdult, models.MaxAttestationAdult) {
		h = append(h, a, a+"_email", a+"_birthdate")
	}
	for _, m := range numbered(colMinor, models.MaxMinors) {
		h = append(h, m, m+"_birthdate")
	}
	return append(h, colComplete, colReviewed, colLink, colFile)
}

// GuestWaiverHeader columns of the guest waiver table
func GuestWaiverHeader() []string {
	h := []string{colSigner, colDate}
	h = append(h, numbered(colMinor, models.MaxMinors)...)
	return append(h, colLink, colFile)
}

// LoadMemberWaivers reads the member waiver table. Signature dates are
// parsed with parser; rows without a file name are dropped. A missing file
// yields no waivers.
func (s *Store) LoadMemberWaivers(path string, parser *dates.Parser) ([]*models.MemberWaiver, error) {
	if !Exists(path) {
		return nil, nil
	}
	rows, err := ReadTable(path, []string{colFile})
	if err != nil {
		return nil, fmt.Errorf("failed to load member waivers: %w", err)
	}

	var out []*models.MemberWaiver
	for i, row := range rows {
		w := &models.MemberWaiver{
			Minors:   nonEmpty(row, numbered(colMinor, models.MaxMinors)),
			Category: models.ParseDocCategory(row.Get(colType)),
			Complete: models.ParseTriState(row.Get(colComplete)),
			Reviewed: isYes(row.Get(colReviewed)),
			Link:     row.Get(colLink),
			File:     row.Get(colFile),
		}
		if w.File == "" {
			s.malformed(path, i, "file name is empty")
			continue
		}
		for n := 1; n <= models.MaxWaiverSigners; n++ {
			name := row.Get(fmt.Sprintf("%s%d", colSigner, n))
			if name == "" {
				continue
			}
			text := row.Get(fmt.Sprintf("%s%d", colDate, n))
			w.Signatures = append(w.Signatures, models.Signature{Name: name, DateText: text, Date: parser.Parse(text)})
		}
		out = append(out, w)
	}
	return out, nil
}

// SaveMemberWaivers writes the member waiver table.
func (s *Store) SaveMemberWaivers(path string, waivers []*models.MemberWaiver) error {
	rows := make([][]string, 0, len(waivers))
	for _, w := range waivers {
		var row []string
		for n := 0; n < models.MaxWaiverSigners; n++ {
			if n < len(w.Signatures) {
				row = append(row, w.Signatures[n].Name, w.Signatures[n].DateText)
			} else {
				row = append(row, "", "")
			}
		}
		row = append(row, padded(w.Minors, models.MaxMinors)...)
		row = append(row, w.Category.String(), w.Complete.String(), yesNo(w.Reviewed), w.Link, w.File)
		rows = append(rows, row)
	}
	return WriteTable(path, MemberWaiverHeader(), rows, s.backup)
}

// LoadAttestations reads the attestation table. Birthdates are stored as
// ISO dates; anything else is parsed with parser.
func (s *Store) LoadAttestations(path string, parser *dates.Parser) ([]*models.Attestation, error) {
	if !Exists(path) {
		return nil, nil
	}
	rows, err := ReadTable(path, []string{colFile})
	if err != nil {
		return nil, fmt.Errorf("failed to load attestations: %w", err)
	}

	var out []*models.Attestation
	for i, row := range rows {
		a := &models.Attestation{
			Complete: models.ParseTriState(row.Get(colComplete)),
			Reviewed: isYes(row.Get(colReviewed)),
			Link:     row.Get(colLink),
			File:     row.Get(colFile),
		}
		if a.File == "" {
			s.malformed(path, i, "file name is empty")
			continue
		}
		for _, col := range numbered(colAdult, models.MaxAttestationAdult) {
			if name := row.Get(col); name != "" {
				a.Adults = append(a.Adults, models.Person{
					Name:      name,
					Email:     row.Get(col + "_email"),
					Birthdate: storedDate(row.Get(col+"_birthdate"), parser),
				})
			}
		}
		for _, col := range numbered(colMinor, models.MaxMinors) {
			if name := row.Get(col); name != "" {
				a.Minors = append(a.Minors, models.Person{
					Name:      name,
					Birthdate: storedDate(row.Get(col+"_birthdate"), parser),
				})
			}
		}
		out = append(out, a)
	}
	return out, nil
}

// SaveAttestations writes the attestation table.
func (s *Store) SaveAttestations(path string, attestations []*models.Attestation) error {
	rows := make([][]string, 0, len(attestations))
	for _, a := range attestations {
		var row []string
		for n := 0; n < models.MaxAttestationAdult; n++ {
			if n < len(a.Adults) {
				p := a.Adults[n]
				row = append(row, p.Name, p.Email, isoDate(p.Birthdate))
			} else {
				row = append(row, "", "", "")
			}
		}
		for n := 0; n < models.MaxMinors; n++ {
			if n < len(a.Minors) {
				row = append(row, a.Minors[n].Name, isoDate(a.Minors[n].Birthdate))
			} else {
				row = append(row, "", "")
			}
		}
		row = append(row, a.Complete.String(), yesNo(a.Reviewed), a.Link, a.File)
		rows = append(rows, row)
	}
	return WriteTable(path, AttestationHeader(), rows, s.backup)
}

// LoadGuestWaivers reads the guest waiver table.
func (s *Store) LoadGuestWaivers(path string, parser *dates.Parser) ([]*models.GuestWaiver, error) {
	if !Exists(path) {
		return nil, nil
	}
	rows, err := ReadTable(path, []string{colFile})
	if err != nil {
		return nil, fmt.Errorf("failed to load guest waivers: %w", err)
	}

	var out []*models.GuestWaiver
	for i, row := range rows {
		g := &models.GuestWaiver{
			Signer:   row.Get(colSigner),
			DateText: row.Get(colDate),
			Minors:   nonEmpty(row, numbered(colMinor, models.MaxMinors)),
			Link:     row.Get(colLink),
			File:     row.Get(colFile),
		}
		if g.File == "" {
			s.malformed(path, i, "file name is empty")
			continue
		}
		g.Date = parser.Parse(g.DateText)
		out = append(out, g)
	}
	return out, nil
}

// SaveGuestWaivers writes the guest waiver table.
func (s *Store) SaveGuestWaivers(path string, guests []*models.GuestWaiver) error {
	rows := make([][]string, 0, len(guests))
	for _, g := range guests {
		row := []string{g.Signer, g.DateText}
		row = append(row, padded(g.Minors, models.MaxMinors)...)
		rows = append(rows, append(row, g.Link, g.File))
	}
	return WriteTable(path, GuestWaiverHeader(), rows, s.backup)
}

// DocumentPaths files of the three document tables
type DocumentPaths struct {
	MemberWaivers string
	Attestations  string
	Guests        string
}

// LoadDocuments reads all three document tables.
func (s *Store) LoadDocuments(paths DocumentPaths, parser *dates.Parser) (*models.DocumentSet, error) {
	waivers, err := s.LoadMemberWaivers(paths.MemberWaivers, parser)
	if err != nil {
		return nil, err
	}
	attestations, err := s.LoadAttestations(paths.Attestations, parser)
	if err != nil {
		return nil, err
	}
	guests, err := s.LoadGuestWaivers(paths.Guests, parser)
	if err != nil {
		return nil, err
	}
	s.logger.Info("documents loaded",
		zap.Int("member_waivers", len(waivers)),
		zap.Int("attestations", len(attestations)),
		zap.Int("guest_waivers", len(guests)))
	return &models.DocumentSet{MemberWaivers: waivers, Attestations: attestations, Guests: guests}, nil
}

// SaveDocuments writes all three document tables.
func (s *Store) SaveDocuments(paths DocumentPaths, docs *models.DocumentSet) error {
	if err := s.SaveMemberWaivers(paths.MemberWaivers, docs.MemberWaivers); err != nil {
		return err
	}
	if err := s.SaveAttestations(paths.Attestations, docs.Attestations); err != nil {
		return err
	}
	return s.SaveGuestWaivers(paths.Guests, docs.Guests)
}

// Inbox columns. Any other column is a template region.
const (
	colInboxFileID   = "file_id"
	colInboxFileName = "file_name"
	colInboxWebLink  = "web_link"
	colInboxText     = "text"
)

// LoadInbox reads new-document records produced by the text extractor.
func (s *Store) LoadInbox(path string) ([]intake.NewDocument, error) {
	rows, err := ReadTable(path, []string{colInboxFileName})
	if err != nil {
		return nil, fmt.Errorf("failed to load inbox: %w", err)
	}

	out := make([]intake.NewDocument, 0, len(rows))
	for i, row := range rows {
		doc := intake.NewDocument{
			FileID:   row.Get(colInboxFileID),
			FileName: row.Get(colInboxFileName),
			WebLink:  row.Get(colInboxWebLink),
			Text:     row[colInboxText],
			Regions:  make(map[string]string),
		}
		if doc.FileName == "" {
			s.malformed(path, i, "file name is empty")
			continue
		}
		for col, v := range row {
			switch col {
			case colInboxFileID, colInboxFileName, colInboxWebLink, colInboxText:
			default:
				doc.Regions[strings.ToLower(col)] = v
			}
		}
		out = append(out, doc)
	}
	return out, nil
}

func isoDate(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format("2006-01-02")
}

func storedDate(s string, parser *dates.Parser) *time.Time {
	if s == "" {
		return nil
	}
	if d, err := parseISODate(s); err == nil {
		return &d
	}
	return parser.Parse(s)
}
