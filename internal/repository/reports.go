package repository

import (
	"strconv"

	"waiver-reconciler/internal/models"
	"waiver-reconciler/internal/reconcile"
	"waiver-reconciler/internal/roster"
)

// Sheet one report table, written as CSV or as a workbook sheet
type Sheet struct {
	Name   string
	File   string
	Header []string
	Rows   [][]string
	// Widths optional column widths for the workbook
	Widths []float64
}

// WriteSheet writes a report sheet as CSV. Reports are regenerated every
// run and are not backed up.
func WriteSheet(path string, sh Sheet) error {
	return WriteTable(path, sh.Header, sh.Rows, false)
}

// MemberRecordsSheet the ranked member record export.
func MemberRecordsSheet(recs []*models.RequiredWaiver) Sheet {
	header := []string{colAccountNum, colMemberNum, colSigned, colHasKey, colKeyEnabled, "name1", "signed1", "name2", "signed2"}
	header = append(header, numbered(colMinor, models.MaxMinors)...)
	header = append(header, "web_link1", "web_link2")

	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		row := []string{rec.AccountID, rec.MemberID(), yesNo(rec.Signed), yesNo(rec.HasKey), yesNo(rec.KeyEnabled)}
		var links []string
		for i := 0; i < models.MaxFamilyAdults; i++ {
			if i < len(rec.Adults) && rec.Adults[i].Member != nil {
				s := rec.Adults[i]
				row = append(row, s.Member.FullName(), yesNo(s.Signed))
				links = append(links, s.WebLink)
			} else {
				row = append(row, "", "")
				links = append(links, "")
			}
		}
		minors := make([]string, 0, len(rec.Minors))
		for _, m := range rec.Minors {
			minors = append(minors, m.FullName())
		}
		row = append(row, padded(minors, models.MaxMinors)...)
		rows = append(rows, append(row, links...))
	}
	return Sheet{
		Name:   "Member Records",
		File:   "member_records.csv",
		Header: header,
		Rows:   rows,
		Widths: []float64{10, 10, 8, 8, 11, 24, 8, 24, 8},
	}
}

// SignerRequestsSheet the single-signer request list, or with family set
// the per-adult family request list including the record's minors.
func SignerRequestsSheet(reqs []reconcile.SignerRequest, family bool) Sheet {
	header := []string{colAccountNum, colMemberNum, colHasKey, colKeyEnabled, "attest_req", colName, "email"}
	if family {
		header = append(header, numbered(colMinor, models.MaxMinors)...)
	}

	rows := make([][]string, 0, len(reqs))
	for _, r := range reqs {
		row := []string{r.AccountID, r.MemberID, yesNo(r.HasKey), yesNo(r.KeyEnabled), yesNo(r.AttestRequested), r.Name, r.Email}
		if family {
			row = append(row, padded(r.Minors, models.MaxMinors)...)
		}
		rows = append(rows, row)
	}

	sh := Sheet{
		Name:   "Single Signers",
		File:   "single_signers.csv",
		Header: header,
		Rows:   rows,
		Widths: []float64{10, 10, 8, 11, 10, 24, 30},
	}
	if family {
		sh.Name = "Family Signers"
		sh.File = "family_signers.csv"
	}
	return sh
}

// CoveredMembersSheet everyone with valid coverage.
func CoveredMembersSheet(covered []reconcile.CoveredMember) Sheet {
	rows := make([][]string, 0, len(covered))
	for _, c := range covered {
		m := c.Member
		rows = append(rows, []string{m.AccountID, m.ID, m.FirstName, m.LastName, m.Category.String(), "yes", c.DocLink})
	}
	return Sheet{
		Name:   "Covered Members",
		File:   "covered_members.csv",
		Header: []string{colAccountNum, colMemberNum, colFirstName, colLastName, "Type", "Signed", "Doc Link"},
		Rows:   rows,
		Widths: []float64{10, 10, 16, 16, 10, 8, 50},
	}
}

// AttestationRequestsSheet primary members to ask for an attestation.
func AttestationRequestsSheet(reqs []reconcile.AttestationRequest) Sheet {
	header := []string{colAccountNum, colMemberNum, colName, "email"}
	header = append(header, numbered(colMinor, models.MaxMinors)...)

	rows := make([][]string, 0, len(reqs))
	for _, r := range reqs {
		row := []string{r.AccountID, r.MemberID, r.Name, r.Email}
		rows = append(rows, append(row, padded(r.Minors, models.MaxMinors)...))
	}
	return Sheet{
		Name:   "Attestation Requests",
		File:   "attestation_requests.csv",
		Header: header,
		Rows:   rows,
		Widths: []float64{10, 10, 24, 30},
	}
}

// AccountStatusSheet per-account rollup.
func AccountStatusSheet(statuses []reconcile.AccountStatus) Sheet {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		rows = append(rows, []string{
			s.AccountID, s.LastName, s.Email, s.Attestation,
			strconv.Itoa(s.Keys), strconv.Itoa(s.KeysEnabled),
			yesNo(s.MinorsWaivered), yesNo(s.UnwaiveredKeys), yesNo(s.AllWaivered),
		})
	}
	header := []string{
		colAccountNum, "Name", "Email", "Attestation Status", "Number of Keys",
		"Keys Enabled", "Minors Waivered", "Keys w/o Waivers", "All Waivered",
	}
	return Sheet{
		Name:   "Account Status",
		File:   "account_status.csv",
		Header: header,
		Rows:   rows,
		Widths: []float64{10, 18, 30, 18, 15, 13, 16, 17, 13},
	}
}

// KeyStatusSheet one row per access key with its binding problem, if any.
func KeyStatusSheet(creds *roster.Credentials) Sheet {
	issues := make(map[*models.CredentialEntry]string)
	for _, ci := range creds.Issues() {
		if _, ok := issues[ci.Entry]; !ok {
			issues[ci.Entry] = ci.Issue
		}
	}

	entries := creds.Entries()
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.MemberID, e.AccountID, e.FullName(), e.Email, yesNo(e.Enabled), issues[e], e.KeyID})
	}
	return Sheet{
		Name:   "Key Status",
		File:   "key_status.csv",
		Header: []string{colMemberNum, colAccountNum, "Name", "Email", "Enabled", "Issue", colExternKey},
		Rows:   rows,
		Widths: []float64{10, 10, 24, 30, 8, 50, 14},
	}
}

// SummarySheet run totals as label/value rows.
func SummarySheet(s reconcile.Summary) Sheet {
	pairs := []struct {
		label string
		value int
	}{
		{"Adults signed", s.AdultsSigned},
		{"Adults unsigned", s.AdultsUnsigned},
		{"Family records signed", s.FamilyRecordsSigned},
		{"Family records unsigned", s.FamilyRecordsUnsigned},
		{"Family members signed", s.FamilyMembersSigned},
		{"Family members unsigned", s.FamilyMembersUnsigned},
		{"Unknown parentage accounts", s.UnknownAccounts},
		{"Covered members", s.CoveredMembers},
	}
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{p.label, strconv.Itoa(p.value)})
	}
	return Sheet{
		Name:   "Summary",
		File:   "summary.csv",
		Header: []string{"Total", "Count"},
		Rows:   rows,
		Widths: []float64{30, 10},
	}
}
