package reconcile

import (
	"sort"

	"waiver-reconciler/internal/models"
	"waiver-reconciler/internal/roster"
)

// SignerRequest one adult to ask for a signature
type SignerRequest struct {
	AccountID  string
	MemberID   string
	HasKey     bool
	KeyEnabled bool
	// AttestRequested the adult is the primary member and gets the
	// attestation request instead
	AttestRequested bool
	Name            string
	Email           string
	Minors          []string
}

// SingleSignerRequests every unsigned adult-only record.
func SingleSignerRequests(r *roster.Roster, parts *models.Partitions) []SignerRequest {
	var out []SignerRequest
	for _, rec := range parts.Adults {
		if rec.Signed {
			continue
		}
		out = append(out, signerRequest(r, rec, rec.Adult()))
	}
	return out
}

// FamilySignerRequests one row per unsigned adult slot of a family record,
// with the record's minors for context.
func FamilySignerRequests(r *roster.Roster, parts *models.Partitions) []SignerRequest {
	var out []SignerRequest
	for _, rec := range parts.Families {
		for _, s := range rec.Adults {
			if s.Signed {
				continue
			}
			req := signerRequest(r, rec, s.Member)
			req.Minors = minorNames(rec)
			out = append(out, req)
		}
	}
	return out
}

func signerRequest(r *roster.Roster, rec *models.RequiredWaiver, m *models.Member) SignerRequest {
	primary := r.PrimaryMember(m.AccountID)
	return SignerRequest{
		AccountID:       m.AccountID,
		MemberID:        m.ID,
		HasKey:          rec.HasKey,
		KeyEnabled:      rec.KeyEnabled,
		AttestRequested: primary != nil && primary.ID == m.ID,
		Name:            m.FullName(),
		Email:           m.Email,
	}
}

func minorNames(rec *models.RequiredWaiver) []string {
	out := make([]string, 0, len(rec.Minors))
	for _, m := range rec.Minors {
		out = append(out, m.FullName())
	}
	return out
}

// CoveredMember a member with any valid coverage
type CoveredMember struct {
	Member  *models.Member
	DocLink string
}

// CoveredMembers everyone on a signed family record plus every signed
// adult, in account then member id order.
func CoveredMembers(parts *models.Partitions) []CoveredMember {
	seen := make(map[string]bool)
	var out []CoveredMember
	add := func(m *models.Member, link string) {
		if m == nil || seen[m.ID] {
			return
		}
		seen[m.ID] = true
		out = append(out, CoveredMember{Member: m, DocLink: link})
	}

	for _, rec := range parts.Families {
		if !rec.Signed {
			continue
		}
		for _, m := range rec.Members() {
			add(m, rec.WebLink())
		}
	}
	for _, rec := range parts.Adults {
		if rec.Signed {
			add(rec.Adult(), rec.WebLink())
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Member, out[j].Member
		if c := roster.CompareIDs(a.AccountID, b.AccountID); c != 0 {
			return c < 0
		}
		return roster.CompareIDs(a.ID, b.ID) < 0
	})
	return out
}

// Summary run totals
type Summary struct {
	AdultsSigned          int
	AdultsUnsigned        int
	FamilyRecordsSigned   int
	FamilyRecordsUnsigned int
	FamilyMembersSigned   int
	FamilyMembersUnsigned int
	UnknownAccounts       int
	CoveredMembers        int
}

// Summarize counts signed and unsigned records and members.
func Summarize(parts *models.Partitions) Summary {
	var s Summary
	for _, rec := range parts.Adults {
		if rec.Signed {
			s.AdultsSigned++
		} else {
			s.AdultsUnsigned++
		}
	}
	for _, rec := range parts.Families {
		n := len(rec.Adults) + len(rec.Minors)
		if rec.Signed {
			s.FamilyRecordsSigned++
			s.FamilyMembersSigned += n
		} else {
			s.FamilyRecordsUnsigned++
			s.FamilyMembersUnsigned += n
		}
	}
	accounts := make(map[string]bool)
	for _, rec := range parts.Unknown {
		accounts[rec.AccountID] = true
	}
	s.UnknownAccounts = len(accounts)
	s.CoveredMembers = len(CoveredMembers(parts))
	return s
}

// UrgencyRank orders records for chasing: 1 is most urgent.
//
//	1 unsigned, key enabled
//	2 signed, key disabled
//	3 unsigned, key disabled
//	4 signed, key enabled
//	5 unsigned, no key
//	6 signed, no key
func UrgencyRank(rec *models.RequiredWaiver) int {
	switch {
	case rec.HasKey && rec.KeyEnabled && !rec.Signed:
		return 1
	case rec.HasKey && !rec.KeyEnabled && rec.Signed:
		return 2
	case rec.HasKey && !rec.KeyEnabled:
		return 3
	case rec.HasKey:
		return 4
	case !rec.Signed:
		return 5
	default:
		return 6
	}
}

// MemberRecords adult and family records by urgency, then account id,
// family before adult, then member id.
func MemberRecords(parts *models.Partitions) []*models.RequiredWaiver {
	out := parts.All()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := UrgencyRank(a), UrgencyRank(b); ra != rb {
			return ra < rb
		}
		if c := roster.CompareIDs(a.AccountID, b.AccountID); c != 0 {
			return c < 0
		}
		if a.Kind != b.Kind {
			return a.Kind == models.KindFamily
		}
		return roster.CompareIDs(a.MemberID(), b.MemberID()) < 0
	})
	return out
}
