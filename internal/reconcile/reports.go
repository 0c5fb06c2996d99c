package reconcile

import (
	"go.uber.org/zap"

	"waiver-reconciler/internal/models"
	"waiver-reconciler/internal/roster"
)

// AttestationRequest primary member of an account without a complete
// attestation
type AttestationRequest struct {
	AccountID string
	MemberID  string
	Name      string
	Email     string
	Minors    []string
}

// AttestationRequests one row per eligible account whose members have no
// complete attestation. Accounts without a primary member are skipped.
func AttestationRequests(r *roster.Roster, p Policy, parts *models.Partitions, ix *DocumentIndex, logger *zap.Logger) []AttestationRequest {
	byMember := recordsByMember(parts)

	var out []AttestationRequest
	for _, account := range r.EligibleAccounts(p.EligibleAccountTypes) {
		if attestationStatus(r, account.ID, ix) == AttestGood {
			continue
		}
		primary := r.PrimaryMember(account.ID)
		if primary == nil {
			logger.Warn("no primary member for attestation request", zap.String("account_id", account.ID))
			continue
		}
		req := AttestationRequest{
			AccountID: account.ID,
			MemberID:  primary.ID,
			Name:      primary.FullName(),
			Email:     primary.Email,
		}
		if rec, ok := byMember[primary.ID]; ok && rec.Kind == models.KindFamily {
			req.Minors = minorNames(rec)
		}
		out = append(out, req)
	}
	return out
}

// Attestation status values
const (
	AttestNone         = "None"
	AttestGood         = "Good"
	AttestInconsistent = "Inconsistent"
)

func attestationStatus(r *roster.Roster, accountID string, ix *DocumentIndex) string {
	status := AttestNone
	for _, m := range r.MembersOf(accountID) {
		doc, ok := ix.Attestations.Get(m.ID)
		if !ok {
			continue
		}
		if models.IsComplete(doc) {
			return AttestGood
		}
		status = AttestInconsistent
	}
	return status
}

// AccountStatus per-account rollup
type AccountStatus struct {
	AccountID      string
	LastName       string
	Email          string
	Attestation    string
	Keys           int
	KeysEnabled    int
	MinorsWaivered bool
	UnwaiveredKeys bool
	AllWaivered    bool
}

// AccountStatuses rolls up records and keys for every eligible account.
// Unknown records count as unsigned.
func AccountStatuses(r *roster.Roster, p Policy, parts *models.Partitions, ix *DocumentIndex, creds *roster.Credentials) []AccountStatus {
	byAccount := make(map[string][]*models.RequiredWaiver)
	for _, group := range [][]*models.RequiredWaiver{parts.Adults, parts.Families, parts.Unknown} {
		for _, rec := range group {
			byAccount[rec.AccountID] = append(byAccount[rec.AccountID], rec)
		}
	}

	var out []AccountStatus
	for _, account := range r.EligibleAccounts(p.EligibleAccountTypes) {
		st := AccountStatus{
			AccountID:      account.ID,
			LastName:       account.BillingLastName,
			Email:          account.Email,
			Attestation:    attestationStatus(r, account.ID, ix),
			MinorsWaivered: true,
			AllWaivered:    true,
		}
		for _, rec := range byAccount[account.ID] {
			if rec.HasMinors() && !rec.Signed {
				st.MinorsWaivered = false
			}
			if !rec.Signed {
				st.AllWaivered = false
				if rec.KeyEnabled {
					st.UnwaiveredKeys = true
				}
			}
		}
		for _, m := range r.MembersOf(account.ID) {
			if creds.HasKey(m.ID) {
				st.Keys++
			}
			if creds.HasEnabledKey(m.ID) {
				st.KeysEnabled++
			}
		}
		out = append(out, st)
	}
	return out
}
