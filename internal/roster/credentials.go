package roster

import (
	"go.uber.org/zap"

	"waiver-reconciler/internal/models"
)

// CredentialIssue problem found while binding a key to the roster
type CredentialIssue struct {
	Entry *models.CredentialEntry
	Issue string
}

// Credentials read-only access key registry keyed by member id
type Credentials struct {
	entries  []*models.CredentialEntry
	byMember map[string][]*models.CredentialEntry
	issues   []CredentialIssue
}

// BindCredentials binds each key to a roster member by exact full name,
// preferring a member of the key's account. Staff keys are ignored.
func BindCredentials(r *Roster, entries []*models.CredentialEntry, logger *zap.Logger) *Credentials {
	c := &Credentials{byMember: make(map[string][]*models.CredentialEntry)}

	for _, e := range entries {
		if e.IsStaff() {
			continue
		}
		c.entries = append(c.entries, e)

		fields := []zap.Field{
			zap.String("name", e.FullName()),
			zap.String("account_id", e.AccountID),
			zap.String("key_id", e.KeyID),
		}

		if _, ok := r.Account(e.AccountID); !ok {
			c.issues = append(c.issues, CredentialIssue{Entry: e, Issue: "Invalid account number"})
		}

		members := r.FindExact(e.FullName())
		if len(members) == 0 {
			logger.Warn("no member found for key", append(fields, zap.String("issue", string(models.IssueKeyMismatch)))...)
			c.issues = append(c.issues, CredentialIssue{Entry: e, Issue: "Invalid member name"})
			continue
		}

		member := members[0]
		for _, m := range members {
			if m.AccountID == e.AccountID {
				member = m
				break
			}
		}
		if len(members) > 1 {
			logger.Warn("multiple members found for key name", append(fields, zap.String("member_id", member.ID))...)
		}
		if member.AccountID != e.AccountID {
			logger.Warn("key and member account numbers don't match",
				append(fields, zap.String("member_account_id", member.AccountID), zap.String("issue", string(models.IssueKeyMismatch)))...)
			c.issues = append(c.issues, CredentialIssue{
				Entry: e,
				Issue: "Key account number does not match member account number " + member.AccountID,
			})
		}

		e.MemberID = member.ID
		c.byMember[member.ID] = append(c.byMember[member.ID], e)
	}

	logger.Info("credentials bound", zap.Int("keys", len(c.entries)), zap.Int("members_with_keys", len(c.byMember)))
	return c
}

// Entries non-staff keys in input order.
func (c *Credentials) Entries() []*models.CredentialEntry {
	return c.entries
}

// Issues binding problems in input order.
func (c *Credentials) Issues() []CredentialIssue {
	return c.issues
}

// HasKey reports whether the member holds any key.
func (c *Credentials) HasKey(memberID string) bool {
	return len(c.byMember[memberID]) > 0
}

// HasEnabledKey reports whether the member holds an enabled key.
func (c *Credentials) HasEnabledKey(memberID string) bool {
	for _, e := range c.byMember[memberID] {
		if e.Enabled {
			return true
		}
	}
	return false
}

// KeyEmail address on file with the key system, enabled keys first.
func (c *Credentials) KeyEmail(memberID string) string {
	keys := c.byMember[memberID]
	for _, e := range keys {
		if e.Enabled && e.Email != "" {
			return e.Email
		}
	}
	for _, e := range keys {
		if e.Email != "" {
			return e.Email
		}
	}
	return ""
}
