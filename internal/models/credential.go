package models

import "strings"

// CredentialEntry access key row from the key system export
type CredentialEntry struct {
	FirstName string
	LastName  string
	Email     string
	AccountID string // "UserName"
	Enabled   bool   // "Credential Status" == Active
	KeyID     string // "ExternKeyID"

	// MemberID is the bound roster member, "" until bound.
	MemberID string
}

// FullName "First Last"
func (c *CredentialEntry) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// IsStaff staff keys use a "staff" prefixed user name
func (c *CredentialEntry) IsStaff() bool {
	return strings.HasPrefix(strings.ToLower(c.AccountID), "staff")
}
