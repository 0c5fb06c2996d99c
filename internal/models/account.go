package models

import "strings"

// Account a billable household
type Account struct {
	ID               string
	Category         string // "Acct Type"
	BillingFirstName string
	BillingLastName  string
	Email            string
}

// BillingName "First Last" of the billing contact
func (a *Account) BillingName() string {
	return strings.TrimSpace(a.BillingFirstName + " " + a.BillingLastName)
}

// HasCategory reports whether the account category is one of categories.
func (a *Account) HasCategory(categories []string) bool {
	for _, c := range categories {
		if a.Category == c {
			return true
		}
	}
	return false
}

// ParentOverride manually curated parent/minor split for one family group.
// Names are full names as written in the override table.
type ParentOverride struct {
	AccountID string
	Parents   []string
	Minors    []string
}
