package models

import (
	"strings"
	"time"
)

// Document size limits
const (
	MaxWaiverSigners    = 2
	MaxAttestationAdult = 4
)

// TriState explicit unknown/yes/no
type TriState int

const (
	Unknown TriState = iota
	Yes
	No
)

// ParseTriState accepts Y/yes/N/no in any case; anything else is Unknown.
func ParseTriState(s string) TriState {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return Unknown
	case s[0] == 'y':
		return Yes
	case s[0] == 'n':
		return No
	default:
		return Unknown
	}
}

// String persisted form: "Y", "N" or "?"
func (t TriState) String() string {
	switch t {
	case Yes:
		return "Y"
	case No:
		return "N"
	default:
		return "?"
	}
}

// TriStateOf converts a known boolean.
func TriStateOf(b bool) TriState {
	if b {
		return Yes
	}
	return No
}

// DocCategory member waiver type
type DocCategory int

const (
	DocIndividual DocCategory = iota
	DocFamily
)

// ParseDocCategory "family" or anything else (individual).
func ParseDocCategory(s string) DocCategory {
	if strings.EqualFold(strings.TrimSpace(s), "family") {
		return DocFamily
	}
	return DocIndividual
}

func (c DocCategory) String() string {
	if c == DocFamily {
		return "family"
	}
	return "individual"
}

// Document common view of member waivers and attestations used by the
// document index and the coverage engine.
type Document interface {
	// SignerNames names the document binds to, authoritative signer first.
	SignerNames() []string
	MinorCount() int
	IsFamily() bool
	Completeness() TriState
	SetComplete(complete bool)
	IsReviewed() bool
	WebLink() string
	FileName() string
}

// IsComplete reports whether doc is known complete.
func IsComplete(doc Document) bool {
	return doc.Completeness() == Yes
}

// Signature a signer on a member waiver
type Signature struct {
	Name     string
	DateText string
	Date     *time.Time // parsed DateText, nil when unparseable
}

// MemberWaiver signed member waiver
type MemberWaiver struct {
	Signatures []Signature
	Minors     []string
	Category   DocCategory
	Complete   TriState
	Reviewed   bool
	Link       string
	File       string
}

func (w *MemberWaiver) SignerNames() []string {
	out := make([]string, 0, len(w.Signatures))
	for _, s := range w.Signatures {
		out = append(out, s.Name)
	}
	return out
}

func (w *MemberWaiver) MinorCount() int { return len(w.Minors) }
func (w *MemberWaiver) IsFamily() bool { return w.Category == DocFamily }
func (w *MemberWaiver) Completeness() TriState { return w.Complete }
func (w *MemberWaiver) SetComplete(c bool) { w.Complete = TriStateOf(c) }
func (w *MemberWaiver) IsReviewed() bool { return w.Reviewed }
func (w *MemberWaiver) WebLink() string { return w.Link }
func (w *MemberWaiver) FileName() string { return w.File }

// Person adult or minor listed on an attestation
type Person struct {
	Name      string
	Email     string
	Birthdate *time.Time
}

// Attestation household attestation; Adults[0] is the signer
type Attestation struct {
	Adults   []Person
	Minors   []Person
	Complete TriState
	Reviewed bool
	Link     string
	File     string
}

// Signer authoritative signer, zero value when the attestation has no adults.
func (a *Attestation) Signer() Person {
	if len(a.Adults) == 0 {
		return Person{}
	}
	return a.Adults[0]
}

// SignerNames only the first adult signs an attestation.
func (a *Attestation) SignerNames() []string {
	if len(a.Adults) == 0 {
		return nil
	}
	return []string{a.Adults[0].Name}
}

func (a *Attestation) MinorCount() int { return len(a.Minors) }
func (a *Attestation) IsFamily() bool { return true }
func (a *Attestation) Completeness() TriState { return a.Complete }
func (a *Attestation) SetComplete(c bool) { a.Complete = TriStateOf(c) }
func (a *Attestation) IsReviewed() bool { return a.Reviewed }
func (a *Attestation) WebLink() string { return a.Link }
func (a *Attestation) FileName() string { return a.File }

// GuestWaiver waiver for a non-member guest. Informational only, never
// reconciled against the roster.
type GuestWaiver struct {
	Signer   string
	DateText string
	Date     *time.Time
	Minors   []string
	Link     string
	File     string
}

// DocumentSet documents on file for a run
type DocumentSet struct {
	MemberWaivers []*MemberWaiver
	Attestations  []*Attestation
	Guests        []*GuestWaiver
}
