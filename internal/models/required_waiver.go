package models

// MaxFamilyAdults adult slots in the persisted family record
const MaxFamilyAdults = 2

// MaxMinors minors representable in persisted records and documents
const MaxMinors = 5

// RecordKind shape of a required waiver record
type RecordKind int

const (
	KindAdult RecordKind = iota
	KindFamily
)

func (k RecordKind) String() string {
	if k == KindFamily {
		return "family"
	}
	return "adult"
}

// SignerSlot one adult signature required by a record
type SignerSlot struct {
	Member  *Member
	Signed  bool
	WebLink string
}

// RequiredWaiver unit of compliance tracking
type RequiredWaiver struct {
	Kind      RecordKind
	AccountID string
	Adults    []SignerSlot
	Minors    []*Member
	Signed    bool

	// Credential flags, consulted from the key registry
	HasKey     bool
	KeyEnabled bool
	KeyEmail   string
}

// NewAdultRecord creates an adult-only record for m.
func NewAdultRecord(m *Member) *RequiredWaiver {
	return &RequiredWaiver{
		Kind:      KindAdult,
		AccountID: m.AccountID,
		Adults:    []SignerSlot{{Member: m}},
	}
}

// NewFamilyRecord creates a family record.
func NewFamilyRecord(accountID string, parents, minors []*Member) *RequiredWaiver {
	r := &RequiredWaiver{
		Kind:      KindFamily,
		AccountID: accountID,
		Minors:    append([]*Member(nil), minors...),
	}
	for _, p := range parents {
		r.Adults = append(r.Adults, SignerSlot{Member: p})
	}
	return r
}

// Adult first adult of the record, nil for an empty record.
func (r *RequiredWaiver) Adult() *Member {
	if len(r.Adults) == 0 {
		return nil
	}
	return r.Adults[0].Member
}

// MemberID id of the first adult, "" for an empty record.
func (r *RequiredWaiver) MemberID() string {
	if m := r.Adult(); m != nil {
		return m.ID
	}
	return ""
}

// WebLink link of the first signed slot.
func (r *RequiredWaiver) WebLink() string {
	for _, s := range r.Adults {
		if s.Signed && s.WebLink != "" {
			return s.WebLink
		}
	}
	return ""
}

// HasMinors reports whether the record lists any minors.
func (r *RequiredWaiver) HasMinors() bool {
	return len(r.Minors) > 0
}

// SlotFor returns the slot index for memberID, or -1.
func (r *RequiredWaiver) SlotFor(memberID string) int {
	for i, s := range r.Adults {
		if s.Member != nil && s.Member.ID == memberID {
			return i
		}
	}
	return -1
}

// Members adults then minors.
func (r *RequiredWaiver) Members() []*Member {
	out := make([]*Member, 0, len(r.Adults)+len(r.Minors))
	for _, s := range r.Adults {
		out = append(out, s.Member)
	}
	return append(out, r.Minors...)
}

// UpdateSigned sets Signed to true iff every adult slot is signed.
// A record with no adult slots is never signed.
func (r *RequiredWaiver) UpdateSigned() {
	if len(r.Adults) == 0 {
		r.Signed = false
		return
	}
	for _, s := range r.Adults {
		if !s.Signed {
			r.Signed = false
			return
		}
	}
	r.Signed = true
}

// Partitions output of required-waiver grouping
type Partitions struct {
	Adults   []*RequiredWaiver
	Families []*RequiredWaiver
	// Family-shaped records whose parents could not be determined
	Unknown []*RequiredWaiver
}

// All adult and family records, in that order. Unknown records are excluded.
func (p *Partitions) All() []*RequiredWaiver {
	out := make([]*RequiredWaiver, 0, len(p.Adults)+len(p.Families))
	out = append(out, p.Adults...)
	return append(out, p.Families...)
}
