package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestMember_Age(t *testing.T) {
	asOf := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		birthdate *time.Time
		wantAge   int
		wantOK    bool
	}{
		{"unknown", nil, 0, false},
		{"birthday passed", date(2015, 6, 1), 10, true},
		{"birthday today", date(2015, 6, 15), 10, true},
		{"birthday ahead", date(2015, 6, 16), 9, true},
		{"placeholder year", date(1, 1, 1), 0, false},
		{"future", date(2030, 1, 1), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Member{Birthdate: tt.birthdate}
			age, ok := m.Age(asOf)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantAge, age)
		})
	}
}

func TestMember_IsMinor(t *testing.T) {
	asOf := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	assert.True(t, (&Member{Birthdate: date(2010, 1, 1), Category: CategoryAdult}).IsMinor(asOf))
	assert.False(t, (&Member{Birthdate: date(2000, 1, 1), Category: CategoryChild}).IsMinor(asOf))
	// unknown birthdate falls back to the category
	assert.True(t, (&Member{Category: CategoryChild}).IsMinor(asOf))
	assert.False(t, (&Member{Category: CategoryAdult}).IsMinor(asOf))
}

func TestParseMemberCategory(t *testing.T) {
	assert.Equal(t, CategoryAdult, ParseMemberCategory(" adult "))
	assert.Equal(t, CategoryChild, ParseMemberCategory("Child"))
	assert.Equal(t, CategoryCaretaker, ParseMemberCategory("Caretaker"))
	assert.Equal(t, CategoryOther, ParseMemberCategory("Nanny"))
}

func TestParseTriState(t *testing.T) {
	assert.Equal(t, Yes, ParseTriState("Y"))
	assert.Equal(t, Yes, ParseTriState("yes"))
	assert.Equal(t, No, ParseTriState("n"))
	assert.Equal(t, Unknown, ParseTriState("?"))
	assert.Equal(t, Unknown, ParseTriState(""))
	assert.Equal(t, "?", Unknown.String())
	assert.Equal(t, "Y", ParseTriState("Y").String())
}

func TestRequiredWaiver_UpdateSigned(t *testing.T) {
	a := &Member{ID: "1", AccountID: "A"}
	b := &Member{ID: "2", AccountID: "A"}
	r := NewFamilyRecord("A", []*Member{a, b}, nil)

	r.UpdateSigned()
	assert.False(t, r.Signed)

	r.Adults[0].Signed = true
	r.UpdateSigned()
	assert.False(t, r.Signed)

	r.Adults[1].Signed = true
	r.UpdateSigned()
	assert.True(t, r.Signed)

	empty := &RequiredWaiver{Kind: KindFamily}
	empty.UpdateSigned()
	assert.False(t, empty.Signed)
	assert.Equal(t, "", empty.MemberID())
}

func TestRequiredWaiver_Slots(t *testing.T) {
	a := &Member{ID: "1", AccountID: "A"}
	kid := &Member{ID: "3", AccountID: "A"}
	r := NewFamilyRecord("A", []*Member{a}, []*Member{kid})

	assert.Equal(t, 0, r.SlotFor("1"))
	assert.Equal(t, -1, r.SlotFor("3"))
	assert.Equal(t, []*Member{a, kid}, r.Members())
	assert.True(t, r.HasMinors())

	r.Adults[0].Signed = true
	r.Adults[0].WebLink = "https://docs/1"
	assert.Equal(t, "https://docs/1", r.WebLink())
}

func TestAttestation_SignerNames(t *testing.T) {
	a := &Attestation{Adults: []Person{{Name: "Jane Doe"}, {Name: "John Doe"}}}
	assert.Equal(t, []string{"Jane Doe"}, a.SignerNames())
	assert.True(t, a.IsFamily())
	assert.Nil(t, (&Attestation{}).SignerNames())
}

func TestCredentialEntry_IsStaff(t *testing.T) {
	assert.True(t, (&CredentialEntry{AccountID: "Staff-12"}).IsStaff())
	assert.False(t, (&CredentialEntry{AccountID: "1002"}).IsStaff())
}
