package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"waiver-reconciler/internal/dates"
	"waiver-reconciler/internal/models"
)

func testDocuments() *models.DocumentSet {
	bd := time.Date(2015, 6, 7, 0, 0, 0, 0, time.UTC)
	return &models.DocumentSet{
		MemberWaivers: []*models.MemberWaiver{{
			Signatures: []models.Signature{{Name: "Jane Doe", DateText: "3/4/2025"}, {Name: "John Doe", DateText: "March 5, 2025"}},
			Minors:     []string{"Sam Doe"},
			Category:   models.DocFamily,
			Complete:   models.Yes,
			Link:       "https://docs/doe.pdf",
			File:       "doe.pdf",
		}},
		Attestations: []*models.Attestation{{
			Adults:   []models.Person{{Name: "Ann Lee", Email: "ann@example.com"}},
			Minors:   []models.Person{{Name: "Kim Lee", Birthdate: &bd}},
			Complete: models.Unknown,
			Reviewed: true,
			Link:     "https://docs/lee.pdf",
			File:     "lee.pdf",
		}},
		Guests: []*models.GuestWaiver{{
			Signer:   "Pat Visitor",
			DateText: "May 3, 2025",
			Minors:   []string{"Ava Visitor"},
			File:     "guest.pdf",
		}},
	}
}

func documentPaths(dir string) DocumentPaths {
	return DocumentPaths{
		MemberWaivers: filepath.Join(dir, "member_waivers.csv"),
		Attestations:  filepath.Join(dir, "attestations.csv"),
		Guests:        filepath.Join(dir, "guest_waivers.csv"),
	}
}

func TestDocuments_RoundTrip(t *testing.T) {
	paths := documentPaths(t.TempDir())
	store := NewStore(false, zap.NewNop())
	parser := dates.NewParser(dates.DefaultYearPivot)

	require.NoError(t, store.SaveDocuments(paths, testDocuments()))
	got, err := store.LoadDocuments(paths, parser)
	require.NoError(t, err)

	require.Len(t, got.MemberWaivers, 1)
	w := got.MemberWaivers[0]
	assert.Equal(t, []string{"Jane Doe", "John Doe"}, w.SignerNames())
	require.NotNil(t, w.Signatures[1].Date)
	assert.Equal(t, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), *w.Signatures[1].Date)
	assert.Equal(t, []string{"Sam Doe"}, w.Minors)
	assert.Equal(t, models.DocFamily, w.Category)
	assert.Equal(t, models.Yes, w.Complete)
	assert.False(t, w.Reviewed)
	assert.Equal(t, "doe.pdf", w.File)

	require.Len(t, got.Attestations, 1)
	a := got.Attestations[0]
	assert.Equal(t, "Ann Lee", a.Signer().Name)
	assert.Equal(t, "ann@example.com", a.Signer().Email)
	assert.Nil(t, a.Signer().Birthdate)
	require.Len(t, a.Minors, 1)
	require.NotNil(t, a.Minors[0].Birthdate)
	assert.Equal(t, 2015, a.Minors[0].Birthdate.Year())
	assert.Equal(t, models.Unknown, a.Complete)
	assert.True(t, a.Reviewed)

	require.Len(t, got.Guests, 1)
	assert.Equal(t, "Pat Visitor", got.Guests[0].Signer)
	require.NotNil(t, got.Guests[0].Date)
	assert.Equal(t, time.May, got.Guests[0].Date.Month())
}

func TestDocuments_StableOutput(t *testing.T) {
	paths := documentPaths(t.TempDir())
	store := NewStore(false, zap.NewNop())
	parser := dates.NewParser(dates.DefaultYearPivot)

	require.NoError(t, store.SaveDocuments(paths, testDocuments()))
	before := readFile(t, paths.Attestations) + readFile(t, paths.MemberWaivers)

	docs, err := store.LoadDocuments(paths, parser)
	require.NoError(t, err)
	require.NoError(t, store.SaveDocuments(paths, docs))

	assert.Equal(t, before, readFile(t, paths.Attestations)+readFile(t, paths.MemberWaivers))
}

func TestLoadMemberWaivers_DropsRowWithoutFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "member_waivers.csv", "signer1,date1,type,complete,file\nJane Doe,,individual,?,\nJohn Doe,,individual,N,john.pdf\n")

	waivers, err := NewStore(false, zap.NewNop()).LoadMemberWaivers(path, dates.NewParser(dates.DefaultYearPivot))
	require.NoError(t, err)

	require.Len(t, waivers, 1)
	assert.Equal(t, "john.pdf", waivers[0].File)
	assert.Equal(t, models.No, waivers[0].Complete)
	assert.Equal(t, models.DocIndividual, waivers[0].Category)
}

func TestLoadInbox(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "inbox.csv", "file_id,file_name,web_link,text,Signer1,minor1\n"+
		"f1,doe.pdf,https://docs/doe.pdf,,Jane Doe,Sam Doe\n"+
		"f2,att.pdf,,\"Proprietary Member Name:\nAnn Lee\",,\n"+
		"f3,,,,,\n")

	docs, err := NewStore(false, zap.NewNop()).LoadInbox(path)
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "f1", docs[0].FileID)
	assert.Equal(t, "Jane Doe", docs[0].Regions["signer1"])
	assert.Equal(t, "Sam Doe", docs[0].Regions["minor1"])
	assert.Equal(t, "Proprietary Member Name:\nAnn Lee", docs[1].Text)
}
