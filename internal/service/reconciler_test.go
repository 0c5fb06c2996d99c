package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"waiver-reconciler/internal/config"
	"waiver-reconciler/internal/intake"
	"waiver-reconciler/internal/lock"
	"waiver-reconciler/internal/repository"
)

var asOf = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

const accountsCSV = `Acct #,Acct Type,First Name,Last Name,Email
100,Proprietary Member Annual,Jane,Doe,jane@example.com
200,Proprietary Member Annual,Ann,Lee,ann@example.com
300,Staff,Sue,Staff,sue@example.com
`

const membersCSV = `Acct #,Member ID,Member Type,First Name,Last Name,Email,Birthdate
100,1,Adult,Jane,Doe,jane@example.com,1985-03-01
100,2,Adult,John,Doe,john@example.com,1983-01-01
100,3,Child,Sam,Doe,,2015-01-01
200,4,Adult,Ann,Lee,ann@example.com,1995-01-01
300,5,Adult,Sue,Staff,sue@example.com,1980-01-01
`

const keysCSV = `First Name,Last Name,Email,UserName,Credential Status,ExternKeyID
Ann,Lee,ann.key@example.com,200,Active,K-4
Sue,Staff,sue@example.com,staff300,Active,K-5
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

// testConfig lays out a roster in a temp dir and points the config at it.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Input.AccountsFile = filepath.Join(dir, "input", "accounts.csv")
	cfg.Input.MembersFile = filepath.Join(dir, "input", "members.csv")
	cfg.Input.ParentsFile = filepath.Join(dir, "input", "parents.csv")
	cfg.Input.KeysFile = filepath.Join(dir, "input", "keys.csv")
	cfg.Output.Dir = filepath.Join(dir, "output")
	cfg.Output.Workbook = false

	writeFile(t, cfg.Input.AccountsFile, accountsCSV)
	writeFile(t, cfg.Input.MembersFile, membersCSV)
	writeFile(t, cfg.Input.KeysFile, keysCSV)
	return cfg
}

func fileLocks(cfg *config.Config) LockFactory {
	return func(token string) lock.Locker {
		return lock.NewFileLock(cfg.OutputPath(".run.lock"), time.Minute, token, zap.NewNop())
	}
}

func newTestReconciler(cfg *config.Config, mirror *repository.RegistryMirror) *Reconciler {
	rec := NewReconciler(cfg, fileLocks(cfg), mirror, zap.NewNop())
	rec.now = func() time.Time { return asOf }
	return rec
}

func doeWaiver(t *testing.T, cfg *config.Config) {
	t.Helper()
	writeFile(t, cfg.OutputPath(cfg.Output.MemberWaiversFile),
		"signer1,date1,signer2,date2,minor1,type,complete,reviewed,link,file\n"+
			"Jane Doe,1/2/2025,John Doe,1/2/2025,Sam Doe,family,,,https://docs/doe.pdf,doe.pdf\n")
}

func loadRows(t *testing.T, path string) []repository.Row {
	t.Helper()
	rows, err := repository.ReadTable(path, nil)
	require.NoError(t, err)
	return rows
}

func TestRun_FamilyWaiverCoversDoeFamily(t *testing.T) {
	cfg := testConfig(t)
	doeWaiver(t, cfg)

	res, err := newTestReconciler(cfg, nil).Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 1, res.Summary.FamilyRecordsSigned)
	assert.Equal(t, 0, res.Summary.FamilyRecordsUnsigned)
	assert.Equal(t, 1, res.Summary.AdultsUnsigned)
	assert.Equal(t, 1, res.Reviewed)

	families := loadRows(t, cfg.OutputPath(cfg.Output.FamilyRecordsFile))
	require.Len(t, families, 1)
	f := families[0]
	assert.Equal(t, "100", f.Get("Account#"))
	assert.Equal(t, "1", f.Get("Member#"))
	assert.Equal(t, "yes", f.Get("signed"))
	assert.Equal(t, "Jane Doe", f.Get("name"))
	assert.Equal(t, "John Doe", f.Get("name2"))
	assert.Equal(t, "yes", f.Get("signed1"))
	assert.Equal(t, "yes", f.Get("signed2"))
	assert.Equal(t, "https://docs/doe.pdf", f.Get("web_link1"))
	assert.Equal(t, "Sam Doe", f.Get("minor1"))

	adults := loadRows(t, cfg.OutputPath(cfg.Output.AdultRecordsFile))
	require.Len(t, adults, 1)
	assert.Equal(t, "4", adults[0].Get("Member#"))
	assert.Equal(t, "no", adults[0].Get("signed"))
	assert.Equal(t, "yes", adults[0].Get("has_key"))
	assert.Equal(t, "yes", adults[0].Get("key_enabled"))
	assert.Equal(t, "ann.key@example.com", adults[0].Get("key_email"))

	// the review decision is written back to the document table
	waivers := loadRows(t, cfg.OutputPath(cfg.Output.MemberWaiversFile))
	require.Len(t, waivers, 1)
	assert.Equal(t, "Y", waivers[0].Get("complete"))

	for _, name := range []string{"summary.csv", "member_records.csv", "single_signers.csv",
		"family_signers.csv", "attestation_requests.csv", "covered_members.csv",
		"account_status.csv", "key_status.csv"} {
		assert.FileExists(t, cfg.ReportPath(name))
	}
	assert.NoFileExists(t, cfg.ReportPath(WorkbookFile))
	assert.NoFileExists(t, cfg.OutputPath(".run.lock"))
}

func TestRun_Idempotent(t *testing.T) {
	cfg := testConfig(t)
	doeWaiver(t, cfg)
	rec := newTestReconciler(cfg, nil)

	_, err := rec.Run(context.Background())
	require.NoError(t, err)

	files := []string{
		cfg.Output.AdultRecordsFile,
		cfg.Output.FamilyRecordsFile,
		cfg.Output.UnknownFile,
		cfg.Output.MemberWaiversFile,
	}
	first := make(map[string]string)
	for _, name := range files {
		first[name] = readFile(t, cfg.OutputPath(name))
	}

	_, err = rec.Run(context.Background())
	require.NoError(t, err)
	for _, name := range files {
		assert.Equal(t, first[name], readFile(t, cfg.OutputPath(name)), name)
	}

	// the first run's registry was rotated, not lost
	assert.Equal(t, first[cfg.Output.FamilyRecordsFile], readFile(t, cfg.OutputPath("family_records.1.csv")))
}

func TestRun_CarriesSignaturesForward(t *testing.T) {
	cfg := testConfig(t)
	doeWaiver(t, cfg)
	rec := newTestReconciler(cfg, nil)

	_, err := rec.Run(context.Background())
	require.NoError(t, err)

	// the document table is replaced by one without the Doe waiver
	writeFile(t, cfg.OutputPath(cfg.Output.MemberWaiversFile), "signer1,file\n")

	res, err := rec.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Carried)
	assert.Equal(t, 1, res.Summary.FamilyRecordsSigned)
}

func TestRun_WritesWorkbook(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Workbook = true

	_, err := newTestReconciler(cfg, nil).Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, cfg.ReportPath(WorkbookFile))
}

func TestRun_MissingRoster(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.Remove(cfg.Input.MembersFile))

	_, err := newTestReconciler(cfg, nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRosterUnavailable)
	assert.NoFileExists(t, cfg.OutputPath(cfg.Output.AdultRecordsFile))
	assert.NoFileExists(t, cfg.OutputPath(".run.lock"))
}

func TestRun_Locked(t *testing.T) {
	cfg := testConfig(t)
	held := lock.NewFileLock(cfg.OutputPath(".run.lock"), time.Minute, "other-run", zap.NewNop())
	require.NoError(t, held.Acquire(context.Background()))

	_, err := newTestReconciler(cfg, nil).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, lock.ErrRunLocked)
	assert.NoFileExists(t, cfg.OutputPath(cfg.Output.AdultRecordsFile))

	require.NoError(t, held.Release(context.Background()))
}

func TestRun_Mirror(t *testing.T) {
	cfg := testConfig(t)
	doeWaiver(t, cfg)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO waiver_runs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM required_waivers").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO required_waivers").
		WithArgs(sqlmock.AnyArg(), "adult", "200", "4", "Ann Lee", "", false, true, true, "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO required_waivers").
		WithArgs(sqlmock.AnyArg(), "family", "100", "1", "Jane Doe; John Doe", "Sam Doe", true, false, false, "https://docs/doe.pdf").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	mirror := repository.NewRegistryMirror(db, zap.NewNop())
	_, err = newTestReconciler(cfg, mirror).Run(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIngest_MemberWaivers(t *testing.T) {
	cfg := testConfig(t)
	inbox := filepath.Join(t.TempDir(), "inbox.csv")
	writeFile(t, inbox, "file_id,file_name,web_link,Signer1,Date1,Signer2,Date2,Minor1\n"+
		"f1,doe.pdf,https://docs/doe.pdf,Jane Doe,1/2/2025,John Doe,1/2/2025,Sam Doe\n"+
		"f2,lee.pdf,https://docs/lee.pdf,Ann Lee,3/4/2025,,,\n")
	rec := newTestReconciler(cfg, nil)

	stats, err := rec.Ingest(context.Background(), intake.KindMemberWaiver, inbox)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Added)

	rows := loadRows(t, cfg.OutputPath(cfg.Output.MemberWaiversFile))
	require.Len(t, rows, 2)
	assert.Equal(t, "Jane Doe", rows[0].Get("signer1"))
	assert.Equal(t, "family", rows[0].Get("type"))
	assert.Equal(t, "Sam Doe", rows[0].Get("minor1"))
	assert.Equal(t, "individual", rows[1].Get("type"))
	assert.Equal(t, "?", rows[1].Get("complete"))

	// a second ingest of the same inbox adds nothing
	stats, err = rec.Ingest(context.Background(), intake.KindMemberWaiver, inbox)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Added)
	assert.Equal(t, 2, stats.Skipped)

	// and the ingested waivers feed the next run
	res, err := rec.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.FamilyRecordsSigned)
	assert.Equal(t, 1, res.Summary.AdultsSigned)
}

func TestParents(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	drafts, err := newTestReconciler(cfg, nil).Parents(context.Background(), &out)
	require.NoError(t, err)

	require.Len(t, drafts, 1)
	assert.Equal(t, "100", drafts[0].AccountID)
	assert.Equal(t, []string{"Jane Doe", "John Doe"}, drafts[0].Parents)
	assert.Equal(t, []string{"Sam Doe"}, drafts[0].Minors)
	assert.Equal(t, "100\tparents: Jane Doe, John Doe\tminors: Sam Doe\n", out.String())

	rows := loadRows(t, cfg.ReportPath(DraftOverridesFile))
	require.Len(t, rows, 1)
	assert.Equal(t, "Jane Doe", rows[0].Get("parent1"))
	assert.Equal(t, "Sam Doe", rows[0].Get("minor1"))
}

func TestParents_ListsOverriddenAccounts(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, cfg.Input.ParentsFile, "Account#,parent1,parent2,minor1\n100,Jane Doe,,Sam Doe\n")
	var out bytes.Buffer

	drafts, err := newTestReconciler(cfg, nil).Parents(context.Background(), &out)
	require.NoError(t, err)
	assert.Empty(t, drafts)
	assert.Equal(t, "100\toverride\n", out.String())
}
