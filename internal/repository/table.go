// Package repository reads and writes the row-oriented tables the
// reconciler consumes and produces: roster exports (CSV or XLSX),
// persisted registries, document records and reports.
package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrMalformedRecord a table or row does not have the expected shape
var ErrMalformedRecord = errors.New("malformed persisted record")

// maxBackups upper bound on <name>.<n>.csv backup numbers
const maxBackups = 10000

// Row one data row keyed by header name
type Row map[string]string

// Get trimmed value of col, "" when the column is absent.
func (r Row) Get(col string) string {
	return strings.TrimSpace(r[col])
}

// ReadTable reads a table with a header row. Files ending in .xlsx are
// read from their first sheet, anything else as CSV. Every column in
// required must be present in the header.
func ReadTable(path string, required []string) ([]Row, error) {
	var (
		records [][]string
		err     error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		records, err = readXLSX(path)
	} else {
		records, err = readCSV(path)
	}
	if err != nil {
		return nil, err
	}
	return toRows(path, records, required)
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook %s has no sheets", ErrMalformedRecord, path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s of %s: %w", sheets[0], path, err)
	}
	return rows, nil
}

func toRows(path string, records [][]string, required []string) ([]Row, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s has no header row", ErrMalformedRecord, path)
	}

	header := make([]string, len(records[0]))
	present := make(map[string]bool, len(header))
	for i, h := range records[0] {
		// spreadsheet exports sometimes carry a BOM on the first cell
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		header[i] = h
		present[h] = true
	}
	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s is missing columns %s", ErrMalformedRecord, path, strings.Join(missing, ", "))
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make(Row, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// WriteTable writes header and rows as CSV, creating parent directories.
// With backup set, an existing file is first renamed by BackupFile.
func WriteTable(path string, header []string, rows [][]string, backup bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if backup {
		if _, err := BackupFile(path); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("failed to write header of %s: %w", path, err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("failed to write row of %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// BackupFile renames <name>.csv to the first unused <name>.<n>.csv and
// returns the new name. A missing file is not an error and returns "".
func BackupFile(path string) (string, error) {
	if !Exists(path) {
		return "", nil
	}
	if !strings.HasSuffix(path, ".csv") {
		return "", fmt.Errorf("backup needs a .csv file name: %s", path)
	}
	prefix := strings.TrimSuffix(path, ".csv")
	for n := 1; n < maxBackups; n++ {
		name := fmt.Sprintf("%s.%d.csv", prefix, n)
		if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
			if err := os.Rename(path, name); err != nil {
				return "", fmt.Errorf("failed to back up %s: %w", path, err)
			}
			return name, nil
		}
	}
	return "", fmt.Errorf("no unused backup name for %s", path)
}

// numbered returns prefix1..prefixN
func numbered(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return out
}

// yesNo persisted boolean
func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// isYes accepts any value starting with y or Y
func isYes(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && (s[0] == 'y' || s[0] == 'Y')
}
