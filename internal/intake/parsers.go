// Package intake turns text extracted from newly uploaded documents into
// document records. Each document template has its own thin parser; the
// text extraction itself (PDF, cloud drive) happens elsewhere.
package intake

import (
	"fmt"
	"regexp"
	"strings"

	"waiver-reconciler/internal/dates"
	"waiver-reconciler/internal/models"
)

// Region names on the member waiver template
const (
	RegionSigner1 = "signer1"
	RegionDate1   = "date1"
	RegionSigner2 = "signer2"
	RegionDate2   = "date2"
)

// MemberWaiverMinorRegions number of minor name boxes on the template
const MemberWaiverMinorRegions = 9

// MinorRegion region name of the i-th (1-based) minor box.
func MinorRegion(i int) string {
	return fmt.Sprintf("minor%d", i)
}

// NewDocument a newly uploaded document and its extracted text
type NewDocument struct {
	FileID   string
	FileName string
	WebLink  string
	// Regions text of fixed template regions, keyed by region name.
	Regions map[string]string
	// Text page text, pages joined by newlines.
	Text string
}

func (d NewDocument) region(name string) string {
	return strings.TrimSpace(d.Regions[name])
}

func (d NewDocument) lines() []string {
	return strings.Split(strings.ReplaceAll(d.Text, "\r\n", "\n"), "\n")
}

// ParseMemberWaiver reads the signature and minor regions. A waiver with
// more than one signature or any minor is a family waiver. Completeness is
// left Unknown for the review step.
func ParseMemberWaiver(doc NewDocument, parser *dates.Parser) *models.MemberWaiver {
	w := &models.MemberWaiver{
		Complete: models.Unknown,
		Link:     doc.WebLink,
		File:     doc.FileName,
	}

	for _, pair := range [][2]string{{RegionSigner1, RegionDate1}, {RegionSigner2, RegionDate2}} {
		name := doc.region(pair[0])
		if name == "" {
			continue
		}
		dateText := doc.region(pair[1])
		w.Signatures = append(w.Signatures, models.Signature{
			Name:     name,
			DateText: dateText,
			Date:     parser.Parse(dateText),
		})
	}

	for i := 1; i <= MemberWaiverMinorRegions; i++ {
		if name := doc.region(MinorRegion(i)); name != "" {
			w.Minors = append(w.Minors, name)
		}
	}

	if len(w.Signatures) > 1 || len(w.Minors) > 0 {
		w.Category = models.DocFamily
	} else {
		w.Category = models.DocIndividual
	}
	return w
}

// attestation section markers, in page order. The first four introduce
// adults, the rest minors.
var attestationMarkers = []string{
	"Proprietary Member Name:",
	"Adult 2 (if applicable):",
	"Adult 3 (if applicable)",
	"Adult 4 (if applicable)",
	"Minor 1",
	"Minor 2",
	"Minor 3",
	"Minor 4",
	"Minor 5",
}

const attestationAdultMarkers = 4

var emailRe = regexp.MustCompile(`\S+@\S+`)

// ParseAttestation scans the page text for the section markers. The line
// following a marker is that section's entry; blank entries are skipped.
// A value that wraps onto a second line is truncated to the first.
func ParseAttestation(doc NewDocument, parser *dates.Parser) *models.Attestation {
	a := &models.Attestation{
		Complete: models.Unknown,
		Link:     doc.WebLink,
		File:     doc.FileName,
	}

	marker := 0
	pending := false
	for _, line := range doc.lines() {
		line = strings.TrimSpace(line)
		if marker < len(attestationMarkers) && line == attestationMarkers[marker] {
			marker++
			pending = true
			continue
		}
		if !pending {
			continue
		}
		pending = false
		if line == "" {
			continue
		}
		if marker <= attestationAdultMarkers {
			a.Adults = append(a.Adults, parseAdultEntry(line, parser))
		} else {
			a.Minors = append(a.Minors, parseMinorEntry(line, parser))
		}
	}
	return a
}

// parseAdultEntry splits "Name email birthdate". Without an email the
// birthdate follows the name directly.
func parseAdultEntry(line string, parser *dates.Parser) models.Person {
	if loc := emailRe.FindStringIndex(line); loc != nil {
		return models.Person{
			Name:      strings.TrimSpace(line[:loc[0]]),
			Email:     line[loc[0]:loc[1]],
			Birthdate: parser.Parse(line[loc[1]:]),
		}
	}
	return parseMinorEntry(line, parser)
}

func parseMinorEntry(line string, parser *dates.Parser) models.Person {
	start, d, ok := parser.FindDate(line)
	p := models.Person{Name: strings.TrimSpace(line[:start])}
	if ok {
		p.Birthdate = &d
	}
	if p.Name == "" {
		p.Name = line
	}
	return p
}

// guest waiver markers, in page order
var guestMarkers = []string{
	"Adult Non-Member/Guest:",
	"",
	"Children (under 18):",
	"[Print Name]",
	"[Print Name]",
	"[Print Name]",
}

const (
	guestSignerMarkers = 2
	guestBlankEntry    = "_____________________________"
	guestDateSuffix    = "The document has been completed."
)

// ParseGuestWaiver reads the guest signer, the printed minor names and
// the completion date line.
func ParseGuestWaiver(doc NewDocument, parser *dates.Parser) *models.GuestWaiver {
	g := &models.GuestWaiver{
		Link: doc.WebLink,
		File: doc.FileName,
	}

	marker := 0
	pending := false
	for _, raw := range doc.lines() {
		line := strings.TrimSpace(raw)
		if marker < len(guestMarkers) && line == guestMarkers[marker] {
			marker++
			pending = true
			continue
		}
		if pending {
			pending = false
			switch {
			case line == "":
			case marker == guestSignerMarkers:
				g.Signer = line
			case marker > guestSignerMarkers && line != guestBlankEntry:
				g.Minors = append(g.Minors, line)
			}
			continue
		}
		if i := strings.Index(line, guestDateSuffix); i >= 0 {
			g.DateText = strings.TrimSpace(line[:i])
			g.Date = parser.Parse(g.DateText)
		}
	}
	return g
}
