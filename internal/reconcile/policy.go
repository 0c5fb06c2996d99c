// Package reconcile groups accounts into required waivers, matches signed
// documents to them and projects the results into reports.
package reconcile

// Policy business rules for grouping and family inference
type Policy struct {
	// EligibleAccountTypes account categories that require waivers
	EligibleAccountTypes []string
	// ParentMinGap minimum years between a parent and the oldest minor
	ParentMinGap int
	// ParentMaxGap maximum years between a parent and the youngest minor
	ParentMaxGap int
	// CoParentMaxSpread two parents further apart than this are not a pair
	CoParentMaxSpread int
}

// DefaultPolicy returns the standard rules.
func DefaultPolicy() Policy {
	return Policy{
		EligibleAccountTypes: []string{"Proprietary Member Annual", "Special Leave with Alumni Passes"},
		ParentMinGap:         19,
		ParentMaxGap:         55,
		CoParentMaxSpread:    16,
	}
}
