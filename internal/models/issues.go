package models

// Issue stable identifiers for reconciliation problems, logged in the
// "issue" field.
type Issue string

const (
	IssueNoAccountMatch          Issue = "no_account_match"
	IssueAmbiguousNameMatch      Issue = "ambiguous_name_match"
	IssueInconsistentParentCount Issue = "inconsistent_parent_count"
	IssueAmbiguousParentage      Issue = "ambiguous_parentage"
	IssueMalformedRecord         Issue = "malformed_persisted_record"
	IssueCapacityExceeded        Issue = "capacity_exceeded"
	IssueKeyMismatch             Issue = "key_mismatch"
)
