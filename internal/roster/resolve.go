package roster

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"waiver-reconciler/internal/models"
)

// ResolveOptions context for ResolveOne
type ResolveOptions struct {
	// Email narrows an ambiguous result to members with this address.
	Email string
	// Reviewed suppresses warnings; the document was adjudicated by hand.
	Reviewed bool
	// DocFile is logged with warnings.
	DocFile string
}

// FindExact members whose normalized full name equals name, in id order.
func (r *Roster) FindExact(name string) []*models.Member {
	return r.byName[NormalizeName(name)]
}

// Resolve matches a free-text name: exact full name first, then prefix
// matches in either direction. Results are in member id order.
func (r *Roster) Resolve(name string) []*models.Member {
	key := NormalizeName(name)
	if key == "" {
		return nil
	}
	if exact := r.byName[key]; len(exact) > 0 {
		return exact
	}

	var out []*models.Member
	for _, candidate := range r.names {
		if strings.HasPrefix(key, candidate) || strings.HasPrefix(candidate, key) {
			out = append(out, r.byName[candidate]...)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return CompareIDs(out[i].ID, out[j].ID) < 0 })
	return out
}

// ResolveOne requires exactly one match. Zero matches return
// ErrNoAccountMatch, several return ErrAmbiguousNameMatch; both are logged
// unless opts.Reviewed.
func (r *Roster) ResolveOne(name string, opts ResolveOptions) (*models.Member, error) {
	matches := r.Resolve(name)
	if len(matches) > 1 && opts.Email != "" {
		var filtered []*models.Member
		for _, m := range matches {
			if strings.EqualFold(strings.TrimSpace(m.Email), strings.TrimSpace(opts.Email)) {
				filtered = append(filtered, m)
			}
		}
		if len(filtered) > 0 {
			matches = filtered
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		if !opts.Reviewed {
			r.logger.Warn("name matches no member",
				zap.String("issue", string(models.IssueNoAccountMatch)),
				zap.String("name", name),
				zap.String("doc_file", opts.DocFile))
		}
		return nil, fmt.Errorf("%w: %q", ErrNoAccountMatch, name)
	default:
		if !opts.Reviewed {
			ids := make([]string, 0, len(matches))
			for _, m := range matches {
				ids = append(ids, m.ID)
			}
			r.logger.Warn("name matches several members",
				zap.String("issue", string(models.IssueAmbiguousNameMatch)),
				zap.String("name", name),
				zap.Strings("member_ids", ids),
				zap.String("doc_file", opts.DocFile))
		}
		return nil, fmt.Errorf("%w: %q", ErrAmbiguousNameMatch, name)
	}
}

// ResolveInAccount matches name against the members of one account, exact
// names first, then prefixes. It returns nil unless exactly one member
// matches.
func (r *Roster) ResolveInAccount(accountID, name string) *models.Member {
	key := NormalizeName(name)
	if key == "" {
		return nil
	}
	var exact, prefix []*models.Member
	for _, m := range r.byAccount[accountID] {
		full := NormalizeName(m.FullName())
		switch {
		case full == key:
			exact = append(exact, m)
		case strings.HasPrefix(key, full) || strings.HasPrefix(full, key):
			prefix = append(prefix, m)
		}
	}
	if len(exact) > 0 {
		prefix = exact
	}
	if len(prefix) != 1 {
		return nil
	}
	return prefix[0]
}
