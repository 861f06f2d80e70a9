package businessflow

import (
	"context"

	"github.com/tmcarr/heimdall/app/services"
	"github.com/tmcarr/heimdall/models"
)

// IdentitySelector picks the outbound sending identity for one recipient.
// The rules resolve the ambiguity of a multi-department member without
// requiring the member to pick per message:
//
//  1. Active in exactly one department: that department's page identity when
//     configured, else the global default. A stale preference field is
//     ignored. A configured name that resolves to no identity fails the
//     recipient closed rather than silently sending from the default.
//  2. Otherwise, an explicit preference that maps to a configured identity wins.
//  3. Otherwise the global default.
type IdentitySelector struct {
	directory *services.Directory
}

func NewIdentitySelector(directory *services.Directory) *IdentitySelector {
	return &IdentitySelector{directory: directory}
}

// Select returns the identity to send from, or nil when nothing resolves
// (the caller fails that recipient closed).
func (s *IdentitySelector) Select(ctx context.Context, m *models.Member) (*models.SendingIdentity, error) {
	active := m.ActiveDepartments()

	if len(active) == 1 {
		dept, err := s.directory.Department(ctx, active[0])
		if err != nil {
			return nil, err
		}
		if dept != nil && dept.PageIdentity != "" {
			// A dangling identity name is a directory error; sending from
			// the default would misattribute the department's traffic.
			return s.directory.Identity(ctx, dept.PageIdentity)
		}
		return s.directory.DefaultIdentity(ctx)
	}

	if m.IdentityPreference != nil && *m.IdentityPreference != "" {
		id, err := s.directory.Identity(ctx, *m.IdentityPreference)
		if err != nil {
			return nil, err
		}
		if id != nil {
			return id, nil
		}
	}

	return s.directory.DefaultIdentity(ctx)
}
