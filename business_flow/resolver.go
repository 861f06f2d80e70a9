package businessflow

import (
	"context"
	"fmt"

	"github.com/tmcarr/heimdall/models"
	"github.com/tmcarr/heimdall/repository"
	"github.com/tmcarr/heimdall/utils"
)

// ScopeAll addresses every department instead of one
const ScopeAll = "all"

// RecipientResolver computes the set of members a broadcast addresses
type RecipientResolver struct {
	memberRepo repository.MemberRepository
}

func NewRecipientResolver(memberRepo repository.MemberRepository) *RecipientResolver {
	return &RecipientResolver{memberRepo: memberRepo}
}

// MatchRecipient is the pure membership predicate behind Resolve.
//
// Test-mode filtering is deliberately asymmetric: a test broadcast reaches
// only test members, while a live broadcast reaches everyone, test members
// included. Pending product confirmation this mirrors long-standing behavior
// and must not be "fixed" here.
func MatchRecipient(m *models.Member, scope string, talkgroup *int64, testMode bool) bool {
	if scope == ScopeAll {
		if len(m.ActiveDepartments()) == 0 {
			return false
		}
	} else if !m.IsActiveIn(scope) {
		return false
	}

	if talkgroup != nil && !m.SubscribedTo(*talkgroup) {
		return false
	}

	if testMode && !utils.IsTrue(m.TestMode) {
		return false
	}

	return true
}

// Resolve returns the members matching the scope, optional talkgroup, and
// test flag. Order is not guaranteed; the set is deterministic per input.
func (r *RecipientResolver) Resolve(ctx context.Context, scope string, talkgroup *int64, testMode bool) ([]*models.Member, error) {
	var candidates []*models.Member
	var err error
	if scope == ScopeAll {
		candidates, err = r.memberRepo.ListAll(ctx)
	} else {
		candidates, err = r.memberRepo.ActiveInDepartment(ctx, scope)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recipient candidates: %w", err)
	}

	var out []*models.Member
	for _, m := range candidates {
		if MatchRecipient(m, scope, talkgroup, testMode) {
			out = append(out, m)
		}
	}
	return out, nil
}
