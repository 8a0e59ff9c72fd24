package core

import (
	"context"
	"fmt"

	"medconnect/pkg/domain"
)

const contactRequestTransitionRuleName = "contact_request_transition"

var contactStates = toSet(
	string(domain.ContactPending),
	string(domain.ContactAccepted),
	string(domain.ContactDeclined),
)

// ContactRequestTransitionRule blocks illegal contact request state changes:
// requests are created pending, move to accepted or declined once, and are
// immutable afterwards.
func ContactRequestTransitionRule() domain.Rule {
	return contactRequestTransitionRule{}
}

type contactRequestTransitionRule struct{}

func (contactRequestTransitionRule) Name() string { return contactRequestTransitionRuleName }

func (contactRequestTransitionRule) Evaluate(_ context.Context, _ domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityContactRequest {
			continue
		}
		after, ok := change.After.(domain.ContactRequest)
		if !ok {
			continue
		}
		var msg string
		if _, valid := contactStates[string(after.Status)]; !valid {
			msg = fmt.Sprintf("contact request %s is set to invalid state %s", after.ID, after.Status)
		} else if before, ok := change.Before.(domain.ContactRequest); ok {
			if before.Status.Terminal() {
				msg = fmt.Sprintf("contact request %s is %s and cannot be modified", before.ID, before.Status)
			}
		} else if change.Action == domain.ActionCreate && after.Status != domain.ContactPending {
			msg = fmt.Sprintf("contact request %s must be created pending, got %s", after.ID, after.Status)
		}
		if msg == "" {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     contactRequestTransitionRuleName,
			Severity: domain.SeverityBlock,
			Message:  msg,
			Entity:   domain.EntityContactRequest,
			EntityID: after.ID,
		})
	}
	return res, nil
}
