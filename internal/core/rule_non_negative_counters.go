package core

import (
	"context"
	"fmt"

	"medconnect/pkg/domain"
)

const nonNegativeCountersRuleName = "non_negative_counters"

// NonNegativeCountersRule blocks commits that leave a community member count
// or trial enrollment counter negative, or enrollment above its estimate.
func NonNegativeCountersRule() domain.Rule {
	return nonNegativeCountersRule{}
}

type nonNegativeCountersRule struct{}

func (nonNegativeCountersRule) Name() string { return nonNegativeCountersRuleName }

func (nonNegativeCountersRule) Evaluate(_ context.Context, _ domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	block := func(entity domain.EntityType, id, msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     nonNegativeCountersRuleName,
			Severity: domain.SeverityBlock,
			Message:  msg,
			Entity:   entity,
			EntityID: id,
		})
	}
	for _, change := range changes {
		switch after := change.After.(type) {
		case domain.Community:
			if after.MemberCount < 0 {
				block(domain.EntityCommunity, after.ID, fmt.Sprintf("community %s member count %d is negative", after.ID, after.MemberCount))
			}
		case domain.Trial:
			switch {
			case after.EstimatedEnrollment < 0:
				block(domain.EntityTrial, after.ID, fmt.Sprintf("trial %s estimated enrollment %d is negative", after.ID, after.EstimatedEnrollment))
			case after.CurrentEnrollment < 0:
				block(domain.EntityTrial, after.ID, fmt.Sprintf("trial %s current enrollment %d is negative", after.ID, after.CurrentEnrollment))
			case after.CurrentEnrollment > after.EstimatedEnrollment:
				block(domain.EntityTrial, after.ID, fmt.Sprintf("trial %s current enrollment %d exceeds estimate %d", after.ID, after.CurrentEnrollment, after.EstimatedEnrollment))
			}
		}
	}
	return res, nil
}
