package core

import (
	"context"
	"strconv"
	"strings"
	"time"

	"medconnect/pkg/domain"
)

// TrialInput carries trial registration fields exactly as entered.
type TrialInput struct {
	Title                   string
	Description             string
	Phase                   string
	Sponsor                 string
	Location                string
	EligibilityCriteria     string // newline-delimited
	PrimaryEndpoint         string
	EstimatedEnrollment     string
	StartDate               string // YYYY-MM-DD
	EstimatedCompletionDate string // YYYY-MM-DD
	ContactName             string
	ContactEmail            string
	ContactPhone            string
	Conditions              string // comma-separated, optional
}

// CreateTrial validates input and registers a recruiting trial owned by researcherID.
func (s *Service) CreateTrial(ctx context.Context, researcherID string, input TrialInput) (domain.Trial, domain.Result, error) {
	var created domain.Trial
	trial, err := input.toTrial()
	if err == nil && strings.TrimSpace(researcherID) == "" {
		err = domain.ValidationError{Field: "researcher_id", Message: "is required"}
	}
	if err != nil {
		_, done := s.instrument(ctx, "create_trial")
		done(err)
		return created, domain.Result{}, err
	}
	trial.CreatedBy = strings.TrimSpace(researcherID)
	res, err := s.run(ctx, "create_trial", func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateTrial(trial)
		return err
	})
	return created, res, err
}

// ListTrials returns every trial in registration order.
func (s *Service) ListTrials(ctx context.Context) ([]domain.Trial, error) {
	var trials []domain.Trial
	err := s.view(ctx, "list_trials", func(v domain.TransactionView) error {
		trials = v.ListTrials()
		return nil
	})
	return trials, err
}

func (in TrialInput) toTrial() (domain.Trial, error) {
	required := []struct {
		field, value string
	}{
		{"title", in.Title},
		{"description", in.Description},
		{"phase", in.Phase},
		{"sponsor", in.Sponsor},
		{"location", in.Location},
		{"eligibility_criteria", in.EligibilityCriteria},
		{"primary_endpoint", in.PrimaryEndpoint},
		{"estimated_enrollment", in.EstimatedEnrollment},
		{"start_date", in.StartDate},
		{"estimated_completion_date", in.EstimatedCompletionDate},
		{"contact_name", in.ContactName},
		{"contact_email", in.ContactEmail},
		{"contact_phone", in.ContactPhone},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return domain.Trial{}, domain.ValidationError{Field: r.field, Message: "is required"}
		}
	}

	phase, ok := domain.ParseTrialPhase(in.Phase)
	if !ok {
		return domain.Trial{}, domain.ValidationError{Field: "phase", Message: "must be one of Phase I, Phase II, Phase III, Phase IV"}
	}
	criteria := splitNonBlank(in.EligibilityCriteria, "\n")
	if len(criteria) == 0 {
		return domain.Trial{}, domain.ValidationError{Field: "eligibility_criteria", Message: "must contain at least one criterion"}
	}
	enrollment, err := strconv.Atoi(strings.TrimSpace(in.EstimatedEnrollment))
	if err != nil {
		return domain.Trial{}, domain.ValidationError{Field: "estimated_enrollment", Message: "must be a whole number"}
	}
	if enrollment < 0 {
		return domain.Trial{}, domain.ValidationError{Field: "estimated_enrollment", Message: "must not be negative"}
	}
	start, err := time.Parse(time.DateOnly, strings.TrimSpace(in.StartDate))
	if err != nil {
		return domain.Trial{}, domain.ValidationError{Field: "start_date", Message: "must use YYYY-MM-DD"}
	}
	completion, err := time.Parse(time.DateOnly, strings.TrimSpace(in.EstimatedCompletionDate))
	if err != nil {
		return domain.Trial{}, domain.ValidationError{Field: "estimated_completion_date", Message: "must use YYYY-MM-DD"}
	}
	if completion.Before(start) {
		return domain.Trial{}, domain.ValidationError{Field: "estimated_completion_date", Message: "must not precede start_date"}
	}

	return domain.Trial{
		Title:                   strings.TrimSpace(in.Title),
		Description:             strings.TrimSpace(in.Description),
		Phase:                   phase,
		Status:                  domain.TrialStatusRecruiting,
		Sponsor:                 strings.TrimSpace(in.Sponsor),
		Location:                strings.TrimSpace(in.Location),
		EligibilityCriteria:     criteria,
		PrimaryEndpoint:         strings.TrimSpace(in.PrimaryEndpoint),
		EstimatedEnrollment:     enrollment,
		CurrentEnrollment:       0,
		StartDate:               start,
		EstimatedCompletionDate: completion,
		Contact: domain.ContactInfo{
			Name:  strings.TrimSpace(in.ContactName),
			Email: strings.TrimSpace(in.ContactEmail),
			Phone: strings.TrimSpace(in.ContactPhone),
		},
		Conditions: splitNonBlank(in.Conditions, ","),
	}, nil
}

func splitNonBlank(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
