package core

import (
	"context"
	"strings"

	"medconnect/internal/matching"
	"medconnect/internal/search"
	"medconnect/pkg/domain"
)

const maxPatientAge = 150

// RegisterPatient stores a patient profile used for trial matching.
func (s *Service) RegisterPatient(ctx context.Context, profile domain.PatientProfile) (domain.PatientProfile, domain.Result, error) {
	var created domain.PatientProfile
	profile.PatientID = strings.TrimSpace(profile.PatientID)
	profile.Condition = strings.TrimSpace(profile.Condition)
	var err error
	switch {
	case profile.PatientID == "":
		err = domain.ValidationError{Field: "patient_id", Message: "is required"}
	case profile.Condition == "":
		err = domain.ValidationError{Field: "condition", Message: "is required"}
	case profile.Age < 0 || profile.Age > maxPatientAge:
		err = domain.ValidationError{Field: "age", Message: "must be between 0 and 150"}
	}
	if err != nil {
		_, done := s.instrument(ctx, "register_patient")
		done(err)
		return created, domain.Result{}, err
	}
	if profile.LastActive.IsZero() {
		profile.LastActive = s.clock.Now()
	}
	res, err := s.run(ctx, "register_patient", func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreatePatient(profile)
		return err
	})
	return created, res, err
}

// TouchPatient marks the patient profile as active now.
func (s *Service) TouchPatient(ctx context.Context, profileID string) (domain.PatientProfile, domain.Result, error) {
	var updated domain.PatientProfile
	res, err := s.run(ctx, "touch_patient", func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdatePatient(profileID, func(p *domain.PatientProfile) error {
			p.LastActive = s.clock.Now()
			return nil
		})
		return err
	})
	return updated, res, err
}

// RegisterResearcher stores a researcher profile offered to patients.
func (s *Service) RegisterResearcher(ctx context.Context, profile domain.ResearcherProfile) (domain.ResearcherProfile, domain.Result, error) {
	var created domain.ResearcherProfile
	profile.ResearcherID = strings.TrimSpace(profile.ResearcherID)
	profile.Name = strings.TrimSpace(profile.Name)
	var err error
	switch {
	case profile.ResearcherID == "":
		err = domain.ValidationError{Field: "researcher_id", Message: "is required"}
	case profile.Name == "":
		err = domain.ValidationError{Field: "name", Message: "is required"}
	case profile.ActiveStudies < 0:
		err = domain.ValidationError{Field: "active_studies", Message: "must not be negative"}
	}
	if err != nil {
		_, done := s.instrument(ctx, "register_researcher")
		done(err)
		return created, domain.Result{}, err
	}
	switch profile.VerificationStatus {
	case domain.VerificationVerified, domain.VerificationPending, domain.VerificationUnverified:
	case "":
		profile.VerificationStatus = domain.VerificationUnverified
	default:
		err := domain.ValidationError{Field: "verification_status", Message: "must be verified, pending or unverified"}
		_, done := s.instrument(ctx, "register_researcher")
		done(err)
		return created, domain.Result{}, err
	}
	res, err := s.run(ctx, "register_researcher", func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateResearcher(profile)
		return err
	})
	return created, res, err
}

// ListPatientMatches scores every patient profile against the current trial set.
func (s *Service) ListPatientMatches(ctx context.Context) ([]domain.PatientMatch, error) {
	var matches []domain.PatientMatch
	err := s.view(ctx, "list_patient_matches", func(v domain.TransactionView) error {
		matches = s.matcher.PatientMatches(v.ListPatients(), v.ListTrials())
		return nil
	})
	return matches, err
}

// ListResearcherMatches scores every researcher for the patient profile.
func (s *Service) ListResearcherMatches(ctx context.Context, patientProfileID string) ([]domain.ResearcherMatch, error) {
	var matches []domain.ResearcherMatch
	err := s.view(ctx, "list_researcher_matches", func(v domain.TransactionView) error {
		patient, ok := v.FindPatient(patientProfileID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityPatient, ID: patientProfileID}
		}
		matches = s.matcher.ResearcherMatches(patient, v.ListResearchers())
		return nil
	})
	return matches, err
}

// ScoreTrial returns the compatibility of one patient profile with one trial.
func (s *Service) ScoreTrial(ctx context.Context, patientProfileID, trialID string) (int, error) {
	var score int
	err := s.view(ctx, "score_trial", func(v domain.TransactionView) error {
		patient, ok := v.FindPatient(patientProfileID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityPatient, ID: patientProfileID}
		}
		trial, ok := v.FindTrial(trialID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityTrial, ID: trialID}
		}
		score = matching.ScoreTrial(patient, trial)
		return nil
	})
	return score, err
}

// Search runs a free-text and filtered query over one collection. Patient
// results carry match scores computed against the current trial set.
func (s *Service) Search(ctx context.Context, kind search.Kind, query string, filters search.Filters) (search.Results, error) {
	var results search.Results
	err := s.view(ctx, "search", func(v domain.TransactionView) error {
		corpus := search.Corpus{}
		switch kind {
		case search.KindTrials:
			corpus.Trials = v.ListTrials()
		case search.KindCommunities:
			corpus.Communities = v.ListCommunities()
		case search.KindPatients:
			corpus.Patients = s.matcher.PatientMatches(v.ListPatients(), v.ListTrials())
		}
		var err error
		results, err = search.Run(kind, query, filters, corpus)
		return err
	})
	return results, err
}
