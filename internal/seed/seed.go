// Package seed provides the demo catalogue of communities, trials and
// researchers the service ships with.
package seed

import (
	"context"
	"fmt"
	"time"

	"medconnect/pkg/domain"
)

func mustDate(layout, value string) time.Time {
	t, err := time.Parse(layout, value)
	if err != nil {
		panic(fmt.Sprintf("seed: bad date %q: %v", value, err))
	}
	return t
}

func day(value string) time.Time { return mustDate(time.DateOnly, value) }

func instant(value string) time.Time { return mustDate(time.RFC3339, value) }

// Communities returns the demo communities. Member counts start at zero.
func Communities() []domain.Community {
	return []domain.Community{
		{
			Base:         domain.Base{ID: "1", CreatedAt: instant("2024-01-15T00:00:00Z")},
			Name:         "Breast Cancer Support",
			Description:  "A supportive community for breast cancer patients and survivors",
			Category:     "Cancer Support",
			Tags:         []string{"breast-cancer", "support", "survivors"},
			LastActivity: instant("2024-03-15T10:30:00Z"),
			Moderators:   []string{"mod1", "mod2"},
		},
		{
			Base:         domain.Base{ID: "2", CreatedAt: instant("2024-02-01T00:00:00Z")},
			Name:         "Lung Cancer Research Updates",
			Description:  "Latest research and clinical trial information for lung cancer",
			Category:     "Research",
			Tags:         []string{"lung-cancer", "research", "clinical-trials"},
			LastActivity: instant("2024-03-14T15:45:00Z"),
			Moderators:   []string{"mod3"},
		},
		{
			Base:         domain.Base{ID: "3", CreatedAt: instant("2024-01-20T00:00:00Z")},
			Name:         "Immunotherapy Experiences",
			Description:  "Share experiences and support for immunotherapy treatments",
			Category:     "Treatment",
			Tags:         []string{"immunotherapy", "treatment", "side-effects"},
			LastActivity: instant("2024-03-15T09:15:00Z"),
			Moderators:   []string{"mod4", "mod5"},
		},
	}
}

// Trials returns the demo clinical trials.
func Trials() []domain.Trial {
	return []domain.Trial{
		{
			Base:        domain.Base{ID: "NCT001"},
			Title:       "Novel Immunotherapy for Advanced Breast Cancer",
			Description: "A Phase II study evaluating the efficacy of a new immunotherapy combination in patients with advanced breast cancer.",
			Phase:       domain.PhaseII,
			Status:      domain.TrialStatusRecruiting,
			Sponsor:     "BioMed Research Institute",
			Location:    "Multiple locations",
			EligibilityCriteria: []string{
				"Age 18-75 years",
				"Confirmed diagnosis of advanced breast cancer",
				"ECOG performance status 0-1",
				"Adequate organ function",
			},
			PrimaryEndpoint:         "Overall response rate",
			EstimatedEnrollment:     150,
			StartDate:               day("2024-01-15"),
			EstimatedCompletionDate: day("2025-12-31"),
			Contact: domain.ContactInfo{
				Name:  "Dr. Sarah Johnson",
				Email: "sarah.johnson@biomed.org",
				Phone: "+1-555-0123",
			},
			Conditions:    []string{"Breast Cancer"},
			Interventions: []string{"Immunotherapy"},
		},
		{
			Base:        domain.Base{ID: "NCT002"},
			Title:       "Targeted Therapy for HER2+ Breast Cancer",
			Description: "Phase III randomized controlled trial comparing new targeted therapy with standard of care.",
			Phase:       domain.PhaseIII,
			Status:      domain.TrialStatusRecruiting,
			Sponsor:     "Cancer Research Foundation",
			Location:    "US and Canada",
			EligibilityCriteria: []string{
				"Age 21-70 years",
				"HER2-positive breast cancer",
				"No prior targeted therapy",
				"Measurable disease",
			},
			PrimaryEndpoint:         "Progression-free survival",
			EstimatedEnrollment:     300,
			StartDate:               day("2023-09-01"),
			EstimatedCompletionDate: day("2026-03-31"),
			Contact: domain.ContactInfo{
				Name:  "Dr. Michael Chen",
				Email: "michael.chen@crf.org",
				Phone: "+1-555-0456",
			},
			Conditions:    []string{"Breast Cancer"},
			Interventions: []string{"Targeted Therapy"},
		},
	}
}

// Researchers returns the demo researcher directory.
func Researchers() []domain.ResearcherProfile {
	return []domain.ResearcherProfile{
		{
			Base:               domain.Base{ID: "R001"},
			ResearcherID:       "researcher_001",
			Name:               "Dr. Emily Rodriguez",
			Institution:        "Memorial Cancer Center",
			Specialization:     "Breast Cancer Oncology",
			ActiveStudies:      3,
			Location:           "Houston, TX",
			VerificationStatus: domain.VerificationVerified,
		},
	}
}

// Apply writes the demo catalogue into store in a single transaction.
func Apply(ctx context.Context, store domain.PersistentStore) error {
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, c := range Communities() {
			if _, err := tx.CreateCommunity(c); err != nil {
				return err
			}
		}
		for _, t := range Trials() {
			if _, err := tx.CreateTrial(t); err != nil {
				return err
			}
		}
		for _, r := range Researchers() {
			if _, err := tx.CreateResearcher(r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply seed: %w", err)
	}
	return nil
}
