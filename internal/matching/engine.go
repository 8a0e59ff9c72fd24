package matching

import "medconnect/pkg/domain"

// DefaultThreshold is the minimum trial score for a study to count as eligible.
const DefaultThreshold = 60

// Engine builds match records from stored profiles.
type Engine struct {
	Threshold int
}

// NewEngine returns an engine using threshold, or DefaultThreshold when threshold <= 0.
func NewEngine(threshold int) Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Engine{Threshold: threshold}
}

// PatientMatch scores a patient against every trial. MatchScore is the best
// trial score; EligibleStudies lists open trials at or above the threshold in
// the order they were supplied.
func (e Engine) PatientMatch(profile domain.PatientProfile, trials []domain.Trial) domain.PatientMatch {
	match := domain.PatientMatch{
		ID:              profile.ID,
		PatientID:       profile.PatientID,
		Age:             profile.Age,
		Gender:          profile.Gender,
		Condition:       profile.Condition,
		Stage:           profile.Stage,
		Location:        profile.Location,
		LastActive:      profile.LastActive,
		EligibleStudies: []string{},
	}
	for _, trial := range trials {
		score := ScoreTrial(profile, trial)
		if score > match.MatchScore {
			match.MatchScore = score
		}
		if open(trial.Status) && score >= e.threshold() {
			match.EligibleStudies = append(match.EligibleStudies, trial.ID)
		}
	}
	return match
}

// PatientMatches builds a match record per profile, preserving input order.
func (e Engine) PatientMatches(profiles []domain.PatientProfile, trials []domain.Trial) []domain.PatientMatch {
	out := make([]domain.PatientMatch, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, e.PatientMatch(p, trials))
	}
	return out
}

// ResearcherMatches scores every researcher for the given patient, preserving input order.
func (e Engine) ResearcherMatches(profile domain.PatientProfile, researchers []domain.ResearcherProfile) []domain.ResearcherMatch {
	out := make([]domain.ResearcherMatch, 0, len(researchers))
	for _, r := range researchers {
		out = append(out, domain.ResearcherMatch{ResearcherProfile: r, MatchScore: ScoreResearcher(profile, r)})
	}
	return out
}

func (e Engine) threshold() int {
	if e.Threshold <= 0 {
		return DefaultThreshold
	}
	return e.Threshold
}

func open(status domain.TrialStatus) bool {
	return status == domain.TrialStatusRecruiting || status == domain.TrialStatusActive
}
