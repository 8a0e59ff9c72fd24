// Package matching computes deterministic compatibility scores between
// patients, trials and researchers.
package matching

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"medconnect/pkg/domain"
)

// Component ceilings for trial scoring.
const (
	trialConditionMax = 40
	trialStageMax     = 10
	trialAgeMax       = 25
	trialLocationMax  = 15
	trialStatusMax    = 10

	partialConditionWeight = 30
	broadLocationScore     = 10
	activeStatusScore      = 5
	unstagedScore          = 5
)

// Component ceilings for researcher scoring.
const (
	researcherSpecializationMax = 50
	researcherLocationMax       = 20
	researcherVerificationMax   = 20
	researcherActivityCap       = 5

	partialSpecializationWeight = 40
	sharedLocationTokenScore    = 10
	pendingVerificationScore    = 10
	activityPointsPerStudy      = 2
)

var ageRangePattern = regexp.MustCompile(`\bage[sd]?\b\D*?(\d+)\s*(?:-|–|to)\s*(\d+)`)

var broadLocationMarkers = []string{"multiple", "nationwide", "worldwide"}

// ScoreTrial returns the 0..100 compatibility of a patient with a trial.
func ScoreTrial(patient domain.PatientProfile, trial domain.Trial) int {
	corpus := trialCorpus(trial)
	corpusTokens := tokenSet(corpus, 1)
	score := conditionScore(normalize(patient.Condition), corpus, corpusTokens, trialConditionMax, partialConditionWeight)
	score += stageScore(normalize(patient.Stage), corpus)
	score += ageScore(patient.Age, trial.EligibilityCriteria)
	score += trialLocationScore(normalize(patient.Location), normalize(trial.Location))
	score += statusScore(trial.Status)
	return clamp(score)
}

// ScoreResearcher returns the 0..100 compatibility of a patient with a researcher.
func ScoreResearcher(patient domain.PatientProfile, researcher domain.ResearcherProfile) int {
	specialization := normalize(researcher.Specialization)
	score := conditionScore(normalize(patient.Condition), specialization, tokenSet(specialization, 1), researcherSpecializationMax, partialSpecializationWeight)
	score += researcherLocationScore(normalize(patient.Location), normalize(researcher.Location))
	score += verificationScore(researcher.VerificationStatus)
	score += activityPointsPerStudy * min(max(researcher.ActiveStudies, 0), researcherActivityCap)
	return clamp(score)
}

func trialCorpus(trial domain.Trial) string {
	parts := make([]string, 0, 2+len(trial.EligibilityCriteria)+len(trial.Conditions))
	parts = append(parts, trial.Title, trial.Description)
	parts = append(parts, trial.EligibilityCriteria...)
	parts = append(parts, trial.Conditions...)
	return strings.ToLower(strings.Join(parts, " "))
}

// conditionScore awards full marks for a whole-phrase hit, otherwise a
// floor-scaled share of partial by the fraction of condition tokens present.
func conditionScore(condition, corpus string, corpusTokens map[string]struct{}, full, partial int) int {
	if condition == "" {
		return 0
	}
	if strings.Contains(corpus, condition) {
		return full
	}
	tokens := tokenize(condition, 3)
	if len(tokens) == 0 {
		return 0
	}
	matched := 0
	for _, tok := range tokens {
		if _, ok := corpusTokens[tok]; ok {
			matched++
		}
	}
	return partial * matched / len(tokens)
}

func stageScore(stage, corpus string) int {
	if stage == "" {
		return unstagedScore
	}
	if strings.Contains(corpus, stage) {
		return trialStageMax
	}
	return 0
}

func ageScore(age int, criteria []string) int {
	ranges := parseAgeRanges(criteria)
	if len(ranges) == 0 {
		return trialAgeMax
	}
	for _, r := range ranges {
		if age >= r[0] && age <= r[1] {
			return trialAgeMax
		}
	}
	return 0
}

func parseAgeRanges(criteria []string) [][2]int {
	var out [][2]int
	for _, criterion := range criteria {
		for _, m := range ageRangePattern.FindAllStringSubmatch(strings.ToLower(criterion), -1) {
			lo, err1 := strconv.Atoi(m[1])
			hi, err2 := strconv.Atoi(m[2])
			if err1 != nil || err2 != nil {
				continue
			}
			if lo > hi {
				lo, hi = hi, lo
			}
			out = append(out, [2]int{lo, hi})
		}
	}
	return out
}

func trialLocationScore(patient, trial string) int {
	if patient == "" {
		return 0
	}
	if trial != "" && (strings.Contains(trial, patient) || strings.Contains(patient, trial)) {
		return trialLocationMax
	}
	for _, marker := range broadLocationMarkers {
		if strings.Contains(trial, marker) {
			return broadLocationScore
		}
	}
	return 0
}

func researcherLocationScore(patient, researcher string) int {
	if patient == "" || researcher == "" {
		return 0
	}
	if strings.Contains(researcher, patient) || strings.Contains(patient, researcher) {
		return researcherLocationMax
	}
	researcherTokens := tokenSet(researcher, 2)
	for _, tok := range tokenize(patient, 2) {
		if _, ok := researcherTokens[tok]; ok {
			return sharedLocationTokenScore
		}
	}
	return 0
}

func statusScore(status domain.TrialStatus) int {
	switch status {
	case domain.TrialStatusRecruiting:
		return trialStatusMax
	case domain.TrialStatusActive:
		return activeStatusScore
	default:
		return 0
	}
}

func verificationScore(status domain.VerificationStatus) int {
	switch status {
	case domain.VerificationVerified:
		return researcherVerificationMax
	case domain.VerificationPending:
		return pendingVerificationScore
	default:
		return 0
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// tokenize splits s into alphanumeric runs of at least minLen runes.
func tokenize(s string, minLen int) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= minLen {
			out = append(out, f)
		}
	}
	return out
}

func tokenSet(s string, minLen int) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenize(s, minLen) {
		set[tok] = struct{}{}
	}
	return set
}

func clamp(score int) int {
	return min(max(score, 0), 100)
}
