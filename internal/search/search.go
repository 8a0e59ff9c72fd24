// Package search implements free-text and filtered lookup over trials,
// communities and patient match records.
package search

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"medconnect/pkg/domain"
)

// Kind selects the collection to search.
type Kind string

// Searchable collections.
const (
	KindTrials      Kind = "trials"
	KindCommunities Kind = "communities"
	KindPatients    Kind = "patients"
)

// ParseKind validates a caller-supplied collection name.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindTrials, KindCommunities, KindPatients:
		return k, nil
	default:
		return "", domain.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown search kind %q", raw)}
	}
}

// Corpus holds the collections a search runs over, in insertion order.
type Corpus struct {
	Trials      []domain.Trial
	Communities []domain.Community
	Patients    []domain.PatientMatch
}

// Results carries the matches for exactly one kind.
type Results struct {
	Kind        Kind                  `json:"kind"`
	Trials      []domain.Trial        `json:"trials,omitempty"`
	Communities []domain.Community    `json:"communities,omitempty"`
	Patients    []domain.PatientMatch `json:"patients,omitempty"`
}

// Len returns the number of matched records.
func (r Results) Len() int {
	return len(r.Trials) + len(r.Communities) + len(r.Patients)
}

// Run searches the corpus collection selected by kind.
func Run(kind Kind, query string, filters Filters, corpus Corpus) (Results, error) {
	switch kind {
	case KindTrials:
		return Results{Kind: kind, Trials: Trials(corpus.Trials, query, filters)}, nil
	case KindCommunities:
		return Results{Kind: kind, Communities: Communities(corpus.Communities, query, filters)}, nil
	case KindPatients:
		return Results{Kind: kind, Patients: Patients(corpus.Patients, query, filters)}, nil
	default:
		return Results{}, domain.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown search kind %q", kind)}
	}
}

// Trials matches the query against title and description.
func Trials(trials []domain.Trial, query string, f Filters) []domain.Trial {
	q := normalize(query)
	return lo.Filter(trials, func(t domain.Trial, _ int) bool {
		if q != "" && !containsAny(q, t.Title, t.Description) {
			return false
		}
		if f.Location != "" && !containsFold(t.Location, f.Location) {
			return false
		}
		if f.Phase != "" && !strings.EqualFold(string(t.Phase), f.Phase) {
			return false
		}
		if f.Condition != "" && !lo.ContainsBy(t.Conditions, func(c string) bool { return strings.EqualFold(c, f.Condition) }) {
			return false
		}
		return true
	})
}

// Communities matches the query against name, description and tags.
func Communities(communities []domain.Community, query string, f Filters) []domain.Community {
	q := normalize(query)
	return lo.Filter(communities, func(c domain.Community, _ int) bool {
		if q != "" && !containsAny(q, c.Name, c.Description) && !containsAny(q, c.Tags...) {
			return false
		}
		if f.Category != "" && !strings.EqualFold(c.Category, f.Category) {
			return false
		}
		return true
	})
}

// Patients matches the query against condition and location.
func Patients(patients []domain.PatientMatch, query string, f Filters) []domain.PatientMatch {
	q := normalize(query)
	return lo.Filter(patients, func(p domain.PatientMatch, _ int) bool {
		if q != "" && !containsAny(q, p.Condition, p.Location) {
			return false
		}
		if f.Location != "" && !containsFold(p.Location, f.Location) {
			return false
		}
		if f.Condition != "" && !strings.EqualFold(strings.TrimSpace(p.Condition), f.Condition) {
			return false
		}
		if f.AgeRange != nil && !f.AgeRange.Contains(p.Age) {
			return false
		}
		if f.Gender != "" && !strings.EqualFold(p.Gender, f.Gender) {
			return false
		}
		return true
	})
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), normalize(needle))
}

// containsAny reports whether the lower-cased query q occurs in any field.
func containsAny(q string, fields ...string) bool {
	return lo.SomeBy(fields, func(field string) bool {
		return strings.Contains(strings.ToLower(field), q)
	})
}
