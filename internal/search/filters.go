package search

import (
	"fmt"
	"math"
	"strings"

	"medconnect/pkg/domain"
)

// AgeRange is an inclusive patient age window.
type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether age falls inside the range.
func (r AgeRange) Contains(age int) bool { return age >= r.Min && age <= r.Max }

// Filters narrows search results. Zero values leave a dimension unfiltered;
// options that do not apply to the searched kind are ignored.
type Filters struct {
	// Location is a case-insensitive substring match (trials, patients).
	Location string `json:"location,omitempty"`
	// Condition is a case-insensitive exact match against the patient
	// condition or any of a trial's condition tags.
	Condition string `json:"condition,omitempty"`
	// Phase is a case-insensitive exact match on trial phase.
	Phase string `json:"phase,omitempty"`
	// AgeRange restricts patients to an inclusive age window.
	AgeRange *AgeRange `json:"ageRange,omitempty"`
	// Gender is a case-insensitive exact match on patient gender.
	Gender string `json:"gender,omitempty"`
	// Category is a case-insensitive exact match on community category.
	Category string `json:"category,omitempty"`
}

// ParseFilters builds Filters from a loosely typed option map, as received
// from form or JSON input. Unknown keys are ignored; a recognized key with a
// malformed value yields a domain.ValidationError.
func ParseFilters(raw map[string]any) (Filters, error) {
	var f Filters
	for key, value := range raw {
		if value == nil {
			continue
		}
		var err error
		switch key {
		case "location":
			f.Location, err = stringOption(key, value)
		case "condition":
			f.Condition, err = stringOption(key, value)
		case "phase", "studyPhase":
			f.Phase, err = stringOption(key, value)
		case "gender":
			f.Gender, err = stringOption(key, value)
		case "category":
			f.Category, err = stringOption(key, value)
		case "ageRange":
			f.AgeRange, err = ageRangeOption(value)
		}
		if err != nil {
			return Filters{}, err
		}
	}
	return f, nil
}

func stringOption(key string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", domain.ValidationError{Field: key, Message: fmt.Sprintf("must be a string, got %T", value)}
	}
	return strings.TrimSpace(s), nil
}

func ageRangeOption(value any) (*AgeRange, error) {
	var bounds []int
	switch v := value.(type) {
	case AgeRange:
		bounds = []int{v.Min, v.Max}
	case *AgeRange:
		if v == nil {
			return nil, nil
		}
		bounds = []int{v.Min, v.Max}
	case []int:
		bounds = v
	case []any:
		for _, item := range v {
			n, ok := wholeNumber(item)
			if !ok {
				return nil, domain.ValidationError{Field: "ageRange", Message: fmt.Sprintf("bound %v is not a whole number", item)}
			}
			bounds = append(bounds, n)
		}
	case map[string]any:
		low, okLo := wholeNumber(v["min"])
		high, okHi := wholeNumber(v["max"])
		if !okLo || !okHi {
			return nil, domain.ValidationError{Field: "ageRange", Message: "requires numeric min and max"}
		}
		bounds = []int{low, high}
	default:
		return nil, domain.ValidationError{Field: "ageRange", Message: fmt.Sprintf("unsupported value of type %T", value)}
	}
	if len(bounds) != 2 {
		return nil, domain.ValidationError{Field: "ageRange", Message: "requires exactly two bounds"}
	}
	if bounds[0] < 0 || bounds[0] > bounds[1] {
		return nil, domain.ValidationError{Field: "ageRange", Message: fmt.Sprintf("invalid range %d..%d", bounds[0], bounds[1])}
	}
	return &AgeRange{Min: bounds[0], Max: bounds[1]}, nil
}

func wholeNumber(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
