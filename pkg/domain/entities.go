// Package domain defines the persistent entities, value types, and rule
// evaluation primitives shared by the medconnect service.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the entity store.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityTrial identifies a clinical trial record.
	EntityTrial EntityType = "trial"
	// EntityCommunity identifies a peer community record.
	EntityCommunity EntityType = "community"
	// EntityPatient identifies a patient profile used for matching.
	EntityPatient EntityType = "patient"
	// EntityResearcher identifies a researcher profile used for matching.
	EntityResearcher EntityType = "researcher"
	// EntityDocument identifies an uploaded document.
	EntityDocument EntityType = "document"
	// EntityContactRequest identifies a contact request between two users.
	EntityContactRequest EntityType = "contact_request"
)

// TrialPhase enumerates clinical trial phases.
type TrialPhase string

// Canonical trial phases.
const (
	PhaseI   TrialPhase = "Phase I"
	PhaseII  TrialPhase = "Phase II"
	PhaseIII TrialPhase = "Phase III"
	PhaseIV  TrialPhase = "Phase IV"
)

// TrialStatus enumerates the recruitment lifecycle of a trial.
type TrialStatus string

// Canonical trial statuses.
const (
	TrialStatusRecruiting TrialStatus = "recruiting"
	TrialStatusActive     TrialStatus = "active"
	TrialStatusCompleted  TrialStatus = "completed"
	TrialStatusSuspended  TrialStatus = "suspended"
)

// ParseTrialPhase resolves free-text phase input (case-insensitive) to a canonical phase.
func ParseTrialPhase(raw string) (TrialPhase, bool) {
	for _, phase := range []TrialPhase{PhaseI, PhaseII, PhaseIII, PhaseIV} {
		if strings.EqualFold(string(phase), strings.TrimSpace(raw)) {
			return phase, true
		}
	}
	return "", false
}

// UserRole distinguishes the two kinds of platform users.
type UserRole string

// Supported roles.
const (
	RoleResearcher UserRole = "researcher"
	RolePatient    UserRole = "patient"
)

// Valid reports whether the role is one of the supported roles.
func (r UserRole) Valid() bool {
	return r == RoleResearcher || r == RolePatient
}

// ContactStatus captures the contact request workflow state.
type ContactStatus string

// Contact request states. Pending is the only non-terminal state.
const (
	ContactPending  ContactStatus = "pending"
	ContactAccepted ContactStatus = "accepted"
	ContactDeclined ContactStatus = "declined"
)

// Terminal reports whether no further transition is permitted.
func (s ContactStatus) Terminal() bool {
	return s == ContactAccepted || s == ContactDeclined
}

// VerificationStatus captures researcher credential verification.
type VerificationStatus string

// Researcher verification states.
const (
	VerificationVerified   VerificationStatus = "verified"
	VerificationPending    VerificationStatus = "pending"
	VerificationUnverified VerificationStatus = "unverified"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContactInfo names the person fielding enquiries about a trial.
type ContactInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Trial represents a clinical study with enrollment and eligibility data.
type Trial struct {
	Base
	Title                   string      `json:"title"`
	Description             string      `json:"description"`
	Phase                   TrialPhase  `json:"phase"`
	Status                  TrialStatus `json:"status"`
	Sponsor                 string      `json:"sponsor"`
	Location                string      `json:"location"`
	EligibilityCriteria     []string    `json:"eligibility_criteria"`
	PrimaryEndpoint         string      `json:"primary_endpoint"`
	EstimatedEnrollment     int         `json:"estimated_enrollment"`
	CurrentEnrollment       int         `json:"current_enrollment"`
	StartDate               time.Time   `json:"start_date"`
	EstimatedCompletionDate time.Time   `json:"estimated_completion_date"`
	Contact                 ContactInfo `json:"contact"`
	Conditions              []string    `json:"conditions,omitempty"`
	Interventions           []string    `json:"interventions,omitempty"`
	CreatedBy               string      `json:"created_by,omitempty"`
}

// Community represents a peer support or research community.
type Community struct {
	Base
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	MemberCount  int       `json:"member_count"`
	Category     string    `json:"category"`
	IsPrivate    bool      `json:"is_private"`
	Tags         []string  `json:"tags"`
	LastActivity time.Time `json:"last_activity"`
	Moderators   []string  `json:"moderators"`
}

// PatientProfile holds the attributes a patient shares for matching.
type PatientProfile struct {
	Base
	PatientID  string    `json:"patient_id"`
	Age        int       `json:"age"`
	Gender     string    `json:"gender"`
	Condition  string    `json:"condition"`
	Stage      string    `json:"stage,omitempty"`
	Location   string    `json:"location"`
	LastActive time.Time `json:"last_active"`
}

// PatientMatch is a patient profile scored against the current trial set.
// It is computed on demand and never persisted.
type PatientMatch struct {
	ID              string    `json:"id"`
	PatientID       string    `json:"patient_id"`
	Age             int       `json:"age"`
	Gender          string    `json:"gender"`
	Condition       string    `json:"condition"`
	Stage           string    `json:"stage,omitempty"`
	Location        string    `json:"location"`
	MatchScore      int       `json:"match_score"`
	EligibleStudies []string  `json:"eligible_studies"`
	LastActive      time.Time `json:"last_active"`
}

// ResearcherProfile describes a researcher available for patient outreach.
type ResearcherProfile struct {
	Base
	ResearcherID       string             `json:"researcher_id"`
	Name               string             `json:"name"`
	Institution        string             `json:"institution"`
	Specialization     string             `json:"specialization"`
	ActiveStudies      int                `json:"active_studies"`
	Location           string             `json:"location"`
	VerificationStatus VerificationStatus `json:"verification_status"`
}

// ResearcherMatch is a researcher profile scored for a specific patient.
type ResearcherMatch struct {
	ResearcherProfile
	MatchScore int `json:"match_score"`
}

// ContactRequest is an outreach proposal that requires recipient consent.
type ContactRequest struct {
	Base
	SenderID    string        `json:"sender_id"`
	SenderName  string        `json:"sender_name"`
	SenderRole  UserRole      `json:"sender_role"`
	RecipientID string        `json:"recipient_id"`
	Message     string        `json:"message"`
	Status      ContactStatus `json:"status"`
	StudyTitle  string        `json:"study_title,omitempty"`
	RespondedAt *time.Time    `json:"responded_at,omitempty"`
	RespondedBy string        `json:"responded_by,omitempty"`
}

// Document is an uploaded artifact owned by a single user.
type Document struct {
	Base
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Kind        string    `json:"kind,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Locator     string    `json:"locator"`
	URL         string    `json:"url,omitempty"`
}

// Change represents a mutation applied within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Supported transaction actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation captures a single rule outcome.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}
