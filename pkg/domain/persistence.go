package domain

import "context"

// Transaction exposes the entity operations a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateTrial(Trial) (Trial, error)
	UpdateTrial(id string, mutator func(*Trial) error) (Trial, error)
	CreateCommunity(Community) (Community, error)
	UpdateCommunity(id string, mutator func(*Community) error) (Community, error)
	CreatePatient(PatientProfile) (PatientProfile, error)
	UpdatePatient(id string, mutator func(*PatientProfile) error) (PatientProfile, error)
	CreateResearcher(ResearcherProfile) (ResearcherProfile, error)
	CreateDocument(Document) (Document, error)
	DeleteDocument(id string) error
	CreateContactRequest(ContactRequest) (ContactRequest, error)
	UpdateContactRequest(id string, mutator func(*ContactRequest) error) (ContactRequest, error)
	FindTrial(id string) (Trial, bool)
	FindCommunity(id string) (Community, bool)
	FindDocument(id string) (Document, bool)
	FindContactRequest(id string) (ContactRequest, bool)
}

// TransactionView provides read-only, insertion-ordered access to a snapshot.
type TransactionView interface {
	ListTrials() []Trial
	ListCommunities() []Community
	ListPatients() []PatientProfile
	ListResearchers() []ResearcherProfile
	ListDocuments() []Document
	ListContactRequests() []ContactRequest
	FindTrial(id string) (Trial, bool)
	FindCommunity(id string) (Community, bool)
	FindPatient(id string) (PatientProfile, bool)
	FindResearcher(id string) (ResearcherProfile, bool)
	FindDocument(id string) (Document, bool)
	FindContactRequest(id string) (ContactRequest, bool)
}

// PersistentStore is the entity store abstraction used by the service layer.
// Backends must keep these semantics so they can be swapped without changing callers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetTrial(id string) (Trial, bool)
	ListTrials() []Trial
	GetCommunity(id string) (Community, bool)
	ListCommunities() []Community
	ListPatients() []PatientProfile
	ListResearchers() []ResearcherProfile
	GetDocument(id string) (Document, bool)
	ListDocuments() []Document
	GetContactRequest(id string) (ContactRequest, bool)
	ListContactRequests() []ContactRequest
}
