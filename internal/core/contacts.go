package core

import (
	"context"
	"fmt"
	"strings"

	"medconnect/internal/notify"
	"medconnect/pkg/domain"
)

// Sender identifies the user proposing contact.
type Sender struct {
	ID   string
	Name string
	Role domain.UserRole
}

// ContactInput describes an outreach proposal.
type ContactInput struct {
	Sender      Sender
	RecipientID string
	Message     string
	StudyTitle  string
}

// Decision is a recipient's answer to a pending contact request.
type Decision string

// Supported decisions.
const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

func (d Decision) target() (domain.ContactStatus, bool) {
	switch d {
	case DecisionAccept:
		return domain.ContactAccepted, true
	case DecisionDecline:
		return domain.ContactDeclined, true
	default:
		return "", false
	}
}

func (in ContactInput) validate() error {
	switch {
	case strings.TrimSpace(in.Sender.ID) == "":
		return domain.ValidationError{Field: "sender_id", Message: "is required"}
	case in.Sender.Role != "" && !in.Sender.Role.Valid():
		return domain.ValidationError{Field: "sender_role", Message: fmt.Sprintf("must be researcher or patient, got %q", in.Sender.Role)}
	case strings.TrimSpace(in.RecipientID) == "":
		return domain.ValidationError{Field: "recipient_id", Message: "is required"}
	case strings.TrimSpace(in.Message) == "":
		return domain.ValidationError{Field: "message", Message: "is required"}
	}
	return nil
}

// RequestContact records a pending contact request and notifies the recipient.
// A sender without a role is treated as a researcher.
func (s *Service) RequestContact(ctx context.Context, input ContactInput) (domain.ContactRequest, domain.Result, error) {
	var created domain.ContactRequest
	if err := input.validate(); err != nil {
		_, done := s.instrument(ctx, "request_contact")
		done(err)
		return created, domain.Result{}, err
	}
	role := input.Sender.Role
	if role == "" {
		role = domain.RoleResearcher
	}
	res, err := s.run(ctx, "request_contact", func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateContactRequest(domain.ContactRequest{
			SenderID:    strings.TrimSpace(input.Sender.ID),
			SenderName:  strings.TrimSpace(input.Sender.Name),
			SenderRole:  role,
			RecipientID: strings.TrimSpace(input.RecipientID),
			Message:     strings.TrimSpace(input.Message),
			Status:      domain.ContactPending,
			StudyTitle:  strings.TrimSpace(input.StudyTitle),
		})
		return err
	})
	if err != nil {
		return domain.ContactRequest{}, res, err
	}
	s.publish(ctx, notify.Event{
		Type:      notify.EventContactRequested,
		Audience:  created.RecipientID,
		RequestID: created.ID,
		Attributes: map[string]string{
			"sender_id":   created.SenderID,
			"sender_name": created.SenderName,
			"sender_role": string(created.SenderRole),
			"study_title": created.StudyTitle,
		},
	})
	return created, res, nil
}

// RespondToContactRequest records responderID's answer to a pending request.
// Accepting grants the sender access to the recipient's profile.
func (s *Service) RespondToContactRequest(ctx context.Context, responderID, requestID string, decision Decision) (domain.ContactRequest, domain.Result, error) {
	var updated domain.ContactRequest
	responderID = strings.TrimSpace(responderID)
	target, ok := decision.target()
	var invalid error
	switch {
	case responderID == "":
		invalid = domain.ValidationError{Field: "responder_id", Message: "is required"}
	case !ok:
		invalid = domain.ValidationError{Field: "decision", Message: fmt.Sprintf("must be accept or decline, got %q", decision)}
	}
	if invalid != nil {
		_, done := s.instrument(ctx, "respond_contact_request")
		done(invalid)
		return updated, domain.Result{}, invalid
	}
	res, err := s.run(ctx, "respond_contact_request", func(tx domain.Transaction) error {
		current, ok := tx.FindContactRequest(requestID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityContactRequest, ID: requestID}
		}
		if current.Status != domain.ContactPending {
			return domain.InvalidStateTransitionError{
				Entity: domain.EntityContactRequest,
				ID:     requestID,
				From:   string(current.Status),
				To:     string(target),
			}
		}
		var err error
		updated, err = tx.UpdateContactRequest(requestID, func(r *domain.ContactRequest) error {
			at := s.clock.Now()
			r.Status = target
			r.RespondedAt = &at
			r.RespondedBy = responderID
			return nil
		})
		return err
	})
	if err != nil {
		return domain.ContactRequest{}, res, err
	}
	if target == domain.ContactAccepted {
		s.publish(ctx, notify.Event{
			Type:      notify.EventProfileAccessGranted,
			Audience:  updated.SenderID,
			RequestID: updated.ID,
			Attributes: map[string]string{
				"recipient_id": updated.RecipientID,
			},
		})
	}
	return updated, res, nil
}

// PendingRequestCount returns how many requests addressed to recipientID await a decision.
func (s *Service) PendingRequestCount(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := s.view(ctx, "pending_request_count", func(v domain.TransactionView) error {
		for _, r := range v.ListContactRequests() {
			if r.RecipientID == recipientID && r.Status == domain.ContactPending {
				count++
			}
		}
		return nil
	})
	return count, err
}

// ListContactRequests returns the requests addressed to recipientID in creation order.
func (s *Service) ListContactRequests(ctx context.Context, recipientID string) ([]domain.ContactRequest, error) {
	out := []domain.ContactRequest{}
	err := s.view(ctx, "list_contact_requests", func(v domain.TransactionView) error {
		for _, r := range v.ListContactRequests() {
			if r.RecipientID == recipientID {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}
