package core

import (
	"context"
	"errors"
	"testing"

	"medconnect/internal/infra/persistence/memory"
	"medconnect/internal/seed"
	"medconnect/pkg/domain"
)

func TestDefaultRulesEngineRegistersBuiltins(t *testing.T) {
	rules := NewDefaultRulesEngine().Rules()
	if len(rules) != 2 {
		t.Fatalf("expected two built-in rules, got %d", len(rules))
	}
	if rules[0].Name() != "non_negative_counters" || rules[1].Name() != "contact_request_transition" {
		t.Fatalf("unexpected rule order %s, %s", rules[0].Name(), rules[1].Name())
	}
}

func TestNonNegativeCountersRuleBlocksCommit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(NewDefaultRulesEngine())
	if err := seed.Apply(ctx, store); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := []struct {
		name string
		fn   func(domain.Transaction) error
	}{
		{"negative members", func(tx domain.Transaction) error {
			_, err := tx.UpdateCommunity("1", func(c *domain.Community) error {
				c.MemberCount = -1
				return nil
			})
			return err
		}},
		{"enrollment above estimate", func(tx domain.Transaction) error {
			_, err := tx.UpdateTrial("NCT001", func(tr *domain.Trial) error {
				tr.CurrentEnrollment = tr.EstimatedEnrollment + 1
				return nil
			})
			return err
		}},
		{"negative enrollment", func(tx domain.Transaction) error {
			_, err := tx.UpdateTrial("NCT002", func(tr *domain.Trial) error {
				tr.CurrentEnrollment = -5
				return nil
			})
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := store.RunInTransaction(ctx, tc.fn)
			var violation domain.RuleViolationError
			if !errors.As(err, &violation) {
				t.Fatalf("expected rule violation, got %v", err)
			}
			if !res.HasBlocking() || res.Violations[0].Rule != "non_negative_counters" {
				t.Fatalf("unexpected result %+v", res)
			}
		})
	}
	if c, _ := store.GetCommunity("1"); c.MemberCount != 0 {
		t.Fatalf("expected blocked change to be discarded, got %d", c.MemberCount)
	}
	if tr, _ := store.GetTrial("NCT001"); tr.CurrentEnrollment != 0 {
		t.Fatalf("expected enrollment unchanged, got %d", tr.CurrentEnrollment)
	}
}

func TestContactRequestTransitionRule(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(NewDefaultRulesEngine())

	var req domain.ContactRequest
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		req, err = tx.CreateContactRequest(domain.ContactRequest{SenderID: "r1", SenderRole: domain.RoleResearcher, RecipientID: "p1", Message: "hi", Status: domain.ContactPending})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateContactRequest(domain.ContactRequest{SenderID: "r1", RecipientID: "p2", Message: "hi", Status: domain.ContactAccepted})
		return err
	}); !errors.As(err, new(domain.RuleViolationError)) {
		t.Fatalf("expected non-pending create to be blocked, got %v", err)
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateContactRequest(req.ID, func(r *domain.ContactRequest) error {
			r.Status = "archived"
			return nil
		})
		return err
	}); !errors.As(err, new(domain.RuleViolationError)) {
		t.Fatalf("expected unknown state to be blocked, got %v", err)
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateContactRequest(req.ID, func(r *domain.ContactRequest) error {
			r.Status = domain.ContactAccepted
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("accept pending request: %v", err)
	}

	res, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateContactRequest(req.ID, func(r *domain.ContactRequest) error {
			r.Status = domain.ContactPending
			return nil
		})
		return err
	})
	if !errors.As(err, new(domain.RuleViolationError)) {
		t.Fatalf("expected terminal mutation to be blocked, got %v", err)
	}
	if res.Violations[0].Rule != "contact_request_transition" || res.Violations[0].EntityID != req.ID {
		t.Fatalf("unexpected violation %+v", res.Violations[0])
	}
	stored, _ := store.GetContactRequest(req.ID)
	if stored.Status != domain.ContactAccepted {
		t.Fatalf("expected accepted status to be kept, got %s", stored.Status)
	}
}
