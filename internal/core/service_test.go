package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"medconnect/internal/notify"
	"medconnect/internal/seed"
	"medconnect/pkg/domain"
)

var fixedNow = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func newSeededService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(ClockFunc(func() time.Time { return fixedNow }))}, opts...)
	svc := NewInMemoryService(nil, opts...)
	if err := seed.Apply(context.Background(), svc.Store()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return svc
}

func validTrialInput() TrialInput {
	return TrialInput{
		Title:                   "Adjuvant Therapy Study",
		Description:             "Evaluates adjuvant therapy after surgery.",
		Phase:                   "phase ii",
		Sponsor:                 "Oncology Group",
		Location:                "Houston, TX",
		EligibilityCriteria:     "Age 18-65 years\n\n  Stage II or III  \n",
		PrimaryEndpoint:         "Disease-free survival",
		EstimatedEnrollment:     "150",
		StartDate:               "2024-05-01",
		EstimatedCompletionDate: "2026-05-01",
		ContactName:             "Dr. Ada Park",
		ContactEmail:            "ada.park@example.org",
		ContactPhone:            "+1-555-0199",
		Conditions:              "Breast Cancer, , Lymphoma",
	}
}

func TestCreateTrialParsesInput(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)

	trial, _, err := svc.CreateTrial(ctx, "researcher_001", validTrialInput())
	if err != nil {
		t.Fatalf("create trial: %v", err)
	}
	if trial.ID == "" {
		t.Fatalf("expected generated id")
	}
	if trial.EstimatedEnrollment != 150 || trial.CurrentEnrollment != 0 {
		t.Fatalf("unexpected enrollment %d/%d", trial.CurrentEnrollment, trial.EstimatedEnrollment)
	}
	if trial.Status != domain.TrialStatusRecruiting {
		t.Fatalf("expected recruiting, got %s", trial.Status)
	}
	if trial.Phase != domain.PhaseII {
		t.Fatalf("expected canonical phase, got %q", trial.Phase)
	}
	if len(trial.EligibilityCriteria) != 2 || trial.EligibilityCriteria[1] != "Stage II or III" {
		t.Fatalf("unexpected criteria %#v", trial.EligibilityCriteria)
	}
	if len(trial.Conditions) != 2 || trial.Conditions[1] != "Lymphoma" {
		t.Fatalf("unexpected conditions %#v", trial.Conditions)
	}
	if trial.CreatedBy != "researcher_001" {
		t.Fatalf("expected creator to be recorded, got %q", trial.CreatedBy)
	}
	if !trial.StartDate.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start date %v", trial.StartDate)
	}
	trials, err := svc.ListTrials(ctx)
	if err != nil || len(trials) != 1 {
		t.Fatalf("expected one stored trial, got %d (%v)", len(trials), err)
	}
}

func TestCreateTrialValidation(t *testing.T) {
	cases := []struct {
		name       string
		researcher string
		mutate     func(*TrialInput)
		field      string
	}{
		{"missing title", "r1", func(in *TrialInput) { in.Title = "  " }, "title"},
		{"missing contact phone", "r1", func(in *TrialInput) { in.ContactPhone = "" }, "contact_phone"},
		{"unknown phase", "r1", func(in *TrialInput) { in.Phase = "Phase V" }, "phase"},
		{"blank criteria", "r1", func(in *TrialInput) { in.EligibilityCriteria = "\n  \n" }, "eligibility_criteria"},
		{"non numeric enrollment", "r1", func(in *TrialInput) { in.EstimatedEnrollment = "many" }, "estimated_enrollment"},
		{"negative enrollment", "r1", func(in *TrialInput) { in.EstimatedEnrollment = "-1" }, "estimated_enrollment"},
		{"bad start date", "r1", func(in *TrialInput) { in.StartDate = "05/01/2024" }, "start_date"},
		{"completion before start", "r1", func(in *TrialInput) { in.EstimatedCompletionDate = "2024-04-30" }, "estimated_completion_date"},
		{"missing researcher", "", func(*TrialInput) {}, "researcher_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewInMemoryService(nil)
			input := validTrialInput()
			tc.mutate(&input)
			_, _, err := svc.CreateTrial(context.Background(), tc.researcher, input)
			var verr domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, verr.Field)
			}
			if n := len(svc.Store().ListTrials()); n != 0 {
				t.Fatalf("expected no trials, got %d", n)
			}
		})
	}
}

func TestJoinAndLeaveCommunity(t *testing.T) {
	ctx := context.Background()
	svc := newSeededService(t)

	joined, _, err := svc.JoinCommunity(ctx, "p1", "1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined.MemberCount != 1 {
		t.Fatalf("expected 1 member, got %d", joined.MemberCount)
	}
	if !joined.LastActivity.Equal(fixedNow) {
		t.Fatalf("expected last activity to be refreshed, got %v", joined.LastActivity)
	}
	again, _, err := svc.JoinCommunity(ctx, "p1", "1")
	if err != nil || again.MemberCount != 2 {
		t.Fatalf("expected repeated join to count, got %d (%v)", again.MemberCount, err)
	}

	for want := 1; want >= 0; want-- {
		left, _, err := svc.LeaveCommunity(ctx, "p1", "1")
		if err != nil {
			t.Fatalf("leave: %v", err)
		}
		if left.MemberCount != want {
			t.Fatalf("expected %d members, got %d", want, left.MemberCount)
		}
	}
	left, _, err := svc.LeaveCommunity(ctx, "p1", "1")
	if err != nil {
		t.Fatalf("leave at zero: %v", err)
	}
	if left.MemberCount != 0 {
		t.Fatalf("expected count to stay at 0, got %d", left.MemberCount)
	}
	if c, _ := svc.Store().GetCommunity("2"); c.MemberCount != 0 {
		t.Fatalf("expected other communities untouched, got %d", c.MemberCount)
	}
}

func TestMembershipErrors(t *testing.T) {
	ctx := context.Background()
	svc := newSeededService(t)

	var nf domain.NotFoundError
	if _, _, err := svc.JoinCommunity(ctx, "p1", "missing"); !errors.As(err, &nf) {
		t.Fatalf("expected not found on join, got %v", err)
	}
	if _, _, err := svc.LeaveCommunity(ctx, "p1", "missing"); !errors.As(err, &nf) {
		t.Fatalf("expected not found on leave, got %v", err)
	}
	var verr domain.ValidationError
	if _, _, err := svc.JoinCommunity(ctx, " ", "1"); !errors.As(err, &verr) || verr.Field != "user_id" {
		t.Fatalf("expected user_id validation error, got %v", err)
	}
}

func TestCreateCommunity(t *testing.T) {
	ctx := context.Background()
	svc := newSeededService(t)

	created, _, err := svc.CreateCommunity(ctx, CommunityInput{Name: " Caregivers ", Category: "Support", Tags: []string{"family"}})
	if err != nil {
		t.Fatalf("create community: %v", err)
	}
	if created.Name != "Caregivers" || created.MemberCount != 0 {
		t.Fatalf("unexpected community %+v", created)
	}
	communities, err := svc.ListCommunities(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(communities) != 4 || communities[3].ID != created.ID {
		t.Fatalf("expected new community appended last, got %d", len(communities))
	}
	var verr domain.ValidationError
	if _, _, err := svc.CreateCommunity(ctx, CommunityInput{}); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestContactRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	recorder := notify.NewRecorder()
	svc := newSeededService(t, WithNotifier(recorder))

	req, _, err := svc.RequestContact(ctx, ContactInput{
		Sender:      Sender{ID: "r1", Name: "Dr. Emily Rodriguez", Role: domain.RoleResearcher},
		RecipientID: "p1",
		Message:     "Hello",
		StudyTitle:  "Novel Immunotherapy for Advanced Breast Cancer",
	})
	if err != nil {
		t.Fatalf("request contact: %v", err)
	}
	if req.Status != domain.ContactPending {
		t.Fatalf("expected pending, got %s", req.Status)
	}
	if count, _ := svc.PendingRequestCount(ctx, "p1"); count != 1 {
		t.Fatalf("expected one pending request, got %d", count)
	}
	events := recorder.For("p1")
	if len(events) != 1 || events[0].Type != notify.EventContactRequested || events[0].RequestID != req.ID {
		t.Fatalf("unexpected recipient events %#v", events)
	}

	accepted, _, err := svc.RespondToContactRequest(ctx, "p1", req.ID, DecisionAccept)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != domain.ContactAccepted {
		t.Fatalf("expected accepted, got %s", accepted.Status)
	}
	if accepted.RespondedAt == nil || !accepted.RespondedAt.Equal(fixedNow) {
		t.Fatalf("expected response time to be stamped, got %v", accepted.RespondedAt)
	}
	if accepted.RespondedBy != "p1" {
		t.Fatalf("expected responder to be recorded, got %q", accepted.RespondedBy)
	}
	granted := recorder.For("r1")
	if len(granted) != 1 || granted[0].Type != notify.EventProfileAccessGranted {
		t.Fatalf("expected access grant for sender, got %#v", granted)
	}
	if count, _ := svc.PendingRequestCount(ctx, "p1"); count != 0 {
		t.Fatalf("expected no pending requests, got %d", count)
	}

	_, _, err = svc.RespondToContactRequest(ctx, "p1", req.ID, DecisionDecline)
	var transition domain.InvalidStateTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if transition.From != string(domain.ContactAccepted) || transition.To != string(domain.ContactDeclined) {
		t.Fatalf("unexpected transition error %+v", transition)
	}
	stored, _ := svc.Store().GetContactRequest(req.ID)
	if stored.Status != domain.ContactAccepted {
		t.Fatalf("expected status to remain accepted, got %s", stored.Status)
	}
	if len(recorder.Events()) != 2 {
		t.Fatalf("expected no further events, got %d", len(recorder.Events()))
	}
}

func TestDeclineDoesNotNotifySender(t *testing.T) {
	ctx := context.Background()
	recorder := notify.NewRecorder()
	svc := newSeededService(t, WithNotifier(recorder))

	req, _, err := svc.RequestContact(ctx, ContactInput{
		Sender:      Sender{ID: "p2", Name: "Jordan", Role: domain.RolePatient},
		RecipientID: "r1",
		Message:     "Interested in NCT002",
	})
	if err != nil {
		t.Fatalf("request contact: %v", err)
	}
	declined, _, err := svc.RespondToContactRequest(ctx, "r1", req.ID, DecisionDecline)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if declined.Status != domain.ContactDeclined {
		t.Fatalf("expected declined, got %s", declined.Status)
	}
	if events := recorder.For("p2"); len(events) != 0 {
		t.Fatalf("expected no sender events, got %#v", events)
	}
	requests, err := svc.ListContactRequests(ctx, "r1")
	if err != nil || len(requests) != 1 || requests[0].ID != req.ID {
		t.Fatalf("unexpected requests %#v (%v)", requests, err)
	}
}

func TestContactRequestErrors(t *testing.T) {
	ctx := context.Background()
	svc := newSeededService(t)
	valid := ContactInput{
		Sender:      Sender{ID: "r1", Name: "Dr. R", Role: domain.RoleResearcher},
		RecipientID: "p1",
		Message:     "Hello",
	}
	cases := []struct {
		name   string
		mutate func(*ContactInput)
		field  string
	}{
		{"blank message", func(in *ContactInput) { in.Message = "   " }, "message"},
		{"missing sender", func(in *ContactInput) { in.Sender.ID = "" }, "sender_id"},
		{"missing recipient", func(in *ContactInput) { in.RecipientID = "" }, "recipient_id"},
		{"unknown role", func(in *ContactInput) { in.Sender.Role = "admin" }, "sender_role"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := valid
			tc.mutate(&input)
			_, _, err := svc.RequestContact(ctx, input)
			var verr domain.ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Fatalf("expected %s validation error, got %v", tc.field, err)
			}
		})
	}
	if n := len(svc.Store().ListContactRequests()); n != 0 {
		t.Fatalf("expected no requests stored, got %d", n)
	}

	var nf domain.NotFoundError
	if _, _, err := svc.RespondToContactRequest(ctx, "p1", "missing", DecisionAccept); !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
	var verr domain.ValidationError
	if _, _, err := svc.RespondToContactRequest(ctx, "p1", "missing", "maybe"); !errors.As(err, &verr) || verr.Field != "decision" {
		t.Fatalf("expected decision validation error, got %v", err)
	}
	if _, _, err := svc.RespondToContactRequest(ctx, " ", "missing", DecisionAccept); !errors.As(err, &verr) || verr.Field != "responder_id" {
		t.Fatalf("expected responder validation error, got %v", err)
	}
}

func TestRequestContactWithoutRoleDefaultsToResearcher(t *testing.T) {
	ctx := context.Background()
	svc := newSeededService(t)

	req, _, err := svc.RequestContact(ctx, ContactInput{
		Sender:      Sender{ID: "r1"},
		RecipientID: "p1",
		Message:     "Hello",
	})
	if err != nil {
		t.Fatalf("request contact: %v", err)
	}
	if req.Status != domain.ContactPending || req.SenderRole != domain.RoleResearcher {
		t.Fatalf("unexpected request %+v", req)
	}
	accepted, _, err := svc.RespondToContactRequest(ctx, "p1", req.ID, DecisionAccept)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != domain.ContactAccepted {
		t.Fatalf("expected accepted, got %s", accepted.Status)
	}
}

type failingNotifier struct{ calls int }

func (f *failingNotifier) Notify(context.Context, notify.Event) error {
	f.calls++
	return errors.New("broker unavailable")
}

func TestNotificationFailureKeepsCommittedState(t *testing.T) {
	ctx := context.Background()
	notifier := &failingNotifier{}
	svc := newSeededService(t, WithNotifier(notifier))

	req, _, err := svc.RequestContact(ctx, ContactInput{
		Sender:      Sender{ID: "r1", Role: domain.RoleResearcher},
		RecipientID: "p1",
		Message:     "Hello",
	})
	if err != nil {
		t.Fatalf("expected request to succeed despite delivery failure: %v", err)
	}
	if _, _, err := svc.RespondToContactRequest(ctx, "p1", req.ID, DecisionAccept); err != nil {
		t.Fatalf("expected accept to succeed despite delivery failure: %v", err)
	}
	if notifier.calls != 2 {
		t.Fatalf("expected two delivery attempts, got %d", notifier.calls)
	}
	stored, _ := svc.Store().GetContactRequest(req.ID)
	if stored.Status != domain.ContactAccepted {
		t.Fatalf("expected accepted, got %s", stored.Status)
	}
}

func TestConcurrentJoinAndLeaveKeepExactCount(t *testing.T) {
	ctx := context.Background()
	svc := newSeededService(t)
	const members = 40

	var wg sync.WaitGroup
	errs := make(chan error, members*2+10)
	for i := 0; i < members; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, _, err := svc.JoinCommunity(ctx, fmt.Sprintf("p%d", i), "1"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	if c, _ := svc.Store().GetCommunity("1"); c.MemberCount != members {
		t.Fatalf("expected %d members after parallel joins, got %d", members, c.MemberCount)
	}

	for i := 0; i < members+10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, _, err := svc.LeaveCommunity(ctx, fmt.Sprintf("p%d", i), "1"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected membership error: %v", err)
	}
	if c, _ := svc.Store().GetCommunity("1"); c.MemberCount != 0 {
		t.Fatalf("expected member count to settle at 0, got %d", c.MemberCount)
	}
}

func TestConcurrentResponsesAllowExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	for round := 0; round < 20; round++ {
		svc := newSeededService(t)
		req, _, err := svc.RequestContact(ctx, ContactInput{
			Sender:      Sender{ID: "r1", Role: domain.RoleResearcher},
			RecipientID: "p1",
			Message:     "Hello",
		})
		if err != nil {
			t.Fatalf("request contact: %v", err)
		}

		decisions := []Decision{DecisionAccept, DecisionDecline}
		results := make([]error, len(decisions))
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i, d := range decisions {
			wg.Add(1)
			go func(i int, d Decision) {
				defer wg.Done()
				<-start
				_, _, results[i] = svc.RespondToContactRequest(ctx, "p1", req.ID, d)
			}(i, d)
		}
		close(start)
		wg.Wait()

		winners := 0
		var winner Decision
		for i, err := range results {
			var transition domain.InvalidStateTransitionError
			switch {
			case err == nil:
				winners++
				winner = decisions[i]
			case !errors.As(err, &transition):
				t.Fatalf("round %d: expected invalid transition for the loser, got %v", round, err)
			}
		}
		if winners != 1 {
			t.Fatalf("round %d: expected exactly one successful response, got %d", round, winners)
		}
		stored, _ := svc.Store().GetContactRequest(req.ID)
		want, _ := winner.target()
		if stored.Status != want {
			t.Fatalf("round %d: expected stored status %s, got %s", round, want, stored.Status)
		}
	}
}
