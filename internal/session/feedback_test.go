package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mathrag/client/internal/models"
)

func newSeededFeedback(t *testing.T, sub *recordingSubmitter, clock *fakeClock) *FeedbackSession {
	t.Helper()
	s := NewFeedbackSession(sub, FeedbackConfig{Now: clock.Now})
	s.Seed(kbSolution, "  What is the sum of the first 10 natural numbers?  ")
	return s
}

func TestFeedbackSession_SeedCopiesLinkageFields(t *testing.T) {
	s := newSeededFeedback(t, &recordingSubmitter{}, newFakeClock())

	snap := s.Snapshot()
	if snap.State != FeedbackSeeded {
		t.Fatalf("state = %v, want seeded", snap.State)
	}
	want := models.FeedbackRecord{
		Query:             "What is the sum of the first 10 natural numbers?",
		GeneratedSolution: kbSolution.Solution,
		RouteMode:         kbSolution.Mode,
		ConfidenceScore:   kbSolution.Confidence,
	}
	if snap.Record != want {
		t.Errorf("record = %+v, want %+v", snap.Record, want)
	}
}

func TestFeedbackSession_SeedClearsEdits(t *testing.T) {
	s := newSeededFeedback(t, &recordingSubmitter{}, newFakeClock())
	_ = s.SetField(models.FieldAssessment, "COMPLEX")
	_ = s.SetField(models.FieldCorrectionText, "shorter please")

	s.Seed(models.Solution{Mode: models.ModeWebSearch, Solution: "new"}, "next")

	rec := s.Snapshot().Record
	if rec.Assessment != models.AssessmentUnset || rec.CorrectionText != "" {
		t.Errorf("edits survived reseed: %+v", rec)
	}
	if rec.Query != "next" || rec.RouteMode != models.ModeWebSearch {
		t.Errorf("linkage not replaced: %+v", rec)
	}
}

func TestFeedbackSession_SetField(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   string
		wantErr error
	}{
		{"assessment", models.FieldAssessment, "INCORRECT", nil},
		{"lowercase assessment", models.FieldAssessment, "off_topic", nil},
		{"clear assessment", models.FieldAssessment, "", nil},
		{"correction", models.FieldCorrectionText, "The answer is 55.", nil},
		{"unknown assessment", models.FieldAssessment, "MAYBE", ErrInvalidAssessment},
		{"linkage field", "query", "tampered", ErrFieldNotEditable},
		{"route mode", "route_mode", "KB_RESPONSE", ErrFieldNotEditable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSeededFeedback(t, &recordingSubmitter{}, newFakeClock())
			before := s.Snapshot().Record

			err := s.SetField(tt.field, tt.value)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SetField(%q, %q) error = %v, want %v", tt.field, tt.value, err, tt.wantErr)
			}

			after := s.Snapshot().Record
			if after.Query != before.Query || after.GeneratedSolution != before.GeneratedSolution {
				t.Errorf("linkage fields changed: %+v -> %+v", before, after)
			}
		})
	}
}

func TestFeedbackSession_SetFieldRequiresSeed(t *testing.T) {
	s := NewFeedbackSession(&recordingSubmitter{}, FeedbackConfig{})
	if err := s.SetField(models.FieldAssessment, "CORRECT"); !errors.Is(err, ErrNotSeeded) {
		t.Errorf("SetField() on empty session error = %v, want ErrNotSeeded", err)
	}
}

func TestFeedbackSession_SubmitWithoutAssessment(t *testing.T) {
	sub := &recordingSubmitter{}
	clock := newFakeClock()
	s := newSeededFeedback(t, sub, clock)

	err := s.Submit(context.Background())
	if !errors.Is(err, ErrAssessmentRequired) {
		t.Fatalf("Submit() error = %v, want ErrAssessmentRequired", err)
	}
	if !IsValidationError(err) {
		t.Error("expected a validation error")
	}
	s.Wait()

	if sub.calls() != 0 {
		t.Errorf("network calls = %d, want 0", sub.calls())
	}

	snap := s.Snapshot()
	if snap.State != FeedbackSeeded {
		t.Errorf("state = %v, want seeded", snap.State)
	}
	if snap.Notice == nil || snap.Notice.Message != "Please select an assessment before submitting feedback." {
		t.Fatalf("notice = %+v", snap.Notice)
	}

	clock.Advance(DefaultNoticeDuration)
	if snap := s.Snapshot(); snap.Notice != nil {
		t.Errorf("notice still shown after %v: %+v", DefaultNoticeDuration, snap.Notice)
	}
}

func TestFeedbackSession_SubmitWithoutSeed(t *testing.T) {
	sub := &recordingSubmitter{}
	s := NewFeedbackSession(sub, FeedbackConfig{})

	if err := s.Submit(context.Background()); !errors.Is(err, ErrNotSeeded) {
		t.Errorf("Submit() error = %v, want ErrNotSeeded", err)
	}
	if sub.calls() != 0 {
		t.Errorf("network calls = %d, want 0", sub.calls())
	}
}

func TestFeedbackSession_SubmitSuccess(t *testing.T) {
	sub := &recordingSubmitter{}
	clock := newFakeClock()
	s := newSeededFeedback(t, sub, clock)
	linkage := s.Snapshot().Record

	_ = s.SetField(models.FieldAssessment, "INCORRECT")
	_ = s.SetField(models.FieldCorrectionText, "It is 55, not 45.")

	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	s.Wait()

	posted := sub.records[0]
	if posted.Assessment != models.AssessmentIncorrect || posted.CorrectionText != "It is 55, not 45." {
		t.Errorf("posted record = %+v", posted)
	}
	if posted.Query != linkage.Query || posted.RouteMode != linkage.RouteMode {
		t.Errorf("posted linkage = %+v, want %+v", posted, linkage)
	}

	snap := s.Snapshot()
	if snap.State != FeedbackSeeded || snap.LastOutcome != FeedbackSubmitted {
		t.Errorf("state = %v/%v, want seeded/submitted", snap.State, snap.LastOutcome)
	}
	if snap.Record != linkage {
		t.Errorf("record after submit = %+v, want %+v", snap.Record, linkage)
	}
	if snap.Notice == nil || snap.Notice.Kind != NoticeSuccess {
		t.Errorf("notice = %+v, want success", snap.Notice)
	}
}

func TestFeedbackSession_SubmitFailureRetainsEdits(t *testing.T) {
	sub := &recordingSubmitter{errs: []error{errors.New("HTTP error! Status: 503")}}
	s := newSeededFeedback(t, sub, newFakeClock())

	_ = s.SetField(models.FieldAssessment, "COMPLEX")
	_ = s.SetField(models.FieldCorrectionText, "Use Gauss's formula.")

	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	s.Wait()

	snap := s.Snapshot()
	if snap.State != FeedbackSubmitFailed {
		t.Fatalf("state = %v, want submit_failed", snap.State)
	}
	if snap.Record.Assessment != models.AssessmentComplex || snap.Record.CorrectionText != "Use Gauss's formula." {
		t.Errorf("edits lost: %+v", snap.Record)
	}
	if snap.Notice == nil || snap.Notice.Message != noticeSubmitFailed {
		t.Errorf("notice = %+v", snap.Notice)
	}

	// Resubmission goes through.
	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("resubmit error = %v", err)
	}
	s.Wait()
	if got := s.Snapshot(); got.LastOutcome != FeedbackSubmitted {
		t.Errorf("LastOutcome = %v, want submitted", got.LastOutcome)
	}
}

func TestFeedbackSession_BusyWhileSubmitting(t *testing.T) {
	sub := &recordingSubmitter{gate: make(chan struct{})}
	s := newSeededFeedback(t, sub, newFakeClock())
	_ = s.SetField(models.FieldAssessment, "CORRECT")

	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got := s.Snapshot().State; got != FeedbackSubmitting {
		t.Fatalf("state = %v, want submitting", got)
	}

	if err := s.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("second Submit() error = %v, want ErrSubmitInFlight", err)
	}
	if err := s.SetField(models.FieldCorrectionText, "x"); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("SetField() while submitting error = %v, want ErrSubmitInFlight", err)
	}

	close(sub.gate)
	s.Wait()

	if sub.calls() != 1 {
		t.Errorf("network calls = %d, want 1", sub.calls())
	}
}

func TestFeedbackSession_ResetDiscardsInflightSubmission(t *testing.T) {
	sub := &recordingSubmitter{gate: make(chan struct{})}
	s := newSeededFeedback(t, sub, newFakeClock())
	_ = s.SetField(models.FieldAssessment, "CORRECT")
	_ = s.Submit(context.Background())

	s.Reset()
	close(sub.gate)
	s.Wait()

	snap := s.Snapshot()
	if snap.State != FeedbackEmpty {
		t.Errorf("state = %v, want empty", snap.State)
	}
	if snap.Notice != nil {
		t.Errorf("stale completion produced a notice: %+v", snap.Notice)
	}
}

func TestFeedbackSession_EditAfterFailureReturnsToSeeded(t *testing.T) {
	sub := &recordingSubmitter{errs: []error{errors.New("down")}}
	s := newSeededFeedback(t, sub, newFakeClock())
	_ = s.SetField(models.FieldAssessment, "CORRECT")
	_ = s.Submit(context.Background())
	s.Wait()

	if err := s.SetField(models.FieldAssessment, "OFF_TOPIC"); err != nil {
		t.Fatalf("SetField() error = %v", err)
	}
	if got := s.Snapshot().State; got != FeedbackSeeded {
		t.Errorf("state = %v, want seeded", got)
	}
}

func TestNotice_Active(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	n := Notice{Message: "hi", ExpiresAt: now.Add(time.Second)}

	if !n.Active(now) {
		t.Error("expected notice to be active before expiry")
	}
	if n.Active(now.Add(time.Second)) {
		t.Error("expected notice to expire at ExpiresAt")
	}
	if (Notice{ExpiresAt: now.Add(time.Hour)}).Active(now) {
		t.Error("empty notice must never be active")
	}
}
