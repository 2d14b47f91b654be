package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mathrag/client/internal/metrics"
	"github.com/mathrag/client/internal/models"
	"github.com/mathrag/client/pkg/logger"
)

type FeedbackState int

const (
	FeedbackEmpty FeedbackState = iota
	FeedbackSeeded
	FeedbackSubmitting
	FeedbackSubmitted
	FeedbackSubmitFailed
)

func (s FeedbackState) String() string {
	switch s {
	case FeedbackEmpty:
		return "empty"
	case FeedbackSeeded:
		return "seeded"
	case FeedbackSubmitting:
		return "submitting"
	case FeedbackSubmitted:
		return "submitted"
	case FeedbackSubmitFailed:
		return "submit_failed"
	default:
		return "unknown"
	}
}

func (s FeedbackState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type FeedbackSubmitter interface {
	SubmitFeedback(ctx context.Context, record models.FeedbackRecord) error
}

type FeedbackConfig struct {
	NoticeDuration time.Duration
	Now            func() time.Time
	Logger         *zap.Logger
}

type FeedbackSnapshot struct {
	State FeedbackState
	// LastOutcome is FeedbackSubmitted or FeedbackSubmitFailed once a
	// submission has completed for the current seed.
	LastOutcome FeedbackState
	Record      models.FeedbackRecord
	Notice      *Notice
}

// FeedbackSession owns the HIL form for the current solution. Linkage fields
// are copied in by Seed and never edited; only the assessment and the
// correction text are user-editable.
type FeedbackSession struct {
	submitter      FeedbackSubmitter
	noticeDuration time.Duration
	now            func() time.Time
	logger         *zap.Logger

	mu          sync.Locker
	state       FeedbackState
	lastOutcome FeedbackState
	record      models.FeedbackRecord
	notice      Notice
	noticeTimer *time.Timer
	seq         uint64

	onChange func()

	inflight sync.WaitGroup
}

func NewFeedbackSession(submitter FeedbackSubmitter, cfg FeedbackConfig) *FeedbackSession {
	if cfg.NoticeDuration <= 0 {
		cfg.NoticeDuration = DefaultNoticeDuration
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Named("feedback")
	}
	return &FeedbackSession{
		submitter:      submitter,
		noticeDuration: cfg.NoticeDuration,
		now:            cfg.Now,
		logger:         cfg.Logger,
		mu:             &sync.Mutex{},
	}
}

// Reset empties the form. Any submission still in flight is discarded when
// it completes.
func (s *FeedbackSession) Reset() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()

	s.notify()
}

func (s *FeedbackSession) resetLocked() {
	s.seq++
	s.state = FeedbackEmpty
	s.lastOutcome = FeedbackEmpty
	s.record = models.FeedbackRecord{}
	s.clearNoticeLocked()
}

func (s *FeedbackSession) Seed(solution models.Solution, query string) {
	s.mu.Lock()
	s.seedLocked(solution, query)
	s.mu.Unlock()

	s.notify()
}

func (s *FeedbackSession) seedLocked(solution models.Solution, query string) {
	s.seq++
	s.state = FeedbackSeeded
	s.lastOutcome = FeedbackEmpty
	s.record = models.FeedbackRecord{
		Query:             strings.TrimSpace(query),
		GeneratedSolution: solution.Solution,
		RouteMode:         solution.Mode,
		ConfidenceScore:   solution.Confidence,
	}
	s.clearNoticeLocked()
}

func (s *FeedbackSession) SetField(name, value string) error {
	s.mu.Lock()
	err := s.setFieldLocked(name, value)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.notify()
	return nil
}

func (s *FeedbackSession) setFieldLocked(name, value string) error {
	switch s.state {
	case FeedbackEmpty:
		return ErrNotSeeded
	case FeedbackSubmitting:
		return ErrSubmitInFlight
	}

	switch name {
	case models.FieldAssessment:
		assessment, ok := models.ParseAssessment(value)
		if !ok {
			return ErrInvalidAssessment
		}
		s.record.Assessment = assessment
	case models.FieldCorrectionText:
		s.record.CorrectionText = value
	default:
		return fmt.Errorf("%w: %q", ErrFieldNotEditable, name)
	}

	s.state = FeedbackSeeded
	return nil
}

// Submit validates the form and posts it in the background. A missing
// assessment raises a notice and returns ErrAssessmentRequired without any
// request being made.
func (s *FeedbackSession) Submit(ctx context.Context) error {
	s.mu.Lock()
	record, seq, err := s.beginSubmitLocked()
	s.mu.Unlock()

	s.notify()
	if err != nil {
		return err
	}

	s.run(ctx, record, seq)
	return nil
}

func (s *FeedbackSession) beginSubmitLocked() (models.FeedbackRecord, uint64, error) {
	if s.state == FeedbackEmpty || s.record.Query == "" {
		return models.FeedbackRecord{}, 0, ErrNotSeeded
	}
	if s.state == FeedbackSubmitting {
		return models.FeedbackRecord{}, 0, ErrSubmitInFlight
	}
	if s.record.Assessment == models.AssessmentUnset {
		s.setNoticeLocked(ErrAssessmentRequired.Message, NoticeError)
		return models.FeedbackRecord{}, 0, ErrAssessmentRequired
	}

	s.seq++
	s.state = FeedbackSubmitting
	return s.record, s.seq, nil
}

func (s *FeedbackSession) run(ctx context.Context, record models.FeedbackRecord, seq uint64) {
	ctx = context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		err := s.submitter.SubmitFeedback(ctx, record)
		s.complete(seq, record, err)
	}()
}

func (s *FeedbackSession) complete(seq uint64, record models.FeedbackRecord, err error) {
	s.mu.Lock()
	if seq != s.seq || s.state != FeedbackSubmitting {
		s.mu.Unlock()
		metrics.StaleResponses.WithLabelValues("feedback").Inc()
		s.logger.Debug("Discarding stale feedback response", zap.Uint64("seq", seq))
		return
	}

	assessment := string(record.Assessment)
	if err != nil {
		s.state = FeedbackSubmitFailed
		s.lastOutcome = FeedbackSubmitFailed
		s.setNoticeLocked(noticeSubmitFailed, NoticeError)
		metrics.FeedbackTotal.WithLabelValues(assessment, "failed").Inc()
		s.logger.Warn("Feedback submission failed", zap.String("assessment", assessment), zap.Error(err))
	} else {
		s.record.Assessment = models.AssessmentUnset
		s.record.CorrectionText = ""
		s.state = FeedbackSeeded
		s.lastOutcome = FeedbackSubmitted
		s.setNoticeLocked(noticeSubmitted, NoticeSuccess)
		metrics.FeedbackTotal.WithLabelValues(assessment, "submitted").Inc()
		s.logger.Info("Feedback submitted",
			zap.String("assessment", assessment),
			zap.Bool("has_correction", record.CorrectionText != ""),
		)
	}
	s.mu.Unlock()

	s.notify()
}

func (s *FeedbackSession) setNoticeLocked(message string, kind NoticeKind) {
	s.notice = Notice{
		Message:   message,
		Kind:      kind,
		ExpiresAt: s.now().Add(s.noticeDuration),
	}

	if s.noticeTimer != nil {
		s.noticeTimer.Stop()
	}
	// Re-publish once the notice lapses so pushed views drop it.
	s.noticeTimer = time.AfterFunc(s.noticeDuration, s.notify)
}

func (s *FeedbackSession) clearNoticeLocked() {
	s.notice = Notice{}
	if s.noticeTimer != nil {
		s.noticeTimer.Stop()
		s.noticeTimer = nil
	}
}

func (s *FeedbackSession) Snapshot() FeedbackSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *FeedbackSession) snapshotLocked() FeedbackSnapshot {
	snap := FeedbackSnapshot{
		State:       s.state,
		LastOutcome: s.lastOutcome,
		Record:      s.record,
	}
	if s.notice.Active(s.now()) {
		notice := s.notice
		snap.Notice = &notice
	}
	return snap
}

func (s *FeedbackSession) Wait() {
	s.inflight.Wait()
}

func (s *FeedbackSession) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}
