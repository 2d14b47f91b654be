package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mathrag/client/internal/models"
	"github.com/mathrag/client/pkg/logger"
)

// View is the read-only state handed to presentation layers.
type View struct {
	SessionID         string                `json:"session_id"`
	Question          string                `json:"question"`
	SolveState        SolveState            `json:"solve_state"`
	Solution          *models.Solution      `json:"solution,omitempty"`
	SolveError        *Failure              `json:"solve_error,omitempty"`
	FeedbackState     FeedbackState         `json:"feedback_state"`
	Feedback          models.FeedbackRecord `json:"feedback"`
	Notice            *Notice               `json:"notice,omitempty"`
	FeedbackAvailable bool                  `json:"feedback_available"`
}

type Config struct {
	Level           string
	UserID          string
	DefaultQuestion string
	NoticeDuration  time.Duration
	Now             func() time.Time
	Logger          *zap.Logger
}

// Coordinator composes one SolveSession and one FeedbackSession behind a
// single lock, so every event observes either the state before a completion
// or the state after it. The only link between the sessions is the one-way
// reset/seed performed when a solve starts or resolves.
type Coordinator struct {
	id       string
	logger   *zap.Logger
	mu       sync.Mutex
	solve    *SolveSession
	feedback *FeedbackSession

	subMu   sync.Mutex
	subs    map[uint64]chan View
	nextSub uint64
}

func NewCoordinator(solver Solver, submitter FeedbackSubmitter, cfg Config) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = logger.Named("session")
	}

	id := uuid.NewString()
	log := cfg.Logger.With(zap.String("session_id", id))

	c := &Coordinator{
		id:     id,
		logger: log,
		subs:   make(map[uint64]chan View),
	}

	c.solve = NewSolveSession(solver, SolveConfig{
		Level:  cfg.Level,
		UserID: cfg.UserID,
		Logger: log,
	})
	c.feedback = NewFeedbackSession(submitter, FeedbackConfig{
		NoticeDuration: cfg.NoticeDuration,
		Now:            cfg.Now,
		Logger:         log,
	})

	c.solve.mu = &c.mu
	c.feedback.mu = &c.mu
	c.solve.question = cfg.DefaultQuestion

	c.solve.onStart = c.feedback.resetLocked
	c.solve.onResolved = c.feedback.seedLocked
	c.solve.onChange = c.publish
	c.feedback.onChange = c.publish

	return c
}

func (c *Coordinator) ID() string {
	return c.id
}

func (c *Coordinator) SetQuestion(text string) error {
	return c.solve.SetQuestion(text)
}

// StartSolve submits the current question.
func (c *Coordinator) StartSolve(ctx context.Context) error {
	c.mu.Lock()
	req, seq, err := c.solve.beginLocked(c.solve.question)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.publish()
	c.solve.run(ctx, req, seq)
	return nil
}

func (c *Coordinator) SetFeedbackField(name, value string) error {
	c.mu.Lock()
	if !c.feedbackAvailableLocked() {
		c.mu.Unlock()
		return ErrNotSeeded
	}
	err := c.feedback.setFieldLocked(name, value)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.publish()
	return nil
}

func (c *Coordinator) SubmitFeedback(ctx context.Context) error {
	c.mu.Lock()
	if !c.feedbackAvailableLocked() {
		c.mu.Unlock()
		c.logger.Debug("Feedback submitted without a present solution")
		return ErrNotSeeded
	}
	record, seq, err := c.feedback.beginSubmitLocked()
	c.mu.Unlock()

	c.publish()
	if err != nil {
		return err
	}

	c.feedback.run(ctx, record, seq)
	return nil
}

// feedbackAvailableLocked mirrors what the page shows: the form exists only
// next to a present solution.
func (c *Coordinator) feedbackAvailableLocked() bool {
	return c.solve.state == SolveResolved && c.solve.failure == nil && c.solve.solution.Present()
}

func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	solve := c.solve.snapshotLocked()
	feedback := c.feedback.snapshotLocked()

	view := View{
		SessionID:         c.id,
		Question:          solve.Question,
		SolveState:        solve.State,
		SolveError:        solve.Failure,
		FeedbackState:     feedback.State,
		Feedback:          feedback.Record,
		Notice:            feedback.Notice,
		FeedbackAvailable: c.feedbackAvailableLocked(),
	}
	if solve.State == SolveResolved {
		solution := solve.Solution
		view.Solution = &solution
	}
	return view
}

// Subscribe returns a channel receiving the latest view after every change.
// Slow readers only ever see the most recent view.
func (c *Coordinator) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			close(ch)
			c.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (c *Coordinator) publish() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	view := c.View()

	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- view:
		default:
		}
	}
}

// Wait blocks until all in-flight requests have been applied.
func (c *Coordinator) Wait() {
	c.solve.Wait()
	c.feedback.Wait()
}
