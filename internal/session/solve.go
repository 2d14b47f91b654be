package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mathrag/client/internal/api/client"
	"github.com/mathrag/client/internal/metrics"
	"github.com/mathrag/client/internal/models"
	"github.com/mathrag/client/pkg/logger"
)

type SolveState int

const (
	SolveIdle SolveState = iota
	SolvePending
	SolveResolved
	SolveFailed
)

func (s SolveState) String() string {
	switch s {
	case SolveIdle:
		return "idle"
	case SolvePending:
		return "pending"
	case SolveResolved:
		return "resolved"
	case SolveFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s SolveState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Solver interface {
	Solve(ctx context.Context, req models.SolveRequest) (*models.Solution, error)
}

// Failure is the terminal error of a solve, already phrased for display.
type Failure struct {
	Message        string `json:"message"`
	ServerReported bool   `json:"server_reported"`
}

const (
	failurePrefix   = "API Error: "
	failureFallback = "Check the solving service logs."
)

// failureFrom phrases err for display. Only the server's detail and the
// HTTP status are shown; network and decoding errors carry internal
// addresses and parser output, so they collapse to a generic message.
func failureFrom(err error) *Failure {
	if detail, ok := client.Detail(err); ok {
		return &Failure{Message: failurePrefix + detail, ServerReported: true}
	}
	var transportErr *client.TransportError
	if errors.As(err, &transportErr) && transportErr.Err == nil && transportErr.StatusCode != 0 {
		return &Failure{Message: failurePrefix + fmt.Sprintf("HTTP error! Status: %d", transportErr.StatusCode)}
	}
	return &Failure{Message: failurePrefix + failureFallback}
}

type SolveConfig struct {
	Level  string
	UserID string
	Logger *zap.Logger
}

type SolveSnapshot struct {
	State    SolveState
	Question string
	Query    string
	Solution models.Solution
	Failure  *Failure
}

// SolveSession tracks one solve request at a time. A second Start while a
// request is pending is rejected, never queued.
type SolveSession struct {
	solver Solver
	level  string
	userID string
	logger *zap.Logger

	mu       sync.Locker
	state    SolveState
	question string
	query    string
	solution models.Solution
	failure  *Failure
	seq      uint64

	// onStart and onResolved run with mu held.
	onStart    func()
	onResolved func(solution models.Solution, query string)
	// onChange runs after mu is released.
	onChange func()

	inflight sync.WaitGroup
}

func NewSolveSession(solver Solver, cfg SolveConfig) *SolveSession {
	if cfg.Logger == nil {
		cfg.Logger = logger.Named("solve")
	}
	return &SolveSession{
		solver: solver,
		level:  cfg.Level,
		userID: cfg.UserID,
		logger: cfg.Logger,
		mu:     &sync.Mutex{},
	}
}

// SetQuestion replaces the editable question text. It is refused while a
// solve is pending.
func (s *SolveSession) SetQuestion(text string) error {
	s.mu.Lock()
	if s.state == SolvePending {
		s.mu.Unlock()
		return ErrSolveInFlight
	}
	s.question = text
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *SolveSession) Question() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.question
}

// Start submits question to the solve endpoint in the background. It returns
// ErrEmptyQuestion or ErrSolveInFlight without touching any state.
func (s *SolveSession) Start(ctx context.Context, question string) error {
	s.mu.Lock()
	req, seq, err := s.beginLocked(question)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.notify()
	s.run(ctx, req, seq)
	return nil
}

func (s *SolveSession) beginLocked(question string) (models.SolveRequest, uint64, error) {
	query := strings.TrimSpace(question)
	if query == "" {
		return models.SolveRequest{}, 0, ErrEmptyQuestion
	}
	if s.state == SolvePending {
		return models.SolveRequest{}, 0, ErrSolveInFlight
	}

	s.question = question
	s.query = query
	s.solution = models.Solution{}
	s.failure = nil
	s.seq++
	s.state = SolvePending

	if s.onStart != nil {
		s.onStart()
	}

	s.logger.Info("Solve started", zap.Uint64("seq", s.seq), zap.Int("query_length", len(query)))

	return models.SolveRequest{Query: query, Level: s.level, UserID: s.userID}, s.seq, nil
}

func (s *SolveSession) run(ctx context.Context, req models.SolveRequest, seq uint64) {
	// The request outlives the event that triggered it.
	ctx = context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		solution, err := s.solver.Solve(ctx, req)
		s.complete(seq, solution, err)
	}()
}

func (s *SolveSession) complete(seq uint64, solution *models.Solution, err error) {
	s.mu.Lock()
	if seq != s.seq || s.state != SolvePending {
		s.mu.Unlock()
		metrics.StaleResponses.WithLabelValues("solve").Inc()
		s.logger.Debug("Discarding stale solve response", zap.Uint64("seq", seq))
		return
	}

	if err == nil && solution == nil {
		err = errors.New("empty solve response")
	}

	if err != nil {
		s.failure = failureFrom(err)
		s.state = SolveFailed
		metrics.SolveTotal.WithLabelValues("failed").Inc()
		s.logger.Warn("Solve failed",
			zap.Uint64("seq", seq),
			zap.Bool("server_reported", s.failure.ServerReported),
			zap.Error(err),
		)
	} else {
		s.solution = *solution
		s.state = SolveResolved
		metrics.SolveTotal.WithLabelValues("resolved").Inc()
		if s.solution.HasConfidence() {
			metrics.SolutionConfidence.WithLabelValues(string(s.solution.Mode)).Observe(s.solution.Confidence)
		}
		if !s.solution.Mode.Known() {
			s.logger.Debug("Solve returned an unrecognized mode", zap.String("mode", string(s.solution.Mode)))
		}
		s.logger.Info("Solve resolved",
			zap.Uint64("seq", seq),
			zap.String("mode", string(s.solution.Mode)),
			zap.Float64("confidence", s.solution.Confidence),
			zap.Bool("present", s.solution.Present()),
		)
		if s.onResolved != nil {
			s.onResolved(s.solution, s.query)
		}
	}
	s.mu.Unlock()

	s.notify()
}

func (s *SolveSession) Snapshot() SolveSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *SolveSession) snapshotLocked() SolveSnapshot {
	snap := SolveSnapshot{
		State:    s.state,
		Question: s.question,
		Query:    s.query,
		Solution: s.solution,
	}
	if s.failure != nil {
		failure := *s.failure
		snap.Failure = &failure
	}
	return snap
}

// Wait blocks until every started request has been applied or discarded.
func (s *SolveSession) Wait() {
	s.inflight.Wait()
}

func (s *SolveSession) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}
