package session

import (
	"context"
	"sync"
	"time"

	"github.com/mathrag/client/internal/models"
)

// gatedSolver blocks every Solve until release is called, then answers with
// the configured result.
type gatedSolver struct {
	mu       sync.Mutex
	requests []models.SolveRequest
	gate     chan struct{}
	solution *models.Solution
	err      error
}

func newGatedSolver(solution *models.Solution, err error) *gatedSolver {
	return &gatedSolver{gate: make(chan struct{}), solution: solution, err: err}
}

func (g *gatedSolver) Solve(ctx context.Context, req models.SolveRequest) (*models.Solution, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	gate := g.gate
	g.mu.Unlock()

	<-gate

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	sol := *g.solution
	return &sol, nil
}

func (g *gatedSolver) release() {
	g.mu.Lock()
	close(g.gate)
	g.mu.Unlock()
}

func (g *gatedSolver) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// instantSolver answers immediately.
type instantSolver struct {
	mu       sync.Mutex
	requests []models.SolveRequest
	solution models.Solution
	err      error
}

func (s *instantSolver) Solve(ctx context.Context, req models.SolveRequest) (*models.Solution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	sol := s.solution
	return &sol, nil
}

type recordingSubmitter struct {
	mu      sync.Mutex
	records []models.FeedbackRecord
	errs    []error
	gate    chan struct{}
}

func (r *recordingSubmitter) SubmitFeedback(ctx context.Context, record models.FeedbackRecord) error {
	r.mu.Lock()
	r.records = append(r.records, record)
	idx := len(r.records) - 1
	gate := r.gate
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < len(r.errs) {
		return r.errs[idx]
	}
	return nil
}

func (r *recordingSubmitter) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var kbSolution = models.Solution{
	Mode:       models.ModeKBResponse,
	Solution:   "The sum of the first 10 natural numbers is 55.",
	Confidence: 0.97,
	Status:     "ok",
}
