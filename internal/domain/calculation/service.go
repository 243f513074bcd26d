// Package calculation keeps one patient's current vital signs and republishes
// NEWS2 and q-SOFA results to subscribers whenever the snapshot changes.
package calculation

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/vitalscores/internal/domain/scoring"
	"github.com/ehr/vitalscores/internal/domain/vitals"
	"github.com/ehr/vitalscores/internal/platform/metrics"
)

// Listener receives the combined results after every change.
type Listener func(CalculationResults)

type subscription struct {
	id       uuid.UUID
	listener Listener
}

// delivery is one computed result and the subscriptions it goes to.
type delivery struct {
	results CalculationResults
	to      []subscription
}

// Service owns the vital signs snapshot. Each UpdateVitalSigns or Reset call
// recomputes both scores once and delivers the result to every subscriber,
// in subscription order.
//
// Deliveries never overlap and arrive in the order the changes were made.
// Listeners run on the goroutine that is draining the delivery queue and may
// call any method, including UpdateVitalSigns. A change made from inside a
// listener is delivered after the current pass completes, before the outer
// call returns.
type Service struct {
	mu          sync.RWMutex
	snapshot    vitals.VitalSigns
	subscribers []subscription

	// queueMu guards queue and dispatching. Only the dispatching caller
	// invokes listeners.
	queueMu     sync.Mutex
	queue       []delivery
	dispatching bool

	logger  zerolog.Logger
	metrics *metrics.Collectors
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger.With().Str("component", "calculation").Logger()
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Collectors) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService returns a Service holding the empty snapshot.
func NewService(opts ...Option) *Service {
	s := &Service{
		snapshot: vitals.Empty(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateVitalSigns merges u into the snapshot and notifies every subscriber.
// Values are stored as given; validation is the caller's concern.
func (s *Service) UpdateVitalSigns(u *vitals.Update) {
	s.mu.Lock()
	s.snapshot = u.Apply(s.snapshot)
	s.stage()
	s.mu.Unlock()

	if u != nil {
		fields := make([]string, 0, 7)
		for _, f := range u.Touched() {
			fields = append(fields, string(f))
		}
		s.logger.Debug().Strs("fields", fields).Msg("vital signs updated")
	}
	s.drain()
}

// Reset restores the empty snapshot and notifies every subscriber.
func (s *Service) Reset() {
	s.mu.Lock()
	s.snapshot = vitals.Empty()
	s.stage()
	s.mu.Unlock()

	s.logger.Debug().Msg("vital signs reset")
	s.drain()
}

// CurrentVitalSigns returns a copy of the snapshot.
func (s *Service) CurrentVitalSigns() vitals.VitalSigns {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}

// CalculateBothScores computes both summaries from the current snapshot
// without notifying anyone.
func (s *Service) CalculateBothScores() CalculationResults {
	return s.DetailedResults().Summary()
}

// DetailedResults computes both full results, breakdowns included, from the
// current snapshot.
func (s *Service) DetailedResults() DetailedResults {
	return s.calculate(s.CurrentVitalSigns())
}

// Subscribe registers l, calls it once with the current results, and returns
// a function that removes exactly this subscription. The returned function is
// safe to call more than once.
//
// Called from a listener, the first call to l is queued behind the pass in
// progress.
func (s *Service) Subscribe(l Listener) (unsubscribe func()) {
	sub := subscription{id: uuid.New(), listener: l}
	s.mu.Lock()
	s.subscribers = append(s.subscribers, sub)
	count := len(s.subscribers)
	s.enqueue(delivery{results: s.calculate(s.snapshot).Summary(), to: []subscription{sub}})
	s.mu.Unlock()

	s.metrics.SetSubscribers(count)
	s.logger.Debug().Str("subscription_id", sub.id.String()).Int("subscribers", count).Msg("subscribed")

	s.drain()
	return func() { s.unsubscribe(sub.id) }
}

func (s *Service) unsubscribe(id uuid.UUID) {
	s.mu.Lock()
	removed := false
	for i, sub := range s.subscribers {
		if sub.id == id {
			s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
			removed = true
			break
		}
	}
	count := len(s.subscribers)
	s.mu.Unlock()

	if !removed {
		return
	}
	s.metrics.SetSubscribers(count)
	s.logger.Debug().Str("subscription_id", id.String()).Int("subscribers", count).Msg("unsubscribed")
}

// SubscriberCount returns the number of active subscriptions.
func (s *Service) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// DataCompleteness reports, for each system, which required observations are
// missing and what share of them is present.
func (s *Service) DataCompleteness() Completeness {
	v := s.CurrentVitalSigns()
	return Completeness{
		NEWS2: completeness(scoring.NEWS2, v),
		QSOFA: completeness(scoring.QSOFA, v),
	}
}

func completeness(sys scoring.System, v vitals.VitalSigns) SystemCompleteness {
	required := scoring.RequiredFields(sys)
	missing := v.Missing(required)
	return SystemCompleteness{
		IsComplete:           len(missing) == 0,
		MissingFields:        missing,
		CompletionPercentage: scoring.CompletionPercentage(len(required)-len(missing), len(required)),
	}
}

// FieldRequirements lists the parameters each system scores. NEWS2 includes
// supplemental oxygen; Shared is the overlap of the two lists.
func (s *Service) FieldRequirements() FieldRequirements {
	return FieldRequirements{
		NEWS2:  scoring.ScoredFields(scoring.NEWS2),
		QSOFA:  scoring.ScoredFields(scoring.QSOFA),
		Shared: scoring.SharedFields(),
	}
}

// MinimumDataRequirements lists the observations that must be present before
// each system can score. ForEither is the q-SOFA set, which NEWS2 contains.
func (s *Service) MinimumDataRequirements() MinimumRequirements {
	return MinimumRequirements{
		ForNEWS2:  scoring.RequiredFields(scoring.NEWS2),
		ForQSOFA:  scoring.RequiredFields(scoring.QSOFA),
		ForEither: scoring.RequiredFields(scoring.QSOFA),
	}
}

// HasAnyCalculableData reports whether at least one system is complete.
func (s *Service) HasAnyCalculableData() bool {
	r := s.CalculateBothScores()
	return r.NEWS2.IsComplete || r.QSOFA.IsComplete
}

// calculate scores one snapshot with both systems.
func (s *Service) calculate(v vitals.VitalSigns) DetailedResults {
	start := time.Now()
	d := DetailedResults{
		NEWS2: scoring.CalculateNEWS2(v),
		QSOFA: scoring.CalculateQSOFA(v),
	}
	s.metrics.ObserveDuration(time.Since(start))
	s.metrics.ObserveCalculation(string(scoring.NEWS2), d.NEWS2.IsComplete)
	s.metrics.ObserveCalculation(string(scoring.QSOFA), d.QSOFA.IsComplete)
	return d
}

// stage queues the results for the current snapshot, addressed to the
// current subscribers. Callers hold mu for writing, so queue order is change
// order.
func (s *Service) stage() {
	to := make([]subscription, len(s.subscribers))
	copy(to, s.subscribers)
	s.enqueue(delivery{results: s.calculate(s.snapshot).Summary(), to: to})
}

func (s *Service) enqueue(d delivery) {
	s.queueMu.Lock()
	s.queue = append(s.queue, d)
	s.queueMu.Unlock()
}

// drain delivers queued results one at a time in queue order, unless another
// call is already draining.
func (s *Service) drain() {
	s.queueMu.Lock()
	if s.dispatching {
		s.queueMu.Unlock()
		return
	}
	s.dispatching = true
	s.queueMu.Unlock()

	drained := false
	// A panicking listener hands the rest of the queue to the next caller.
	defer func() {
		if !drained {
			s.queueMu.Lock()
			s.dispatching = false
			s.queueMu.Unlock()
		}
	}()

	for {
		s.queueMu.Lock()
		if len(s.queue) == 0 {
			s.queue = nil
			s.dispatching = false
			drained = true
			s.queueMu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.queueMu.Unlock()

		s.deliver(next)
	}
}

func (s *Service) deliver(d delivery) {
	delivered := 0
	for _, sub := range d.to {
		// A listener may unsubscribe one that has not run yet in this pass.
		if !s.subscribed(sub.id) {
			continue
		}
		sub.listener(d.results)
		delivered++
	}
	s.metrics.AddNotifications(delivered)
}

func (s *Service) subscribed(id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subscribers {
		if sub.id == id {
			return true
		}
	}
	return false
}
