package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pesan/internal/constants"
)

// Session binds a peer id to an active polling lifecycle. It owns the
// poll cadence, the retry/backoff state, and every timer it schedules:
// stopping a session (or starting a new one) invalidates all of them.
//
// An epoch counter guards against orphaned callbacks. Each Start and
// Stop bumps the epoch; timer callbacks and fetch completions carry the
// epoch they were scheduled under and no-op on mismatch. A fetch already
// on the wire cannot be aborted, but its response is discarded the same
// way if the session has moved on.
type Session struct {
	mu sync.Mutex

	transport Transport
	store     *Store
	pipeline  *Pipeline
	bus       *EventBus
	clock     Clock
	selfID    int64

	state    SessionState
	peerID   int64
	epoch    uint64
	inFlight bool
	retries  int
	hidden   bool
	online   bool
	connErr  bool

	pollTimer    Timer
	resumeTimer  Timer
	connErrTimer Timer
}

// NewSession creates a session with constructor-injected collaborators.
// The pipeline must share the given store.
func NewSession(transport Transport, store *Store, pipeline *Pipeline, bus *EventBus, clock Clock, selfID int64) *Session {
	return &Session{
		transport: transport,
		store:     store,
		pipeline:  pipeline,
		bus:       bus,
		clock:     clock,
		selfID:    selfID,
		state:     StateInactive,
		online:    true,
	}
}

// State returns the session's current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PeerID returns the active peer id, or 0 when inactive.
func (s *Session) PeerID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerID
}

// Retries returns the consecutive fetch failure count.
func (s *Session) Retries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// ConnError reports whether the connection-error indicator is raised.
func (s *Session) ConnError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connErr
}

// Start begins polling the conversation with peerID. Any previous
// conversation's timers and fetch state are cancelled first, and the
// high-water mark restarts at zero.
func (s *Session) Start(peerID int64) {
	s.mu.Lock()
	s.cancelTimersLocked()
	s.epoch++
	ep := s.epoch
	s.peerID = peerID
	s.inFlight = false
	s.retries = 0
	s.connErr = false
	s.store.Reset()
	s.setStateLocked(StatePolling)
	// Immediate first cycle; steady cadence is scheduled from within
	// each tick.
	s.pollTimer = s.clock.AfterFunc(0, func() { s.pollTick(ep) })
	s.mu.Unlock()

	s.pipeline.Reset()
	log.Info().Int64("peer", peerID).Msg("Conversation started")
}

// Stop ends the active conversation. Idempotent. No fetch, render, or
// backoff callback owned by this session runs after Stop returns.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateInactive {
		s.mu.Unlock()
		return
	}
	peer := s.peerID
	s.cancelTimersLocked()
	s.epoch++
	s.peerID = 0
	s.inFlight = false
	s.retries = 0
	s.connErr = false
	s.setStateLocked(StateInactive)
	s.mu.Unlock()

	s.pipeline.Reset()
	log.Info().Int64("peer", peer).Msg("Conversation stopped")
}

// SetHidden reacts to the surface being hidden or shown. Polling is
// suspended while hidden and resumes when visible with an active peer.
func (s *Session) SetHidden(hidden bool) {
	s.pipeline.SetHidden(hidden)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden = hidden
	if hidden {
		s.suspendLocked()
		return
	}
	s.resumeFromSuspendLocked()
}

// SetOnline reacts to network connectivity changes. Going offline
// suspends polling; coming back online resumes it and raises the
// connection-error affordance, which self-clears after five seconds or
// on the first successful fetch.
func (s *Session) SetOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = online
	if !online {
		s.suspendLocked()
		return
	}
	resumed := s.resumeFromSuspendLocked()
	if resumed {
		s.raiseConnErrorLocked()
	}
}

// suspendLocked halts scheduling but leaves conversation state intact.
// An in-flight fetch is not aborted; its result still merges.
func (s *Session) suspendLocked() {
	switch s.state {
	case StatePolling, StateAwaitingResponse, StateBackingOff:
		s.stopPollTimersLocked()
		s.setStateLocked(StateSuspended)
	}
}

// resumeFromSuspendLocked restarts polling when nothing else keeps the
// session suspended. Reports whether polling actually resumed.
func (s *Session) resumeFromSuspendLocked() bool {
	if s.state != StateSuspended || s.peerID == 0 || s.hidden || !s.online {
		return false
	}
	s.setStateLocked(StatePolling)
	ep := s.epoch
	s.pollTimer = s.clock.AfterFunc(0, func() { s.pollTick(ep) })
	return true
}

// pollTick runs one fetch cycle. The next cycle is scheduled before the
// request is issued: cadence is measured from scheduling, not from
// completion. A tick that fires while a fetch is still in flight is
// skipped rather than overlapped.
func (s *Session) pollTick(ep uint64) {
	s.mu.Lock()
	if ep != s.epoch {
		s.mu.Unlock()
		return
	}
	switch s.state {
	case StatePolling, StateAwaitingResponse:
	default:
		s.mu.Unlock()
		return
	}
	s.pollTimer = s.clock.AfterFunc(constants.PollInterval, func() { s.pollTick(ep) })
	if s.inFlight {
		s.mu.Unlock()
		return
	}
	s.inFlight = true
	s.setStateLocked(StateAwaitingResponse)
	peer := s.peerID
	after := s.store.HighWater()
	s.mu.Unlock()

	nonce := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), constants.FetchTimeout)
	batch, err := s.transport.FetchMessages(ctx, peer, after, nonce)
	cancel()
	s.fetchDone(ep, peer, batch, err)
}

// fetchDone applies one fetch result. Stale results (epoch or peer
// mismatch) are discarded before any state is touched.
func (s *Session) fetchDone(ep uint64, peer int64, batch []Message, err error) {
	s.mu.Lock()
	if ep != s.epoch || peer != s.peerID {
		s.mu.Unlock()
		log.Debug().Int64("peer", peer).Msg("Discarding stale fetch result")
		return
	}
	s.inFlight = false

	if err != nil {
		s.retries++
		delay := backoffDelay(s.retries)
		s.stopPollTimersLocked()
		if s.state == StateAwaitingResponse || s.state == StatePolling {
			s.setStateLocked(StateBackingOff)
			s.resumeTimer = s.clock.AfterFunc(delay, func() { s.backoffResume(ep) })
		}
		s.raiseConnErrorLocked()
		retries := s.retries
		s.mu.Unlock()

		log.Warn().Err(err).Int("retries", retries).Dur("backoff", delay).Msg("Fetch cycle failed")
		return
	}

	s.retries = 0
	s.clearConnErrorLocked()
	if s.state == StateAwaitingResponse {
		s.setStateLocked(StatePolling)
	}
	var maxID int64
	for _, m := range batch {
		if m.ID > maxID {
			maxID = m.ID
		}
	}
	if maxID > 0 {
		s.store.AdvanceHighWater(maxID)
	}
	highWater := s.store.HighWater()
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	merged := s.pipeline.Ingest(batch)
	s.bus.Publish(Event{
		Type:      EventBatchMerged,
		PeerID:    peer,
		Merge:     &MergeData{Fetched: len(batch), Merged: merged, HighWater: highWater},
		Timestamp: s.clock.Now(),
	})
	log.Debug().Int("fetched", len(batch)).Int("merged", merged).Int64("high_water", highWater).Msg("Batch merged")
}

// backoffResume fires once after the backoff delay and restarts
// fixed-interval polling from scratch. The retry counter is left alone;
// only a successful fetch resets it.
func (s *Session) backoffResume(ep uint64) {
	s.mu.Lock()
	if ep != s.epoch || s.state != StateBackingOff {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(StatePolling)
	s.mu.Unlock()

	s.pollTick(ep)
}

// raiseConnErrorLocked shows the connection-error indicator and arms
// its fire-and-forget clear timer. The timer clears the indicator five
// seconds later regardless of fetch outcomes in between.
func (s *Session) raiseConnErrorLocked() {
	if s.connErrTimer != nil {
		s.connErrTimer.Stop()
	}
	ep := s.epoch
	s.connErrTimer = s.clock.AfterFunc(constants.ConnErrorClearAfter, func() { s.connErrExpired(ep) })
	if s.connErr {
		return
	}
	s.connErr = true
	s.bus.Publish(Event{
		Type:      EventConnError,
		PeerID:    s.peerID,
		Error:     &ErrorData{Error: "connection error"},
		Timestamp: s.clock.Now(),
	})
}

func (s *Session) clearConnErrorLocked() {
	if s.connErrTimer != nil {
		s.connErrTimer.Stop()
		s.connErrTimer = nil
	}
	if !s.connErr {
		return
	}
	s.connErr = false
	s.bus.Publish(Event{
		Type:      EventConnErrorCleared,
		PeerID:    s.peerID,
		Timestamp: s.clock.Now(),
	})
}

func (s *Session) connErrExpired(ep uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ep != s.epoch {
		return
	}
	s.clearConnErrorLocked()
}

// setStateLocked transitions the state machine and emits the change.
func (s *Session) setStateLocked(newState SessionState) {
	if s.state == newState {
		return
	}
	oldState := s.state
	s.state = newState
	s.bus.Publish(Event{
		Type:      EventStateChanged,
		PeerID:    s.peerID,
		State:     &StateChangeData{OldState: oldState, NewState: newState},
		Timestamp: s.clock.Now(),
	})
}

func (s *Session) stopPollTimersLocked() {
	if s.pollTimer != nil {
		s.pollTimer.Stop()
		s.pollTimer = nil
	}
	if s.resumeTimer != nil {
		s.resumeTimer.Stop()
		s.resumeTimer = nil
	}
}

func (s *Session) cancelTimersLocked() {
	s.stopPollTimersLocked()
	if s.connErrTimer != nil {
		s.connErrTimer.Stop()
		s.connErrTimer = nil
	}
}

// backoffDelay computes min(base << retries, max).
func backoffDelay(retries int) time.Duration {
	if retries > 10 {
		return constants.BackoffMax
	}
	d := constants.BackoffBase << uint(retries)
	if d > constants.BackoffMax {
		d = constants.BackoffMax
	}
	return d
}
