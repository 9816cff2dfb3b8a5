package chat

import (
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"pesan/internal/constants"
)

// Renderer is the presentation collaborator the pipeline drains into.
// Implementations decide what "scrolled to bottom" means for their
// surface (the reference surface uses a 100px proximity threshold).
type Renderer interface {
	RenderMessage(m Message)
	IsScrolledToBottom() bool
	ScrollToBottom()
}

// Notifier is the collaborator for incoming-message side effects.
type Notifier interface {
	PlaySound()
	NotificationsAllowed() bool
	ShowDesktopNotification(summary string)
}

// Pipeline merges fetched batches into the store and drains them to the
// renderer in bounded batches so the surface stays responsive.
//
// All mutation happens under one mutex; re-entrant ingest during a
// drain only appends, guarded by the draining flag rather than by any
// assumption that the inter-batch yield is exclusive.
type Pipeline struct {
	mu sync.Mutex

	store    *Store
	renderer Renderer
	notifier Notifier
	clock    Clock
	selfID   int64

	pending    []Message
	pendingIDs map[int64]struct{}
	draining   bool
	hidden     bool
	gen        uint64
	drainTimer Timer
}

// NewPipeline creates a pipeline draining into renderer with
// notification side effects going to notifier. selfID identifies the
// local user so their own messages never notify.
func NewPipeline(store *Store, renderer Renderer, notifier Notifier, clock Clock, selfID int64) *Pipeline {
	return &Pipeline{
		store:      store,
		renderer:   renderer,
		notifier:   notifier,
		clock:      clock,
		selfID:     selfID,
		pendingIDs: make(map[int64]struct{}),
	}
}

// Ingest merges one fetch result. Messages already rendered or already
// pending are dropped, including duplicates within the batch itself.
// Notification side effects are computed once per fetch result, not per
// render batch. Returns how many messages were newly enqueued.
func (p *Pipeline) Ingest(batch []Message) int {
	p.mu.Lock()

	var firstIncoming *Message
	incoming := 0
	merged := 0
	for i := range batch {
		m := batch[i]
		if p.store.Contains(m.ID) {
			continue
		}
		if _, ok := p.pendingIDs[m.ID]; ok {
			continue
		}
		p.pending = append(p.pending, m)
		p.pendingIDs[m.ID] = struct{}{}
		merged++
		if m.SenderID != p.selfID {
			incoming++
			if firstIncoming == nil {
				firstIncoming = &batch[i]
			}
		}
	}
	hidden := p.hidden
	p.scheduleDrainLocked()
	p.mu.Unlock()

	if incoming > 0 {
		p.notifier.PlaySound()
		if hidden && p.notifier.NotificationsAllowed() {
			p.notifier.ShowDesktopNotification(notifySummary(*firstIncoming))
		}
	}

	return merged
}

// IngestLocal enqueues a locally sent message for immediate rendering,
// bypassing the fetch cycle. No notification side effects.
func (p *Pipeline) IngestLocal(m Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.store.Contains(m.ID) {
		return
	}
	if _, ok := p.pendingIDs[m.ID]; ok {
		return
	}
	p.pending = append(p.pending, m)
	p.pendingIDs[m.ID] = struct{}{}
	p.scheduleDrainLocked()
}

// SetHidden records whether the surface is currently hidden. Hidden
// surfaces get desktop notifications instead of relying on the view.
func (p *Pipeline) SetHidden(hidden bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hidden = hidden
}

// PendingLen returns the number of messages awaiting render.
func (p *Pipeline) PendingLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Reset drops the pending queue and cancels any scheduled drain step.
// Fired-but-unstarted drain callbacks become no-ops.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	if p.drainTimer != nil {
		p.drainTimer.Stop()
		p.drainTimer = nil
	}
	p.pending = nil
	p.pendingIDs = make(map[int64]struct{})
	p.draining = false
}

// scheduleDrainLocked starts a drain unless one is already in progress.
func (p *Pipeline) scheduleDrainLocked() {
	if p.draining || len(p.pending) == 0 {
		return
	}
	p.draining = true
	gen := p.gen
	p.drainTimer = p.clock.AfterFunc(0, func() { p.drainStep(gen) })
}

// drainStep renders one bounded batch, then either yields before the
// next step or finishes the drain.
func (p *Pipeline) drainStep(gen uint64) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	n := len(p.pending)
	if n > constants.RenderBatchSize {
		n = constants.RenderBatchSize
	}
	batch := make([]Message, n)
	copy(batch, p.pending[:n])
	p.pending = p.pending[n:]
	for _, m := range batch {
		delete(p.pendingIDs, m.ID)
	}
	p.mu.Unlock()

	if n > 0 {
		// Capture scroll position before rendering: new content must
		// not hijack the view of a user reading history.
		follow := p.renderer.IsScrolledToBottom()
		for _, m := range batch {
			if p.store.Add(m) {
				p.renderer.RenderMessage(m)
			}
		}
		if follow {
			p.renderer.ScrollToBottom()
		}
		log.Debug().Int("rendered", n).Msg("Drain step complete")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return
	}
	if len(p.pending) > 0 {
		p.drainTimer = p.clock.AfterFunc(constants.DrainYield, func() { p.drainStep(gen) })
		return
	}
	p.draining = false
	p.drainTimer = nil
}

// notifySummary builds the one-line desktop notification body.
func notifySummary(m Message) string {
	text := strings.TrimSpace(m.Content)
	if text == "" {
		return constants.NotifyMediaFallback
	}
	if len(text) > constants.NotifyPreviewMaxChars {
		return text[:constants.NotifyPreviewMaxChars] + constants.NotifyPreviewEllipsis
	}
	return text
}
