package mapengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"healthmap/core-go/internal/domain"
	"healthmap/core-go/internal/metrics"
)

// FallbackDetail is shown when the insight collaborator fails.
const FallbackDetail = "Insight is unavailable for this node right now. Select it again to retry."

var errNoInsightSource = errors.New("no insight source configured")

// InsightSource is the external collaborator that explains a node.
type InsightSource interface {
	NodeInsight(ctx context.Context, node domain.Node, related []domain.Node) (string, error)
}

type SelectionStatus string

const (
	SelectionIdle    SelectionStatus = "idle"
	SelectionLoading SelectionStatus = "loading"
	SelectionReady   SelectionStatus = "ready"
	SelectionFailed  SelectionStatus = "failed"
)

// SelectionState is what the detail panel renders. Version increases on every
// transition so listeners can order notifications.
type SelectionState struct {
	Status     SelectionStatus `json:"status"`
	Node       *domain.Node    `json:"node,omitempty"`
	Related    []domain.Node   `json:"related,omitempty"`
	DetailText string          `json:"detailText,omitempty"`
	Version    uint64          `json:"version"`
}

func (s SelectionState) Loading() bool {
	return s.Status == SelectionLoading
}

type SelectionOptions struct {
	// Timeout bounds each insight request. Zero means no timeout.
	Timeout time.Duration
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// SelectionController is the Idle -> Loading -> Ready|Failed state machine
// behind the detail panel. Every request carries a token; a response whose
// token is no longer current is dropped.
type SelectionController struct {
	source  InsightSource
	timeout time.Duration
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	state  SelectionState
	token  uint64
	cancel context.CancelFunc
	subs   map[int]chan SelectionState
	nextID int
	closed bool

	inflight sync.WaitGroup
}

func NewSelectionController(source InsightSource, opts SelectionOptions) *SelectionController {
	return &SelectionController{
		source:  source,
		timeout: opts.Timeout,
		log:     opts.Logger,
		metrics: opts.Metrics,
		state:   SelectionState{Status: SelectionIdle},
		subs:    make(map[int]chan SelectionState),
	}
}

func (c *SelectionController) State() SelectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Select moves to Loading and issues one insight request for node. It
// returns false without doing anything when node is already loading.
func (c *SelectionController) Select(node domain.Node, related []domain.Node) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	if c.state.Status == SelectionLoading && c.state.Node != nil && c.state.Node.Key() == node.Key() {
		return false
	}

	c.cancelLocked()
	c.token++
	token := c.token

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), c.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	c.cancel = cancel

	n := node
	c.transitionLocked(SelectionState{
		Status:  SelectionLoading,
		Node:    &n,
		Related: append([]domain.Node(nil), related...),
	})

	c.inflight.Add(1)
	go c.fetch(ctx, token, node, related)
	return true
}

func (c *SelectionController) fetch(ctx context.Context, token uint64, node domain.Node, related []domain.Node) {
	defer c.inflight.Done()

	var (
		text string
		err  error
	)
	if c.source == nil {
		err = errNoInsightSource
	} else {
		text, err = c.source.NodeInsight(ctx, node, related)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.token || c.closed {
		c.metrics.IncInsight("stale")
		c.log.Debug().Str("node", node.Key()).Uint64("token", token).Msg("dropping stale insight response")
		return
	}
	c.cancelLocked()

	next := c.state
	if err != nil {
		c.metrics.IncInsight("failed")
		c.log.Warn().Err(err).Str("node", node.Key()).Msg("insight request failed")
		next.Status = SelectionFailed
		next.DetailText = FallbackDetail
	} else {
		c.metrics.IncInsight("ready")
		next.Status = SelectionReady
		next.DetailText = text
	}
	c.transitionLocked(next)
}

// Clear returns to Idle from any state and discards whatever is in flight.
func (c *SelectionController) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
	c.token++
	if c.state.Status == SelectionIdle {
		return
	}
	c.transitionLocked(SelectionState{Status: SelectionIdle})
}

func (c *SelectionController) cancelLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *SelectionController) transitionLocked(next SelectionState) {
	next.Version = c.state.Version + 1
	c.state = next
	for _, ch := range c.subs {
		deliver(ch, next)
	}
}

// deliver never blocks. A slow listener loses its oldest pending state,
// never the newest.
func deliver(ch chan SelectionState, st SelectionState) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}

// Subscribe returns a channel of selection changes and a function that
// unsubscribes. The channel is closed on unsubscribe or Close.
func (c *SelectionController) Subscribe(buffer int) (<-chan SelectionState, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan SelectionState, buffer)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Wait blocks until no insight request is in flight.
func (c *SelectionController) Wait() {
	c.inflight.Wait()
}

// Close cancels any in-flight request, waits for it and closes all
// subscriptions. Select is a no-op afterwards.
func (c *SelectionController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.token++
	c.cancelLocked()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	c.inflight.Wait()
}
