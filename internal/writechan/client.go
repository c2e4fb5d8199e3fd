package writechan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/outliner/internal/apperr"
)

// DefaultTimeout bounds how long a write waits for its response.
const DefaultTimeout = 10 * time.Second

// Result is the outcome of one write request.
type Result struct {
	Target        string
	CorrelationID string
	Err           error // nil on success
}

// Pending is a write whose response has not necessarily arrived yet. It
// settles exactly once, on whichever comes first of a matching response,
// the timeout, caller cancellation or client shutdown. OnSettle callbacks
// run before Done is closed.
type Pending struct {
	ID     string
	Target string

	done chan struct{}

	mu       sync.Mutex
	res      Result
	settled  bool
	onSettle []func(Result)
	timer    *time.Timer
}

// Done is closed once the request has settled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the request settles or ctx is done.
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.res, p.res.Err
	case <-ctx.Done():
		return Result{Target: p.Target, CorrelationID: p.ID, Err: ctx.Err()}, ctx.Err()
	}
}

// OnSettle registers fn to run once the request settles. If it already has,
// fn runs immediately.
func (p *Pending) OnSettle(fn func(Result)) {
	p.mu.Lock()
	if !p.settled {
		p.onSettle = append(p.onSettle, fn)
		p.mu.Unlock()
		return
	}
	res := p.res
	p.mu.Unlock()
	fn(res)
}

func (p *Pending) settle(res Result) bool {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return false
	}
	p.settled = true
	p.res = res
	if p.timer != nil {
		p.timer.Stop()
	}
	fns := p.onSettle
	p.onSettle = nil
	p.mu.Unlock()

	for _, fn := range fns {
		fn(res)
	}
	close(p.done)
	return true
}

// Client issues write requests over a Port and matches responses back to
// them, by correlation id or, for responses without one, by the oldest
// pending request to the same target.
type Client struct {
	port    Port
	timeout time.Duration
	log     *slog.Logger

	mu      sync.Mutex
	pending map[string]*Pending
	order   []*Pending // issue order, for target fallback

	drained atomic.Int64

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewClient starts a client over port. A non-positive timeout uses
// DefaultTimeout.
func NewClient(port Port, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		port:    port,
		timeout: timeout,
		log:     log,
		pending: make(map[string]*Pending),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go c.receive()
	return c
}

// Write sends content for target and returns the pending result. The
// request always settles, at the latest when the timeout fires.
func (c *Client) Write(ctx context.Context, target string, content []byte) *Pending {
	p := &Pending{
		ID:     uuid.NewString(),
		Target: target,
		done:   make(chan struct{}),
	}
	if c.closed.Load() {
		p.settle(c.result(p, apperr.ErrChannelClosed))
		return p
	}

	frame, err := encodeRequest(Request{
		Action:        ActionWrite,
		Target:        target,
		Content:       string(content),
		CorrelationID: p.ID,
	})
	if err != nil {
		p.settle(c.result(p, err))
		return p
	}

	c.mu.Lock()
	c.pending[p.ID] = p
	c.order = append(c.order, p)
	p.mu.Lock()
	p.timer = time.AfterFunc(c.timeout, func() {
		c.resolve(p, c.result(p, fmt.Errorf("writechan: %s after %s: %w", target, c.timeout, apperr.ErrChannelTimeout)))
	})
	p.mu.Unlock()
	c.mu.Unlock()

	select {
	case c.port.Requests() <- frame:
	case <-ctx.Done():
		c.resolve(p, c.result(p, ctx.Err()))
	case <-c.stopCh:
		c.resolve(p, c.result(p, apperr.ErrChannelClosed))
	}
	return p
}

// Inflight returns the number of unsettled requests.
func (c *Client) Inflight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Drained returns how many responses arrived that matched no pending
// request, typically answers to requests that had already timed out.
func (c *Client) Drained() int64 { return c.drained.Load() }

func (c *Client) result(p *Pending, err error) Result {
	return Result{Target: p.Target, CorrelationID: p.ID, Err: err}
}

// resolve removes p from the pending set and settles it. Whichever of
// response, timeout or cancellation comes first wins.
func (c *Client) resolve(p *Pending, res Result) {
	c.mu.Lock()
	c.forget(p)
	c.mu.Unlock()
	p.settle(res)
}

// forget must be called with c.mu held.
func (c *Client) forget(p *Pending) {
	delete(c.pending, p.ID)
	for i, q := range c.order {
		if q == p {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// match finds the request a response answers and removes it from the
// pending set.
func (c *Client) match(resp Response) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	if resp.CorrelationID != "" {
		p, ok := c.pending[resp.CorrelationID]
		if !ok {
			return nil
		}
		c.forget(p)
		return p
	}
	for _, p := range c.order {
		if p.Target == resp.Target {
			c.forget(p)
			return p
		}
	}
	return nil
}

func (c *Client) receive() {
	defer close(c.stopped)
	responses := c.port.Responses()
	for {
		select {
		case <-c.stopCh:
			c.failAll(apperr.ErrChannelClosed)
			return
		case frame, ok := <-responses:
			if !ok {
				c.failAll(apperr.ErrChannelClosed)
				return
			}
			c.dispatch(frame)
		}
	}
}

func (c *Client) dispatch(frame []byte) {
	resp, err := decodeResponse(frame)
	if err != nil {
		c.log.Warn("writechan: malformed response", slog.String("error", err.Error()))
		return
	}
	p := c.match(resp)
	if p == nil {
		c.drained.Add(1)
		c.log.Debug("writechan: drained uncorrelated response",
			slog.String("target", resp.Target),
			slog.String("correlation_id", resp.CorrelationID))
		return
	}
	res := c.result(p, nil)
	if !resp.Success {
		class := resp.ErrorClass
		if class == "" {
			class = ClassUnknown
		}
		res.Err = &WriteError{Target: resp.Target, Class: class, Message: resp.Error}
	}
	p.settle(res)
}

func (c *Client) failAll(err error) {
	c.mu.Lock()
	ps := c.order
	c.order = nil
	c.pending = make(map[string]*Pending)
	c.mu.Unlock()
	for _, p := range ps {
		p.settle(c.result(p, err))
	}
}

// Close stops the receive loop and settles every pending request with
// apperr.ErrChannelClosed.
func (c *Client) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.stopCh)
	}
	<-c.stopped
}
