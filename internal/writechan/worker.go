package writechan

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/starford/outliner/internal/apperr"
)

// Store is the file system a Worker writes through.
type Store interface {
	WriteExclusive(path string, content []byte) error
}

// Port is one end of a request/response frame pair.
type Port interface {
	Requests() chan<- []byte
	Responses() <-chan []byte
}

// Worker executes write requests against a Store.
//
// Concurrency model: a single goroutine owns the store and handles one frame
// at a time. Callers reach it only through the request channel and read
// results from the response channel, which is closed when the worker stops.
type Worker struct {
	store Store
	log   *slog.Logger

	in  chan []byte
	out chan []byte

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewWorker starts a worker over store.
func NewWorker(store Store, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	w := &Worker{
		store:   store,
		log:     log,
		in:      make(chan []byte, 64),
		out:     make(chan []byte, 64),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Worker) Requests() chan<- []byte { return w.in }

func (w *Worker) Responses() <-chan []byte { return w.out }

func (w *Worker) run() {
	defer close(w.stopped)
	defer close(w.out)

	for {
		select {
		case <-w.stopCh:
			return
		case frame := <-w.in:
			resp, err := encodeResponse(w.handle(frame))
			if err != nil {
				w.log.Error("writechan: response dropped", slog.String("error", err.Error()))
				continue
			}
			select {
			case w.out <- resp:
			case <-w.stopCh:
				return
			}
		}
	}
}

func (w *Worker) handle(frame []byte) Response {
	req, err := decodeRequest(frame)
	if err != nil {
		return failure(Response{Action: ActionWrite}, err)
	}
	resp := Response{Action: ActionWrite, Target: req.Target, CorrelationID: req.CorrelationID}
	if req.Action != ActionWrite {
		return failure(resp, fmt.Errorf("unsupported action %q: %w", req.Action, apperr.ErrInvalidTarget))
	}
	if req.Target == "" {
		return failure(resp, fmt.Errorf("empty target: %w", apperr.ErrInvalidTarget))
	}
	if err := w.store.WriteExclusive(req.Target, []byte(req.Content)); err != nil {
		w.log.Warn("writechan: write failed",
			slog.String("target", req.Target),
			slog.String("correlation_id", req.CorrelationID),
			slog.String("error", err.Error()))
		return failure(resp, err)
	}
	resp.Success = true
	return resp
}

func failure(resp Response, err error) Response {
	resp.Success = false
	resp.Error = err.Error()
	resp.ErrorClass = Classify(err)
	return resp
}

// Close stops the worker loop. A request being handled finishes first.
func (w *Worker) Close() {
	if w.closed.CompareAndSwap(false, true) {
		close(w.stopCh)
	}
	<-w.stopped
}
