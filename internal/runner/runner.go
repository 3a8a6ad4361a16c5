// Package runner coordinates playback runs so that only one script drives
// the input devices at a time.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"autokey/internal/input"
	"autokey/internal/playback"
	"autokey/internal/protocol"
	"autokey/internal/timeline"
)

// ErrBusy is returned when a run is requested while another is playing
var ErrBusy = errors.New("a playback run is already active")

// Summary describes a finished run
type Summary struct {
	RunID      string    `json:"run_id"`
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"started_at"`
	Dispatched int       `json:"dispatched"`
	Failed     int       `json:"failed"`
	Cancelled  bool      `json:"cancelled"`
	ElapsedMs  int64     `json:"elapsed_ms"`
	Error      string    `json:"error,omitempty"`
}

// Status is a snapshot of the runner
type Status struct {
	ActiveRun string   `json:"active_run,omitempty"`
	Source    string   `json:"source,omitempty"`
	Last      *Summary `json:"last,omitempty"`
}

type activeRun struct {
	id     string
	source string
	cancel context.CancelFunc
	done   chan struct{}
}

// Runner plays timelines on a background goroutine, one at a time
type Runner struct {
	mu      sync.Mutex
	inj     input.Injector
	opts    []playback.Option
	active  *activeRun
	last    *Summary
	baseCtx context.Context

	// onMessage receives run events, e.g. for WebSocket broadcast
	onMessage func(protocol.Message)
}

// New creates a runner driving inj. opts are applied to every scheduler.
func New(ctx context.Context, inj input.Injector, opts ...playback.Option) *Runner {
	return &Runner{inj: inj, opts: opts, baseCtx: ctx}
}

// SetOnMessage sets the callback for run events
func (r *Runner) SetOnMessage(callback func(protocol.Message)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onMessage = callback
}

func (r *Runner) emit(msg protocol.Message) {
	r.mu.Lock()
	fn := r.onMessage
	r.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

// Start begins playing tl and returns its run id. source labels who asked
// for the run ("api", "schedule:<name>", ...).
func (r *Runner) Start(tl *timeline.Timeline, source string) (string, error) {
	r.mu.Lock()
	if r.active != nil {
		r.mu.Unlock()
		return "", ErrBusy
	}
	ctx, cancel := context.WithCancel(r.baseCtx)
	run := &activeRun{
		id:     uuid.NewString(),
		source: source,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.active = run
	r.mu.Unlock()

	log.Info().Str("component", "runner").Str("run_id", run.id).Str("source", source).Int("events", tl.Len()).Msg("Runner: starting playback")
	r.emit(protocol.Message{
		Type:    protocol.TypeRunStarted,
		RunID:   run.id,
		Payload: protocol.RunStartedPayload{Source: source, Events: tl.Len()},
	})

	go r.play(ctx, run, tl)
	return run.id, nil
}

func (r *Runner) play(ctx context.Context, run *activeRun, tl *timeline.Timeline) {
	defer close(run.done)
	defer run.cancel()

	observer := func(p playback.Progress) {
		msg := protocol.Message{
			Type:  protocol.TypeProgress,
			RunID: run.id,
		}
		payload := protocol.ProgressPayload{
			Index:    p.Index,
			Total:    p.Total,
			Event:    fmt.Sprint(p.Event),
			OffsetMs: p.Offset.Milliseconds(),
		}
		if p.Err != nil {
			msg.Type = protocol.TypeDispatchError
			payload.Error = p.Err.Error()
		}
		msg.Payload = payload
		r.emit(msg)
	}

	opts := append(append([]playback.Option{}, r.opts...), playback.WithObserver(observer))
	started := time.Now()
	rep, err := playback.New(r.inj, opts...).Play(ctx, tl)

	sum := &Summary{
		RunID:      run.id,
		Source:     run.source,
		StartedAt:  started,
		Dispatched: rep.Dispatched,
		Failed:     len(rep.Failed),
		Cancelled:  rep.Cancelled,
		ElapsedMs:  rep.Elapsed.Milliseconds(),
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		sum.Error = err.Error()
	} else if first := rep.FirstError(); first != nil {
		sum.Error = first.Error()
	}

	r.mu.Lock()
	r.active = nil
	r.last = sum
	r.mu.Unlock()

	log.Info().Str("component", "runner").Str("run_id", run.id).Int("dispatched", sum.Dispatched).Int("failed", sum.Failed).Bool("cancelled", sum.Cancelled).Msg("Runner: playback finished")
	r.emit(protocol.Message{
		Type:  protocol.TypeRunFinished,
		RunID: run.id,
		Payload: protocol.RunFinishedPayload{
			Dispatched: sum.Dispatched,
			Failed:     sum.Failed,
			Cancelled:  sum.Cancelled,
			ElapsedMs:  sum.ElapsedMs,
			Error:      sum.Error,
		},
	})
}

// Stop cancels the active run and waits for it to release its inputs. It
// reports whether a run was active.
func (r *Runner) Stop() bool {
	r.mu.Lock()
	run := r.active
	r.mu.Unlock()
	if run == nil {
		return false
	}
	log.Info().Str("component", "runner").Str("run_id", run.id).Msg("Runner: stopping playback")
	run.cancel()
	<-run.done
	return true
}

// Wait blocks until the active run, if any, has finished.
func (r *Runner) Wait() {
	r.mu.Lock()
	run := r.active
	r.mu.Unlock()
	if run != nil {
		<-run.done
	}
}

// Status returns the active run and the last finished one
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{Last: r.last}
	if r.active != nil {
		st.ActiveRun = r.active.id
		st.Source = r.active.source
	}
	return st
}
