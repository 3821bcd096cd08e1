// Package pipeline orchestrates one task per NewRequest event: authorize,
// wait, re-check, fetch, resolve, invoke, extract, store, re-check, submit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/google/uuid"

	"github.com/nulpointcorp/llm-oracle-node/internal/chain"
	"github.com/nulpointcorp/llm-oracle-node/internal/logger"
	"github.com/nulpointcorp/llm-oracle-node/internal/metrics"
	"github.com/nulpointcorp/llm-oracle-node/internal/nodeset"
	"github.com/nulpointcorp/llm-oracle-node/internal/resolver"
	"github.com/nulpointcorp/llm-oracle-node/internal/scheduler"
	"github.com/nulpointcorp/llm-oracle-node/internal/store"
)

// ChainReader is the subset of *chain.Client the pipeline needs. Narrowed
// to an interface so tests can supply a fake instead of a live RPC
// endpoint.
type ChainReader interface {
	CheckSubmission(ctx context.Context, requestID *big.Int, self common.Address) (string, error)
	GetRequestInfo(ctx context.Context, requestID *big.Int) (*chain.Request, bool, error)
	SendResult(ctx context.Context, requestID *big.Int, result string) (*types.Receipt, error)
}

// NodeSetView is the subset of *nodeset.Tracker the pipeline needs.
type NodeSetView interface {
	Snapshot() nodeset.Snapshot
}

// Invoker is the subset of *providers.Dispatcher the pipeline needs.
type Invoker interface {
	Invoke(ctx context.Context, platform, model, prompt string) (string, error)
}

// State is a task's position in the per-task state machine, per spec.md
// §4.G.
type State string

const (
	StateReceived   State = "Received"
	StateWaiting    State = "Waiting"
	StateReady      State = "Ready"
	StateFetching   State = "Fetching"
	StateComputing  State = "Computing"
	StateSubmitting State = "Submitting"
	StateDone       State = "Done"
	StateAborted    State = "Aborted"
)

// Runner owns the collaborators a task needs; the caller runs Handle in its
// own goroutine per NewRequest event. Concurrency across tasks is unbounded,
// per spec.md §5 ("no per-request timeout is enforced by the core").
type Runner struct {
	chain      ChainReader
	tracker    NodeSetView
	dispatcher Invoker
	store      *store.Store
	metrics    *metrics.Registry
	logger     *slog.Logger
	self       common.Address
	taskLog    *logger.Logger
}

// Option configures optional Runner behavior.
type Option func(*Runner)

// WithTaskLogger attaches a batched audit-trail logger: one TaskLog entry
// per terminal task outcome, in addition to the structured slog line and
// the metrics counters Handle always records.
func WithTaskLogger(l *logger.Logger) Option {
	return func(r *Runner) { r.taskLog = l }
}

// NewRunner builds a Runner. self is this node's own address, used for
// checkSubmission calls.
func NewRunner(
	client ChainReader,
	tracker NodeSetView,
	dispatcher Invoker,
	st *store.Store,
	reg *metrics.Registry,
	slogger *slog.Logger,
	self common.Address,
	opts ...Option,
) *Runner {
	r := &Runner{
		chain:      client,
		tracker:    tracker,
		dispatcher: dispatcher,
		store:      st,
		metrics:    reg,
		logger:     slogger,
		self:       self,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle runs the full pipeline for one NewRequest event, to completion or
// abort. It never panics or returns an error to the caller — outcomes are
// logged and recorded as metrics, per spec.md §7 ("errors are never
// rethrown out of a request task").
func (r *Runner) Handle(ctx context.Context, requestID *big.Int, redundancy uint8) {
	start := time.Now()
	state := StateReceived
	log := r.logger.With("requestId", requestID.String())
	var platform, model string

	snap := r.tracker.Snapshot()
	if snap.MyIndex == -1 {
		r.abort(log, requestID, state, ErrUnauthorized, platform, model, start)
		return
	}

	state = StateWaiting
	delay := scheduler.Delay(requestID, redundancy, snap.MyIndex, snap.Count)
	log.Info("pipeline: scheduled", "state", state, "delay", delay)

	<-scheduler.Wait(ctx, delay)
	if ctx.Err() != nil {
		r.abort(log, requestID, StateAborted, ctx.Err(), platform, model, start)
		return
	}

	state = StateReady
	if delay > 0 {
		status, err := r.chain.CheckSubmission(ctx, requestID, r.self)
		if err != nil {
			r.abort(log, requestID, StateAborted, fmt.Errorf("pipeline: pre-work check: %w", err), platform, model, start)
			return
		}
		if status != "OK" {
			log.Info("pipeline: pre-work check not OK, discarding", "status", status)
			r.abort(log, requestID, StateAborted, ErrStale, platform, model, start)
			return
		}
	}

	state = StateFetching
	req, present, err := r.chain.GetRequestInfo(ctx, requestID)
	if err != nil {
		r.abort(log, requestID, StateAborted, fmt.Errorf("pipeline: getRequestInfo: %w", err), platform, model, start)
		return
	}
	if !present {
		r.abort(log, requestID, StateAborted, ErrRequestAbsent, platform, model, start)
		return
	}

	platform, model, prompt, err := resolver.Resolve(
		r.logger, r.store, req.PromptHashHex(), req.Input, req.Platform, req.Model,
	)
	if err != nil {
		r.abort(log, requestID, StateAborted, classifyConfigError(err), platform, model, start)
		return
	}

	state = StateComputing
	invokeStart := time.Now()
	raw, err := r.dispatcher.Invoke(ctx, platform, model, prompt)
	r.metrics.RecordProviderRequest(platform, outcomeLabel(err), time.Since(invokeStart).Seconds())
	if err != nil {
		r.abort(log, requestID, StateAborted, fmt.Errorf("pipeline: provider invocation (platform=%s model=%s): %w", platform, model, err), platform, model, start)
		return
	}

	result := raw
	if req.ReturnContentWithinResultTag {
		extracted, found := extractResult(raw)
		if !found {
			log.Warn("pipeline: <result> tag absent, using raw response")
		}
		result = extracted
	}

	if req.StoreResultOffchain {
		hash, err := r.store.Put([]byte(result))
		if err != nil {
			r.abort(log, requestID, StateAborted, fmt.Errorf("pipeline: off-chain store: %w", err), platform, model, start)
			return
		}
		result = hash
	}

	state = StateSubmitting
	status, err := r.chain.CheckSubmission(ctx, requestID, r.self)
	if err != nil {
		r.abort(log, requestID, StateAborted, fmt.Errorf("pipeline: post-work check: %w", err), platform, model, start)
		return
	}
	if status != "OK" {
		log.Info("pipeline: post-work check not OK, discarding without submitting", "status", status)
		r.abort(log, requestID, StateAborted, ErrStale, platform, model, start)
		return
	}

	_, err = r.chain.SendResult(ctx, requestID, result)
	if err != nil {
		r.metrics.RecordSubmission("error")
		r.abort(log, requestID, StateAborted, fmt.Errorf("pipeline: submission: %w", err), platform, model, start)
		return
	}

	r.metrics.RecordSubmission("ok")
	r.finish(log, requestID, StateDone, "done", platform, model, start)
}

// classifyConfigError re-tags a resolver error as the pipeline's own
// sentinel of the same kind, preserving the underlying error via %w so
// errors.Is still reaches resolver's sentinel too.
func classifyConfigError(err error) error {
	switch {
	case errors.Is(err, resolver.ErrConfigMissing):
		return fmt.Errorf("%w: %w", ErrConfigMissing, err)
	case errors.Is(err, resolver.ErrConfigInvalid):
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	case errors.Is(err, resolver.ErrModelUnspecified):
		return fmt.Errorf("%w: %w", ErrModelUnspecified, err)
	default:
		return err
	}
}

// outcomeFromError maps a task-ending error to its metrics/log outcome
// label via errors.Is against the pipeline sentinel taxonomy (spec.md §7);
// errors that don't match a sentinel (network/provider/submission failures)
// fall back to a generic "error" label.
func outcomeFromError(err error) string {
	switch {
	case err == nil:
		return "done"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrStale):
		return "stale"
	case errors.Is(err, ErrRequestAbsent):
		return "request_absent"
	case errors.Is(err, ErrConfigMissing):
		return "config_missing"
	case errors.Is(err, ErrConfigInvalid):
		return "config_invalid"
	case errors.Is(err, ErrModelUnspecified):
		return "model_unspecified"
	default:
		return "error"
	}
}

// abort ends a task early on err, per spec.md §7 ("errors are never
// rethrown out of a request task"). Expected, taxonomy-covered outcomes
// (unauthorized, stale, cancelled) are logged at Info; anything else is
// logged at Error with the wrapped cause attached.
func (r *Runner) abort(log *slog.Logger, requestID *big.Int, state State, err error, platform, model string, start time.Time) {
	outcome := outcomeFromError(err)
	switch outcome {
	case "unauthorized", "stale", "cancelled":
		log.Info("pipeline: task discarded", "state", state, "outcome", outcome)
	default:
		log.Error("pipeline: task aborted", "state", state, "outcome", outcome, "error", err)
	}
	r.finish(log, requestID, state, outcome, platform, model, start)
}

func (r *Runner) finish(log *slog.Logger, requestID *big.Int, state State, outcome, platform, model string, start time.Time) {
	elapsed := time.Since(start)
	log.Info("pipeline: task finished", "state", state, "outcome", outcome, "elapsedMs", elapsed.Milliseconds())
	r.metrics.RecordTask(outcome, elapsed.Seconds())

	if r.taskLog != nil {
		r.taskLog.Log(logger.TaskLog{
			ID:        uuid.New(),
			RequestID: requestID.String(),
			Platform:  platform,
			Model:     model,
			State:     string(state),
			Outcome:   outcome,
			LatencyMs: uint32(elapsed.Milliseconds()),
			CreatedAt: time.Now(),
		})
	}
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
