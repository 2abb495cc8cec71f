package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/models"
	awssession "github.com/pankaj-dahiya-devops/orgsweep/internal/providers/aws/session"
)

const (
	// DefaultConcurrency is the number of cells processed in parallel.
	DefaultConcurrency = 10

	// DefaultTaskTimeout bounds one cell: role assumption plus callback.
	DefaultTaskTimeout = 5 * time.Minute
)

// Options configures a DefaultEngine.
type Options struct {
	// Concurrency caps in-flight tasks. Values below 1 use DefaultConcurrency.
	Concurrency int

	// TaskTimeout bounds each task. Zero or negative disables the bound.
	TaskTimeout time.Duration

	// Logger receives run and per-cell failure lines. Nil uses slog.Default().
	Logger *slog.Logger

	// Progress, when set, is called after every finished cell with the
	// number done so far and the total. It may be called concurrently.
	Progress func(done, total int)
}

// DefaultOptions returns the options the CLI starts from.
func DefaultOptions() Options {
	return Options{
		Concurrency: DefaultConcurrency,
		TaskTimeout: DefaultTaskTimeout,
	}
}

// DefaultEngine is the production Engine.
type DefaultEngine struct {
	broker      SessionBroker
	concurrency int
	timeout     time.Duration
	log         *slog.Logger
	progress    func(done, total int)
}

// NewDefaultEngine wires an engine to broker.
func NewDefaultEngine(broker SessionBroker, opts Options) *DefaultEngine {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &DefaultEngine{
		broker:      broker,
		concurrency: opts.Concurrency,
		timeout:     opts.TaskTimeout,
		log:         opts.Logger,
		progress:    opts.Progress,
	}
}

// ---------------------------------------------------------------------------
// Engine implementation
// ---------------------------------------------------------------------------

// Iterate runs cb once per cell of scope.
//
// Flow:
//  1. Reject an empty scope before touching the network.
//  2. Submit one task per cell. A semaphore channel caps in-flight tasks at
//     the configured concurrency; submission blocks only on that bound.
//  3. Each task acquires its own session and runs cb with a private payload
//     copy under its own deadline. Any failure is stored in the cell.
//  4. Cells never started because ctx was cancelled are recorded as
//     cancelled, so the mapping always covers the full scope.
func (e *DefaultEngine) Iterate(ctx context.Context, scope models.Scope, cb Callback, payload Payload) (*models.ResultMapping, error) {
	if scope.Empty() {
		return nil, ErrEmptyScope
	}
	if cb == nil {
		return nil, errors.New("nil callback")
	}

	cells := scope.Cells()
	total := len(cells)
	results := models.NewResultMapping()
	started := time.Now()

	e.log.Info("starting iteration",
		"accounts", scope.Accounts.Len(),
		"regions", scope.Regions.Len(),
		"cells", total,
		"concurrency", e.concurrency,
		"task_timeout", e.timeout,
	)

	sem := make(chan struct{}, e.concurrency)
	var (
		g    errgroup.Group
		done atomic.Int64
	)

CELLS:
	for _, cell := range cells {
		select {
		case sem <- struct{}{}: // blocks while the bound is reached
		case <-ctx.Done():
			break CELLS
		}

		g.Go(func() error {
			res := e.runCell(ctx, cell, cb, payload, func() { <-sem })
			results.Set(res)
			if res.Failed() {
				e.log.Warn("cell failed",
					"account", res.AccountID,
					"region", res.Region,
					"kind", res.Error.Kind,
					"code", res.Error.Code,
					"error", res.Error.Message,
				)
			}

			n := done.Add(1)
			if e.progress != nil {
				e.progress(int(n), total)
			}
			return nil // failures live in the mapping
		})
	}
	_ = g.Wait()

	for _, cell := range cells {
		if !results.Has(cell.AccountID, cell.Region) {
			results.Set(models.CellResult{
				AccountID: cell.AccountID,
				Region:    cell.Region,
				Error:     models.NewCellError(models.CellErrorCancelled, fmt.Errorf("not started: %w", context.Cause(ctx))),
			})
		}
	}

	summary := models.Summarize(results)
	e.log.Info("iteration finished",
		"cells", summary.TotalCells,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"empty", summary.Empty,
		"records", summary.Records,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return results, nil
}

// runCell performs one task. It never returns an error; failures are
// classified into the CellResult. release frees the task's concurrency slot.
// Once the callback starts, the slot belongs to the callback goroutine and is
// freed when the callback returns, even if the task gave up on it earlier.
func (e *DefaultEngine) runCell(parent context.Context, cell models.Cell, cb Callback, payload Payload, release func()) (res models.CellResult) {
	start := time.Now()
	res = models.CellResult{AccountID: cell.AccountID, Region: cell.Region}
	handedOff := false
	defer func() {
		res.Duration = time.Since(start)
		if !handedOff {
			release()
		}
	}()

	if err := parent.Err(); err != nil {
		res.Error = models.NewCellError(models.CellErrorCancelled, err)
		return res
	}

	ctx, cancel := parent, context.CancelFunc(func() {})
	if e.timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, e.timeout)
	}
	defer cancel()

	sess, err := e.broker.Acquire(ctx, cell.AccountID, cell.Region)
	if err != nil {
		res.Error = classify(parent, ctx, models.CellErrorAssumeRole, err)
		return res
	}
	e.log.Debug("session acquired",
		"account", cell.AccountID,
		"region", cell.Region,
		"expires", sess.Expires,
	)

	handedOff = true
	records, err := invoke(ctx, cb, sess, cell, payload.Clone(), release)
	if err != nil {
		res.Error = classify(parent, ctx, models.CellErrorCallback,
			&CallbackError{AccountID: cell.AccountID, Region: cell.Region, Err: err})
		return res
	}
	res.Records = records
	return res
}

type invocation struct {
	records []models.Record
	err     error
}

// invoke runs cb on its own goroutine so the task deadline holds even when
// cb ignores ctx. A panic in cb becomes an error. release runs when cb
// returns, not when invoke does.
func invoke(ctx context.Context, cb Callback, sess *awssession.Session, cell models.Cell, payload Payload, release func()) ([]models.Record, error) {
	ch := make(chan invocation, 1)
	go func() {
		defer release()
		defer func() {
			if r := recover(); r != nil {
				ch <- invocation{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		recs, err := cb(ctx, sess, cell.AccountID, cell.Region, payload)
		ch <- invocation{records: recs, err: err}
	}()

	select {
	case out := <-ch:
		return out.records, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// classify picks the error kind: parent cancellation wins over the task
// deadline, which wins over the failing step's own kind.
func classify(parent, task context.Context, kind models.CellErrorKind, err error) *models.CellError {
	switch {
	case parent.Err() != nil:
		kind = models.CellErrorCancelled
	case errors.Is(task.Err(), context.DeadlineExceeded):
		kind = models.CellErrorTimeout
	}
	return models.NewCellError(kind, err)
}
