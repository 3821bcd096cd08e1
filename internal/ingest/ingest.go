package ingest

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/nulpointcorp/llm-oracle-node/internal/chain"
	"github.com/nulpointcorp/llm-oracle-node/internal/metrics"
)

// LogReader is the subset of *chain.Client the ingester needs: chain head,
// historical range queries, live subscription, and decode. Narrowed to an
// interface, in the same style as pipeline.ChainReader, so tests can supply
// a fake instead of a live RPC endpoint.
type LogReader interface {
	CurrentBlock(ctx context.Context) (uint64, error)
	QueryLogs(ctx context.Context, fromBlock, toBlock uint64) ([]chain.DecodedEvent, error)
	SubscribeLogs(ctx context.Context) (<-chan types.Log, ethereum.Subscription, error)
	DecodeLog(l types.Log) (chain.DecodedEvent, bool)
}

// maxRangeBlocks is the widest half-open catch-up window per queryLogs
// call, per spec.md §4.E.
const maxRangeBlocks = 10_000

// heartbeatInterval is how often the idle heartbeat checks for a new head,
// per spec.md §4.E.
const heartbeatInterval = 180 * time.Second

// Ingester owns the persisted cursor and the single delivery channel both
// the catch-up reader and the live subscriber feed, per spec.md §9 ("typed
// delivery queue" replacing callback-based subscription).
type Ingester struct {
	client     LogReader
	cursorPath string
	logger     *slog.Logger
	metrics    *metrics.Registry

	mu     sync.Mutex
	cursor Cursor
	events chan chain.DecodedEvent
}

// New returns an Ingester reading/writing its cursor at cursorPath. reg may
// be nil in tests that don't care about metrics.
func New(client LogReader, cursorPath string, logger *slog.Logger, reg *metrics.Registry) *Ingester {
	return &Ingester{
		client:     client,
		cursorPath: cursorPath,
		logger:     logger,
		metrics:    reg,
		events:     make(chan chain.DecodedEvent, 256),
	}
}

// Events returns the channel both catch-up and live delivery write decoded
// events to. Run must be called to populate it.
func (g *Ingester) Events() <-chan chain.DecodedEvent {
	return g.events
}

// Run loads the cursor, performs catch-up, then runs the live subscriber
// and the periodic heartbeat until ctx is cancelled. The events channel is
// closed when Run returns.
func (g *Ingester) Run(ctx context.Context) error {
	defer close(g.events)

	cursor, err := LoadCursor(g.cursorPath)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.cursor = cursor
	g.mu.Unlock()

	if err := g.catchUp(ctx); err != nil {
		g.logger.Error("ingest: catch-up failed", "error", err)
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error { return g.liveSubscribe(ctx) })
	grp.Go(func() error { return g.heartbeat(ctx) })
	return grp.Wait()
}

// catchUp replays historical logs from the cursor to the chain head, per
// spec.md §4.E. A failed range query is logged and ends catch-up with that
// error; the cursor is not advanced past the failed range and later ranges
// are not queried.
func (g *Ingester) catchUp(ctx context.Context) error {
	head, err := g.client.CurrentBlock(ctx)
	if err != nil {
		return err
	}

	from := g.cursorSnapshot().Block
	if from == 0 {
		from = 1
	}
	if from > head {
		return nil
	}

	for from <= head {
		to := from + maxRangeBlocks - 1
		if to > head {
			to = head
		}

		events, err := g.client.QueryLogs(ctx, from, to)
		if err != nil {
			g.logger.Error("ingest: query logs failed, will not advance cursor past this range", "from", from, "to", to, "error", err)
			if g.metrics != nil {
				g.metrics.RecordIngestError()
			}
			return err
		}

		sort.Slice(events, func(i, j int) bool {
			if events[i].Block != events[j].Block {
				return events[i].Block < events[j].Block
			}
			return events[i].LogIndex < events[j].LogIndex
		})

		delivered := 0
		for _, ev := range events {
			evCursor := Cursor{Block: ev.Block, LogIndex: int64(ev.LogIndex)}
			if !g.cursorSnapshot().Less(evCursor) {
				continue
			}
			if err := g.deliver(ctx, ev, evCursor); err != nil {
				return err
			}
			delivered++
		}

		if delivered == 0 {
			if err := g.advanceTo(Cursor{Block: to, LogIndex: InfiniteLogIndex}); err != nil {
				return err
			}
		}

		from = to + 1
	}

	return nil
}

// liveSubscribe subscribes to all contract logs and applies the same
// monotonic (block, logIndex) filter as catch-up.
func (g *Ingester) liveSubscribe(ctx context.Context) error {
	ch, sub, err := g.client.SubscribeLogs(ctx)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case l, ok := <-ch:
			if !ok {
				return nil
			}
			ev, ok := g.client.DecodeLog(l)
			if !ok {
				continue
			}
			evCursor := Cursor{Block: ev.Block, LogIndex: int64(ev.LogIndex)}
			if !g.cursorSnapshot().Less(evCursor) {
				continue
			}
			if err := g.deliver(ctx, ev, evCursor); err != nil {
				return err
			}
		}
	}
}

// heartbeat advances the cursor to (head, +∞) every heartbeatInterval if
// the chain has moved, bounding replay work after idle periods.
func (g *Ingester) heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			head, err := g.client.CurrentBlock(ctx)
			if err != nil {
				g.logger.Error("ingest: heartbeat block fetch failed", "error", err)
				continue
			}
			if head > g.cursorSnapshot().Block {
				if err := g.advanceTo(Cursor{Block: head, LogIndex: InfiniteLogIndex}); err != nil {
					g.logger.Error("ingest: heartbeat cursor persist failed", "error", err)
				}
			}
		}
	}
}

// deliver sends ev to the pipeline and synchronously persists the new
// cursor, per spec.md §4.E ("writes are synchronous").
func (g *Ingester) deliver(ctx context.Context, ev chain.DecodedEvent, newCursor Cursor) error {
	select {
	case g.events <- ev:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.advanceTo(newCursor)
}

// cursorSnapshot returns a copy of the current cursor, safe to call from
// catch-up and from the live-subscribe and heartbeat goroutines Run starts.
func (g *Ingester) cursorSnapshot() Cursor {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cursor
}

// advanceTo is the single-writer critical section for the cursor: it holds
// the lock across both the in-memory update and the synchronous persist so
// concurrent readers never observe a cursor value that hasn't been saved.
func (g *Ingester) advanceTo(c Cursor) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cursor = c
	if g.metrics != nil {
		g.metrics.SetCursorBlock(c.Block)
	}
	return SaveCursor(g.cursorPath, c)
}
