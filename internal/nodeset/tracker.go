// Package nodeset maintains this node's (myIndex, nodeCount) view of the
// authorized node set, refreshed on startup and on membership events.
package nodeset

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nulpointcorp/llm-oracle-node/internal/chain"
)

// Snapshot is an immutable view of the authorized node set, swapped
// atomically under Tracker's mutex.
type Snapshot struct {
	Addresses []common.Address
	MyIndex   int
	Count     int
}

// Tracker holds one mutex-guarded Snapshot. Refresh is itself serialized so
// concurrent NodeAdded/NodeRemoved deliveries never interleave a partial
// view, mirroring a per-key locked state machine.
type Tracker struct {
	client *chain.Client
	self   common.Address
	logger *slog.Logger

	mu   sync.Mutex
	snap Snapshot
}

// New returns a Tracker for the given wallet address. Call Refresh before
// use to populate the initial snapshot.
func New(client *chain.Client, self common.Address, logger *slog.Logger) *Tracker {
	return &Tracker{
		client: client,
		self:   self,
		logger: logger,
		snap:   Snapshot{MyIndex: -1},
	}
}

// Refresh calls getAuthorizedNodes and recomputes myIndex/nodeCount,
// per spec.md §4.H.
func (t *Tracker) Refresh(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	addrs, err := t.client.GetAuthorizedNodes(ctx)
	if err != nil {
		return err
	}

	myIndex := findIndex(addrs, t.self)

	prev := t.snap
	t.snap = Snapshot{Addresses: addrs, MyIndex: myIndex, Count: len(addrs)}

	if t.logger != nil && (prev.MyIndex != myIndex || prev.Count != len(addrs)) {
		t.logger.Info("nodeset: membership changed",
			"myIndex", myIndex, "nodeCount", len(addrs), "previousIndex", prev.MyIndex, "previousCount", prev.Count)
	}

	return nil
}

// Snapshot returns the current (myIndex, nodeCount) view.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// findIndex returns self's case-insensitive position in addrs, or -1.
func findIndex(addrs []common.Address, self common.Address) int {
	for i, a := range addrs {
		if strings.EqualFold(a.Hex(), self.Hex()) {
			return i
		}
	}
	return -1
}
