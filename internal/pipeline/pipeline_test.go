package pipeline

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/nulpointcorp/llm-oracle-node/internal/chain"
	"github.com/nulpointcorp/llm-oracle-node/internal/metrics"
	"github.com/nulpointcorp/llm-oracle-node/internal/nodeset"
	"github.com/nulpointcorp/llm-oracle-node/internal/store"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeChain struct {
	checkSubmissionCalls int
	checkSubmissionFunc  func(call int) string
	getRequestInfoFunc   func() (*chain.Request, bool, error)
	sendResultCalled     bool
}

func (f *fakeChain) CheckSubmission(ctx context.Context, requestID *big.Int, self common.Address) (string, error) {
	f.checkSubmissionCalls++
	return f.checkSubmissionFunc(f.checkSubmissionCalls), nil
}

func (f *fakeChain) GetRequestInfo(ctx context.Context, requestID *big.Int) (*chain.Request, bool, error) {
	return f.getRequestInfoFunc()
}

func (f *fakeChain) SendResult(ctx context.Context, requestID *big.Int, result string) (*types.Receipt, error) {
	f.sendResultCalled = true
	return &types.Receipt{}, nil
}

type fakeTracker struct {
	snap nodeset.Snapshot
}

func (f *fakeTracker) Snapshot() nodeset.Snapshot { return f.snap }

type fakeInvoker struct {
	called bool
	text   string
}

func (f *fakeInvoker) Invoke(ctx context.Context, platform, model, prompt string) (string, error) {
	f.called = true
	return f.text, nil
}

func TestHandleUnauthorizedShortCircuits(t *testing.T) {
	invoker := &fakeInvoker{}
	fc := &fakeChain{
		checkSubmissionFunc: func(call int) string { return "OK" },
	}
	tr := &fakeTracker{snap: nodeset.Snapshot{MyIndex: -1, Count: 0}}
	st := store.New(t.TempDir())
	reg := metrics.New("test")

	r := NewRunner(fc, tr, invoker, st, reg, noopLogger(), common.HexToAddress("0xaaa"))
	r.Handle(context.Background(), big.NewInt(1), 1)

	if invoker.called {
		t.Fatalf("unauthorized node should never invoke a provider")
	}
	if fc.sendResultCalled {
		t.Fatalf("unauthorized node should never submit")
	}
}

// TestHandlePostWorkCheckBlocksSubmission covers S2 ("skip after peer
// submits"): once checkSubmission reports non-OK, the pipeline must not
// call sendResult even though the provider has already produced a result.
// The pre-work check (only run when delay > 0, a multiple of 60s) shares
// this exact code path, so this test exercises the same branch without
// requiring a real 60-second sleep.
func TestHandlePostWorkCheckBlocksSubmission(t *testing.T) {
	invoker := &fakeInvoker{text: "<result>hello</result>"}
	st := store.New(t.TempDir())

	configHash, err := st.Put([]byte("Q: {{q}}"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	promptHashBytes, err := hex.DecodeString(configHash)
	if err != nil {
		t.Fatalf("decode config hash: %v", err)
	}
	var promptHash [32]byte
	copy(promptHash[:], promptHashBytes)

	fc := &fakeChain{
		checkSubmissionFunc: func(call int) string { return "submitted" },
		getRequestInfoFunc: func() (*chain.Request, bool, error) {
			return &chain.Request{
				RequestID:                    big.NewInt(7),
				Platform:                     "openai",
				Model:                        "gpt-4o",
				PromptHash:                   promptHash,
				Input:                        `{}`,
				Redundancy:                   1,
				ReturnContentWithinResultTag: true,
				Caller:                       common.HexToAddress("0x1"),
			}, true, nil
		},
	}
	// myIndex=0, count=1, redundancy=1 -> delay=0, so only the post-work
	// check runs before submission.
	tr := &fakeTracker{snap: nodeset.Snapshot{MyIndex: 0, Count: 1}}
	reg := metrics.New("test")

	r := NewRunner(fc, tr, invoker, st, reg, noopLogger(), common.HexToAddress("0xaaa"))
	r.Handle(context.Background(), big.NewInt(7), 1)

	if !invoker.called {
		t.Fatalf("provider should have been invoked before the post-work check")
	}
	if fc.sendResultCalled {
		t.Fatalf("sendResult should not have been called once the post-work check reports submitted")
	}
}

func TestHandleSuccessfulSubmission(t *testing.T) {
	invoker := &fakeInvoker{text: "<result>hello</result>"}
	st := store.New(t.TempDir())

	configHash, err := st.Put([]byte("Q: {{q}}"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	promptHashBytes, err := hex.DecodeString(configHash)
	if err != nil {
		t.Fatalf("decode config hash: %v", err)
	}
	var promptHash [32]byte
	copy(promptHash[:], promptHashBytes)

	fc := &fakeChain{
		checkSubmissionFunc: func(call int) string { return "OK" },
		getRequestInfoFunc: func() (*chain.Request, bool, error) {
			return &chain.Request{
				RequestID:                    big.NewInt(7),
				Platform:                     "openai",
				Model:                        "gpt-4o",
				PromptHash:                   promptHash,
				Input:                        `{"q":"world"}`,
				Redundancy:                   1,
				ReturnContentWithinResultTag: true,
				Caller:                       common.HexToAddress("0x1"),
			}, true, nil
		},
	}
	tr := &fakeTracker{snap: nodeset.Snapshot{MyIndex: 0, Count: 1}}
	reg := metrics.New("test")

	r := NewRunner(fc, tr, invoker, st, reg, noopLogger(), common.HexToAddress("0xaaa"))
	r.Handle(context.Background(), big.NewInt(7), 1)

	if !invoker.called {
		t.Fatalf("provider should have been invoked")
	}
	if !fc.sendResultCalled {
		t.Fatalf("sendResult should have been called")
	}
}

func TestHandleRequestAbsentAborts(t *testing.T) {
	invoker := &fakeInvoker{}
	fc := &fakeChain{
		checkSubmissionFunc: func(call int) string { return "OK" },
		getRequestInfoFunc: func() (*chain.Request, bool, error) {
			return nil, false, nil
		},
	}
	tr := &fakeTracker{snap: nodeset.Snapshot{MyIndex: 0, Count: 1}}
	st := store.New(t.TempDir())
	reg := metrics.New("test")

	r := NewRunner(fc, tr, invoker, st, reg, noopLogger(), common.HexToAddress("0xaaa"))
	r.Handle(context.Background(), big.NewInt(9), 1)

	if invoker.called {
		t.Fatalf("provider should not be invoked when the request is absent")
	}
	if fc.sendResultCalled {
		t.Fatalf("sendResult should not be called when the request is absent")
	}
}
