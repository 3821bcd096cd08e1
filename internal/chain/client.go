// Package chain wraps the JSON-RPC/WS endpoint for the coordination
// contract: read-only views, log queries and subscription, and the single
// mutating call (sendResult) with gas estimation and a per-wallet
// single-writer critical section.
package chain

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Request mirrors the on-chain tuple decoded from getRequestInfo, per
// spec.md §3 and §6.
type Request struct {
	RequestID                    *big.Int
	Platform                     string
	Model                        string
	PromptHash                   [32]byte
	Input                        string
	Redundancy                   uint8
	ReturnContentWithinResultTag bool
	StoreResultOffchain          bool
	Caller                       common.Address
	Callback                     string
	Args                         []byte
}

// PromptHashHex renders PromptHash as the lowercase hex digest the content
// store keys entries by.
func (r *Request) PromptHashHex() string {
	return fmt.Sprintf("%x", r.PromptHash)
}

// DecodedEvent is one of the five named log signatures the node narrows its
// decode dispatch to, per spec.md §6 and §9.
type DecodedEvent struct {
	Kind       string
	Block      uint64
	LogIndex   uint
	RequestID  *big.Int
	Redundancy uint8
	Node       common.Address
	Success    bool
}

// Kind values for DecodedEvent.
const (
	KindNewRequest      = eventNewRequest
	KindProcessed       = eventProcessed
	KindResultSubmitted = eventResultSubmitted
	KindNodeAdded       = eventNodeAdded
	KindNodeRemoved     = eventNodeRemoved
)

// Client wraps an ethclient.Client (HTTP, and optionally a second over
// WebSocket for live subscription) bound to one coordination contract and
// one signing key.
type Client struct {
	http    *ethclient.Client
	ws      *ethclient.Client
	contract common.Address
	abi     abi.ABI
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int

	// sendMu serializes sendResult per wallet: a single account cannot
	// submit two overlapping transactions without nonce collisions.
	sendMu sync.Mutex
}

// Dial connects the HTTP client (and, if wsURL is non-empty, the WS client)
// and resolves the chain ID.
func Dial(ctx context.Context, rpcURL, wsURL string, contract common.Address, key *ecdsa.PrivateKey) (*Client, error) {
	httpClient, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial rpc: %w", err)
	}

	var wsClient *ethclient.Client
	if wsURL != "" {
		wsClient, err = ethclient.DialContext(ctx, wsURL)
		if err != nil {
			return nil, fmt.Errorf("chain: dial ws: %w", err)
		}
	}

	parsedABI, err := parsedContractABI()
	if err != nil {
		return nil, fmt.Errorf("chain: parse abi: %w", err)
	}

	chainID, err := httpClient.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: fetch chain id: %w", err)
	}

	return &Client{
		http:     httpClient,
		ws:       wsClient,
		contract: contract,
		abi:      parsedABI,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
	}, nil
}

// GetAuthorizedNodes calls the getAuthorizedNodes view.
func (c *Client) GetAuthorizedNodes(ctx context.Context) ([]common.Address, error) {
	var out []common.Address
	if err := c.call(ctx, &out, "getAuthorizedNodes"); err != nil {
		return nil, fmt.Errorf("chain: getAuthorizedNodes: %w", err)
	}
	return out, nil
}

// CheckSubmission calls the checkSubmission view.
func (c *Client) CheckSubmission(ctx context.Context, requestID *big.Int, self common.Address) (string, error) {
	var out string
	if err := c.call(ctx, &out, "checkSubmission", requestID, self); err != nil {
		return "", fmt.Errorf("chain: checkSubmission: %w", err)
	}
	return out, nil
}

// requestInfoTuple mirrors getRequestInfo's output for ABI unpacking.
type requestInfoTuple struct {
	Platform                     [32]byte
	Model                        [32]byte
	Prompt                       [32]byte
	Input                        string
	Redundancy                   uint8
	ReturnContentWithinResultTag bool
	StoreResultOffchain          bool
	Caller                       common.Address
	Callback                     string
	Args                         []byte
}

// GetRequestInfo calls getRequestInfo. present is false iff caller is the
// zero address.
func (c *Client) GetRequestInfo(ctx context.Context, requestID *big.Int) (req *Request, present bool, err error) {
	var tuple requestInfoTuple
	if err := c.call(ctx, &tuple, "getRequestInfo", requestID); err != nil {
		return nil, false, fmt.Errorf("chain: getRequestInfo: %w", err)
	}

	if tuple.Caller == (common.Address{}) {
		return nil, false, nil
	}

	return &Request{
		RequestID:                    requestID,
		Platform:                     decodeBytes32(tuple.Platform),
		Model:                        decodeBytes32(tuple.Model),
		PromptHash:                   tuple.Prompt,
		Input:                        tuple.Input,
		Redundancy:                   tuple.Redundancy,
		ReturnContentWithinResultTag: tuple.ReturnContentWithinResultTag,
		StoreResultOffchain:          tuple.StoreResultOffchain,
		Caller:                       tuple.Caller,
		Callback:                     tuple.Callback,
		Args:                         tuple.Args,
	}, true, nil
}

// CurrentBlock returns the chain head's block number.
func (c *Client) CurrentBlock(ctx context.Context) (uint64, error) {
	head, err := c.http.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: block number: %w", err)
	}
	return head, nil
}

// QueryLogs fetches and decodes logs from the contract in [fromBlock,
// toBlock], returned in the order the RPC node reports them (callers must
// sort by (block, logIndex) for the catch-up ordering guarantee).
func (c *Client) QueryLogs(ctx context.Context, fromBlock, toBlock uint64) ([]DecodedEvent, error) {
	logs, err := c.http.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.contract},
	})
	if err != nil {
		return nil, fmt.Errorf("chain: filter logs: %w", err)
	}

	out := make([]DecodedEvent, 0, len(logs))
	for _, l := range logs {
		ev, ok := c.decodeLog(l)
		if !ok {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// SubscribeLogs subscribes to all logs from the contract address for the
// live phase.
func (c *Client) SubscribeLogs(ctx context.Context) (<-chan types.Log, ethereum.Subscription, error) {
	if c.ws == nil {
		return nil, nil, fmt.Errorf("chain: no websocket endpoint configured")
	}
	ch := make(chan types.Log, 256)
	sub, err := c.ws.SubscribeFilterLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{c.contract},
	}, ch)
	if err != nil {
		return nil, nil, fmt.Errorf("chain: subscribe logs: %w", err)
	}
	return ch, sub, nil
}

// DecodeLog decodes a raw log into a DecodedEvent, narrowed to the five
// named signatures; unrecognized topics are silently ignored (ok=false).
func (c *Client) DecodeLog(l types.Log) (DecodedEvent, bool) {
	return c.decodeLog(l)
}

func (c *Client) decodeLog(l types.Log) (DecodedEvent, bool) {
	if len(l.Topics) == 0 {
		return DecodedEvent{}, false
	}

	base := DecodedEvent{Block: l.BlockNumber, LogIndex: l.Index}

	for _, name := range []string{eventNewRequest, eventProcessed, eventResultSubmitted, eventNodeAdded, eventNodeRemoved} {
		event, ok := c.abi.Events[name]
		if !ok || event.ID != l.Topics[0] {
			continue
		}

		switch name {
		case eventNewRequest:
			if len(l.Topics) < 2 {
				return DecodedEvent{}, false
			}
			var data struct{ Redundancy uint8 }
			if err := c.abi.UnpackIntoInterface(&data, name, l.Data); err != nil {
				return DecodedEvent{}, false
			}
			base.Kind = KindNewRequest
			base.RequestID = new(big.Int).SetBytes(l.Topics[1].Bytes())
			base.Redundancy = data.Redundancy
			return base, true

		case eventProcessed:
			if len(l.Topics) < 2 {
				return DecodedEvent{}, false
			}
			var data struct{ Success bool }
			if err := c.abi.UnpackIntoInterface(&data, name, l.Data); err != nil {
				return DecodedEvent{}, false
			}
			base.Kind = KindProcessed
			base.RequestID = new(big.Int).SetBytes(l.Topics[1].Bytes())
			base.Success = data.Success
			return base, true

		case eventResultSubmitted:
			if len(l.Topics) < 3 {
				return DecodedEvent{}, false
			}
			base.Kind = KindResultSubmitted
			base.RequestID = new(big.Int).SetBytes(l.Topics[1].Bytes())
			base.Node = common.BytesToAddress(l.Topics[2].Bytes())
			return base, true

		case eventNodeAdded:
			if len(l.Topics) < 2 {
				return DecodedEvent{}, false
			}
			base.Kind = KindNodeAdded
			base.Node = common.BytesToAddress(l.Topics[1].Bytes())
			return base, true

		case eventNodeRemoved:
			if len(l.Topics) < 2 {
				return DecodedEvent{}, false
			}
			base.Kind = KindNodeRemoved
			base.Node = common.BytesToAddress(l.Topics[1].Bytes())
			return base, true
		}
	}

	return DecodedEvent{}, false
}

// call invokes a read-only contract method and unpacks its outputs into out.
func (c *Client) call(ctx context.Context, out interface{}, method string, args ...interface{}) error {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}

	result, err := c.http.CallContract(ctx, ethereum.CallMsg{
		To:   &c.contract,
		Data: input,
	}, nil)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}

	return c.abi.UnpackIntoInterface(out, method, result)
}

// decodeBytes32 trims a bytes32 field at the first zero byte and interprets
// the remainder as UTF-8, per spec.md §6.
func decodeBytes32(b [32]byte) string {
	if i := bytes.IndexByte(b[:], 0); i >= 0 {
		return string(b[:i])
	}
	return string(b[:])
}
