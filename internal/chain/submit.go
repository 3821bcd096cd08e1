package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
)

// SubmissionError wraps a revert or RPC failure from sendResult. It carries
// enough context to log without leaking the signing key.
type SubmissionError struct {
	RequestID *big.Int
	Cause     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("chain: submit result for request %s: %v", e.RequestID, e.Cause)
}

func (e *SubmissionError) Unwrap() error { return e.Cause }

// SendResult submits result for requestID. It is a single-writer critical
// section: only one sendResult call may be in flight per wallet at a time,
// since a single account cannot submit two overlapping transactions
// without nonce collisions (spec.md §5).
func (c *Client) SendResult(ctx context.Context, requestID *big.Int, result string) (*types.Receipt, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	input, err := c.abi.Pack("sendResult", requestID, result)
	if err != nil {
		return nil, &SubmissionError{RequestID: requestID, Cause: fmt.Errorf("pack sendResult: %w", err)}
	}

	nonce, err := c.http.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, &SubmissionError{RequestID: requestID, Cause: fmt.Errorf("pending nonce: %w", err)}
	}

	gasTipCap, err := c.http.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, &SubmissionError{RequestID: requestID, Cause: fmt.Errorf("suggest gas tip cap: %w", err)}
	}
	head, err := c.http.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, &SubmissionError{RequestID: requestID, Cause: fmt.Errorf("header by number: %w", err)}
	}
	gasFeeCap := new(big.Int).Add(gasTipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	estimate, err := c.http.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &c.contract,
		Data: input,
	})
	if err != nil {
		return nil, &SubmissionError{RequestID: requestID, Cause: fmt.Errorf("estimate gas: %w", err)}
	}
	gasLimit := estimate * 12 / 10

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       gasLimit,
		To:        &c.contract,
		Data:      input,
	})

	signer := types.LatestSignerForChainID(c.chainID)
	signedTx, err := types.SignTx(tx, signer, c.key)
	if err != nil {
		return nil, &SubmissionError{RequestID: requestID, Cause: fmt.Errorf("sign tx: %w", err)}
	}

	if err := c.http.SendTransaction(ctx, signedTx); err != nil {
		return nil, &SubmissionError{RequestID: requestID, Cause: fmt.Errorf("send tx: %w", err)}
	}

	receipt, err := bind.WaitMined(ctx, c.http, signedTx)
	if err != nil {
		return nil, &SubmissionError{RequestID: requestID, Cause: fmt.Errorf("wait mined: %w", err)}
	}

	return receipt, nil
}
