package ledger

import (
	"context"
	"fmt"

	"github.com/Dayo-Adewuyi/Signe-le/pkg/domain"
)

// CallMsg is a contract call ready for submission: target address plus
// ABI-encoded calldata.
type CallMsg struct {
	To   string `json:"to"`
	Data []byte `json:"data"`
}

// Log is one entry from the ledger's event log. (BlockNumber, TxHash,
// LogIndex) uniquely identifies it across re-deliveries.
type Log struct {
	BlockNumber uint64
	TxHash      string
	LogIndex    uint64
	Topics      []string
	Data        []byte
}

// TxHandle identifies a broadcast transaction awaiting confirmation.
type TxHandle struct {
	Hash string
}

// Receipt is the mined outcome of a transaction. Status 1 means applied;
// anything else reverted, with Logs carrying the emitted events.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	Status      uint64
	Logs        []Log
}

// FetchError wraps a transient transport failure against the RPC endpoint.
// Retryable; the poll loop picks the range up again on the next cycle.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("ledger: %s: %v", e.Op, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// SubmissionError means the wallet provider declined to sign or broadcast.
// Surfaced to the user directly.
type SubmissionError struct {
	Reason string
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger: submission rejected: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("ledger: submission rejected: %s", e.Reason)
}
func (e *SubmissionError) Unwrap() error { return e.Err }

// RemoteRejection means the ledger reverted the transaction. Reason carries
// the contract's revert string verbatim and is always shown to the user.
type RemoteRejection struct {
	Reason string
}

func (e *RemoteRejection) Error() string { return fmt.Sprintf("ledger: reverted: %s", e.Reason) }

// ErrNoActiveAddress is returned by a signer provider with no connected
// wallet session.
var ErrNoActiveAddress = fmt.Errorf("ledger: no active wallet address")

// TxSigner is the external wallet provider: it owns the private key, signs
// and broadcasts transactions, and reports confirmation. In-flight
// transactions are not cancellable once broadcast.
type TxSigner interface {
	ActiveAddress(ctx context.Context) (domain.Address, error)
	SignAndSend(ctx context.Context, call CallMsg) (TxHandle, error)
	AwaitConfirmation(ctx context.Context, h TxHandle) (*Receipt, error)
}
