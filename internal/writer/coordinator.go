// Package writer submits state-changing transactions through the external
// wallet signer and reconciles the read model once they confirm. Writes are
// fire-and-confirm: the caller blocks until the ledger has decided.
package writer

import (
	"context"
	"fmt"

	"github.com/Dayo-Adewuyi/Signe-le/internal/ledger"
	"github.com/Dayo-Adewuyi/Signe-le/internal/readmodel"
	"github.com/Dayo-Adewuyi/Signe-le/pkg/domain"
	"github.com/Dayo-Adewuyi/Signe-le/pkg/ethabi"

	"github.com/sirupsen/logrus"
)

// TxState is one step of a write's lifecycle, surfaced for UI feedback.
type TxState string

const (
	StateSubmitted TxState = "submitted"
	StateConfirmed TxState = "confirmed"
	StateFailed    TxState = "failed"
)

// TxStatus is one lifecycle transition of an in-flight write.
type TxStatus struct {
	Op     string
	State  TxState
	TxHash string
	Err    error
}

// UserRefresher recomputes a per-address index after a confirmed write.
type UserRefresher interface {
	RefreshIndex(ctx context.Context, addr domain.Address) error
}

type Coordinator struct {
	signer   ledger.TxSigner
	reader   ledger.ContractReader
	store    *readmodel.Store
	refresh  UserRefresher
	contract string
	log      *logrus.Logger
	onStatus func(TxStatus)
}

type Option func(*Coordinator)

// WithStatusFunc registers a callback for submitted/confirmed/failed
// transitions.
func WithStatusFunc(fn func(TxStatus)) Option {
	return func(c *Coordinator) { c.onStatus = fn }
}

func New(signer ledger.TxSigner, reader ledger.ContractReader, store *readmodel.Store, refresh UserRefresher, contractAddr string, log *logrus.Logger, opts ...Option) *Coordinator {
	if log == nil {
		log = logrus.New()
	}
	c := &Coordinator{
		signer:   signer,
		reader:   reader,
		store:    store,
		refresh:  refresh,
		contract: contractAddr,
		log:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) status(op string, state TxState, txHash string, err error) {
	if c.onStatus != nil {
		c.onStatus(TxStatus{Op: op, State: state, TxHash: txHash, Err: err})
	}
}

// CreateDocument submits a createDocument transaction and blocks until it is
// mined. Client-side pre-checks mirror the contract's rules so obvious
// mistakes fail before a wallet prompt. On confirmation the new document and
// the creator's index are refreshed from targeted reads, and the
// contract-assigned document ID is returned.
func (c *Coordinator) CreateDocument(ctx context.Context, title, description, fileHash string, signers []domain.Address) (uint64, error) {
	if len(signers) == 0 {
		return 0, &ledger.SubmissionError{Reason: domain.RevertEmptySigners}
	}
	seen := make(map[domain.Address]bool, len(signers))
	for _, s := range signers {
		if seen[s.Normalized()] {
			return 0, &ledger.SubmissionError{Reason: fmt.Sprintf("duplicate signer %s", s)}
		}
		seen[s.Normalized()] = true
	}
	data, err := ethabi.EncodeCall("createDocument", title, description, fileHash, signers)
	if err != nil {
		return 0, err
	}
	rec, err := c.submit(ctx, "createDocument", data)
	if err != nil {
		return 0, err
	}
	id, found := createdDocumentID(rec)
	if !found {
		// Receipt without the event would mean an ABI drift; reconcile
		// explicitly rather than guessing an ID.
		return 0, &ethabi.DecodingError{Func: "DocumentCreated", Msg: "confirmed receipt carries no DocumentCreated event"}
	}
	c.refreshDocument(ctx, id)
	if addr, err := c.signer.ActiveAddress(ctx); err == nil {
		c.refreshIndex(ctx, addr)
	}
	return id, nil
}

// SignDocument submits a signDocument transaction and blocks until it is
// mined. Authorization, duplicate signing and pause rules are enforced by
// the contract; its revert reason is surfaced verbatim as RemoteRejection.
// On confirmation the document's signatures and the signer's index are
// refreshed from targeted reads.
func (c *Coordinator) SignDocument(ctx context.Context, id uint64, signatureHash string) error {
	data, err := ethabi.EncodeCall("signDocument", id, signatureHash)
	if err != nil {
		return err
	}
	if _, err := c.submit(ctx, "signDocument", data); err != nil {
		return err
	}
	c.refreshDocument(ctx, id)
	if addr, err := c.signer.ActiveAddress(ctx); err == nil {
		c.refreshIndex(ctx, addr)
	}
	return nil
}

// submit runs the shared sign-broadcast-confirm sequence. Failed writes are
// never retried here: re-submitting a ledger write risks a duplicate
// transaction.
func (c *Coordinator) submit(ctx context.Context, op string, data []byte) (*ledger.Receipt, error) {
	handle, err := c.signer.SignAndSend(ctx, ledger.CallMsg{To: c.contract, Data: data})
	if err != nil {
		c.status(op, StateFailed, "", err)
		return nil, err
	}
	c.status(op, StateSubmitted, handle.Hash, nil)
	rec, err := c.signer.AwaitConfirmation(ctx, handle)
	if err != nil {
		c.status(op, StateFailed, handle.Hash, err)
		return nil, err
	}
	c.status(op, StateConfirmed, handle.Hash, nil)
	c.log.WithFields(logrus.Fields{"op": op, "tx": handle.Hash, "block": rec.BlockNumber}).Info("write confirmed")
	return rec, nil
}

// createdDocumentID pulls the contract-assigned ID out of the receipt's
// DocumentCreated log.
func createdDocumentID(rec *ledger.Receipt) (uint64, bool) {
	for _, lg := range rec.Logs {
		if len(lg.Topics) == 0 || ethabi.ClassifyEvent(lg.Topics[0]) != ethabi.DocumentCreated {
			continue
		}
		if id, err := ethabi.EventDocumentID(lg.Topics); err == nil {
			return id, true
		}
	}
	return 0, false
}

// refreshDocument installs fresh document + signature snapshots after a
// confirmed write. The confirmation handler may race concurrently ingested
// events for the same document; both paths apply idempotent snapshots, so
// they converge on the same terminal state.
func (c *Coordinator) refreshDocument(ctx context.Context, id uint64) {
	doc, err := c.reader.Document(ctx, id)
	if err != nil {
		c.log.WithError(err).WithField("document_id", id).Warn("post-write document refresh failed")
		return
	}
	c.store.UpsertDocument(doc)
	sigs, err := c.reader.DocumentSignatures(ctx, id)
	if err != nil {
		c.log.WithError(err).WithField("document_id", id).Warn("post-write signature refresh failed")
		return
	}
	c.store.ReplaceSignatures(id, sigs)
}

func (c *Coordinator) refreshIndex(ctx context.Context, addr domain.Address) {
	if c.refresh == nil {
		return
	}
	if err := c.refresh.RefreshIndex(ctx, addr); err != nil {
		c.log.WithError(err).WithField("address", addr).Warn("post-write index refresh failed")
	}
}
