// Package ingest keeps the read model converged with the ledger by
// consuming the contract's event log: fetch, classify, deduplicate, apply.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Dayo-Adewuyi/Signe-le/internal/ledger"
	"github.com/Dayo-Adewuyi/Signe-le/internal/readmodel"
	"github.com/Dayo-Adewuyi/Signe-le/pkg/domain"
	"github.com/Dayo-Adewuyi/Signe-le/pkg/ethabi"

	"github.com/sirupsen/logrus"
)

// InvalidEventTypeError means a caller asked to poll an event kind the
// contract does not declare. Programming error.
type InvalidEventTypeError struct {
	Kind string
}

func (e *InvalidEventTypeError) Error() string {
	return fmt.Sprintf("ingest: invalid event type %q", e.Kind)
}

// LogSource is the slice of the RPC client the ingestor needs.
type LogSource interface {
	Logs(ctx context.Context, topic0 string, fromBlock, toBlock uint64) ([]ledger.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// UserRefresher recomputes a per-address index after a matching event.
type UserRefresher interface {
	RefreshIndex(ctx context.Context, addr domain.Address) error
}

// Publisher receives applied-event notifications for the UI feed.
type Publisher interface {
	Publish(v any)
}

// Notification is the UI-facing shape of one applied event.
type Notification struct {
	Kind          string         `json:"kind"`
	DocumentID    uint64         `json:"document_id"`
	Title         string         `json:"title,omitempty"`
	Creator       domain.Address `json:"creator,omitempty"`
	Signer        domain.Address `json:"signer,omitempty"`
	SignatureHash string         `json:"signature_hash,omitempty"`
}

type Ingestor struct {
	source    LogSource
	reader    ledger.ContractReader
	store     *readmodel.Store
	refresher UserRefresher
	cursors   CursorStore
	feed      Publisher
	interval  time.Duration
	log       *logrus.Logger

	mu      sync.Mutex
	tracked domain.Address
}

type Option func(*Ingestor)

// WithCursorStore swaps the in-memory cursor store for a durable one.
func WithCursorStore(cs CursorStore) Option {
	return func(ing *Ingestor) { ing.cursors = cs }
}

// WithPublisher attaches a notification sink for applied events.
func WithPublisher(p Publisher) Option {
	return func(ing *Ingestor) { ing.feed = p }
}

// WithInterval overrides the polling cadence.
func WithInterval(d time.Duration) Option {
	return func(ing *Ingestor) { ing.interval = d }
}

func New(source LogSource, reader ledger.ContractReader, store *readmodel.Store, refresher UserRefresher, log *logrus.Logger, opts ...Option) *Ingestor {
	if log == nil {
		log = logrus.New()
	}
	ing := &Ingestor{
		source:    source,
		reader:    reader,
		store:     store,
		refresher: refresher,
		cursors:   NewMemCursors(),
		interval:  15 * time.Second,
		log:       log,
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

func (ing *Ingestor) setTracked(addr domain.Address) {
	ing.mu.Lock()
	ing.tracked = addr.Normalized()
	ing.mu.Unlock()
}

func (ing *Ingestor) clearTracked(addr domain.Address) {
	ing.mu.Lock()
	if ing.tracked.Equal(addr) {
		ing.tracked = ""
	}
	ing.mu.Unlock()
}

func (ing *Ingestor) trackedAddress() domain.Address {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	return ing.tracked
}

var knownKinds = []ethabi.EventKind{ethabi.DocumentCreated, ethabi.DocumentSigned, ethabi.DocumentCompleted}

// PollEvents fetches one event kind within a block range and applies every
// entry above the kind's cursor. Entries at or below the cursor are
// re-deliveries and are skipped. A single undecodable event is logged and
// skipped so the rest of the batch still lands. Returns the applied count.
func (ing *Ingestor) PollEvents(ctx context.Context, kind ethabi.EventKind, fromBlock, toBlock uint64) (int, error) {
	if kind != ethabi.DocumentCreated && kind != ethabi.DocumentSigned && kind != ethabi.DocumentCompleted {
		return 0, &InvalidEventTypeError{Kind: kind.String()}
	}
	logs, err := ing.source.Logs(ctx, ethabi.EventTopic(kind), fromBlock, toBlock)
	if err != nil {
		return 0, err
	}
	cursor, haveCursor, err := ing.cursors.Load(ctx, kind.String())
	if err != nil {
		return 0, err
	}
	applied := 0
	maxBlock := cursor
	sawNew := false
	for _, lg := range logs {
		// No cursor yet means nothing has been processed; only an existing
		// cursor marks entries as re-deliveries. Block 0 is valid.
		if haveCursor && lg.BlockNumber <= cursor {
			continue
		}
		sawNew = true
		ok, err := ing.apply(ctx, kind, lg)
		if err != nil {
			ing.log.WithError(err).WithFields(logrus.Fields{
				"kind":      kind.String(),
				"block":     lg.BlockNumber,
				"tx":        lg.TxHash,
				"log_index": lg.LogIndex,
			}).Warn("skipping bad event")
			continue
		}
		if ok {
			applied++
		}
		if lg.BlockNumber > maxBlock {
			maxBlock = lg.BlockNumber
		}
	}
	if sawNew {
		if err := ing.cursors.Save(ctx, kind.String(), maxBlock); err != nil {
			return applied, err
		}
	}
	return applied, nil
}

// apply routes one classified log entry into the read model. The bool
// reports whether the event changed state; Unknown topics are dropped.
func (ing *Ingestor) apply(ctx context.Context, kind ethabi.EventKind, lg ledger.Log) (bool, error) {
	if len(lg.Topics) == 0 {
		return false, fmt.Errorf("log without topics")
	}
	if got := ethabi.ClassifyEvent(lg.Topics[0]); got != kind {
		if got == ethabi.Unknown {
			return false, nil // foreign event, dropped
		}
		return false, fmt.Errorf("topic classifies as %s, expected %s", got, kind)
	}
	tracked := ing.trackedAddress()
	switch kind {
	case ethabi.DocumentCreated:
		ev, err := ethabi.DecodeDocumentCreated(lg.Topics, lg.Data)
		if err != nil {
			return false, err
		}
		doc, err := ing.reader.Document(ctx, ev.DocumentID)
		if err != nil {
			return false, err
		}
		ing.store.UpsertDocument(doc)
		if tracked != "" && (doc.Creator.Equal(tracked) || doc.HasSigner(tracked)) {
			ing.refreshTracked(ctx, tracked)
		}
		ing.publish(Notification{Kind: kind.String(), DocumentID: ev.DocumentID, Title: ev.Title, Creator: ev.Creator})

	case ethabi.DocumentSigned:
		ev, err := ethabi.DecodeDocumentSigned(lg.Topics, lg.Data)
		if err != nil {
			return false, err
		}
		ing.store.AppendSignature(ev.DocumentID, domain.Signature{
			Signer:        ev.Signer,
			SignatureHash: ev.SignatureHash,
		})
		// The event carries no timestamp; a targeted read backfills it.
		if sigs, err := ing.reader.DocumentSignatures(ctx, ev.DocumentID); err == nil {
			ing.store.ReplaceSignatures(ev.DocumentID, sigs)
		} else {
			ing.log.WithError(err).WithField("document_id", ev.DocumentID).
				Warn("signature backfill read failed; cache converges on next poll")
		}
		if tracked != "" && ev.Signer.Equal(tracked) {
			ing.refreshTracked(ctx, tracked)
		}
		ing.publish(Notification{Kind: kind.String(), DocumentID: ev.DocumentID, Signer: ev.Signer, SignatureHash: ev.SignatureHash})

	case ethabi.DocumentCompleted:
		id, err := ethabi.DecodeDocumentCompleted(lg.Topics)
		if err != nil {
			return false, err
		}
		// Completion is derivable locally; the explicit event is treated as
		// confirmation, so re-read the authoritative snapshot.
		doc, err := ing.reader.Document(ctx, id)
		if err != nil {
			return false, err
		}
		ing.store.UpsertDocument(doc)
		ing.publish(Notification{Kind: kind.String(), DocumentID: id})
	}
	return true, nil
}

func (ing *Ingestor) refreshTracked(ctx context.Context, addr domain.Address) {
	if ing.refresher == nil {
		return
	}
	if err := ing.refresher.RefreshIndex(ctx, addr); err != nil {
		ing.log.WithError(err).WithField("address", addr).Warn("index refresh failed")
	}
}

func (ing *Ingestor) publish(n Notification) {
	if ing.feed != nil {
		ing.feed.Publish(n)
	}
}

// pollOnce advances all three event streams to the current head.
func (ing *Ingestor) pollOnce(ctx context.Context) {
	head, err := ing.source.BlockNumber(ctx)
	if err != nil {
		ing.log.WithError(err).Warn("head fetch failed; retrying next cycle")
		return
	}
	for _, kind := range knownKinds {
		cursor, ok, err := ing.cursors.Load(ctx, kind.String())
		if err != nil {
			ing.log.WithError(err).WithField("kind", kind.String()).Warn("cursor load failed")
			continue
		}
		from := uint64(0)
		if ok {
			if cursor >= head {
				continue
			}
			from = cursor + 1
		}
		if _, err := ing.PollEvents(ctx, kind, from, head); err != nil {
			ing.log.WithError(err).WithField("kind", kind.String()).Warn("poll failed; retrying next cycle")
			continue
		}
		if err := ing.cursors.Save(ctx, kind.String(), head); err != nil {
			ing.log.WithError(err).WithField("kind", kind.String()).Warn("cursor save failed")
		}
	}
}

// Subscription is a cancellable event stream bound to one wallet address.
type Subscription struct {
	Address domain.Address

	ing    *Ingestor
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop tears the subscription down and blocks until the poll loop exits. It
// must be called on address change so no stale-address effects keep firing.
func (s *Subscription) Stop() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.ing.clearTracked(s.Address)
	})
}

// Subscribe starts the polling loop for one wallet address. The first poll
// runs immediately; later ones follow the configured interval.
func (ing *Ingestor) Subscribe(ctx context.Context, addr domain.Address) *Subscription {
	cctx, cancel := context.WithCancel(ctx)
	ing.setTracked(addr)
	sub := &Subscription{Address: addr.Normalized(), ing: ing, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		ing.pollOnce(cctx)
		ticker := time.NewTicker(ing.interval)
		defer ticker.Stop()
		for {
			select {
			case <-cctx.Done():
				return
			case <-ticker.C:
				ing.pollOnce(cctx)
			}
		}
	}()
	return sub
}
