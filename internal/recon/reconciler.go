// Package recon rebuilds read-model entries from authoritative contract
// reads. It bounds the staleness left by event-coverage gaps: incremental
// ingestion keeps the cache warm, reconciliation makes it true.
package recon

import (
	"context"
	"strings"

	"github.com/Dayo-Adewuyi/Signe-le/internal/ledger"
	"github.com/Dayo-Adewuyi/Signe-le/internal/readmodel"
	"github.com/Dayo-Adewuyi/Signe-le/pkg/domain"

	"github.com/sirupsen/logrus"
)

// maxScan caps the dense-ID document walk so a misbehaving RPC endpoint
// cannot spin the loop forever.
const maxScan = 10000

type Reconciler struct {
	reader ledger.ContractReader
	store  *readmodel.Store
	log    *logrus.Logger
}

func New(reader ledger.ContractReader, store *readmodel.Store, log *logrus.Logger) *Reconciler {
	if log == nil {
		log = logrus.New()
	}
	return &Reconciler{reader: reader, store: store, log: log}
}

// RefreshIndex recomputes one address's UserIndex: created IDs and signed IDs
// come from targeted contract reads, pending membership is derived against
// the cached document set. Used after confirmed writes and matching events.
func (r *Reconciler) RefreshIndex(ctx context.Context, addr domain.Address) error {
	addr = addr.Normalized()
	created, err := r.reader.UserCreatedDocuments(ctx, addr)
	if err != nil {
		return err
	}
	signed, err := r.reader.UserSignedDocuments(ctx, addr)
	if err != nil {
		return err
	}
	signedSet := make(map[uint64]bool, len(signed))
	for _, id := range signed {
		signedSet[id] = true
	}
	var pending []uint64
	for _, doc := range r.store.Documents() {
		if doc.Completed || signedSet[doc.DocumentID] || !doc.HasSigner(addr) {
			continue
		}
		pending = append(pending, doc.DocumentID)
	}
	r.store.SetUserIndex(addr, domain.UserIndex{
		CreatedDocumentIDs: created,
		PendingDocumentIDs: pending,
	})
	return nil
}

// ResyncUser replaces the incrementally built cache for one address with
// ledger truth: every document snapshot and signature list is re-read, then
// the index is rebuilt. Triggered on wallet activation, app foreground, and
// explicit refresh — never per write.
func (r *Reconciler) ResyncUser(ctx context.Context, addr domain.Address) error {
	if err := r.scanDocuments(ctx); err != nil {
		return err
	}
	return r.RefreshIndex(ctx, addr)
}

// scanDocuments walks the dense, zero-based document ID space until the
// first never-assigned slot. The contract rejects reads past the end, so a
// failed read is the end-of-ledger boundary once at least one gapless prefix
// has been seen.
func (r *Reconciler) scanDocuments(ctx context.Context) error {
	for id := uint64(0); id < maxScan; id++ {
		doc, err := r.reader.Document(ctx, id)
		if err != nil {
			if isRevert(err) {
				return nil
			}
			return err
		}
		if doc.Creator.IsZero() {
			return nil
		}
		sigs, err := r.reader.DocumentSignatures(ctx, id)
		if err != nil {
			return err
		}
		r.store.UpsertDocument(doc)
		r.store.ReplaceSignatures(id, sigs)
	}
	r.log.Warn("document scan hit the safety cap")
	return nil
}

// isRevert distinguishes the contract rejecting an out-of-range read from a
// transport failure. The former ends the scan; the latter aborts it.
func isRevert(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "revert")
}
