// Package readmodel holds the in-memory projection of ledger state. The
// ledger stays authoritative; this cache is mutated only by the ingestor and
// the write coordinator's confirmation handlers, and read by everything else.
package readmodel

import (
	"sort"
	"sync"

	"github.com/Dayo-Adewuyi/Signe-le/pkg/domain"

	"github.com/sirupsen/logrus"
)

type Store struct {
	mu      sync.RWMutex
	docs    map[uint64]domain.Document
	sigs    map[uint64][]domain.Signature
	indices map[domain.Address]domain.UserIndex
	log     *logrus.Logger
}

func New(log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.New()
	}
	return &Store{
		docs:    make(map[uint64]domain.Document),
		sigs:    make(map[uint64][]domain.Signature),
		indices: make(map[domain.Address]domain.UserIndex),
		log:     log,
	}
}

// UpsertDocument replaces or inserts a document snapshot. Idempotent: the
// same snapshot twice leaves the store unchanged. Completion is re-derived
// afterwards so a snapshot read before the final signature still converges.
func (s *Store) UpsertDocument(doc domain.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.Creator = doc.Creator.Normalized()
	signers := make([]domain.Address, len(doc.Signers))
	for i, a := range doc.Signers {
		signers[i] = a.Normalized()
	}
	doc.Signers = signers
	s.docs[doc.DocumentID] = doc
	s.recomputeCompletion(doc.DocumentID)
}

// AppendSignature records one signature unless the signer already has one on
// the document. Reports whether the signature was applied; duplicates are
// logged as delivery inconsistencies and dropped. Flips the completed flag
// once every declared signer has signed.
func (s *Store) AppendSignature(id uint64, sig domain.Signature) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig.Signer = sig.Signer.Normalized()
	for _, existing := range s.sigs[id] {
		if existing.Signer.Equal(sig.Signer) {
			s.log.WithFields(logrus.Fields{
				"document_id": id,
				"signer":      sig.Signer,
			}).Warn("duplicate signature delivery ignored")
			return false
		}
	}
	s.sigs[id] = append(s.sigs[id], sig)
	s.recomputeCompletion(id)
	return true
}

// ReplaceSignatures installs an authoritative signature list from a targeted
// contract read.
func (s *Store) ReplaceSignatures(id uint64, sigs []domain.Signature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Signature, len(sigs))
	for i, sg := range sigs {
		sg.Signer = sg.Signer.Normalized()
		out[i] = sg
	}
	s.sigs[id] = out
	s.recomputeCompletion(id)
}

// recomputeCompletion derives the completed flag from the recorded signer
// set. Must hold s.mu. The flag only ever flips forward; an authoritative
// completed=true snapshot is never downgraded by a lagging signature list.
func (s *Store) recomputeCompletion(id uint64) {
	doc, ok := s.docs[id]
	if !ok || doc.Completed || len(doc.Signers) == 0 {
		return
	}
	signed := 0
	for _, signer := range doc.Signers {
		for _, sig := range s.sigs[id] {
			if sig.Signer.Equal(signer) {
				signed++
				break
			}
		}
	}
	if signed == len(doc.Signers) {
		doc.Completed = true
		s.docs[id] = doc
	}
}

// Document returns the cached snapshot for id, if any.
func (s *Store) Document(id uint64) (domain.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if ok {
		doc.Signers = append([]domain.Address(nil), doc.Signers...)
	}
	return doc, ok
}

// Signatures returns the cached signatures for id in recording order.
// Unknown IDs yield an empty slice, not an error.
func (s *Store) Signatures(id uint64) []domain.Signature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Signature(nil), s.sigs[id]...)
}

// UserIndex returns the cached per-address view; the zero value for unknown
// addresses.
func (s *Store) UserIndex(addr domain.Address) domain.UserIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indices[addr.Normalized()]
	return domain.UserIndex{
		CreatedDocumentIDs: append([]uint64(nil), idx.CreatedDocumentIDs...),
		PendingDocumentIDs: append([]uint64(nil), idx.PendingDocumentIDs...),
	}
}

// SetUserIndex installs a recomputed per-address view.
func (s *Store) SetUserIndex(addr domain.Address, idx domain.UserIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indices[addr.Normalized()] = domain.UserIndex{
		CreatedDocumentIDs: append([]uint64(nil), idx.CreatedDocumentIDs...),
		PendingDocumentIDs: append([]uint64(nil), idx.PendingDocumentIDs...),
	}
}

// Documents returns all cached snapshots ordered by document ID.
func (s *Store) Documents() []domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		doc.Signers = append([]domain.Address(nil), doc.Signers...)
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out
}
