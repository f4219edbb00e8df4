package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Address is a 20-byte ledger account identifier in 0x-prefixed hex.
// Comparisons are case-insensitive; Normalized lowercases for map keys.
type Address string

const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

func (a Address) Normalized() Address { return Address(strings.ToLower(string(a))) }

func (a Address) Equal(b Address) bool { return strings.EqualFold(string(a), string(b)) }

func (a Address) IsZero() bool { return a == "" || a.Equal(ZeroAddress) }

// Bytes decodes the address into its 20 raw bytes.
func (a Address) Bytes() ([20]byte, error) {
	var out [20]byte
	s := strings.TrimPrefix(strings.ToLower(string(a)), "0x")
	if len(s) != 40 {
		return out, fmt.Errorf("address %q: want 20 bytes, got %d hex chars", a, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("address %q: %w", a, err)
	}
	copy(out[:], b)
	return out, nil
}

func AddressFromBytes(b []byte) Address {
	return Address("0x" + hex.EncodeToString(b))
}

// Document is one signable document as recorded on the ledger.
// Everything except Completed is immutable after creation.
type Document struct {
	DocumentID  uint64    `json:"document_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	FileHash    string    `json:"file_hash"`
	Signers     []Address `json:"signers"`
	Creator     Address   `json:"creator"`
	Completed   bool      `json:"completed"`
}

// HasSigner reports whether addr is in the document's signer set.
func (d Document) HasSigner(addr Address) bool {
	for _, s := range d.Signers {
		if s.Equal(addr) {
			return true
		}
	}
	return false
}

// Signature is one signer's attestation on one document.
type Signature struct {
	Signer        Address   `json:"signer"`
	SignatureHash string    `json:"signature_hash"`
	Timestamp     time.Time `json:"timestamp"`
}

// UserIndex is the per-address derived view: documents the address created
// and documents still waiting on its signature.
type UserIndex struct {
	CreatedDocumentIDs []uint64 `json:"created_document_ids"`
	PendingDocumentIDs []uint64 `json:"pending_document_ids"`
}

// Revert reasons emitted by the Signele contract, surfaced to users verbatim.
const (
	RevertEmptySigners  = "At least one signer is required"
	RevertNotAuthorized = "Not authorized to sign"
	RevertAlreadySigned = "Already signed"
	RevertPaused        = "Pausable: paused"
	RevertNotOwner      = "Only the owner can call this function"
)
