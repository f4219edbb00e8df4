package ledger

import (
	"context"

	"github.com/Dayo-Adewuyi/Signe-le/pkg/domain"
	"github.com/Dayo-Adewuyi/Signe-le/pkg/ethabi"
)

// Caller issues read-only contract calls.
type Caller interface {
	Call(ctx context.Context, data []byte) ([]byte, error)
}

// ContractReader is the typed read surface the synchronizer consumes.
// *Reader is the production implementation; tests substitute fakes.
type ContractReader interface {
	Document(ctx context.Context, id uint64) (domain.Document, error)
	DocumentSignatures(ctx context.Context, id uint64) ([]domain.Signature, error)
	UserCreatedDocuments(ctx context.Context, addr domain.Address) ([]uint64, error)
	UserSignedDocuments(ctx context.Context, addr domain.Address) ([]uint64, error)
}

var _ ContractReader = (*Reader)(nil)

// Reader pairs the ABI codec with a caller to expose the contract's read
// methods as typed operations. It is the only read path the synchronizer
// uses; the rest of the system never touches calldata.
type Reader struct {
	caller Caller
}

func NewReader(c Caller) *Reader { return &Reader{caller: c} }

func (r *Reader) call(ctx context.Context, name string, args ...any) ([]byte, error) {
	data, err := ethabi.EncodeCall(name, args...)
	if err != nil {
		return nil, err
	}
	return r.caller.Call(ctx, data)
}

// Document fetches one document snapshot by ID.
func (r *Reader) Document(ctx context.Context, id uint64) (domain.Document, error) {
	out, err := r.call(ctx, "getDocument", id)
	if err != nil {
		return domain.Document{}, err
	}
	doc, err := ethabi.DecodeDocument(out)
	if err != nil {
		return domain.Document{}, err
	}
	doc.DocumentID = id
	return doc, nil
}

// DocumentSignatures fetches a document's recorded signatures in signing
// order.
func (r *Reader) DocumentSignatures(ctx context.Context, id uint64) ([]domain.Signature, error) {
	out, err := r.call(ctx, "getDocumentSignatures", id)
	if err != nil {
		return nil, err
	}
	return ethabi.DecodeSignatures(out)
}

// UserCreatedDocuments fetches the IDs of documents created by addr.
func (r *Reader) UserCreatedDocuments(ctx context.Context, addr domain.Address) ([]uint64, error) {
	out, err := r.call(ctx, "getUserCreatedDocuments", addr)
	if err != nil {
		return nil, err
	}
	return ethabi.DecodeDocumentIDs("getUserCreatedDocuments", out)
}

// UserSignedDocuments fetches the IDs of documents addr has signed.
func (r *Reader) UserSignedDocuments(ctx context.Context, addr domain.Address) ([]uint64, error) {
	out, err := r.call(ctx, "getUserSignedDocuments", addr)
	if err != nil {
		return nil, err
	}
	return ethabi.DecodeDocumentIDs("getUserSignedDocuments", out)
}
