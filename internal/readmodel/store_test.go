package readmodel

import (
	"testing"
	"time"

	"github.com/Dayo-Adewuyi/Signe-le/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	s1 = domain.Address("0x00000000000000000000000000000000000000a1")
	s2 = domain.Address("0x00000000000000000000000000000000000000b2")
)

func testDoc() domain.Document {
	return domain.Document{
		DocumentID: 0,
		Title:      "Test Document",
		FileHash:   "QmTest...",
		Signers:    []domain.Address{s1, s2},
		Creator:    s1,
	}
}

func sig(signer domain.Address, hash string) domain.Signature {
	return domain.Signature{Signer: signer, SignatureHash: hash, Timestamp: time.Unix(1700000000, 0).UTC()}
}

func TestUpsertDocument_Idempotent(t *testing.T) {
	st := New(nil)
	st.UpsertDocument(testDoc())
	first, ok := st.Document(0)
	require.True(t, ok)

	st.UpsertDocument(testDoc())
	second, ok := st.Document(0)
	require.True(t, ok)
	assert.Equal(t, first, second)
	assert.Len(t, st.Documents(), 1)
}

func TestDocument_UnknownIsAbsentNotError(t *testing.T) {
	st := New(nil)
	_, ok := st.Document(99)
	assert.False(t, ok)
	assert.Empty(t, st.Signatures(99))
}

func TestAppendSignature_CompletionInvariant(t *testing.T) {
	st := New(nil)
	st.UpsertDocument(testDoc())

	require.True(t, st.AppendSignature(0, sig(s1, "0xabcd...")))
	doc, _ := st.Document(0)
	assert.False(t, doc.Completed, "one of two signers must not complete")

	require.True(t, st.AppendSignature(0, sig(s2, "0xefgh...")))
	doc, _ = st.Document(0)
	assert.True(t, doc.Completed)

	sigs := st.Signatures(0)
	require.Len(t, sigs, 2)
	assert.Equal(t, "0xabcd...", sigs[0].SignatureHash)
	assert.Equal(t, "0xefgh...", sigs[1].SignatureHash)
}

func TestAppendSignature_DuplicateIsNoOp(t *testing.T) {
	st := New(nil)
	st.UpsertDocument(testDoc())

	require.True(t, st.AppendSignature(0, sig(s1, "0xabcd...")))
	assert.False(t, st.AppendSignature(0, sig(s1, "0xabcd...")))
	assert.False(t, st.AppendSignature(0, sig(s1, "0xother")))
	assert.Len(t, st.Signatures(0), 1)

	doc, _ := st.Document(0)
	assert.False(t, doc.Completed)
}

func TestAppendSignature_CaseInsensitiveSigner(t *testing.T) {
	st := New(nil)
	st.UpsertDocument(testDoc())

	upper := domain.Address("0x00000000000000000000000000000000000000A1")
	require.True(t, st.AppendSignature(0, sig(upper, "0xabcd...")))
	assert.False(t, st.AppendSignature(0, sig(s1, "0xabcd...")))
}

func TestAppendSignature_BeforeDocumentArrives(t *testing.T) {
	st := New(nil)
	// Out-of-order delivery: signature events land before the snapshot.
	require.True(t, st.AppendSignature(0, sig(s1, "0xabcd...")))
	require.True(t, st.AppendSignature(0, sig(s2, "0xefgh...")))

	st.UpsertDocument(testDoc())
	doc, ok := st.Document(0)
	require.True(t, ok)
	assert.True(t, doc.Completed, "completion derives once the signer set is known")
}

func TestReplaceSignatures_Authoritative(t *testing.T) {
	st := New(nil)
	st.UpsertDocument(testDoc())
	st.AppendSignature(0, sig(s1, "0xstale"))

	st.ReplaceSignatures(0, []domain.Signature{sig(s1, "0xabcd..."), sig(s2, "0xefgh...")})
	sigs := st.Signatures(0)
	require.Len(t, sigs, 2)
	assert.Equal(t, "0xabcd...", sigs[0].SignatureHash)

	doc, _ := st.Document(0)
	assert.True(t, doc.Completed)
}

func TestUserIndex_UnknownAddressIsEmpty(t *testing.T) {
	st := New(nil)
	idx := st.UserIndex(domain.Address("0x00000000000000000000000000000000000000c3"))
	assert.Empty(t, idx.CreatedDocumentIDs)
	assert.Empty(t, idx.PendingDocumentIDs)
}

func TestSetUserIndex_RoundTripAndIsolation(t *testing.T) {
	st := New(nil)
	st.SetUserIndex(s1, domain.UserIndex{CreatedDocumentIDs: []uint64{0, 1}, PendingDocumentIDs: []uint64{2}})

	idx := st.UserIndex(s1)
	assert.Equal(t, []uint64{0, 1}, idx.CreatedDocumentIDs)
	assert.Equal(t, []uint64{2}, idx.PendingDocumentIDs)

	// Mutating the returned copy must not leak into the store.
	idx.CreatedDocumentIDs[0] = 42
	assert.Equal(t, []uint64{0, 1}, st.UserIndex(s1).CreatedDocumentIDs)
}

func TestDocuments_SortedByID(t *testing.T) {
	st := New(nil)
	d2 := testDoc()
	d2.DocumentID = 2
	d1 := testDoc()
	d1.DocumentID = 1
	st.UpsertDocument(d2)
	st.UpsertDocument(d1)

	docs := st.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, uint64(1), docs[0].DocumentID)
	assert.Equal(t, uint64(2), docs[1].DocumentID)
}
