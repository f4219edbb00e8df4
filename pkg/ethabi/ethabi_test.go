package ethabi

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/Dayo-Adewuyi/Signe-le/pkg/domain"
)

const (
	addrA = domain.Address("0x00000000000000000000000000000000000000a1")
	addrB = domain.Address("0x00000000000000000000000000000000000000b2")
)

func TestEncodeCall_UnknownFunction(t *testing.T) {
	_, err := EncodeCall("burnDocument", uint64(1))
	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected EncodingError, got %v", err)
	}
}

func TestEncodeCall_ArityMismatch(t *testing.T) {
	_, err := EncodeCall("signDocument", uint64(1))
	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected EncodingError, got %v", err)
	}
}

func TestEncodeCall_TypeMismatch(t *testing.T) {
	_, err := EncodeCall("signDocument", "1", "0xabcd")
	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected EncodingError, got %v", err)
	}
}

func TestEncodeCall_SelectorAndDeterminism(t *testing.T) {
	a, err := EncodeCall("signDocument", uint64(7), "0xabcd...")
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	b, err := EncodeCall("signDocument", uint64(7), "0xabcd...")
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("encoding is not deterministic")
	}
	if len(a) < 4 {
		t.Fatalf("calldata too short: %d", len(a))
	}
	other, err := EncodeCall("getDocument", uint64(7))
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	if bytes.Equal(a[:4], other[:4]) {
		t.Fatal("distinct functions share a selector")
	}
}

func TestEncodeCall_CreateDocumentLayout(t *testing.T) {
	data, err := EncodeCall("createDocument", "Test Document", "desc", "QmTest...", []domain.Address{addrA, addrB})
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	body := data[4:]
	// Four head words, then dynamic tails.
	if len(body) < 4*wordSize {
		t.Fatalf("body too short: %d", len(body))
	}
	off, err := readUint("t", body, 0)
	if err != nil {
		t.Fatalf("readUint: %v", err)
	}
	if off != 4*wordSize {
		t.Fatalf("first dynamic offset = %d, want %d", off, 4*wordSize)
	}
	n, err := readUint("t", body, int(off))
	if err != nil {
		t.Fatalf("readUint: %v", err)
	}
	if n != uint64(len("Test Document")) {
		t.Fatalf("title length = %d", n)
	}
}

func TestDecodeDocument_RoundTrip(t *testing.T) {
	body, err := encodeTuple("t", methods["getDocument"].outputs, []any{
		"Test Document", "Q3 budget approval", "QmTest...",
		[]domain.Address{addrA, addrB}, addrA, false,
	})
	if err != nil {
		t.Fatalf("encodeTuple: %v", err)
	}
	doc, err := DecodeDocument(body)
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	if doc.Title != "Test Document" || doc.FileHash != "QmTest..." {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if len(doc.Signers) != 2 || !doc.Signers[0].Equal(addrA) || !doc.Signers[1].Equal(addrB) {
		t.Fatalf("unexpected signers: %v", doc.Signers)
	}
	if doc.Completed {
		t.Fatal("expected completed=false")
	}
}

func TestDecodeDocument_TruncatedFails(t *testing.T) {
	_, err := DecodeDocument([]byte{0x01, 0x02})
	var decErr *DecodingError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodingError, got %v", err)
	}
}

func TestDecodeDocumentIDs_RoundTrip(t *testing.T) {
	body, err := encodeTuple("t", methods["getUserCreatedDocuments"].outputs, []any{[]uint64{0, 1, 5}})
	if err != nil {
		t.Fatalf("encodeTuple: %v", err)
	}
	ids, err := DecodeDocumentIDs("getUserCreatedDocuments", body)
	if err != nil {
		t.Fatalf("DecodeDocumentIDs: %v", err)
	}
	if len(ids) != 3 || ids[0] != 0 || ids[1] != 1 || ids[2] != 5 {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestDecodeDocumentIDs_Empty(t *testing.T) {
	body, err := encodeTuple("t", methods["getUserSignedDocuments"].outputs, []any{[]uint64{}})
	if err != nil {
		t.Fatalf("encodeTuple: %v", err)
	}
	ids, err := DecodeDocumentIDs("getUserSignedDocuments", body)
	if err != nil {
		t.Fatalf("DecodeDocumentIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty ids, got %v", ids)
	}
}

// Builds the getDocumentSignatures wire shape by hand: one dynamic output,
// an array of dynamic tuples with per-element offsets.
func TestDecodeSignatures_TwoEntries(t *testing.T) {
	sigHashes := []string{"0xabcd...", "0xefgh..."}
	signers := []domain.Address{addrA, addrB}
	stamps := []uint64{1700000000, 1700000100}

	var elems [][]byte
	for i := range sigHashes {
		w, err := addressWord("t", signers[i])
		if err != nil {
			t.Fatalf("addressWord: %v", err)
		}
		el := append([]byte{}, w...)
		el = append(el, uintWord(3*wordSize)...) // string offset within the tuple
		el = append(el, uintWord(stamps[i])...)
		el = append(el, uintWord(uint64(len(sigHashes[i])))...)
		el = append(el, padRight([]byte(sigHashes[i]))...)
		elems = append(elems, el)
	}

	section := uintWord(uint64(len(elems))) // array length
	offsets := make([]byte, 0)
	elemArea := make([]byte, 0)
	base := uint64(len(elems)) * wordSize
	for _, el := range elems {
		offsets = append(offsets, uintWord(base+uint64(len(elemArea)))...)
		elemArea = append(elemArea, el...)
	}
	section = append(section, offsets...)
	section = append(section, elemArea...)

	body := uintWord(wordSize) // head: offset of the single dynamic output
	body = append(body, section...)

	sigs, err := DecodeSignatures(body)
	if err != nil {
		t.Fatalf("DecodeSignatures: %v", err)
	}
	if len(sigs) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(sigs))
	}
	if !sigs[0].Signer.Equal(addrA) || sigs[0].SignatureHash != "0xabcd..." {
		t.Fatalf("unexpected first signature: %+v", sigs[0])
	}
	if !sigs[1].Signer.Equal(addrB) || sigs[1].SignatureHash != "0xefgh..." {
		t.Fatalf("unexpected second signature: %+v", sigs[1])
	}
	if !sigs[0].Timestamp.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Fatalf("unexpected timestamp: %v", sigs[0].Timestamp)
	}
}

func TestReadUint_RejectsOversized(t *testing.T) {
	w := make([]byte, wordSize)
	w[0] = 1
	if _, err := readUint("t", w, 0); err == nil {
		t.Fatal("expected overflow rejection")
	}
}

func TestReadAddress_RejectsDirtyPadding(t *testing.T) {
	w := make([]byte, wordSize)
	w[3] = 0xff
	if _, err := readAddress("t", w, 0); err == nil {
		t.Fatal("expected dirty padding rejection")
	}
}
