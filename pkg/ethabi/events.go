package ethabi

import (
	"encoding/hex"
	"strings"

	"github.com/Dayo-Adewuyi/Signe-le/pkg/domain"
)

// EventKind classifies a ledger log entry against the contract's three
// declared events. Anything else is Unknown and dropped by the ingestor.
type EventKind int

const (
	Unknown EventKind = iota
	DocumentCreated
	DocumentSigned
	DocumentCompleted
)

func (k EventKind) String() string {
	switch k {
	case DocumentCreated:
		return "DocumentCreated"
	case DocumentSigned:
		return "DocumentSigned"
	case DocumentCompleted:
		return "DocumentCompleted"
	}
	return "Unknown"
}

var eventSignatures = map[EventKind]string{
	DocumentCreated:   "DocumentCreated(uint256,string,address[],address)",
	DocumentSigned:    "DocumentSigned(uint256,address,string)",
	DocumentCompleted: "DocumentCompleted(uint256)",
}

var eventTopics map[EventKind]string

func init() {
	eventTopics = make(map[EventKind]string, len(eventSignatures))
	for k, sig := range eventSignatures {
		eventTopics[k] = "0x" + hex.EncodeToString(keccak256([]byte(sig)))
	}
}

// EventTopic returns the topic0 hash for a known event kind, empty for
// Unknown.
func EventTopic(k EventKind) string { return eventTopics[k] }

// ClassifyEvent maps a log's topic0 to an event kind.
func ClassifyEvent(topic0 string) EventKind {
	for k, t := range eventTopics {
		if strings.EqualFold(topic0, t) {
			return k
		}
	}
	return Unknown
}

// CreatedEvent is the decoded DocumentCreated payload.
type CreatedEvent struct {
	DocumentID uint64
	Title      string
	Signers    []domain.Address
	Creator    domain.Address
}

// SignedEvent is the decoded DocumentSigned payload.
type SignedEvent struct {
	DocumentID    uint64
	Signer        domain.Address
	SignatureHash string
}

// documentID pulls the indexed uint256 out of topic1.
func documentID(ev string, topics []string) (uint64, error) {
	if len(topics) < 2 {
		return 0, &DecodingError{Func: ev, Msg: "missing documentId topic"}
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(topics[1]), "0x"))
	if err != nil || len(raw) != wordSize {
		return 0, &DecodingError{Func: ev, Msg: "malformed documentId topic"}
	}
	return readUint(ev, raw, 0)
}

// DecodeDocumentCreated decodes a DocumentCreated log (documentId indexed;
// title, signers, creator in the data section).
func DecodeDocumentCreated(topics []string, data []byte) (CreatedEvent, error) {
	var ev CreatedEvent
	id, err := documentID("DocumentCreated", topics)
	if err != nil {
		return ev, err
	}
	vals, err := decodeTuple("DocumentCreated", []kind{kindString, kindAddressArray, kindAddress}, data)
	if err != nil {
		return ev, err
	}
	ev.DocumentID = id
	ev.Title = vals[0].(string)
	ev.Signers = vals[1].([]domain.Address)
	ev.Creator = vals[2].(domain.Address)
	return ev, nil
}

// DecodeDocumentSigned decodes a DocumentSigned log (documentId indexed;
// signer, signatureHash in the data section).
func DecodeDocumentSigned(topics []string, data []byte) (SignedEvent, error) {
	var ev SignedEvent
	id, err := documentID("DocumentSigned", topics)
	if err != nil {
		return ev, err
	}
	vals, err := decodeTuple("DocumentSigned", []kind{kindAddress, kindString}, data)
	if err != nil {
		return ev, err
	}
	ev.DocumentID = id
	ev.Signer = vals[0].(domain.Address)
	ev.SignatureHash = vals[1].(string)
	return ev, nil
}

// DecodeDocumentCompleted decodes a DocumentCompleted log (documentId
// indexed, no data).
func DecodeDocumentCompleted(topics []string) (uint64, error) {
	return documentID("DocumentCompleted", topics)
}

// EventDocumentID extracts the indexed documentId topic shared by all three
// event shapes, without interpreting the data section.
func EventDocumentID(topics []string) (uint64, error) {
	return documentID("event", topics)
}

// EncodeEventData builds the data section for a known event kind. The
// ingestor's tests and the wallet-bridge fixtures use it to fabricate logs;
// production code only decodes.
func EncodeEventData(k EventKind, vals ...any) ([]byte, error) {
	switch k {
	case DocumentCreated:
		return encodeTuple("DocumentCreated", []kind{kindString, kindAddressArray, kindAddress}, vals)
	case DocumentSigned:
		return encodeTuple("DocumentSigned", []kind{kindAddress, kindString}, vals)
	case DocumentCompleted:
		return nil, nil
	}
	return nil, &EncodingError{Func: k.String(), Msg: "unknown event kind"}
}

// IDTopic renders a document ID as an indexed topic value.
func IDTopic(id uint64) string { return "0x" + hex.EncodeToString(uintWord(id)) }
