// Package ethabi holds all knowledge of the Signele contract ABI: call
// encoding, result decoding, and event classification. Everything outside
// this package works with typed values only.
package ethabi

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Dayo-Adewuyi/Signe-le/pkg/domain"

	"golang.org/x/crypto/sha3"
)

const wordSize = 32

// EncodingError means the caller's arguments do not match the declared
// signature. Programming error, not user-recoverable.
type EncodingError struct {
	Func string
	Msg  string
}

func (e *EncodingError) Error() string { return fmt.Sprintf("ethabi: encode %s: %s", e.Func, e.Msg) }

// DecodingError means the ledger returned bytes that do not match the
// declared return shape. Decoding is strict: unexpected shapes fail loudly
// instead of degrading to an empty result.
type DecodingError struct {
	Func string
	Msg  string
}

func (e *DecodingError) Error() string { return fmt.Sprintf("ethabi: decode %s: %s", e.Func, e.Msg) }

type kind int

const (
	kindUint kind = iota
	kindAddress
	kindBool
	kindString
	kindUintArray
	kindAddressArray
	kindSignatureArray // (address,string,uint256)[]
)

func (k kind) dynamic() bool {
	switch k {
	case kindString, kindUintArray, kindAddressArray, kindSignatureArray:
		return true
	}
	return false
}

type method struct {
	signature string
	selector  [4]byte
	inputs    []kind
	outputs   []kind
}

var methods = map[string]*method{
	"createDocument": {
		signature: "createDocument(string,string,string,address[])",
		inputs:    []kind{kindString, kindString, kindString, kindAddressArray},
	},
	"signDocument": {
		signature: "signDocument(uint256,string)",
		inputs:    []kind{kindUint, kindString},
	},
	"getDocument": {
		signature: "getDocument(uint256)",
		inputs:    []kind{kindUint},
		outputs:   []kind{kindString, kindString, kindString, kindAddressArray, kindAddress, kindBool},
	},
	"getDocumentSignatures": {
		signature: "getDocumentSignatures(uint256)",
		inputs:    []kind{kindUint},
		outputs:   []kind{kindSignatureArray},
	},
	"getUserCreatedDocuments": {
		signature: "getUserCreatedDocuments(address)",
		inputs:    []kind{kindAddress},
		outputs:   []kind{kindUintArray},
	},
	"getUserSignedDocuments": {
		signature: "getUserSignedDocuments(address)",
		inputs:    []kind{kindAddress},
		outputs:   []kind{kindUintArray},
	},
}

func init() {
	for _, m := range methods {
		sum := keccak256([]byte(m.signature))
		copy(m.selector[:], sum[:4])
	}
}

func keccak256(b []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return h.Sum(nil)
}

// EncodeCall builds the calldata for a declared contract function. Arity or
// type mismatches yield an EncodingError.
func EncodeCall(name string, args ...any) ([]byte, error) {
	m, ok := methods[name]
	if !ok {
		return nil, &EncodingError{Func: name, Msg: "unknown function"}
	}
	if len(args) != len(m.inputs) {
		return nil, &EncodingError{Func: name, Msg: fmt.Sprintf("want %d args, got %d", len(m.inputs), len(args))}
	}
	body, err := encodeTuple(name, m.inputs, args)
	if err != nil {
		return nil, err
	}
	return append(m.selector[:], body...), nil
}

// DecodeResult decodes an eth_call return payload for a declared function
// into its typed output tuple.
func DecodeResult(name string, data []byte) ([]any, error) {
	m, ok := methods[name]
	if !ok {
		return nil, &DecodingError{Func: name, Msg: "unknown function"}
	}
	return decodeTuple(name, m.outputs, data)
}

func encodeTuple(fname string, kinds []kind, vals []any) ([]byte, error) {
	headSize := len(kinds) * wordSize
	head := make([]byte, 0, headSize)
	var tail []byte
	for i, k := range kinds {
		if k.dynamic() {
			head = append(head, uintWord(uint64(headSize+len(tail)))...)
			enc, err := encodeDynamic(fname, k, vals[i])
			if err != nil {
				return nil, err
			}
			tail = append(tail, enc...)
			continue
		}
		w, err := encodeStatic(fname, k, vals[i])
		if err != nil {
			return nil, err
		}
		head = append(head, w...)
	}
	return append(head, tail...), nil
}

func encodeStatic(fname string, k kind, v any) ([]byte, error) {
	switch k {
	case kindUint:
		u, ok := v.(uint64)
		if !ok {
			return nil, &EncodingError{Func: fname, Msg: fmt.Sprintf("want uint64, got %T", v)}
		}
		return uintWord(u), nil
	case kindAddress:
		a, ok := v.(domain.Address)
		if !ok {
			return nil, &EncodingError{Func: fname, Msg: fmt.Sprintf("want domain.Address, got %T", v)}
		}
		return addressWord(fname, a)
	case kindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, &EncodingError{Func: fname, Msg: fmt.Sprintf("want bool, got %T", v)}
		}
		if b {
			return uintWord(1), nil
		}
		return uintWord(0), nil
	}
	return nil, &EncodingError{Func: fname, Msg: "unsupported static kind"}
}

func encodeDynamic(fname string, k kind, v any) ([]byte, error) {
	switch k {
	case kindString:
		s, ok := v.(string)
		if !ok {
			return nil, &EncodingError{Func: fname, Msg: fmt.Sprintf("want string, got %T", v)}
		}
		out := uintWord(uint64(len(s)))
		out = append(out, padRight([]byte(s))...)
		return out, nil
	case kindUintArray:
		us, ok := v.([]uint64)
		if !ok {
			return nil, &EncodingError{Func: fname, Msg: fmt.Sprintf("want []uint64, got %T", v)}
		}
		out := uintWord(uint64(len(us)))
		for _, u := range us {
			out = append(out, uintWord(u)...)
		}
		return out, nil
	case kindAddressArray:
		as, ok := v.([]domain.Address)
		if !ok {
			return nil, &EncodingError{Func: fname, Msg: fmt.Sprintf("want []domain.Address, got %T", v)}
		}
		out := uintWord(uint64(len(as)))
		for _, a := range as {
			w, err := addressWord(fname, a)
			if err != nil {
				return nil, err
			}
			out = append(out, w...)
		}
		return out, nil
	}
	return nil, &EncodingError{Func: fname, Msg: "unsupported dynamic kind"}
}

func decodeTuple(fname string, kinds []kind, data []byte) ([]any, error) {
	if len(data) < len(kinds)*wordSize {
		return nil, &DecodingError{Func: fname, Msg: fmt.Sprintf("result too short: %d bytes for %d values", len(data), len(kinds))}
	}
	out := make([]any, len(kinds))
	for i, k := range kinds {
		off := i * wordSize
		if k.dynamic() {
			rel, err := readUint(fname, data, off)
			if err != nil {
				return nil, err
			}
			if rel > uint64(len(data)) {
				return nil, &DecodingError{Func: fname, Msg: "dynamic offset out of range"}
			}
			v, err := decodeDynamic(fname, k, data[rel:])
			if err != nil {
				return nil, err
			}
			out[i] = v
			continue
		}
		v, err := decodeStatic(fname, k, data, off)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decodeStatic(fname string, k kind, data []byte, off int) (any, error) {
	switch k {
	case kindUint:
		return readUint(fname, data, off)
	case kindAddress:
		return readAddress(fname, data, off)
	case kindBool:
		u, err := readUint(fname, data, off)
		if err != nil {
			return nil, err
		}
		switch u {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return nil, &DecodingError{Func: fname, Msg: fmt.Sprintf("bool word holds %d", u)}
	}
	return nil, &DecodingError{Func: fname, Msg: "unsupported static kind"}
}

// decodeDynamic decodes a dynamic value whose section starts at data[0].
func decodeDynamic(fname string, k kind, data []byte) (any, error) {
	n, err := readUint(fname, data, 0)
	if err != nil {
		return nil, err
	}
	body := data[wordSize:]
	switch k {
	case kindString:
		if n > uint64(len(body)) {
			return nil, &DecodingError{Func: fname, Msg: "string length out of range"}
		}
		return string(body[:n]), nil
	case kindUintArray:
		if n*wordSize > uint64(len(body)) {
			return nil, &DecodingError{Func: fname, Msg: "uint array length out of range"}
		}
		out := make([]uint64, n)
		for i := range out {
			u, err := readUint(fname, body, i*wordSize)
			if err != nil {
				return nil, err
			}
			out[i] = u
		}
		return out, nil
	case kindAddressArray:
		if n*wordSize > uint64(len(body)) {
			return nil, &DecodingError{Func: fname, Msg: "address array length out of range"}
		}
		out := make([]domain.Address, n)
		for i := range out {
			a, err := readAddress(fname, body, i*wordSize)
			if err != nil {
				return nil, err
			}
			out[i] = a
		}
		return out, nil
	case kindSignatureArray:
		if n*wordSize > uint64(len(body)) {
			return nil, &DecodingError{Func: fname, Msg: "signature array length out of range"}
		}
		out := make([]domain.Signature, n)
		for i := range out {
			// Element offsets are relative to the start of the element area.
			rel, err := readUint(fname, body, i*wordSize)
			if err != nil {
				return nil, err
			}
			if rel > uint64(len(body)) {
				return nil, &DecodingError{Func: fname, Msg: "signature element offset out of range"}
			}
			sig, err := decodeSignatureTuple(fname, body[rel:])
			if err != nil {
				return nil, err
			}
			out[i] = sig
		}
		return out, nil
	}
	return nil, &DecodingError{Func: fname, Msg: "unsupported dynamic kind"}
}

// decodeSignatureTuple decodes one (address signer, string signatureHash,
// uint256 timestamp) element; el[0] is the start of the tuple encoding.
func decodeSignatureTuple(fname string, el []byte) (domain.Signature, error) {
	var sig domain.Signature
	signer, err := readAddress(fname, el, 0)
	if err != nil {
		return sig, err
	}
	strOff, err := readUint(fname, el, wordSize)
	if err != nil {
		return sig, err
	}
	ts, err := readUint(fname, el, 2*wordSize)
	if err != nil {
		return sig, err
	}
	if strOff > uint64(len(el)) {
		return sig, &DecodingError{Func: fname, Msg: "signature hash offset out of range"}
	}
	v, err := decodeDynamic(fname, kindString, el[strOff:])
	if err != nil {
		return sig, err
	}
	sig.Signer = signer
	sig.SignatureHash = v.(string)
	sig.Timestamp = time.Unix(int64(ts), 0).UTC()
	return sig, nil
}

func uintWord(u uint64) []byte {
	w := make([]byte, wordSize)
	binary.BigEndian.PutUint64(w[wordSize-8:], u)
	return w
}

func addressWord(fname string, a domain.Address) ([]byte, error) {
	b, err := a.Bytes()
	if err != nil {
		return nil, &EncodingError{Func: fname, Msg: err.Error()}
	}
	w := make([]byte, wordSize)
	copy(w[12:], b[:])
	return w, nil
}

func padRight(b []byte) []byte {
	if rem := len(b) % wordSize; rem != 0 {
		b = append(b, make([]byte, wordSize-rem)...)
	}
	return b
}

func readUint(fname string, data []byte, off int) (uint64, error) {
	if off < 0 || off+wordSize > len(data) {
		return 0, &DecodingError{Func: fname, Msg: "truncated word"}
	}
	w := data[off : off+wordSize]
	for _, b := range w[:wordSize-8] {
		if b != 0 {
			return 0, &DecodingError{Func: fname, Msg: "uint word exceeds 64 bits"}
		}
	}
	return binary.BigEndian.Uint64(w[wordSize-8:]), nil
}

func readAddress(fname string, data []byte, off int) (domain.Address, error) {
	if off < 0 || off+wordSize > len(data) {
		return "", &DecodingError{Func: fname, Msg: "truncated word"}
	}
	w := data[off : off+wordSize]
	for _, b := range w[:12] {
		if b != 0 {
			return "", &DecodingError{Func: fname, Msg: "address word has dirty padding"}
		}
	}
	return domain.AddressFromBytes(w[12:]), nil
}

// DecodeDocument decodes a getDocument result. DocumentID is left for the
// caller, since the contract does not echo it back.
func DecodeDocument(data []byte) (domain.Document, error) {
	vals, err := DecodeResult("getDocument", data)
	if err != nil {
		return domain.Document{}, err
	}
	return domain.Document{
		Title:       vals[0].(string),
		Description: vals[1].(string),
		FileHash:    vals[2].(string),
		Signers:     vals[3].([]domain.Address),
		Creator:     vals[4].(domain.Address),
		Completed:   vals[5].(bool),
	}, nil
}

// DecodeSignatures decodes a getDocumentSignatures result.
func DecodeSignatures(data []byte) ([]domain.Signature, error) {
	vals, err := DecodeResult("getDocumentSignatures", data)
	if err != nil {
		return nil, err
	}
	return vals[0].([]domain.Signature), nil
}

// DecodeDocumentIDs decodes a getUserCreatedDocuments or
// getUserSignedDocuments result.
func DecodeDocumentIDs(name string, data []byte) ([]uint64, error) {
	vals, err := DecodeResult(name, data)
	if err != nil {
		return nil, err
	}
	return vals[0].([]uint64), nil
}
