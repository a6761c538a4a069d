package protocol

import (
	"fmt"

	"github.com/dreamware/herdkv/internal/store"
)

// Request opcodes. The polling logic requires:
//
//  1. 0 < OpGetInternal < OpPutInternal < OpGet < OpPut
//  2. OpGet = OpGetInternal + ClientOpOffset
//  3. OpPut = OpPutInternal + ClientOpOffset
//
// This lets a worker detect a client request by checking whether a slot's
// opcode exceeds ClientOpOffset, and convert it to a store opcode by
// subtracting ClientOpOffset. Zero is reserved for an empty slot, so a
// single comparison also distinguishes "nothing here" from a real request.
const (
	// OpNop marks an unused or retired slot. Never dispatched.
	OpNop byte = 0

	// OpGetInternal and OpPutInternal are the store engine's opcodes.
	OpGetInternal byte = 1
	OpPutInternal byte = 2

	// ClientOpOffset separates client-facing opcodes from store opcodes.
	// It must exceed every internal opcode.
	ClientOpOffset byte = 10

	// OpGet and OpPut are the client-facing opcodes carried in request
	// slots.
	OpGet byte = OpGetInternal + ClientOpOffset
	OpPut byte = OpPutInternal + ClientOpOffset
)

// Response codes, written into a slot's control byte when a worker
// overwrites the request with its response. They sit strictly below
// ClientOpOffset so a worker re-polling the slot never mistakes its own
// response for a new request, and a client polling for its response never
// mistakes its own request for one.
const (
	RespValue       byte = 1 // GET hit: payload carries the value
	RespNoKey       byte = 2 // GET miss
	RespPutAck      byte = 3 // PUT committed
	RespWrongServer byte = 4 // request was misrouted; nothing executed
)

// Wire layout. A GET request is the key followed by the opcode byte; a PUT
// request additionally carries a length byte and the value. Every slot is
// sized for the largest message, so the layout is position-stable:
//
//	offset 0              16      17       18
//	       ┌──────────────┬───────┬────────┬─────────────┐
//	GET    │ key          │ op    │        unused        │
//	PUT    │ key          │ op    │ len    │ value       │
//	       └──────────────┴───────┴────────┴─────────────┘
//
// Responses overlay the same slot: code byte, length byte, then the value
// payload. Any change to field order or sizes is a breaking protocol
// change for every client and worker sharing a region.
const (
	// KeySize and ValueSize mirror the store engine's fixed widths.
	KeySize   = store.KeySize
	ValueSize = store.ValueSize

	// GetReqSize is key + opcode.
	GetReqSize = KeySize + 1

	// PutReqSize is key + opcode + length byte + value.
	PutReqSize = KeySize + 1 + 1 + ValueSize

	// SlotSize is the size of every request-region cell: large enough for
	// the largest request and for any response.
	SlotSize = PutReqSize

	// opOffset is the position of the opcode byte within a request.
	opOffset = KeySize

	// lenOffset and valOffset locate a PUT's length byte and value.
	lenOffset = KeySize + 1
	valOffset = KeySize + 2

	// Response overlay positions.
	respCodeOffset = 0
	respLenOffset  = 1
	respValOffset  = 2
)

// IsClientOp reports whether an opcode was issued by a client (as opposed
// to an empty slot, a response code, or a store-internal opcode). One
// comparison, run on every polled slot.
func IsClientOp(op byte) bool {
	return op > ClientOpOffset
}

// ToInternal converts a client-facing opcode to the store engine's opcode
// space. Callers must have established IsClientOp(op).
func ToInternal(op byte) byte {
	return op - ClientOpOffset
}

// Request is a decoded request slot.
type Request struct {
	Key   store.Key
	Value store.Value
	Op    byte // client-facing opcode, OpGet or OpPut
	Len   byte // value length, PUT only
}

// Response is a decoded response overlay.
type Response struct {
	Value store.Value
	Code  byte
	Len   byte // value length, RespValue only
}

// EncodeGet writes a GET request for key into a slot cell. The opcode byte
// is returned rather than written: on a shared region the opcode is the
// publication word and must be made visible only after the payload, so the
// transport stores it last.
func EncodeGet(dst []byte, key store.Key) byte {
	copy(dst[:KeySize], key[:])
	dst[opOffset] = OpGet
	return OpGet
}

// EncodePut writes a PUT request for key/value into a slot cell and
// returns the opcode to publish.
func EncodePut(dst []byte, key store.Key, value store.Value) byte {
	copy(dst[:KeySize], key[:])
	dst[opOffset] = OpPut
	dst[lenOffset] = ValueSize
	copy(dst[valOffset:valOffset+ValueSize], value[:])
	return OpPut
}

// DecodeRequest decodes a request cell whose published opcode is op.
// A non-client opcode here means memory corruption or a protocol version
// mismatch between client and worker, which is a defect, not a runtime
// condition: it panics.
func DecodeRequest(op byte, src []byte) Request {
	if op != OpGet && op != OpPut {
		panic(fmt.Sprintf("protocol: malformed request opcode %d", op))
	}

	var req Request
	req.Op = op
	copy(req.Key[:], src[:KeySize])
	if op == OpPut {
		req.Len = src[lenOffset]
		copy(req.Value[:], src[valOffset:valOffset+ValueSize])
	}
	return req
}

// EncodeResponse writes a response overlay into a slot cell and returns
// the code to publish.
func EncodeResponse(dst []byte, resp Response) byte {
	dst[respCodeOffset] = resp.Code
	dst[respLenOffset] = resp.Len
	if resp.Code == RespValue {
		copy(dst[respValOffset:respValOffset+ValueSize], resp.Value[:])
	}
	return resp.Code
}

// DecodeResponse decodes a response overlay whose published code is code.
func DecodeResponse(code byte, src []byte) Response {
	var resp Response
	resp.Code = code
	resp.Len = src[respLenOffset]
	if code == RespValue {
		copy(resp.Value[:], src[respValOffset:respValOffset+ValueSize])
	}
	return resp
}
