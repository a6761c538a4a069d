// Package protocol defines the request-region wire contract shared by
// clients and workers: the opcode numbering scheme, the byte layout of
// requests and responses, and the arithmetic that addresses any
// (worker, client, window-slot) cell within a region.
//
// # Opcode scheme
//
// Two disjoint ranges share one byte. The store engine's opcodes start
// just above zero (zero marks an empty slot); client-facing opcodes are
// the same codes shifted up by ClientOpOffset. A worker classifies any
// polled byte with a single comparison: greater than ClientOpOffset
// means a client request that needs the offset subtracted before store
// dispatch. This check runs on every polled slot, so it is deliberately
// branch-minimal.
//
// # Slot lifecycle
//
// A cell alternates between request and response occupancy:
//
//	client: write payload, publish OpGet/OpPut  ──▶ worker polls (> offset)
//	worker: write response, publish code (< offset) ──▶ client polls
//	client: observes code, slot is retired, may reuse
//
// Response codes live strictly below ClientOpOffset, so each side's poll
// predicate ignores the other side's writes and its own. At most one
// in-flight request occupies a cell; reusing a cell before observing its
// response is a protocol violation with undefined behavior.
//
// # Addressing
//
// SlotIndex is a bijection from (worker, client, slot) to cell indices,
// which is what makes the region lock-free by construction: no two
// threads ever address the same cell for writing at the same time, so no
// synchronization beyond publication ordering is needed.
package protocol
