// Package worker implements the request-region dispatch loop.
//
// Each worker owns a static slice of the region, one window of cells per
// client, and cycles through four phases:
//
//	POLLING ──▶ FILTERING ──▶ EXECUTING ──▶ RESPONDING ──▶ POLLING
//
// Polling inspects each client's head cell for a published client opcode;
// an empty cell costs one atomic load. Filtering resolves the key's shard
// and drops requests this server doesn't own, a normal event under
// approximate client routing, answered with a wrong-server code so the
// client's window can retire the slot. Executing strips the client opcode
// offset and calls the store engine. Responding writes results back over
// the request cells, signaling a completion only every UnsigBatch-th
// response and optionally chaining each sweep's responses into a single
// postlist submission.
//
// The loop never blocks and never takes a lock: cell ownership is
// partitioned by addressing arithmetic, and the only shared mutable state
// is the store engine, which provides its own concurrency safety.
package worker
