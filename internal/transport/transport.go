package transport

// Write is one outbound slot write: the payload bytes for the cell plus
// the control byte to publish once the payload is visible.
type Write struct {
	Data []byte // payload, at most one cell
	Slot int    // destination cell index
	Op   byte   // control byte published after the payload
}

// Transport is the interface the dispatch loop and client pipeline consume
// for request-region I/O. An implementation represents one registered
// region. All methods are safe for concurrent use by the region's statically
// partitioned writers; no method ever blocks.
type Transport interface {
	// NumSlots returns the region's cell count.
	NumSlots() int

	// PollOpcode returns the current control byte of a cell, with acquire
	// semantics: a non-zero result guarantees the payload written before
	// its publication is visible to the caller.
	PollOpcode(slot int) byte

	// Read copies a cell's payload into dst. Callers must only read after
	// PollOpcode returned the control value they were waiting for.
	Read(slot int, dst []byte)

	// PostWrite stores a cell's payload and then publishes its control
	// byte, in that order. The payload is consumed before PostWrite
	// returns, so callers may reuse the buffer immediately. A signaled
	// write additionally produces a
	// completion retrievable via PollCompletions; unsignaled writes do
	// not, but are guaranteed visible no later than the next signaled
	// write on the same region.
	PostWrite(w Write, signaled bool)

	// PostWriteList posts several writes as one chained submission,
	// publishing each in list order. At most one completion is produced,
	// for the list as a whole, when signaled.
	PostWriteList(ws []Write, signaled bool)

	// PollCompletions drains and returns the number of signaled
	// completions accumulated since the previous call.
	PollCompletions() int
}
