package worker

import (
	"context"
	"sync/atomic"

	"github.com/dreamware/herdkv/internal/config"
	"github.com/dreamware/herdkv/internal/placement"
	"github.com/dreamware/herdkv/internal/protocol"
	"github.com/dreamware/herdkv/internal/store"
	"github.com/dreamware/herdkv/internal/transport"
)

// Stats is a snapshot of a worker's operation counters.
type Stats struct {
	Gets   uint64 // GET requests executed
	Puts   uint64 // PUT requests executed
	Misses uint64 // GETs that found no key
	Drops  uint64 // misrouted requests filtered out
}

// Worker busy-polls its share of a request region, filters requests by
// shard ownership, executes the survivors against the store engine, and
// writes responses back with batched completion signaling.
type Worker struct {
	st     store.Store
	region transport.Transport
	cfg    config.Config
	id     int

	// next holds, per client, the window slot to poll next. Clients fill
	// their windows in order, so polling only the head slot per client is
	// enough to observe every request exactly once.
	next []int

	// nbTx counts responses sent, driving the unsignaled-batch cadence.
	nbTx uint64

	// Scratch buffers reused across sweeps so the hot loop never
	// allocates: one request cell, plus one response cell and one write
	// record per client (a sweep produces at most one response per
	// client).
	reqBuf  [protocol.SlotSize]byte
	respBuf [][protocol.SlotSize]byte
	writes  []transport.Write

	gets   atomic.Uint64
	puts   atomic.Uint64
	misses atomic.Uint64
	drops  atomic.Uint64
}

// New creates a worker for the given worker index. The configuration must
// already have been validated.
func New(id int, cfg config.Config, st store.Store, region transport.Transport) *Worker {
	return &Worker{
		id:      id,
		cfg:     cfg,
		st:      st,
		region:  region,
		next:    make([]int, cfg.NumClients),
		respBuf: make([][protocol.SlotSize]byte, cfg.NumClients),
		writes:  make([]transport.Write, 0, cfg.NumClients),
	}
}

// Run drives the dispatch loop until ctx is canceled. The loop never
// blocks: polling is a deliberate busy-wait, trading CPU for tail
// latency, and cancellation is checked once per sweep so the per-slot
// path stays a single atomic load and compare.
func (w *Worker) Run(ctx context.Context) {
	for ctx.Err() == nil {
		w.sweep()
	}
}

// sweep polls each client's head slot once, round-robin, and sends the
// accumulated responses.
func (w *Worker) sweep() {
	w.writes = w.writes[:0]

	for c := 0; c < w.cfg.NumClients; c++ {
		slot := protocol.SlotIndex(w.id, c, w.next[c], w.cfg.NumClients, w.cfg.WindowSize)

		op := w.region.PollOpcode(slot)
		if !protocol.IsClientOp(op) {
			// Empty slot, or a response this worker already wrote.
			continue
		}

		w.region.Read(slot, w.reqBuf[:])
		req := protocol.DecodeRequest(op, w.reqBuf[:])
		resp := w.execute(req)

		code := protocol.EncodeResponse(w.respBuf[c][:], resp)
		w.writes = append(w.writes, transport.Write{
			Slot: slot,
			Data: w.respBuf[c][:],
			Op:   code,
		})

		w.next[c] = (w.next[c] + 1) % w.cfg.WindowSize
	}

	w.respond()
}

// execute filters a request by shard ownership and dispatches it to the
// store engine. Misrouted requests are the expected product of stale
// client-side routing: they are counted and refused, never treated as
// errors and never forwarded.
func (w *Worker) execute(req protocol.Request) protocol.Response {
	bucket := store.BucketOf(req.Key)
	if !placement.KeyBelongsToServer(bucket, w.cfg.ServerID,
		w.cfg.NumServers, w.cfg.NumShards, w.cfg.ReplicationFactor) {
		w.drops.Add(1)
		return protocol.Response{Code: protocol.RespWrongServer}
	}

	switch protocol.ToInternal(req.Op) {
	case protocol.OpGetInternal:
		w.gets.Add(1)
		value, err := w.st.Get(req.Key)
		if err != nil {
			w.misses.Add(1)
			return protocol.Response{Code: protocol.RespNoKey}
		}
		return protocol.Response{Code: protocol.RespValue, Value: value, Len: protocol.ValueSize}

	default: // OpPutInternal, the only other code DecodeRequest admits
		w.puts.Add(1)
		w.st.Put(req.Key, req.Value)
		return protocol.Response{Code: protocol.RespPutAck}
	}
}

// respond sends the sweep's responses. Every UnsigBatch-th response is
// signaled and the completion queue drained then; the rest are
// fire-and-forget, relying on the transport's in-order visibility. With
// postlist enabled the whole sweep goes out as one chained submission.
func (w *Worker) respond() {
	if len(w.writes) == 0 {
		return
	}

	if w.cfg.Postlist {
		before := w.nbTx / uint64(w.cfg.UnsigBatch)
		w.nbTx += uint64(len(w.writes))
		signaled := w.nbTx/uint64(w.cfg.UnsigBatch) != before

		w.region.PostWriteList(w.writes, signaled)
		if signaled {
			w.region.PollCompletions()
		}
		return
	}

	for _, wr := range w.writes {
		w.nbTx++
		signaled := w.nbTx%uint64(w.cfg.UnsigBatch) == 0

		w.region.PostWrite(wr, signaled)
		if signaled {
			w.region.PollCompletions()
		}
	}
}

// Stats returns a snapshot of the worker's counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Gets:   w.gets.Load(),
		Puts:   w.puts.Load(),
		Misses: w.misses.Load(),
		Drops:  w.drops.Load(),
	}
}
