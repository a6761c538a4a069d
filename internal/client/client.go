// Package client implements the request pipeline: workload generation,
// replica-aware routing, and the bounded per-worker window of outstanding
// requests over a shared request region.
//
// A client never blocks and never locks. Each (server, worker) target has
// its own window of cells addressed purely by arithmetic, reused in ring
// order; a cell is reissued only after its previous response has been
// observed, which is what bounds the outstanding requests per target at
// the window size. Routing follows placement: PUTs always go to a shard's
// primary to keep a single writer per key, GETs spread across the replica
// set.
package client

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/dreamware/herdkv/internal/config"
	"github.com/dreamware/herdkv/internal/placement"
	"github.com/dreamware/herdkv/internal/protocol"
	"github.com/dreamware/herdkv/internal/store"
	"github.com/dreamware/herdkv/internal/transport"
)

// Stats is a snapshot of a client's pipeline counters.
type Stats struct {
	Gets        uint64 // GET requests issued
	Puts        uint64 // PUT requests issued
	Retired     uint64 // responses observed (slots retired)
	Values      uint64 // GET responses carrying a value
	NoKeys      uint64 // GET responses reporting a miss
	WrongServer uint64 // responses reporting a misroute
}

// Client generates GET/PUT traffic against a cluster of request regions,
// one region per server, keeping at most WindowSize requests outstanding
// toward any single worker.
type Client struct {
	regions []transport.Transport // per-server request regions
	rng     *rand.Rand
	cfg     config.Config
	id      int

	// next tracks, per (server, worker), the window slot to issue into
	// next. Slots advance in ring order so reuse is always of the oldest
	// outstanding request.
	next [][]int

	// wn round-robins requests across a server's workers.
	wn int

	// nbTx drives the client-side signaling cadence, mirroring the
	// worker's unsignaled batching.
	nbTx uint64

	reqBuf [protocol.SlotSize]byte

	gets        atomic.Uint64
	puts        atomic.Uint64
	retired     atomic.Uint64
	values      atomic.Uint64
	noKeys      atomic.Uint64
	wrongServer atomic.Uint64
}

// New creates a client with the given client index. regions must be
// indexed by server ID and cover every server in the configuration. The
// random stream is seeded with the client index so runs are reproducible.
func New(id int, cfg config.Config, regions []transport.Transport) *Client {
	next := make([][]int, len(regions))
	for s := range next {
		next[s] = make([]int, cfg.NumWorkers)
	}
	return &Client{
		id:      id,
		cfg:     cfg,
		regions: regions,
		next:    next,
		rng:     rand.New(rand.NewSource(int64(id))),
	}
}

// Run issues requests until ctx is canceled. Generation only stops while
// waiting for a slot to retire, and that wait is a busy-poll, never a
// blocking primitive.
func (c *Client) Run(ctx context.Context) {
	for ctx.Err() == nil {
		c.step(ctx)
	}
}

// step generates one request, routes it, waits for its slot to retire,
// and issues it.
func (c *Client) step(ctx context.Context) {
	isPut := c.rng.Intn(100) < c.cfg.UpdatePercent
	key := store.KeyFromUint64(uint64(c.rng.Intn(c.cfg.NumKeys)))

	// Replica selection: writes must hit the primary; reads may hit any
	// replica to spread load.
	shard := placement.ShardForKey(store.BucketOf(key), c.cfg.NumShards)
	var server int
	if isPut {
		server = placement.PrimaryForShard(shard, c.cfg.NumServers)
	} else {
		replicas := placement.ServersForShard(shard, c.cfg.NumServers, c.cfg.ReplicationFactor)
		server = replicas[c.rng.Intn(len(replicas))]
	}

	worker := c.wn
	c.wn = (c.wn + 1) % c.cfg.NumWorkers

	slot := protocol.SlotIndex(worker, c.id, c.next[server][worker],
		c.cfg.NumClients, c.cfg.WindowSize)

	if !c.waitRetired(ctx, server, slot) {
		return // canceled mid-wait; the slot stays untouched
	}

	var value store.Value
	if isPut {
		c.rng.Read(value[:])
	}
	c.post(server, slot, isPut, key, value)
	c.next[server][worker] = (c.next[server][worker] + 1) % c.cfg.WindowSize
}

// waitRetired spins until the slot's previous occupant has been answered
// (or the slot was never used), recording the observed response. Returns
// false only on cancellation.
func (c *Client) waitRetired(ctx context.Context, server, slot int) bool {
	region := c.regions[server]
	for i := 0; ; i++ {
		code := region.PollOpcode(slot)
		if !protocol.IsClientOp(code) {
			if code != protocol.OpNop {
				c.observe(slot, code)
			}
			return true
		}
		// Keep the spin hot; only glance at ctx occasionally.
		if i%1024 == 0 && ctx.Err() != nil {
			return false
		}
	}
}

// observe records a retired slot's response.
func (c *Client) observe(slot int, code byte) {
	c.retired.Add(1)
	switch code {
	case protocol.RespValue:
		c.values.Add(1)
	case protocol.RespNoKey:
		c.noKeys.Add(1)
	case protocol.RespWrongServer:
		c.wrongServer.Add(1)
	case protocol.RespPutAck:
		// Ack carries no payload; nothing further to read.
	default:
		panic(fmt.Sprintf("client: malformed response code %d in slot %d", code, slot))
	}
}

// post encodes and publishes one request into a retired slot.
func (c *Client) post(server, slot int, isPut bool, key store.Key, value store.Value) {
	region := c.regions[server]

	// Reusing a slot before retirement is a protocol violation, not a
	// runtime condition; waitRetired makes this unreachable.
	if protocol.IsClientOp(region.PollOpcode(slot)) {
		panic(fmt.Sprintf("client %d: slot %d reused before retirement", c.id, slot))
	}

	var op byte
	if isPut {
		op = protocol.EncodePut(c.reqBuf[:], key, value)
		c.puts.Add(1)
	} else {
		op = protocol.EncodeGet(c.reqBuf[:], key)
		c.gets.Add(1)
	}

	c.nbTx++
	signaled := c.nbTx%uint64(c.cfg.UnsigBatch) == 0

	region.PostWrite(transport.Write{Slot: slot, Data: c.reqBuf[:], Op: op}, signaled)
	if signaled {
		region.PollCompletions()
	}
}

// Stats returns a snapshot of the client's counters.
func (c *Client) Stats() Stats {
	return Stats{
		Gets:        c.gets.Load(),
		Puts:        c.puts.Load(),
		Retired:     c.retired.Load(),
		Values:      c.values.Load(),
		NoKeys:      c.noKeys.Load(),
		WrongServer: c.wrongServer.Load(),
	}
}
