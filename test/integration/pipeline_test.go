package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/herdkv/internal/client"
	"github.com/dreamware/herdkv/internal/config"
	"github.com/dreamware/herdkv/internal/placement"
	"github.com/dreamware/herdkv/internal/protocol"
	"github.com/dreamware/herdkv/internal/store"
	"github.com/dreamware/herdkv/internal/transport"
	"github.com/dreamware/herdkv/internal/worker"
)

// TestCluster represents our in-process cluster under test: one store and
// request region per server, workers polling each region, clients issuing
// across all of them.
type TestCluster struct {
	t       *testing.T
	cfg     config.Config
	stores  []*store.MemoryStore
	regions []transport.Transport
	workers []*worker.Worker
	clients []*client.Client

	stopWorkers context.CancelFunc
	stopClients context.CancelFunc
	workerWg    sync.WaitGroup
	clientWg    sync.WaitGroup
}

// NewTestCluster builds a cluster for the given shape without starting
// any threads.
func NewTestCluster(t *testing.T, cfg config.Config) *TestCluster {
	require.NoError(t, cfg.Validate())

	tc := &TestCluster{t: t, cfg: cfg}
	for s := 0; s < cfg.NumServers; s++ {
		region, err := transport.NewSharedRegion(cfg.RegionSlots())
		require.NoError(t, err)
		st := store.NewMemoryStore()

		tc.stores = append(tc.stores, st)
		tc.regions = append(tc.regions, region)

		scfg := cfg
		scfg.ServerID = s
		for w := 0; w < cfg.NumWorkers; w++ {
			tc.workers = append(tc.workers, worker.New(w, scfg, st, region))
		}
	}
	for i := 0; i < cfg.NumClients; i++ {
		tc.clients = append(tc.clients, client.New(i, cfg, tc.regions))
	}
	return tc
}

// StartWorkers launches every worker goroutine.
func (tc *TestCluster) StartWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	tc.stopWorkers = cancel
	for _, w := range tc.workers {
		w := w
		tc.workerWg.Add(1)
		go func() {
			defer tc.workerWg.Done()
			w.Run(ctx)
		}()
	}
}

// StartClients launches every client goroutine.
func (tc *TestCluster) StartClients() {
	ctx, cancel := context.WithCancel(context.Background())
	tc.stopClients = cancel
	for _, c := range tc.clients {
		c := c
		tc.clientWg.Add(1)
		go func() {
			defer tc.clientWg.Done()
			c.Run(ctx)
		}()
	}
}

// Stop tears the cluster down in dependency order: clients first so the
// last in-flight requests still get answered, then workers.
func (tc *TestCluster) Stop() {
	if tc.stopClients != nil {
		tc.stopClients()
		tc.clientWg.Wait()
	}
	if tc.stopWorkers != nil {
		tc.stopWorkers()
		tc.workerWg.Wait()
	}
}

// smallShape returns a cluster shape small enough to exercise every code
// path quickly.
func smallShape() config.Config {
	cfg := config.Config{
		NumServers:        3,
		NumShards:         6,
		ReplicationFactor: 2,
		NumWorkers:        2,
		NumClients:        4,
		WindowSize:        8,
		UnsigBatch:        4,
		Postlist:          true,
		UpdatePercent:     30,
		NumKeys:           512,
	}
	cfg.RegionBytes = protocol.RegionBytes(cfg.NumWorkers, cfg.NumClients, cfg.WindowSize)
	return cfg
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

// TestFullPipeline runs workers and clients over three replicated
// servers and checks the accounting lines up.
func TestFullPipeline(t *testing.T) {
	tc := NewTestCluster(t, smallShape())
	tc.StartWorkers()
	tc.StartClients()

	// Let traffic flow until a healthy number of responses have landed.
	ok := waitFor(t, 10*time.Second, func() bool {
		var retired uint64
		for _, c := range tc.clients {
			retired += c.Stats().Retired
		}
		return retired > 1000
	})
	tc.Stop()
	require.True(t, ok, "pipeline produced too few responses")

	var ct client.Stats
	for _, c := range tc.clients {
		s := c.Stats()
		ct.Gets += s.Gets
		ct.Puts += s.Puts
		ct.Retired += s.Retired
		ct.Values += s.Values
		ct.NoKeys += s.NoKeys
		ct.WrongServer += s.WrongServer
	}
	var wt worker.Stats
	for _, w := range tc.workers {
		s := w.Stats()
		wt.Gets += s.Gets
		wt.Puts += s.Puts
		wt.Drops += s.Drops
	}

	// Clients compute placement exactly, so nothing may be misrouted.
	assert.Zero(t, ct.WrongServer, "client observed a wrong-server response")
	assert.Zero(t, wt.Drops, "worker dropped a correctly routed request")

	// Every retired slot carried a terminal response, and slots only
	// retire after an issue.
	assert.LessOrEqual(t, ct.Values+ct.NoKeys+ct.WrongServer, ct.Retired)
	assert.LessOrEqual(t, ct.Retired, ct.Gets+ct.Puts, "cannot retire more than was issued")

	// Workers can only have executed what clients issued.
	assert.LessOrEqual(t, wt.Gets+wt.Puts, ct.Gets+ct.Puts)
	assert.Positive(t, wt.Puts, "update traffic never reached the stores")

	// PUTs landed in the stores.
	var keys int
	for _, st := range tc.stores {
		keys += st.Stats().Keys
	}
	assert.Positive(t, keys)
}

// TestPutThenGetReturnsValue drives the slot protocol by hand: a PUT to
// the key's primary followed by a GET must return the stored value.
func TestPutThenGetReturnsValue(t *testing.T) {
	cfg := smallShape()
	cfg.NumClients = 1
	cfg.RegionBytes = protocol.RegionBytes(cfg.NumWorkers, cfg.NumClients, cfg.WindowSize)

	tc := NewTestCluster(t, cfg)
	tc.StartWorkers()
	defer tc.Stop()

	key := store.KeyFromUint64(77)
	shard := placement.ShardForKey(store.BucketOf(key), cfg.NumShards)
	primary := placement.PrimaryForShard(shard, cfg.NumServers)
	region := tc.regions[primary]

	var value store.Value
	copy(value[:], "integration value")

	// PUT into worker 0's window slot 0 for client 0.
	putSlot := protocol.SlotIndex(0, 0, 0, cfg.NumClients, cfg.WindowSize)
	buf := make([]byte, protocol.SlotSize)
	op := protocol.EncodePut(buf, key, value)
	region.PostWrite(transport.Write{Slot: putSlot, Data: buf, Op: op}, false)

	require.True(t, waitFor(t, 5*time.Second, func() bool {
		return region.PollOpcode(putSlot) == protocol.RespPutAck
	}), "PUT was never acknowledged")

	// GET through the next window slot of the same worker.
	getSlot := protocol.SlotIndex(0, 0, 1, cfg.NumClients, cfg.WindowSize)
	op = protocol.EncodeGet(buf, key)
	region.PostWrite(transport.Write{Slot: getSlot, Data: buf, Op: op}, false)

	require.True(t, waitFor(t, 5*time.Second, func() bool {
		return region.PollOpcode(getSlot) == protocol.RespValue
	}), "GET was never answered")

	region.Read(getSlot, buf)
	resp := protocol.DecodeResponse(protocol.RespValue, buf)
	assert.Equal(t, value, resp.Value)
}

// TestMisrouteIsFilteredNotExecuted sends a request to a server outside
// the key's replica set and verifies it is refused without reaching the
// store.
func TestMisrouteIsFilteredNotExecuted(t *testing.T) {
	cfg := smallShape()
	cfg.NumClients = 1
	cfg.ReplicationFactor = 1 // shard k lives only on server k mod 3
	cfg.RegionBytes = protocol.RegionBytes(cfg.NumWorkers, cfg.NumClients, cfg.WindowSize)

	tc := NewTestCluster(t, cfg)
	tc.StartWorkers()
	defer tc.Stop()

	key := store.KeyFromUint64(5)
	shard := placement.ShardForKey(store.BucketOf(key), cfg.NumShards)
	primary := placement.PrimaryForShard(shard, cfg.NumServers)
	wrong := (primary + 1) % cfg.NumServers
	region := tc.regions[wrong]

	var value store.Value
	value[0] = 0xee

	slot := protocol.SlotIndex(0, 0, 0, cfg.NumClients, cfg.WindowSize)
	buf := make([]byte, protocol.SlotSize)
	op := protocol.EncodePut(buf, key, value)
	region.PostWrite(transport.Write{Slot: slot, Data: buf, Op: op}, false)

	require.True(t, waitFor(t, 5*time.Second, func() bool {
		return region.PollOpcode(slot) == protocol.RespWrongServer
	}), "misroute was never refused")

	for s, st := range tc.stores {
		assert.Zero(t, st.Stats().Keys, "server %d executed a misrouted PUT", s)
	}
}
