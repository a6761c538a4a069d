// Package main implements the herdkv bootstrap: it allocates one request
// region per hosted server, starts the worker and client threads, reports
// throughput, and shuts the pipeline down in dependency order on signal.
//
// The bootstrap hosts the whole cluster in one process: every server gets
// its own store engine and request region, every worker and client runs as
// a goroutine pinned to its identity by the immutable configuration it was
// handed at creation. Membership is static for the run: there is no
// discovery, no resharding, and no repair.
//
// Configuration is read from HERD_* environment variables (see the config
// package for the full surface and defaults):
//
//	HERD_NUM_SERVERS=4 \
//	HERD_NUM_SHARDS=4 \
//	HERD_REPLICATION=3 \
//	HERD_NUM_WORKERS=2 \
//	HERD_NUM_CLIENTS=8 \
//	HERD_UPDATE_PERCENT=5 \
//	./herdkv
//
// Configuration errors are fatal before any thread begins polling.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dreamware/herdkv/internal/client"
	"github.com/dreamware/herdkv/internal/config"
	"github.com/dreamware/herdkv/internal/store"
	"github.com/dreamware/herdkv/internal/transport"
	"github.com/dreamware/herdkv/internal/worker"
)

// logFatal is a variable to allow mocking log.Fatalf in tests.
var logFatal = log.Fatalf

// statsInterval is how often the throughput reporter logs.
const statsInterval = 5 * time.Second

// cluster is the in-process cluster: per-server engines and regions, plus
// the worker and client instances driving them.
type cluster struct {
	cfg     config.Config
	stores  []*store.MemoryStore
	regions []transport.Transport
	workers []*worker.Worker
	clients []*client.Client
}

// serverConfig derives the immutable configuration handed to server s's
// workers.
func serverConfig(cfg config.Config, s int) config.Config {
	cfg.ServerID = s
	return cfg
}

// newCluster allocates stores, regions, workers and clients for a
// validated configuration. Nothing starts polling yet.
func newCluster(cfg config.Config) (*cluster, error) {
	c := &cluster{cfg: cfg}

	for s := 0; s < cfg.NumServers; s++ {
		region, err := transport.NewSharedRegion(cfg.RegionSlots())
		if err != nil {
			return nil, err
		}
		st := store.NewMemoryStore()
		c.stores = append(c.stores, st)
		c.regions = append(c.regions, region)

		scfg := serverConfig(cfg, s)
		for w := 0; w < cfg.NumWorkers; w++ {
			c.workers = append(c.workers, worker.New(w, scfg, st, region))
		}
	}

	for i := 0; i < cfg.NumClients; i++ {
		c.clients = append(c.clients, client.New(i, cfg, c.regions))
	}

	return c, nil
}

// workerTotals aggregates worker counters across the cluster.
func workerTotals(workers []*worker.Worker) worker.Stats {
	var t worker.Stats
	for _, w := range workers {
		s := w.Stats()
		t.Gets += s.Gets
		t.Puts += s.Puts
		t.Misses += s.Misses
		t.Drops += s.Drops
	}
	return t
}

// clientTotals aggregates client counters across the cluster.
func clientTotals(clients []*client.Client) client.Stats {
	var t client.Stats
	for _, c := range clients {
		s := c.Stats()
		t.Gets += s.Gets
		t.Puts += s.Puts
		t.Retired += s.Retired
		t.Values += s.Values
		t.NoKeys += s.NoKeys
		t.WrongServer += s.WrongServer
	}
	return t
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logFatal("configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logFatal("invalid configuration: %v", err)
	}

	cl, err := newCluster(cfg)
	if err != nil {
		logFatal("bootstrap: %v", err)
	}

	log.Printf("herdkv: %d servers, %d shards, replication %d", cfg.NumServers, cfg.NumShards, cfg.ReplicationFactor)
	log.Printf("herdkv: %d workers/server, %d clients, window %d, unsig batch %d, postlist %v",
		cfg.NumWorkers, cfg.NumClients, cfg.WindowSize, cfg.UnsigBatch, cfg.Postlist)

	// Workers first, so no client ever publishes into an unpolled region
	// for longer than a scheduling delay.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var workerWg sync.WaitGroup
	for _, w := range cl.workers {
		w := w
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			w.Run(workerCtx)
		}()
	}

	clientCtx, stopClients := context.WithCancel(context.Background())
	var clientWg sync.WaitGroup
	for _, c := range cl.clients {
		c := c
		clientWg.Add(1)
		go func() {
			defer clientWg.Done()
			c.Run(clientCtx)
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	var last worker.Stats
	for running := true; running; {
		select {
		case <-ticker.C:
			t := workerTotals(cl.workers)
			secs := statsInterval.Seconds()
			log.Printf("tput: %.0f gets/s, %.0f puts/s, %.0f drops/s",
				float64(t.Gets-last.Gets)/secs,
				float64(t.Puts-last.Puts)/secs,
				float64(t.Drops-last.Drops)/secs)
			last = t
		case <-stop:
			running = false
		}
	}

	// Tear down in dependency order: clients stop issuing, then workers
	// stop polling. In-flight responses land before workers exit because
	// clients only stop between steps.
	stopClients()
	clientWg.Wait()
	stopWorkers()
	workerWg.Wait()

	wt := workerTotals(cl.workers)
	ct := clientTotals(cl.clients)
	log.Printf("final: executed %d gets (%d misses), %d puts, dropped %d misroutes",
		wt.Gets, wt.Misses, wt.Puts, wt.Drops)
	log.Printf("final: clients issued %d gets, %d puts; retired %d (%d values, %d no-key, %d wrong-server)",
		ct.Gets, ct.Puts, ct.Retired, ct.Values, ct.NoKeys, ct.WrongServer)

	for s, st := range cl.stores {
		stats := st.Stats()
		log.Printf("server[%d]: %d keys, %d bytes", s, stats.Keys, stats.Bytes)
	}
	log.Println("herdkv stopped")
}
