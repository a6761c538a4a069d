// Package config defines the immutable per-run configuration shared by
// bootstrap, workers and clients, and validates it once at startup.
//
// Every worker and client receives a Config by value at creation. There is
// no ambient global parameter state: a thread's identity and the cluster
// shape travel together in the struct it was handed.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dreamware/herdkv/internal/protocol"
)

// Reference defaults. These match the tuned values the system ships with;
// every one can be overridden through the environment.
const (
	DefaultNumServers        = 4
	DefaultNumShards         = 4
	DefaultReplicationFactor = 3
	DefaultNumWorkers        = 12
	DefaultNumClients        = 70
	DefaultWindowSize        = 32
	DefaultUnsigBatch        = 64
	DefaultUpdatePercent     = 5
	DefaultNumKeys           = 8 * 1024 * 1024
	DefaultRegionBytes       = 16 * 1024 * 1024
)

// Config carries the sharding, replication and pipelining parameters for
// one run. It is immutable after Validate and safe to copy freely.
type Config struct {
	// ServerID identifies the server instance a worker belongs to, in
	// [0, NumServers). Bootstrap assigns it when deriving each hosted
	// server's configuration; it is not an environment knob.
	ServerID int

	// NumServers, NumShards and ReplicationFactor define placement for
	// the whole cluster and must agree across every process in a run.
	NumServers        int
	NumShards         int
	ReplicationFactor int

	// NumWorkers and NumClients size the request region together with
	// WindowSize, the per-(client, worker) outstanding-request bound.
	NumWorkers int
	NumClients int
	WindowSize int

	// UnsigBatch is the completion-signaling cadence: one signaled write
	// per UnsigBatch responses, the rest fire-and-forget.
	UnsigBatch int

	// Postlist chains each polling sweep's responses into a single
	// submission when set.
	Postlist bool

	// UpdatePercent is the share of generated requests that are PUTs,
	// in [0, 100]. Workload shaping only; never affects correctness.
	UpdatePercent int

	// NumKeys bounds the key population clients draw from.
	NumKeys int

	// RegionBytes is the request region capacity.
	RegionBytes int
}

// Validate checks every configuration-time invariant. It must be called
// before any worker or client starts; a bad cluster shape can only
// produce silently wrong placement, so violations are fatal at startup.
func (c Config) Validate() error {
	for _, p := range []struct {
		name string
		v    int
	}{
		{"num servers", c.NumServers},
		{"num shards", c.NumShards},
		{"replication factor", c.ReplicationFactor},
		{"num workers", c.NumWorkers},
		{"num clients", c.NumClients},
		{"window size", c.WindowSize},
		{"unsignaled batch", c.UnsigBatch},
		{"num keys", c.NumKeys},
	} {
		if p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.v)
		}
	}

	if c.ReplicationFactor > c.NumServers {
		return fmt.Errorf("replication factor %d exceeds server count %d",
			c.ReplicationFactor, c.NumServers)
	}
	if c.ServerID < 0 || c.ServerID >= c.NumServers {
		return fmt.Errorf("server ID %d outside [0, %d)", c.ServerID, c.NumServers)
	}
	if c.UpdatePercent < 0 || c.UpdatePercent > 100 {
		return fmt.Errorf("update percentage %d outside [0, 100]", c.UpdatePercent)
	}

	if need := protocol.RegionBytes(c.NumWorkers, c.NumClients, c.WindowSize); c.RegionBytes < need {
		return fmt.Errorf("region capacity %d below required %d (%d workers x %d clients x window %d)",
			c.RegionBytes, need, c.NumWorkers, c.NumClients, c.WindowSize)
	}

	return nil
}

// RegionSlots returns the cell count a region for this configuration holds.
func (c Config) RegionSlots() int {
	return protocol.RegionSlots(c.NumWorkers, c.NumClients, c.WindowSize)
}

// FromEnv builds a Config from HERD_* environment variables, falling back
// to the reference defaults for anything unset.
func FromEnv() (Config, error) {
	c := Config{
		NumServers:        DefaultNumServers,
		NumShards:         DefaultNumShards,
		ReplicationFactor: DefaultReplicationFactor,
		NumWorkers:        DefaultNumWorkers,
		NumClients:        DefaultNumClients,
		WindowSize:        DefaultWindowSize,
		UnsigBatch:        DefaultUnsigBatch,
		Postlist:          true,
		UpdatePercent:     DefaultUpdatePercent,
		NumKeys:           DefaultNumKeys,
		RegionBytes:       DefaultRegionBytes,
	}

	for _, p := range []struct {
		key string
		dst *int
	}{
		{"HERD_NUM_SERVERS", &c.NumServers},
		{"HERD_NUM_SHARDS", &c.NumShards},
		{"HERD_REPLICATION", &c.ReplicationFactor},
		{"HERD_NUM_WORKERS", &c.NumWorkers},
		{"HERD_NUM_CLIENTS", &c.NumClients},
		{"HERD_WINDOW_SIZE", &c.WindowSize},
		{"HERD_UNSIG_BATCH", &c.UnsigBatch},
		{"HERD_UPDATE_PERCENT", &c.UpdatePercent},
		{"HERD_NUM_KEYS", &c.NumKeys},
		{"HERD_REGION_BYTES", &c.RegionBytes},
	} {
		if v := os.Getenv(p.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return Config{}, fmt.Errorf("bad %s %q: %w", p.key, v, err)
			}
			*p.dst = n
		}
	}

	if v := os.Getenv("HERD_POSTLIST"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("bad HERD_POSTLIST %q: %w", v, err)
		}
		c.Postlist = on
	}

	return c, nil
}
