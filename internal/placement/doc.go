// Package placement implements deterministic, coordinator-free shard and
// replica placement for the cluster.
//
// # Overview
//
// Placement is a pure function of a key's hash bucket and three static
// cluster parameters (number of shards, number of servers, replication
// factor). Any process can answer "who owns this key?" from arithmetic
// alone: there is no directory service, no cached assignment table, and
// therefore no invalidation protocol. This matters because the primary
// consumer is the worker polling loop, which runs the ownership test on
// every polled request and cannot afford a lock or a remote lookup.
//
// # Placement scheme
//
// Keys hash to buckets (in the store engine), buckets map to shards by
// modulo, and each shard's replicas occupy a contiguous ring of servers
// starting at the shard's primary:
//
//	bucket ──mod numShards──▶ shard ──mod numServers──▶ primary
//	                            │
//	                            └─▶ replicas: primary, primary+1, ... (mod numServers)
//
// With four servers, four shards, and replication factor three, shard k is
// owned by servers {k, k+1, k+2} mod 4, so server 2 owns shards 0, 1 and 2
// but not shard 3.
//
// # Invariants
//
//   - ServersForShard(s, n, r)[0] == PrimaryForShard(s, n) for all valid
//     inputs.
//   - ServerOwnsShard is exactly membership in ServersForShard, computed
//     without materializing the ring.
//   - Results are recomputed per query and never cached; the functions are
//     cheap enough that a cache would cost more than it saves.
//
// All functions assume replicationFactor <= numServers and positive
// counts. That precondition is enforced once, at configuration time, by
// the config package, not per call, since these run millions of times a
// second on the polling path.
package placement
