package placement

// ShardForKey maps a key's hash bucket to its shard. The bucket comes from
// the store engine's bucketing function; it is never recomputed here, so
// every caller that starts from the same key lands on the same shard.
func ShardForKey(bucket uint32, numShards int) int {
	return int(bucket % uint32(numShards))
}

// PrimaryForShard returns the server hosting the primary replica of a
// shard. Writes must be routed here; replica index 0 of ServersForShard is
// always this server.
func PrimaryForShard(shardID, numServers int) int {
	return shardID % numServers
}

// ServersForShard returns the ordered replica set for a shard: a ring of
// replicationFactor consecutive servers starting at the primary, wrapping
// modulo numServers. Index 0 is the primary.
//
// Callers must have validated replicationFactor <= numServers at
// configuration time; the ring is meaningless otherwise.
func ServersForShard(shardID, numServers, replicationFactor int) []int {
	servers := make([]int, replicationFactor)
	for i := 0; i < replicationFactor; i++ {
		servers[i] = (shardID + i) % numServers
	}
	return servers
}

// ServerOwnsShard reports whether a server appears anywhere in the shard's
// replica ring. This is the worker hot-path filter: it walks the ring in
// O(replicationFactor) and never allocates.
func ServerOwnsShard(serverID, shardID, numServers, replicationFactor int) bool {
	for i := 0; i < replicationFactor; i++ {
		if (shardID+i)%numServers == serverID {
			return true
		}
	}
	return false
}

// KeyBelongsToServer is the single entry point for workers: it resolves
// the bucket to a shard and tests ring membership in one call.
func KeyBelongsToServer(bucket uint32, serverID, numServers, numShards, replicationFactor int) bool {
	shardID := ShardForKey(bucket, numShards)
	return ServerOwnsShard(serverID, shardID, numServers, replicationFactor)
}
