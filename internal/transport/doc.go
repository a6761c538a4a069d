// Package transport provides the region I/O interface consumed by workers
// and clients, and an in-process shared-memory implementation of it.
//
// The interface mirrors what a one-sided RDMA transport offers: register a
// region once, post writes (optionally chained into a single list),
// request a signaled completion only periodically, and poll for
// completions instead of waiting on them. The contract the rest of the
// system relies on is visibility order: writes within one submission
// become visible in submission order, and a signaled completion is never
// reported before every prior unsignaled write on the region is visible.
package transport
