package protocol

// SlotIndex computes the region slot for a (worker, client, window slot)
// triple:
//
//	worker*numClients*windowSize + client*windowSize + slot
//
// The formula is a bijection over in-bounds triples, so any party knowing
// the three indices locates the cell in constant time with no search and
// no possibility of collision. It is the binding addressing contract
// between clients and workers sharing a region.
func SlotIndex(worker, client, slot, numClients, windowSize int) int {
	return worker*numClients*windowSize + client*windowSize + slot
}

// RegionSlots returns the number of cells a region must hold to cover
// every (worker, client, window slot) triple.
func RegionSlots(numWorkers, numClients, windowSize int) int {
	return numWorkers * numClients * windowSize
}

// RegionBytes returns the byte capacity required for a fully addressed
// region. Capacity is a configuration-time invariant: config validation
// rejects any region smaller than this before a single thread polls.
func RegionBytes(numWorkers, numClients, windowSize int) int {
	return RegionSlots(numWorkers, numClients, windowSize) * SlotSize
}
