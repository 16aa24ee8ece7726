// Package util
//
// This file provides a specialized priority queue for expiry tracking.
//
// This implementation combines a binary heap with a hash map to provide both
// efficient priority-based operations and key-based access. It is used by
// cache engines to find the entries whose expiry instant has passed without
// scanning the whole key space.
//
// Key advantages of this implementation:
//
// 1. Time Complexity:
//   - O(log n) for priority operations (Push, Pop, Update)
//   - O(1) for key-based lookups and existence checks
//   - O(log n) for key-based removal
//   - O(k) for collecting the k due items
//
// 2. Concurrency Considerations:
//   - Note: This implementation is not thread-safe by default
//   - For concurrent use, external synchronization should be applied
//
// Example usage:
//
//	// Create a new queue keyed by string
//	eq := NewMapHeap[string]()
//
//	// Schedule items with expiry instants (e.g. unix nanoseconds)
//	eq.AddItem("a", 1000)
//	eq.AddItem("b", 2000)
//
//	// Get the soonest item
//	soonest, exists := eq.Peek()
//
//	// Remove a specific item (e.g. when the entry is deleted)
//	eq.RemoveByKey("a")
//
//	// Collect all items due at a given instant
//	due := eq.CollectLE(1500)
package util

import (
	"container/heap"
)

// Item represents a scheduled item with a key for identification and an
// int64 priority (typically an expiry instant in unix nanoseconds).
type Item[K comparable] struct {
	Key      K     // Unique identifier for the item
	Priority int64 // Priority used for ordering in the heap
	index    int   // Index in the heap, maintained by heap package
}

// MapHeap implements a min-priority queue with both heap operations and
// key-based access.
type MapHeap[K comparable] struct {
	items    []*Item[K]     // The actual heap slice
	itemsMap map[K]*Item[K] // Map for O(1) access by key
}

// NewMapHeap creates a new empty queue
func NewMapHeap[K comparable]() *MapHeap[K] {
	return &MapHeap[K]{
		items:    make([]*Item[K], 0),
		itemsMap: make(map[K]*Item[K]),
	}
}

// Len returns the number of items in the queue (part of heap.Interface)
func (mh *MapHeap[K]) Len() int { return len(mh.items) }

// Less compares items by priority (part of heap.Interface)
// The soonest instant sits at the root (min-heap).
func (mh *MapHeap[K]) Less(i, j int) bool {
	return mh.items[i].Priority < mh.items[j].Priority
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (mh *MapHeap[K]) Swap(i, j int) {
	mh.items[i], mh.items[j] = mh.items[j], mh.items[i]
	mh.items[i].index = i
	mh.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
func (mh *MapHeap[K]) Push(x interface{}) {
	n := len(mh.items)
	it := x.(*Item[K])
	it.index = n
	mh.items = append(mh.items, it)
	mh.itemsMap[it.Key] = it
}

// Pop removes and returns the minimum item (part of heap.Interface)
func (mh *MapHeap[K]) Pop() interface{} {
	old := mh.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // Avoid memory leak
	it.index = -1  // For safety
	mh.items = old[:n-1]
	delete(mh.itemsMap, it.Key)
	return it
}

// AddItem adds a new item to the queue or updates the priority of an
// existing one.
func (mh *MapHeap[K]) AddItem(key K, priority int64) {
	// Check if item already exists
	if it, exists := mh.itemsMap[key]; exists {
		// Update priority and fix heap
		it.Priority = priority
		heap.Fix(mh, it.index)
		return
	}

	// Create and add new item
	heap.Push(mh, &Item[K]{
		Key:      key,
		Priority: priority,
	})
}

// RemoveByKey removes an item by its key and returns its priority.
func (mh *MapHeap[K]) RemoveByKey(key K) (int64, bool) {
	it, exists := mh.itemsMap[key]
	if !exists {
		return 0, false
	}

	// Remove from heap
	heap.Remove(mh, it.index)
	return it.Priority, true
}

// Peek returns the minimum priority item without removing it
func (mh *MapHeap[K]) Peek() (*Item[K], bool) {
	if len(mh.items) == 0 {
		return nil, false
	}
	return mh.items[0], true
}

// Contains checks if a key exists in the queue
func (mh *MapHeap[K]) Contains(key K) bool {
	_, exists := mh.itemsMap[key]
	return exists
}

// GetByKey retrieves an item by its key without removing it
func (mh *MapHeap[K]) GetByKey(key K) (*Item[K], bool) {
	it, exists := mh.itemsMap[key]
	return it, exists
}

// CollectLE returns the keys of all items whose priority is at or below
// the given bound. The queue is left unchanged; callers remove collected
// items via RemoveByKey once they have acted on them.
func (mh *MapHeap[K]) CollectLE(bound int64) []K {
	if len(mh.items) == 0 {
		return nil
	}

	var (
		due   []K
		stack = []int{0}
	)

	// walk the heap top-down; children of an item above the bound are
	// above the bound too, so whole subtrees are skipped
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if i >= len(mh.items) || mh.items[i].Priority > bound {
			continue
		}

		due = append(due, mh.items[i].Key)
		stack = append(stack, 2*i+1, 2*i+2)
	}

	return due
}
