// Package cache computes result fingerprints and short-circuits task
// execution when a live prior result exists.
//
// A Policy turns a run's inputs into a cache key; returning no key disables
// caching for that attempt. The Bridge pairs a policy with a result store:
// before execution it looks for a live record under the key, and after a
// successful attempt it persists the new value under the same key. A record
// whose payload has been deleted or corrupted externally counts as a miss,
// never as an error.
package cache
