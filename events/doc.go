// Package events carries run lifecycle notifications out of the engine.
//
// Every accepted state transition produces one Event. Emission is strictly
// fire-and-forget: the Worker buffers events and drops on overflow rather
// than ever blocking or failing a run. The Collector emitter records events
// in memory for tests; the RedisPublisher fans them out over Redis pub/sub.
package events
