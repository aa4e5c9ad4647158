// Package results persists and retrieves task run result payloads.
//
// A Store writes opaque JSON payloads under string keys and hands back a
// ResultRef that states reference. Backends: in-memory (tests, ephemeral
// runs), local filesystem, and Redis for distributed deployments.
//
// A missing or unreadable payload surfaces as ErrNotFound; during cache
// lookups callers treat that as a miss, never as a hard error.
package results
