// Package storage is the persistent key-value store of the options client.
//
// Values are opaque byte slices scoped to an Area, mirroring the storage
// areas a browser extension has: "local" survives restarts on this machine,
// "sync" is shared between installations, "session" is wiped on every start.
//
// Backends:
//   - SQLiteStore keeps every area in one local SQLite file (kv table,
//     goose migrations embedded in internal/client/migrations).
//   - RedisStore keeps an area in Redis; used for "sync" when a Redis
//     address is configured.
//
// Get returns (nil, nil) for a missing key. Callers own the encoding; GetJSON
// and SetJSON cover the common case.
package storage
