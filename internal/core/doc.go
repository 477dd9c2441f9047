// Package core provides the server side of the chunked CSV upload protocol.
//
// This package holds the session lifecycle independent of any transport.
// It is used by the HTTP handlers, the server command, and tests without
// modification.
//
// # Architecture
//
//   - [SessionStore]: process-wide registry of upload sessions. Each session
//     owns a directory under the data dir holding its chunk files, the
//     assembled file and a manifest.
//   - [ChunkAssembler]: validates and stores one chunk per request, keyed by
//     index, so chunks may arrive out of order or be retried.
//   - [Finalizer]: concatenates a complete chunk set in index order, parses
//     it into a preview and caches the result. Concurrent finalize calls for
//     one session share a single run.
//   - [Janitor]: removes sessions idle for longer than the session TTL.
//   - [Service]: wires the above together for the HTTP layer.
//
// # Session Lifecycle
//
// A session moves open → finalizing → finalized, or to failed when assembly
// or parsing fails. Transitions never go backwards:
//
//  1. Client calls [Service.CreateSession]
//  2. Client sends every chunk with [Service.PutChunk]
//  3. Client calls [Service.Finalize]; repeat calls return the cached preview
//  4. [Service.Preview] serves the cached preview until the session expires
//
// # Persistence
//
// Session state is written through a [Journal] after every transition.
// [FileJournal] keeps a session.json next to the chunks; [PostgresJournal]
// stores the same record in the upload_sessions table. [SessionStore.Restore]
// reloads sessions on startup and rescans chunk files on disk.
//
// # Error Handling
//
// Operations return wrapped sentinels ([ErrNotFound], [ErrConflict],
// [ErrIncomplete] and friends) matched with errors.Is. [MapError] converts
// any error to a user-facing message with a support code.
package core
