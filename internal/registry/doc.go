// Package registry persists the imaging-session catalogue in SQLite and
// exposes helpers for driving session, scan-type, report, and user state.
//
// The Store manages database connections, schema initialization, and the
// eligibility queries behind the reporting, export, and repair queues.
// Sessions keep their external study identifier as primary key so repeated
// imports are idempotent, and scan types are interned so a clinical
// confirmation applies to every scan sharing the protocol name.
//
// Treat this package as the single source of truth for status semantics; when
// you add new statuses or fields, update schema.sql and bump schemaVersion.
package registry
