// Package core provides the fleet operations: endpoint checks, parameterized
// queries, query books, CSV import and TCP port checks.
//
// The package holds all domain logic independent of any UI or transport
// layer. The web server, the CLI and the scheduler all drive it through
// [Service].
//
// # Architecture
//
//   - Input: [ReadTable] buffers CSV input after charset decoding and BOM
//     removal, enforcing [Limits].
//   - Checker: [Checker] probes endpoints one at a time; a failing endpoint
//     never stops the batch.
//   - Executor: [Executor] runs one @key template per parameter row.
//   - Importer: [Importer] loads source files into tables, opening one
//     connection per database and skipping identity and computed columns.
//   - Reports: results flatten to records for any [Sink].
//   - History: every run is kept in memory ([History]) and optionally
//     recorded in an [ExecLog].
//
// Database access goes through the dialect package; core never imports a
// driver directly.
//
// # Error Handling
//
// Per-unit failures (one endpoint, one parameter row, one mapping) are
// recorded in the unit's result. Only input shape problems fail a whole run.
// Technical errors are mapped to operator-facing messages with [MapError].
package core
