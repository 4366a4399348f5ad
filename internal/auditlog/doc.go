// Package auditlog stores one record per API call.
//
// Two Store implementations exist:
//   - PostgresStore: the api_call table via pgx, created on startup if missing
//   - MemoryStore: an in-process log for local runs and tests
//
// Records are written once by the pricing handler. Update and the delete
// operations exist for administrators and are never used on the request path.
package auditlog
