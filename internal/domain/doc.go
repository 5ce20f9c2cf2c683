// Package domain defines the persisted data model of the outreach worker:
// leads, campaigns, outbound and inbound email rows, and worker heartbeats.
//
// Types in this package are pure value objects with no database
// dependencies and no transport concerns. They are the shared language
// between services, gateways and repositories.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Status predicates are allowed (they're pure functions on the type)
package domain
