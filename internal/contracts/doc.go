// Package contracts defines the versioned request, response and event shapes
// exchanged across port boundaries.
//
// Every result type carries Success and Error fields: ports never panic and
// never return Go errors to their callers. Request types carry validate tags
// checked by Validate before a service acts on them.
package contracts
