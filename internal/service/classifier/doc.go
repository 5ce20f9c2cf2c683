// Package classifier labels inbound replies with deterministic keyword
// patterns. The same subject and body always produce the same category,
// confidence and reason.
package classifier
