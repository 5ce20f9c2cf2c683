// Package sending implements the Email Sending Service: template rendering,
// idempotent row creation keyed on (lead, content hash, sequence number),
// daily and per-batch caps, provider dispatch and queue draining.
//
// Every attempt is persisted before the provider is called, so a crash
// between the two leaves a QUEUED row that the next drain picks up.
package sending
