// Package inbox polls the reply mailbox over IMAP, stores new replies and
// tracks which of them still need a classification.
//
// Replies are deduplicated on their Message-ID and attributed to a lead by
// sender address. Replies from unknown senders are stored without a lead so
// they still show up in metrics and audits.
package inbox
