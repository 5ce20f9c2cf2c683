package classifier

import (
	"regexp"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// rule is one category's phrase list and its confidence normalizer: k
// matching phrases give full confidence.
type rule struct {
	category domain.Classification
	k        float64
	phrases  []string
	res      []*regexp.Regexp
}

func newRule(c domain.Classification, k float64, phrases ...string) *rule {
	r := &rule{category: c, k: k, phrases: phrases}
	for _, p := range phrases {
		r.res = append(r.res, regexp.MustCompile(`\b`+regexp.QuoteMeta(p)+`\b`))
	}
	return r
}

var (
	oooRule = newRule(domain.ClassOOO, 2,
		"out of office", "out of the office", "automatic reply", "auto-reply",
		"autoreply", "auto reply", "on vacation", "on holiday", "on leave",
		"parental leave", "away from the office", "currently away",
		"limited access to email", "will be back", "return on", "returning on",
	)
	bounceRule = newRule(domain.ClassBounce, 2,
		"delivery status notification", "undeliverable", "mail delivery failed",
		"delivery has failed", "delivery failure", "address not found",
		"mailbox unavailable", "mailbox not found", "user unknown",
		"message not delivered", "returned mail", "mailer-daemon",
		"recipient address rejected", "does not exist",
	)
	unsubRule = newRule(domain.ClassUnsub, 1,
		"unsubscribe", "remove me", "take me off", "opt out", "opt-out",
		"stop emailing", "stop contacting", "do not contact", "don't contact",
		"do not email", "don't email", "no more emails",
	)
	negativeRule = newRule(domain.ClassNegative, 2,
		"not interested", "no thanks", "no thank you", "not a fit",
		"not a good fit", "not right now", "not at this time", "no need",
		"we're all set", "we are all set", "already have a", "pass on this",
		"not looking", "not for us",
	)
	positiveRule = newRule(domain.ClassPositive, 3,
		"interested", "let's talk", "lets talk", "let's chat", "schedule a call",
		"book a call", "set up a call", "hop on a call", "sounds good",
		"sounds great", "tell me more", "learn more", "love to", "happy to chat",
		"send over", "demo", "calendar", "meeting", "next week", "works for me",
	)
)
