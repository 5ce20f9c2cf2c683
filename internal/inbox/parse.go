package inbox

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/ignite/aicmo-cam/internal/contracts"
)

// maxBodyBytes bounds how much of a part is read.
const maxBodyBytes = 256 << 10

var (
	tagRegex     = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRegex   = regexp.MustCompile(`[ \t]+`)
	wroteRegex   = regexp.MustCompile(`(?i)^on .+wrote:\s*$`)
	originalLine = "-----original message-----"
	// Final-Recipient / Original-Recipient fields of a delivery status
	// notification (RFC 3464).
	dsnRecipient = regexp.MustCompile(`(?im)^(?:final|original)-recipient:\s*rfc822;\s*<?([^\s<>]+@[^\s<>]+)>?`)
)

// ParseMessage reads an RFC 5322 message into an InboundReply. The body is
// the first text/plain part, or the first text/html part with tags removed,
// with quoted history trimmed.
func ParseMessage(r io.Reader) (contracts.InboundReply, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return contracts.InboundReply{}, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	var reply contracts.InboundReply
	h := mr.Header

	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		reply.From = strings.ToLower(from[0].Address)
	}
	reply.Subject, _ = h.Subject()
	reply.MessageID, _ = h.MessageID()
	if ids, err := h.MsgIDList("In-Reply-To"); err == nil && len(ids) > 0 {
		reply.InReplyTo = ids[0]
	}
	if date, err := h.Date(); err == nil {
		reply.ReceivedAt = date.UTC()
	}

	var plain, htmlBody string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return contracts.InboundReply{}, fmt.Errorf("read part: %w", err)
		}
		ih, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := ih.ContentType()
		b, err := io.ReadAll(io.LimitReader(p.Body, maxBodyBytes))
		if err != nil {
			return contracts.InboundReply{}, fmt.Errorf("read body: %w", err)
		}
		if reply.OriginalRecipient == "" && (ct == "message/delivery-status" || ct == "text/plain") {
			reply.OriginalRecipient = bouncedRecipient(b)
		}
		switch {
		case ct == "text/plain" && plain == "":
			plain = string(b)
		case ct == "text/html" && htmlBody == "":
			htmlBody = string(b)
		}
	}

	body := plain
	if body == "" && htmlBody != "" {
		body = StripHTML(htmlBody)
	}
	reply.Body = TrimQuoted(body)

	if reply.MessageID == "" {
		reply.MessageID = syntheticID(reply)
	}
	return reply, nil
}

// bouncedRecipient returns the recipient named in a delivery status
// notification, or "".
func bouncedRecipient(b []byte) string {
	m := dsnRecipient.FindSubmatch(b)
	if m == nil {
		return ""
	}
	return strings.ToLower(string(m[1]))
}

// syntheticID derives a stable id for messages that arrive without a
// Message-ID header.
func syntheticID(r contracts.InboundReply) string {
	sum := sha256.Sum256([]byte(r.From + "\x00" + r.Subject + "\x00" + r.ReceivedAt.Format(time.RFC3339) + "\x00" + r.Body))
	return "generated-" + hex.EncodeToString(sum[:16])
}

// StripHTML reduces an HTML body to text.
func StripHTML(s string) string {
	s = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n", "</div>", "\n").Replace(s)
	s = html.UnescapeString(tagRegex.ReplaceAllString(s, ""))
	return strings.TrimSpace(spaceRegex.ReplaceAllString(s, " "))
}

// TrimQuoted drops quoted lines and everything after a reply attribution
// line, leaving what the sender wrote.
func TrimQuoted(s string) string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Buffer(make([]byte, 0, 64<<10), maxBodyBytes)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r ")
		trimmed := strings.TrimSpace(line)
		if wroteRegex.MatchString(trimmed) || strings.EqualFold(trimmed, originalLine) {
			break
		}
		if strings.HasPrefix(trimmed, ">") {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
