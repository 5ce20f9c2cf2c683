package inbox

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainReply = "From: Ada Lovelace <Ada@Example.com>\r\n" +
	"To: sales@ourco.test\r\n" +
	"Subject: Re: Idea for Acme\r\n" +
	"Message-ID: <reply-1@example.com>\r\n" +
	"In-Reply-To: <orig-1@ourco.test>\r\n" +
	"Date: Mon, 10 Mar 2025 09:30:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Sounds interesting, let's set up a call.\r\n" +
	"\r\n" +
	"On Fri, Mar 7, 2025 at 10:00 AM Sales <sales@ourco.test> wrote:\r\n" +
	"> Are you interested in a short intro?\r\n"

const htmlReply = "From: bob@example.com\r\n" +
	"Subject: Re: hello\r\n" +
	"Message-ID: <reply-2@example.com>\r\n" +
	"Date: Mon, 10 Mar 2025 10:00:00 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Please <b>remove</b> me &amp; stop.</p>\r\n" +
	"--b1--\r\n"

func TestParseMessage_PlainText(t *testing.T) {
	reply, err := ParseMessage(strings.NewReader(plainReply))
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", reply.From)
	assert.Equal(t, "Re: Idea for Acme", reply.Subject)
	assert.Equal(t, "reply-1@example.com", reply.MessageID)
	assert.Equal(t, "orig-1@ourco.test", reply.InReplyTo)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC), reply.ReceivedAt)
	assert.Equal(t, "Sounds interesting, let's set up a call.", reply.Body)
}

func TestParseMessage_HTMLOnly(t *testing.T) {
	reply, err := ParseMessage(strings.NewReader(htmlReply))
	require.NoError(t, err)
	assert.Equal(t, "Please remove me & stop.", reply.Body)
}

func TestParseMessage_SyntheticMessageID(t *testing.T) {
	raw := strings.Replace(plainReply, "Message-ID: <reply-1@example.com>\r\n", "", 1)

	a, err := ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)
	b, err := ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a.MessageID, "generated-"))
	assert.Equal(t, a.MessageID, b.MessageID)
}

func TestTrimQuoted(t *testing.T) {
	in := "Not now, thanks.\n\n-----Original Message-----\nFrom: sales\nInterested?"
	assert.Equal(t, "Not now, thanks.", TrimQuoted(in))
	assert.Equal(t, "keep\nthis", TrimQuoted("keep\n> drop\nthis"))
}

const bounceReport = "From: MAILER-DAEMON@mx.ourco.test\r\n" +
	"Subject: Undelivered Mail Returned to Sender\r\n" +
	"Message-ID: <dsn-1@mx.ourco.test>\r\n" +
	"Date: Mon, 10 Mar 2025 11:00:00 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/report; report-type=delivery-status; boundary=\"r1\"\r\n" +
	"\r\n" +
	"--r1\r\n" +
	"Content-Type: text/plain; charset=us-ascii\r\n" +
	"\r\n" +
	"I'm sorry to have to inform you that your message could not be delivered.\r\n" +
	"--r1\r\n" +
	"Content-Type: message/delivery-status\r\n" +
	"\r\n" +
	"Reporting-MTA: dns; mx.ourco.test\r\n" +
	"\r\n" +
	"Final-Recipient: rfc822; <Jane@Acme.io>\r\n" +
	"Action: failed\r\n" +
	"Status: 5.1.1\r\n" +
	"--r1--\r\n"

func TestParseMessage_DeliveryStatusRecipient(t *testing.T) {
	reply, err := ParseMessage(strings.NewReader(bounceReport))
	require.NoError(t, err)

	assert.Equal(t, "mailer-daemon@mx.ourco.test", reply.From)
	assert.Equal(t, "jane@acme.io", reply.OriginalRecipient)
	assert.Contains(t, reply.Body, "could not be delivered")
}

func TestParseMessage_NoRecipientForOrdinaryReply(t *testing.T) {
	reply, err := ParseMessage(strings.NewReader(plainReply))
	require.NoError(t, err)
	assert.Empty(t, reply.OriginalRecipient)
}
