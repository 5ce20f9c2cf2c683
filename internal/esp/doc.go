// Package esp contains the email provider gateways behind the
// ports.EmailProvider interface: the Resend HTTP API, AWS SES v2, and the
// Guard decorator that applies dry-run and recipient allowlisting before
// any network call.
package esp
