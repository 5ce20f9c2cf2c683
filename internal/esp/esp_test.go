package esp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/pkg/httpretry"
)

func testMessage() contracts.ProviderMessage {
	return contracts.ProviderMessage{
		To:       []string{"jane@acme.io"},
		Subject:  "Quick question",
		HTMLBody: "<p>Hi Jane</p>",
		Tags:     map[string]string{"lead_id": "l1", "campaign_id": "c1"},
	}
}

func TestResendSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))

		var body resendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Sales <sales@us.io>", body.From)
		assert.Equal(t, []string{"jane@acme.io"}, body.To)
		require.Len(t, body.Tags, 2)
		assert.Equal(t, "campaign_id", body.Tags[0].Name)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_123"}`))
	}))
	defer srv.Close()

	s := NewResendSender("re_test", "Sales <sales@us.io>", srv.URL, 5*time.Second)
	res := s.Send(context.Background(), testMessage())
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, "msg_123", res.MessageID)
}

func TestResendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"validation_error","message":"Invalid from field"}`))
	}))
	defer srv.Close()

	s := NewResendSenderWithClient("re_test", "sales@us.io", srv.URL,
		httpretry.NewRetryClient(srv.Client(), 1, httpretry.WithBackoff(time.Millisecond, time.Millisecond)))
	res := s.Send(context.Background(), testMessage())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "422")
	assert.Contains(t, res.Error, "Invalid from field")
}

func TestResendNotConfigured(t *testing.T) {
	s := NewResendSender("", "", "", time.Second)
	assert.False(t, s.IsConfigured())
	res := s.Send(context.Background(), testMessage())
	assert.False(t, res.Success)
	assert.Equal(t, contracts.HealthUnhealthy, s.Health(context.Background()).Status)
}

type fakeSES struct {
	in  *sesv2.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSESSend(t *testing.T) {
	fake := &fakeSES{}
	s := NewSESSenderWithClient(fake, "us-east-1", "sales@us.io")

	res := s.Send(context.Background(), testMessage())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "ses-1", res.MessageID)
	assert.Equal(t, "sales@us.io", aws.ToString(fake.in.FromEmailAddress))
	assert.Equal(t, []string{"jane@acme.io"}, fake.in.Destination.ToAddresses)
	require.Len(t, fake.in.EmailTags, 2)
	assert.Equal(t, "campaign_id", aws.ToString(fake.in.EmailTags[0].Name))

	fake.err = errors.New("throttled")
	res = s.Send(context.Background(), testMessage())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "throttled")
}

type countingProvider struct {
	calls int
}

func (c *countingProvider) Send(context.Context, contracts.ProviderMessage) contracts.ProviderResult {
	c.calls++
	return contracts.ProviderResult{Success: true, MessageID: "real-1"}
}
func (c *countingProvider) ModuleName() string { return "counting" }
func (c *countingProvider) IsConfigured() bool { return false }
func (c *countingProvider) Health(context.Context) contracts.ModuleHealth {
	return contracts.ModuleHealth{ModuleName: "counting", Status: contracts.HealthUnhealthy}
}

func TestGuardDryRun(t *testing.T) {
	next := &countingProvider{}
	g, err := NewGuard(next, true, "")
	require.NoError(t, err)

	res := g.Send(context.Background(), testMessage())
	assert.True(t, res.Success)
	assert.True(t, strings.HasPrefix(res.MessageID, "dryrun-"))
	assert.Equal(t, 0, next.calls)
	assert.True(t, g.IsConfigured())
	assert.True(t, g.Health(context.Background()).Healthy())
}

func TestGuardAllowlist(t *testing.T) {
	next := &countingProvider{}
	g, err := NewGuard(next, false, `@acme\.io$`)
	require.NoError(t, err)

	res := g.Send(context.Background(), testMessage())
	assert.True(t, res.Success)
	assert.Equal(t, "real-1", res.MessageID)

	blocked := testMessage()
	blocked.To = []string{"someone@else.com"}
	res = g.Send(context.Background(), blocked)
	assert.False(t, res.Success)
	assert.True(t, res.Rejected)
	assert.Equal(t, 1, next.calls)
	assert.False(t, g.IsConfigured())
}

func TestGuardBadRegex(t *testing.T) {
	_, err := NewGuard(&countingProvider{}, false, "([")
	assert.Error(t, err)
}
