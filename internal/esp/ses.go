package esp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/aicmo-cam/internal/contracts"
)

// SESAPI is the subset of the SES v2 client the sender uses.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender delivers mail through AWS SES v2.
type SESSender struct {
	from   string
	region string
	client SESAPI
}

// NewSESSender loads the default AWS config for region. Static credentials
// are used when both keys are set; otherwise the default chain applies.
func NewSESSender(ctx context.Context, region, accessKey, secretKey, from string) (*SESSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSESSenderWithClient(sesv2.NewFromConfig(cfg), region, from), nil
}

// NewSESSenderWithClient wraps an existing client.
func NewSESSenderWithClient(client SESAPI, region, from string) *SESSender {
	return &SESSender{from: from, region: region, client: client}
}

// Send implements ports.EmailProvider.
func (s *SESSender) Send(ctx context.Context, msg contracts.ProviderMessage) contracts.ProviderResult {
	if !s.IsConfigured() {
		return contracts.ProviderResult{Error: ErrNotConfigured.Error()}
	}
	from := msg.From
	if from == "" {
		from = s.from
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: msg.To},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	keys := make([]string, 0, len(msg.Tags))
	for k := range msg.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		input.EmailTags = append(input.EmailTags, types.MessageTag{Name: aws.String(k), Value: aws.String(msg.Tags[k])})
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		log.Warn("ses send failed", "to_email", strings.Join(msg.To, ","), "error", err)
		return contracts.ProviderResult{Error: fmt.Sprintf("ses send: %v", err)}
	}
	id := aws.ToString(out.MessageId)
	if id == "" {
		return contracts.ProviderResult{Error: "ses response missing message id"}
	}
	return contracts.ProviderResult{Success: true, MessageID: id}
}

func (s *SESSender) ModuleName() string { return "ses" }

func (s *SESSender) IsConfigured() bool {
	return s.client != nil && s.from != ""
}

func (s *SESSender) Health(context.Context) contracts.ModuleHealth {
	h := contracts.ModuleHealth{ModuleName: s.ModuleName(), Status: contracts.HealthHealthy, CheckedAt: time.Now()}
	if !s.IsConfigured() {
		h.Status = contracts.HealthUnhealthy
		h.Message = "SES client or from address missing"
	}
	return h
}
