package esp

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/ports"
)

// Guard wraps a provider with dry-run and recipient allowlisting. Both
// checks happen before the wrapped provider is called.
type Guard struct {
	next      ports.EmailProvider
	dryRun    bool
	allowlist *regexp.Regexp
}

// NewGuard wraps next. An empty allowlist permits every recipient.
func NewGuard(next ports.EmailProvider, dryRun bool, allowlist string) (*Guard, error) {
	g := &Guard{next: next, dryRun: dryRun}
	if allowlist != "" {
		re, err := regexp.Compile(allowlist)
		if err != nil {
			return nil, fmt.Errorf("compile allowlist: %w", err)
		}
		g.allowlist = re
	}
	return g, nil
}

// Send implements ports.EmailProvider.
func (g *Guard) Send(ctx context.Context, msg contracts.ProviderMessage) contracts.ProviderResult {
	if g.allowlist != nil {
		for _, to := range msg.To {
			if !g.allowlist.MatchString(to) {
				log.Info("recipient blocked by allowlist", "to_email", to)
				return contracts.ProviderResult{Rejected: true, Error: ErrNotAllowed.Error()}
			}
		}
	}
	if g.dryRun {
		id := "dryrun-" + uuid.New().String()
		log.Info("dry run: email not sent",
			"to_email", strings.Join(msg.To, ","), "subject", msg.Subject, "message_id", id)
		return contracts.ProviderResult{Success: true, MessageID: id}
	}
	return g.next.Send(ctx, msg)
}

func (g *Guard) ModuleName() string { return g.next.ModuleName() }

// IsConfigured is true in dry-run mode even without provider credentials.
func (g *Guard) IsConfigured() bool {
	return g.dryRun || g.next.IsConfigured()
}

func (g *Guard) Health(ctx context.Context) contracts.ModuleHealth {
	h := g.next.Health(ctx)
	if g.dryRun {
		h.Status = contracts.HealthHealthy
		h.Message = "dry run"
	}
	return h
}
