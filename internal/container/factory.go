package container

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/aicmo-cam/internal/alert"
	"github.com/ignite/aicmo-cam/internal/config"
	"github.com/ignite/aicmo-cam/internal/domain"
	"github.com/ignite/aicmo-cam/internal/esp"
	"github.com/ignite/aicmo-cam/internal/events"
	"github.com/ignite/aicmo-cam/internal/inbox"
	"github.com/ignite/aicmo-cam/internal/journal"
	"github.com/ignite/aicmo-cam/internal/metrics"
	"github.com/ignite/aicmo-cam/internal/pkg/distlock"
	"github.com/ignite/aicmo-cam/internal/ports"
	"github.com/ignite/aicmo-cam/internal/registry"
	"github.com/ignite/aicmo-cam/internal/render"
	"github.com/ignite/aicmo-cam/internal/repository/memory"
	"github.com/ignite/aicmo-cam/internal/repository/postgres"
	"github.com/ignite/aicmo-cam/internal/service/classifier"
	"github.com/ignite/aicmo-cam/internal/service/decision"
	"github.com/ignite/aicmo-cam/internal/service/followup"
	"github.com/ignite/aicmo-cam/internal/service/nurture"
	"github.com/ignite/aicmo-cam/internal/service/sending"
)

// LockName scopes the worker heartbeat lock.
const LockName = "cam-worker"

// Deps are the shared connections CreateDefault builds modules on. With a
// nil DB the modules run on an in-memory store.
type Deps struct {
	DB      *sql.DB
	Redis   *redis.Client
	Store   *memory.Store
	Metrics *metrics.Recorder
	// IMAPDialer overrides the TLS dialer of the mailbox gateway.
	IMAPDialer inbox.Dialer
}

type leadStore interface {
	sending.LeadRepository
	nurture.LeadRepository
	followup.LeadRepository
	inbox.LeadFinder
}

type outboundStore interface {
	sending.OutboundRepository
	nurture.OutboundRepository
	followup.OutboundRepository
	decision.DeliveryCounter
}

type inboundStore interface {
	inbox.InboundRepository
	alert.InboundRepository
	decision.ReplyCounter
}

type campaignStore interface {
	decision.CampaignRepository
	EnsureByName(ctx context.Context, name string) (*domain.Campaign, error)
}

type stores struct {
	leads     leadStore
	outbound  outboundStore
	inbound   inboundStore
	campaigns campaignStore
}

func newStores(deps Deps) stores {
	if deps.DB != nil {
		return stores{
			leads:     postgres.NewLeadRepo(deps.DB),
			outbound:  postgres.NewOutboundRepo(deps.DB),
			inbound:   postgres.NewInboundRepo(deps.DB),
			campaigns: postgres.NewCampaignRepo(deps.DB),
		}
	}
	st := deps.Store
	if st == nil {
		st = memory.NewStore()
	}
	log.Warn("no database configured, using in-memory store")
	return stores{
		leads:     st.Leads(),
		outbound:  st.Outbound(),
		inbound:   st.Inbound(),
		campaigns: st.Campaigns(),
	}
}

// CreateDefault builds every module from cfg, registers it in a new
// container and records it in a new registry. A module that cannot be
// constructed is registered disabled; a module that is built but not
// configured is registered enabled and unhealthy. Neither stops startup.
func CreateDefault(ctx context.Context, cfg *config.Config, deps Deps) (*Container, *registry.Registry) {
	c := New()
	reg := registry.New(cfg.Worker.CriticalCapabilities)
	st := newStores(deps)
	renderer := render.New()

	var publisher ports.Events = events.Nop{}
	if cfg.Events.SQSQueueURL != "" {
		sqsPub, err := events.NewSQSPublisher(ctx, cfg.Events.Region, cfg.Events.SQSQueueURL)
		install(reg, "events", []string{ports.CapEventsPublish}, sqsPub, err)
		if err == nil {
			publisher = sqsPub
		}
	} else {
		install(reg, "events", []string{ports.CapEventsPublish}, events.Nop{}, nil)
	}
	Register(c, EventsKey, publisher)

	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.NewRecorder()
	}
	install(reg, "metrics", []string{ports.CapMeteringRecord}, recorder, nil)
	Register(c, MeteringKey, ports.Metering(recorder))

	provider, err := newProvider(ctx, cfg.Email)
	providerName := "email-provider"
	if provider != nil {
		providerName = provider.ModuleName()
	}
	install(reg, providerName, []string{ports.CapEmailProvider}, provider, err)
	if provider != nil {
		Register(c, EmailProviderKey, ports.EmailProvider(provider))
	}

	var sender *sending.Service
	if provider != nil {
		sender = sending.NewService(st.outbound, st.leads, provider, renderer, sending.Config{
			From:        cfg.Email.FromEmail,
			DailyCap:    cfg.Email.DailyCap,
			BatchCap:    cfg.Email.BatchCap,
			RetryFailed: cfg.Email.RetryFailed,
		}, sending.WithEvents(publisher))
		install(reg, sender.ModuleName(), []string{ports.CapEmailSend}, sender, nil)
		Register(c, EmailKey, ports.Email(sender))
	} else {
		install(reg, "email", []string{ports.CapEmailSend}, nil, errors.New("no email provider"))
	}

	cls := classifier.NewService()
	install(reg, cls.ModuleName(), []string{ports.CapReplyClassify}, cls, nil)
	Register(c, ClassificationKey, ports.Classification(cls))

	fu := followup.NewService(st.leads, st.outbound, publisher, followup.Policy{
		AllowRequalification: cfg.FollowUp.AllowRequalification,
	})
	install(reg, fu.ModuleName(), []string{ports.CapFollowUp}, fu, nil)
	Register(c, FollowUpKey, ports.FollowUp(fu))

	var poller *inbox.IMAPPoller
	if deps.IMAPDialer != nil {
		poller = inbox.NewIMAPPollerWithDialer(cfg.IMAP, deps.IMAPDialer)
	} else {
		poller = inbox.NewIMAPPoller(cfg.IMAP)
	}
	ib := inbox.NewService(poller, st.inbound, st.leads,
		inbox.WithEvents(publisher),
		inbox.WithPollInterval(cfg.IMAP.PollInterval()))
	install(reg, ib.ModuleName(), []string{ports.CapInboxFetch}, ib, nil)
	Register(c, InboxKey, ports.Inbox(ib))

	dec := decision.NewService(st.campaigns, st.outbound, st.inbound, publisher, decision.Policy{
		AutoPauseEnabled:   cfg.Decision.AutoPauseEnabled,
		ReplyRateThreshold: cfg.Decision.ReplyRateThreshold,
		MinSendsToEvaluate: cfg.Decision.MinSendsToEvaluate,
	})
	install(reg, dec.ModuleName(), []string{ports.CapDecision}, dec, nil)
	Register(c, DecisionKey, ports.Decision(dec))

	if sender != nil {
		nu := nurture.NewService(st.leads, st.outbound, sender, nurture.Config{
			NoReplyWindow:   cfg.Nurture.NoReplyWindow(),
			DefaultSequence: cfg.Nurture.DefaultSequence,
		})
		install(reg, nu.ModuleName(), []string{ports.CapNurture}, nu, nil)
		Register(c, NurtureKey, ports.Nurture(nu))

		notifier := alert.NewNotifier(provider, st.inbound, st.leads, renderer, cfg.Email.FromEmail, cfg.Alert.Emails)
		install(reg, notifier.ModuleName(), []string{ports.CapAlertSend}, notifier, nil)
		Register(c, AlertKey, ports.Alert(notifier))
	} else {
		install(reg, "nurture", []string{ports.CapNurture}, nil, errors.New("no email service"))
		install(reg, "alert", []string{ports.CapAlertSend}, nil, errors.New("no email provider"))
	}

	lockPort := distlock.NewPort(newHeartbeat(cfg.Worker, deps))
	install(reg, lockPort.ModuleName(), []string{ports.CapWorkerLock}, lockPort, nil)
	Register(c, LockKey, ports.Lock(lockPort))

	bootstrapCampaign(ctx, st.campaigns, cfg.Campaign.DefaultName)

	log.Info("container built", "services", len(c.Names()), "modules", len(reg.Snapshot().Modules()))
	return c, reg
}

// NewJournal returns the S3 journal when a bucket is configured, falling
// back to the log journal when none is or the client cannot be built.
func NewJournal(ctx context.Context, cfg config.JournalConfig) journal.Sink {
	if cfg.S3Bucket == "" {
		return journal.LogSink{}
	}
	sink, err := journal.NewS3Sink(ctx, cfg.Region, cfg.S3Bucket, cfg.S3Prefix)
	if err != nil {
		log.Warn("s3 journal unavailable, logging cycles instead", "bucket", cfg.S3Bucket, "error", err)
		return journal.LogSink{}
	}
	return sink
}

func newProvider(ctx context.Context, cfg config.EmailConfig) (ports.EmailProvider, error) {
	var next ports.EmailProvider
	switch cfg.Provider {
	case "ses":
		ses, err := esp.NewSESSender(ctx, cfg.SESRegion, cfg.SESAccessKey, cfg.SESSecretKey, cfg.FromEmail)
		if err != nil {
			return nil, err
		}
		next = ses
	default:
		next = esp.NewResendSender(cfg.ResendAPIKey, cfg.FromEmail, cfg.ResendBaseURL, cfg.Timeout())
	}
	if !cfg.DryRun && cfg.AllowlistRegex == "" {
		return next, nil
	}
	guard, err := esp.NewGuard(next, cfg.DryRun, cfg.AllowlistRegex)
	if err != nil {
		return nil, err
	}
	return guard, nil
}

func newHeartbeat(cfg config.WorkerConfig, deps Deps) distlock.Heartbeat {
	switch {
	case cfg.LockBackend == "redis" && deps.Redis != nil:
		return distlock.NewRedisLock(deps.Redis, LockName)
	case cfg.LockBackend == "redis":
		log.Warn("redis lock backend requested without REDIS_URL, falling back", "backend", cfg.LockBackend)
	}
	return distlock.NewLock(nil, deps.DB, LockName)
}

func bootstrapCampaign(ctx context.Context, campaigns campaignStore, name string) {
	if name == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	camp, err := campaigns.EnsureByName(ctx, name)
	if err != nil {
		log.Warn("default campaign not ensured", "name", name, "error", err)
		return
	}
	log.Info("default campaign ready", "campaign_id", camp.ID, "name", camp.Name, "status", string(camp.Status))
}

// install records a module in the registry. A construction error registers
// it disabled; otherwise it is enabled and its health reflects
// IsConfigured until the first probe.
func install(reg *registry.Registry, name string, caps []string, impl ports.Health, err error) {
	if err != nil {
		log.Warn("module construction failed, registering disabled", "module", name, "error", err)
		_ = reg.Register(name, caps, false)
		_ = reg.SetHealth(name, false, err.Error())
		return
	}
	if regErr := reg.Register(name, caps, true); regErr != nil {
		log.Warn("module registration failed", "module", name, "error", regErr)
		return
	}
	reg.AttachProbe(name, impl)
	if impl.IsConfigured() {
		_ = reg.SetHealth(name, true, "configured")
		return
	}
	log.Warn("module not configured", "module", name)
	_ = reg.SetHealth(name, false, "not configured")
}
