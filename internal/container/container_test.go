package container

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/aicmo-cam/internal/config"
	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/domain"
	"github.com/ignite/aicmo-cam/internal/pkg/distlock"
	"github.com/ignite/aicmo-cam/internal/ports"
	"github.com/ignite/aicmo-cam/internal/repository/memory"
)

type stubMetering struct{ n int }

func (s *stubMetering) RecordCycle(contracts.CycleResult) { s.n++ }

func TestTypedKeys(t *testing.T) {
	c := New()
	m := &stubMetering{}
	Register(c, MeteringKey, ports.Metering(m))

	got, ok := Get(c, MeteringKey)
	require.True(t, ok)
	got.RecordCycle(contracts.CycleResult{})
	assert.Equal(t, 1, m.n)
	assert.True(t, Has(c, MeteringKey))

	alert, ok := Get(c, AlertKey)
	assert.False(t, ok)
	assert.Nil(t, alert)
	assert.False(t, Has(c, AlertKey))
	assert.Equal(t, []string{ports.CapMeteringRecord}, c.Names())
}

func TestGetWrongTypeIsAbsent(t *testing.T) {
	c := New()
	c.services[ports.CapAlertSend] = "not an alert"

	_, ok := Get(c, AlertKey)
	assert.False(t, ok)
}

func TestCreateDefaultUnconfigured(t *testing.T) {
	cfg := config.Defaults()
	store := memory.NewStore()

	c, reg := CreateDefault(context.Background(), cfg, Deps{Store: store})

	for _, name := range []string{
		ports.CapEmailSend, ports.CapEmailProvider, ports.CapReplyClassify, ports.CapFollowUp,
		ports.CapInboxFetch, ports.CapDecision, ports.CapNurture, ports.CapAlertSend,
		ports.CapWorkerLock, ports.CapMeteringRecord, ports.CapEventsPublish,
	} {
		assert.Contains(t, c.Names(), name)
	}

	state := reg.Snapshot()
	email, ok := state.Module("email")
	require.True(t, ok)
	assert.True(t, email.Enabled)
	assert.Equal(t, contracts.HealthUnhealthy, email.Health)
	assert.Equal(t, "not configured", email.StatusMessage)

	assert.True(t, state.Available(ports.CapReplyClassify))
	assert.True(t, state.Available(ports.CapDecision))
	assert.False(t, state.Available(ports.CapInboxFetch))

	ok, reason := reg.CanStartWorker()
	assert.False(t, ok)
	assert.NotEmpty(t, reason)

	running, err := store.Campaigns().ListByStatus(context.Background(), domain.CampaignRunning)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, cfg.Campaign.DefaultName, running[0].Name)
}

func TestCreateDefaultDryRunMakesEmailHealthy(t *testing.T) {
	cfg := config.Defaults()
	cfg.Email.DryRun = true
	cfg.Email.FromEmail = "outreach@acme.io"
	cfg.Alert.Emails = []string{"owner@acme.io"}

	_, reg := CreateDefault(context.Background(), cfg, Deps{})

	state := reg.Snapshot()
	assert.True(t, state.Available(ports.CapEmailSend))
	assert.True(t, state.Available(ports.CapAlertSend))
	assert.True(t, state.Available(ports.CapNurture))
}

func TestCreateDefaultBadAllowlistDisablesEmail(t *testing.T) {
	cfg := config.Defaults()
	cfg.Email.AllowlistRegex = "(["

	c, reg := CreateDefault(context.Background(), cfg, Deps{})

	state := reg.Snapshot()
	for _, name := range []string{"email-provider", "email", "nurture", "alert"} {
		m, ok := state.Module(name)
		require.True(t, ok, name)
		assert.False(t, m.Enabled, name)
	}
	assert.False(t, Has(c, EmailKey))
	assert.True(t, Has(c, FollowUpKey))

	ok, _ := reg.CanStartWorker()
	assert.True(t, ok, "disabled modules do not block startup")
}

func TestCreateDefaultRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Defaults()
	cfg.Worker.LockBackend = "redis"

	c, _ := CreateDefault(context.Background(), cfg, Deps{Redis: client})

	lock, ok := Get(c, LockKey)
	require.True(t, ok)
	port, ok := lock.(*distlock.Port)
	require.True(t, ok)
	h := port.Health(context.Background())
	assert.Equal(t, contracts.HealthHealthy, h.Status)
	assert.Equal(t, "redis", h.Message)

	res := lock.Acquire(context.Background(), "w1", cfg.Worker.LockTTL())
	assert.True(t, res.Success)
}

func TestCreateDefaultFallsBackToMemoryLock(t *testing.T) {
	cfg := config.Defaults()
	cfg.Worker.LockBackend = "redis"

	c, _ := CreateDefault(context.Background(), cfg, Deps{})

	lock, ok := Get(c, LockKey)
	require.True(t, ok)
	h := lock.(*distlock.Port).Health(context.Background())
	assert.Equal(t, "memory", h.Message)
}
