package nurture_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/aicmo-cam/internal/domain"
	"github.com/ignite/aicmo-cam/internal/render"
	"github.com/ignite/aicmo-cam/internal/repository/memory"
	"github.com/ignite/aicmo-cam/internal/service/nurture"
	"github.com/ignite/aicmo-cam/internal/service/sending"
)

var now = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

func daysAgo(d int) *time.Time {
	t := now.AddDate(0, 0, -d)
	return &t
}

func newScheduler(store *memory.Store) *nurture.Service {
	clock := func() time.Time { return now }
	email := sending.NewService(store.Outbound(), store.Leads(), nil, render.New(),
		sending.Config{DailyCap: 100, BatchCap: 20, Location: time.UTC}, sending.WithClock(clock))
	return nurture.NewService(store.Leads(), store.Outbound(), email,
		nurture.Config{NoReplyWindow: 72 * time.Hour, DefaultSequence: nurture.ColdOutreach},
		nurture.WithClock(clock))
}

func newStore() *memory.Store {
	store := memory.NewStore()
	store.PutCampaign(domain.Campaign{ID: "c1", Name: "default", Status: domain.CampaignRunning})
	return store
}

// sent records delivered emails 0..n-1 for a lead.
func sent(store *memory.Store, leadID string, n int, at *time.Time) {
	for i := 0; i < n; i++ {
		store.PutOutbound(domain.OutboundEmail{
			CampaignID: "c1", LeadID: leadID, Status: domain.OutboundSent,
			SequenceNumber: i, ContentHash: string(rune('a' + i)), SentAt: at, CreatedAt: *at,
		})
	}
}

func queued(store *memory.Store) []domain.OutboundEmail {
	var out []domain.OutboundEmail
	for _, r := range store.OutboundRows() {
		if r.Status == domain.OutboundQueued {
			out = append(out, r)
		}
	}
	return out
}

func TestAdvanceDue_StartsRoutedLead(t *testing.T) {
	store := newStore()
	store.PutLead(domain.Lead{ID: "l1", CampaignID: "c1", Email: "ada@example.com", FirstName: "Ada",
		Company: "Acme", Status: domain.LeadRouted, CreatedAt: now.Add(-time.Hour)})
	svc := newScheduler(store)

	res := svc.AdvanceDue(context.Background(), 50)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.Enqueued)

	rows := queued(store)
	require.Len(t, rows, 1)
	assert.Equal(t, 0, rows[0].SequenceNumber)
	assert.Equal(t, "Idea for Acme", rows[0].Subject)

	lead, _ := store.Lead("l1")
	assert.Equal(t, domain.LeadContacted, lead.Status)
	require.NotNil(t, lead.SequenceStartAt)
	assert.True(t, lead.SequenceStartAt.Equal(now))

	again := svc.AdvanceDue(context.Background(), 50)
	assert.Zero(t, again.Enqueued)
	assert.Equal(t, 1, again.Skipped, "pending row blocks the next step")
}

func TestAdvanceDue_NextStepAfterWindow(t *testing.T) {
	store := newStore()
	store.PutLead(domain.Lead{ID: "l1", CampaignID: "c1", Email: "ada@example.com", Status: domain.LeadContacted,
		SequenceStartAt: daysAgo(8), LastContactedAt: daysAgo(8)})
	sent(store, "l1", 1, daysAgo(8))

	res := newScheduler(store).AdvanceDue(context.Background(), 50)
	assert.Equal(t, 1, res.Enqueued)

	rows := queued(store)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].SequenceNumber)
}

func TestAdvanceDue_WaitsForNoReplyWindow(t *testing.T) {
	store := newStore()
	store.PutLead(domain.Lead{ID: "l1", CampaignID: "c1", Email: "ada@example.com", Status: domain.LeadContacted,
		RoutingSequence: nurture.AggressiveClose, SequenceStartAt: daysAgo(3), LastContactedAt: daysAgo(1)})
	sent(store, "l1", 1, daysAgo(1))

	res := newScheduler(store).AdvanceDue(context.Background(), 50)
	assert.Zero(t, res.Enqueued)
	assert.Equal(t, 1, res.Skipped)
}

func TestAdvanceDue_WaitsForOffset(t *testing.T) {
	store := newStore()
	store.PutLead(domain.Lead{ID: "l1", CampaignID: "c1", Email: "ada@example.com", Status: domain.LeadContacted,
		SequenceStartAt: daysAgo(5), LastContactedAt: daysAgo(5)})
	sent(store, "l1", 1, daysAgo(5))

	res := newScheduler(store).AdvanceDue(context.Background(), 50)
	assert.Zero(t, res.Enqueued, "cold_outreach step 1 is due on day 7")
}

func TestAdvanceDue_ExhaustedSequenceMarksLost(t *testing.T) {
	store := newStore()
	store.PutLead(domain.Lead{ID: "l1", CampaignID: "c1", Email: "ada@example.com", Status: domain.LeadContacted,
		RoutingSequence: nurture.AggressiveClose, SequenceStartAt: daysAgo(9), LastContactedAt: daysAgo(4)})
	sent(store, "l1", 3, daysAgo(4))

	res := newScheduler(store).AdvanceDue(context.Background(), 50)
	assert.Equal(t, 1, res.Lost)

	lead, _ := store.Lead("l1")
	assert.Equal(t, domain.LeadLost, lead.Status)
	assert.Equal(t, "sequence complete", lead.StatusReason)
}

func TestAdvanceDue_DroppedStepRetiresLead(t *testing.T) {
	store := newStore()
	store.PutLead(domain.Lead{ID: "l1", CampaignID: "c1", Email: "ada@example.com", Company: "Acme",
		Status: domain.LeadRouted, CreatedAt: now.Add(-time.Hour)})
	svc := newScheduler(store)
	ctx := context.Background()

	require.Equal(t, 1, svc.AdvanceDue(ctx, 50).Enqueued)
	rows := queued(store)
	require.Len(t, rows, 1)
	require.NoError(t, store.Outbound().MarkDropped(ctx, rows[0].ID, "recipient not allowed", now))

	res := svc.AdvanceDue(ctx, 50)
	assert.Equal(t, 1, res.Lost)
	assert.Zero(t, res.Skipped)

	lead, _ := store.Lead("l1")
	assert.Equal(t, domain.LeadLost, lead.Status)
	assert.Equal(t, "email 0 dropped: recipient not allowed", lead.StatusReason)
	assert.Len(t, store.OutboundRows(), 1)

	// the retired lead no longer occupies a nurture slot
	again := svc.AdvanceDue(ctx, 50)
	assert.Zero(t, again.Enqueued+again.Skipped+again.Lost+again.Failed)
}

func TestAdvanceDue_FailedStepRetiresLead(t *testing.T) {
	store := newStore()
	store.PutLead(domain.Lead{ID: "l1", CampaignID: "c1", Email: "ada@example.com", Company: "Acme",
		Status: domain.LeadRouted, CreatedAt: now.Add(-time.Hour)})
	svc := newScheduler(store)
	ctx := context.Background()

	require.Equal(t, 1, svc.AdvanceDue(ctx, 50).Enqueued)
	rows := queued(store)
	require.Len(t, rows, 1)
	require.NoError(t, store.Outbound().MarkFailed(ctx, rows[0].ID, "provider unavailable", now))

	res := svc.AdvanceDue(ctx, 50)
	assert.Equal(t, 1, res.Lost)
	assert.Zero(t, res.Failed)

	lead, _ := store.Lead("l1")
	assert.Equal(t, domain.LeadLost, lead.Status)
	assert.Equal(t, "email 0 failed: provider unavailable", lead.StatusReason)
}

func TestAdvanceDue_ExhaustedWaitsForWindow(t *testing.T) {
	store := newStore()
	store.PutLead(domain.Lead{ID: "l1", CampaignID: "c1", Email: "ada@example.com", Status: domain.LeadContacted,
		RoutingSequence: nurture.AggressiveClose, SequenceStartAt: daysAgo(6), LastContactedAt: daysAgo(1)})
	sent(store, "l1", 3, daysAgo(1))

	res := newScheduler(store).AdvanceDue(context.Background(), 50)
	assert.Zero(t, res.Lost)

	lead, _ := store.Lead("l1")
	assert.Equal(t, domain.LeadContacted, lead.Status)
}

func TestAdvanceDue_IgnoresRepliedAndPaused(t *testing.T) {
	store := newStore()
	store.PutCampaign(domain.Campaign{ID: "c2", Status: domain.CampaignPaused})
	store.PutLead(domain.Lead{ID: "replied", CampaignID: "c1", Email: "a@example.com", Status: domain.LeadContacted,
		SequenceStartAt: daysAgo(30), LastContactedAt: daysAgo(30), LastRepliedAt: daysAgo(29)})
	store.PutLead(domain.Lead{ID: "paused", CampaignID: "c2", Email: "b@example.com", Status: domain.LeadRouted})
	store.PutLead(domain.Lead{ID: "qualified", CampaignID: "c1", Email: "c@example.com", Status: domain.LeadQualified})

	res := newScheduler(store).AdvanceDue(context.Background(), 50)
	assert.Zero(t, res.Enqueued+res.Skipped+res.Lost+res.Failed)
	assert.Empty(t, store.OutboundRows())
}

func TestAdvanceDue_RespectsLimit(t *testing.T) {
	store := newStore()
	for _, id := range []string{"l1", "l2", "l3"} {
		store.PutLead(domain.Lead{ID: id, CampaignID: "c1", Email: id + "@example.com", Status: domain.LeadRouted, CreatedAt: now.Add(-time.Hour)})
	}

	res := newScheduler(store).AdvanceDue(context.Background(), 2)
	assert.Equal(t, 2, res.Enqueued)
	assert.Len(t, queued(store), 2)
}
