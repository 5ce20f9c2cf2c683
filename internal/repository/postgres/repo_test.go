package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/aicmo-cam/internal/domain"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var ts = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func leadRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "campaign_id", "email", "first_name", "last_name", "company", "title",
		"status", "status_reason", "routing_sequence", "sequence_start_at",
		"last_contacted_at", "last_replied_at", "created_at", "updated_at",
	}).AddRow("l1", "c1", "jane@acme.io", "Jane", "Doe", "Acme", "CTO",
		"CONTACTED", "", "cold_outreach", ts, ts, nil, ts, ts)
}

func TestLeadRepo_Get(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLeadRepo(db)

	mock.ExpectQuery(`FROM cam_leads l WHERE l.id = \$1`).
		WithArgs("l1").WillReturnRows(leadRow())

	l, err := repo.Get(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, domain.LeadContacted, l.Status)
	assert.Equal(t, "Jane Doe", l.FullName())
	require.NotNil(t, l.LastContactedAt)
	assert.Nil(t, l.LastRepliedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepo_GetNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM cam_leads l WHERE l.id`).WillReturnError(sql.ErrNoRows)

	_, err := NewLeadRepo(db).Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestLeadRepo_FindByEmailLowercases(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`WHERE LOWER\(l.email\) = \$1`).
		WithArgs("jane@acme.io").WillReturnRows(leadRow())

	l, err := NewLeadRepo(db).FindByEmail(context.Background(), "  Jane@ACME.io ")
	require.NoError(t, err)
	assert.Equal(t, "l1", l.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepo_TransitionStatus(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLeadRepo(db)

	mock.ExpectExec(`UPDATE cam_leads\s+SET status = \$2`).
		WithArgs("l1", "QUALIFIED", "reply:POSITIVE", ts, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE cam_leads\s+SET status = \$2`).
		WithArgs("l1", "QUALIFIED", "reply:POSITIVE", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	from := []domain.LeadStatus{domain.LeadRouted, domain.LeadContacted}
	changed, err := repo.TransitionStatus(context.Background(), "l1", from, domain.LeadQualified, "reply:POSITIVE", &ts)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.TransitionStatus(context.Background(), "l1", from, domain.LeadQualified, "reply:POSITIVE", nil)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepo_StartSequence(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`SET status = 'CONTACTED'`).
		WithArgs("l1", ts).WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := NewLeadRepo(db).StartSequence(context.Background(), "l1", ts)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCampaignRepo_Pause(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE cam_campaigns\s+SET status = 'PAUSED'`).
		WithArgs("c1", "reply rate low").WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := NewCampaignRepo(db).Pause(context.Background(), "c1", "reply rate low")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepo_EnsureByName(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO cam_campaigns`).
		WithArgs(sqlmock.AnyArg(), "Default Outreach").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM cam_campaigns WHERE name = \$1`).
		WithArgs("Default Outreach").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "paused_reason", "created_at", "updated_at"}).
			AddRow("c1", "Default Outreach", "RUNNING", "", ts, ts))

	c, err := NewCampaignRepo(db).EnsureByName(context.Background(), "Default Outreach")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
	assert.True(t, c.IsRunning())
}

func TestOutboundRepo_CreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`ON CONFLICT \(lead_id, content_hash, sequence_number\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	e := &domain.OutboundEmail{CampaignID: "c1", LeadID: "l1", Status: domain.OutboundQueued, CreatedAt: ts}
	err := NewOutboundRepo(db).Create(context.Background(), e)
	assert.True(t, errors.Is(err, domain.ErrDuplicate))
	assert.NotEmpty(t, e.ID)
}

func TestOutboundRepo_CountSentSince(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`status IN \('SENT', 'BOUNCED'\) AND sent_at >= \$1`).
		WithArgs(ts).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := NewOutboundRepo(db).CountSentSince(context.Background(), ts)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestOutboundRepo_SequenceState(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM cam_outbound_emails\s+WHERE lead_id = \$1`).
		WithArgs("l1").WillReturnRows(sqlmock.NewRows([]string{"max", "queued"}).AddRow(2, 1))

	last, pending, err := NewOutboundRepo(db).SequenceState(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, 2, last)
	assert.True(t, pending)
}

func TestOutboundRepo_ListQueued(t *testing.T) {
	db, mock := newMock(t)
	cols := []string{
		"id", "campaign_id", "lead_id", "to_email", "subject", "html_body", "status",
		"content_hash", "sequence_number", "provider_message_id", "error_message",
		"sent_at", "created_at", "updated_at",
	}
	mock.ExpectQuery(`WHERE o.status = 'QUEUED' AND c.status = 'RUNNING'`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("e1", "c1", "l1", "jane@acme.io", "Hi", "<p>x</p>", "QUEUED", "abc", 0, "", "", nil, ts, ts))

	rows, err := NewOutboundRepo(db).ListQueued(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.OutboundQueued, rows[0].Status)
	assert.Nil(t, rows[0].SentAt)
}

func TestInboundRepo_CreateAndDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewInboundRepo(db)
	lead := "l1"

	mock.ExpectExec(`INSERT INTO cam_inbound_emails`).
		WithArgs(sqlmock.AnyArg(), "<m1@x>", "l1", nil, "jane@acme.io", "Re: Hi", "Sounds good", "", ts).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO cam_inbound_emails`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	e := &domain.InboundEmail{MessageID: "<m1@x>", LeadID: &lead, FromEmail: "jane@acme.io", Subject: "Re: Hi", Body: "Sounds good", ReceivedAt: ts}
	require.NoError(t, repo.Create(context.Background(), e))
	err := repo.Create(context.Background(), &domain.InboundEmail{MessageID: "<m1@x>", ReceivedAt: ts})
	assert.True(t, errors.Is(err, domain.ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInboundRepo_RecordClassification(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`SET classification = \$2`).
		WithArgs("i1", "POSITIVE", 0.67, "matched: interested", ts).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SET classification = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewInboundRepo(db)
	require.NoError(t, repo.RecordClassification(context.Background(), "i1", domain.ClassPositive, 0.67, "matched: interested", ts))
	err := repo.RecordClassification(context.Background(), "i1", domain.ClassPositive, 0.67, "again", ts)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestInboundRepo_ClassificationCounts(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`GROUP BY classification`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"classification", "count"}).
			AddRow("POSITIVE", 3).AddRow("OOO", 2))

	counts, err := NewInboundRepo(db).ClassificationCounts(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, counts[domain.ClassPositive])
	assert.Equal(t, 2, counts[domain.ClassOOO])
	assert.Equal(t, 0, counts[domain.ClassBounce])
}

func TestInboundRepo_LatestReceivedAtEmpty(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT MAX\(received_at\)`).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	latest, err := NewInboundRepo(db).LatestReceivedAt(context.Background())
	require.NoError(t, err)
	assert.Nil(t, latest)
}
