package inbox

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/ignite/aicmo-cam/internal/config"
	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/pkg/logger"
)

var log = logger.Named("inbox")

// imapClient is the subset of *client.Client the poller uses.
type imapClient interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Logout() error
}

// Dialer opens an IMAP connection.
type Dialer func(addr string) (imapClient, error)

func dialTLS(addr string) (imapClient, error) {
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, err
	}
	c.Timeout = time.Minute
	return c, nil
}

// IMAPPoller implements ports.InboxProvider over IMAPS.
type IMAPPoller struct {
	cfg  config.IMAPConfig
	dial Dialer
}

// NewIMAPPoller creates a poller for the configured mailbox.
func NewIMAPPoller(cfg config.IMAPConfig) *IMAPPoller {
	return NewIMAPPollerWithDialer(cfg, dialTLS)
}

// NewIMAPPollerWithDialer uses dial instead of a TLS connection.
func NewIMAPPollerWithDialer(cfg config.IMAPConfig, dial Dialer) *IMAPPoller {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &IMAPPoller{cfg: cfg, dial: dial}
}

// Fetch returns up to limit messages received at or after since, oldest
// first. The mailbox is opened read-only.
func (p *IMAPPoller) Fetch(ctx context.Context, since time.Time, limit int) contracts.MailboxFetchResult {
	if !p.IsConfigured() {
		return contracts.MailboxFetchResult{Error: ErrNotConfigured.Error()}
	}
	replies, err := p.fetch(ctx, since, limit)
	if err != nil {
		log.Warn("imap fetch failed", "server", p.cfg.Server, "error", err)
		return contracts.MailboxFetchResult{Error: err.Error()}
	}
	return contracts.MailboxFetchResult{Success: true, Replies: replies}
}

func (p *IMAPPoller) fetch(ctx context.Context, since time.Time, limit int) ([]contracts.InboundReply, error) {
	c, err := p.dial(p.cfg.Address())
	if err != nil {
		return nil, fmt.Errorf("dial imap: %w", err)
	}
	defer func() { _ = c.Logout() }()

	if err := c.Login(p.cfg.Email, p.cfg.Password); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select(p.cfg.Mailbox, true); err != nil {
		return nil, fmt.Errorf("select %s: %w", p.cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	// SINCE matches whole days, so dates are read for every hit and the
	// window applied before limit is.
	uids, err = p.inWindow(ctx, c, uids, since)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}
	if len(uids) == 0 {
		return nil, nil
	}

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	var out []contracts.InboundReply
	err = uidFetch(ctx, c, uids, items, func(msg *imap.Message) {
		body := msg.GetBody(section)
		if body == nil {
			log.Warn("imap message without body", "uid", msg.Uid)
			return
		}
		reply, err := ParseMessage(body)
		if err != nil {
			log.Warn("unparseable message skipped", "uid", msg.Uid, "error", err)
			return
		}
		if !msg.InternalDate.IsZero() {
			reply.ReceivedAt = msg.InternalDate.UTC()
		}
		out = append(out, reply)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, nil
}

// inWindow returns the uids received at or after since, oldest first.
func (p *IMAPPoller) inWindow(ctx context.Context, c imapClient, uids []uint32, since time.Time) ([]uint32, error) {
	type dated struct {
		uid  uint32
		date time.Time
	}
	var hits []dated
	err := uidFetch(ctx, c, uids, []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate}, func(msg *imap.Message) {
		if !msg.InternalDate.IsZero() && msg.InternalDate.Before(since) {
			return
		}
		hits = append(hits, dated{uid: msg.Uid, date: msg.InternalDate})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].date.Equal(hits[j].date) {
			return hits[i].date.Before(hits[j].date)
		}
		return hits[i].uid < hits[j].uid
	})
	out := make([]uint32, len(hits))
	for i, h := range hits {
		out[i] = h.uid
	}
	return out, nil
}

// uidFetch streams the fetched messages into fn. Messages arriving after
// ctx is cancelled are drained without calling fn.
func uidFetch(ctx context.Context, c imapClient, uids []uint32, items []imap.FetchItem, fn func(*imap.Message)) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	ch := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() { done <- c.UidFetch(seqset, items, ch) }()

	for msg := range ch {
		if ctx.Err() != nil {
			continue
		}
		fn(msg)
	}
	if err := <-done; err != nil {
		return fmt.Errorf("uid fetch: %w", err)
	}
	return ctx.Err()
}

func (p *IMAPPoller) ModuleName() string { return "imap" }

func (p *IMAPPoller) IsConfigured() bool {
	return p.cfg.Server != "" && p.cfg.Email != "" && p.cfg.Password != ""
}

// Health logs in and selects the mailbox.
func (p *IMAPPoller) Health(context.Context) contracts.ModuleHealth {
	h := contracts.ModuleHealth{ModuleName: p.ModuleName(), Status: contracts.HealthHealthy, CheckedAt: time.Now()}
	if !p.IsConfigured() {
		h.Status = contracts.HealthUnhealthy
		h.Message = "not configured"
		return h
	}
	c, err := p.dial(p.cfg.Address())
	if err != nil {
		h.Status = contracts.HealthUnhealthy
		h.Message = err.Error()
		return h
	}
	defer func() { _ = c.Logout() }()
	if err := c.Login(p.cfg.Email, p.cfg.Password); err != nil {
		h.Status = contracts.HealthUnhealthy
		h.Message = err.Error()
	}
	return h
}
