package consult

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hanzhi-dmd/companion/internal/ai"
	"github.com/hanzhi-dmd/companion/internal/content"
	"github.com/hanzhi-dmd/companion/internal/profile"
	"github.com/hanzhi-dmd/companion/internal/userdb"
)

var (
	ErrEmptyMessage = errors.New("consult: message is empty")
	ErrClosed       = errors.New("consult: conversation closed")
	ErrBusy         = errors.New("consult: too many pending messages")
)

type Turn = userdb.Turn

// Reply is the outcome of one submitted message. Discarded is set when the
// reply was not applied: the conversation closed first, or the caller had
// already given up before the turn started.
type Reply struct {
	Text      string
	Failed    bool
	Discarded bool
}

type request struct {
	ctx   context.Context
	text  string
	reply chan Reply
}

// Conversation is a multi-turn chat scoped to one entity. Turns are processed
// one at a time in submission order by a single goroutine.
type Conversation struct {
	id       string
	entity   content.Analyzable
	profile  profile.Profile
	system   string
	engine   *Engine
	openedAt time.Time

	mu         sync.Mutex
	analysis   string
	turns      []Turn
	closed     bool
	inquiryID  string
	lastActive time.Time
	queue      chan request
}

func (c *Conversation) ID() string                 { return c.id }
func (c *Conversation) Entity() content.Analyzable { return c.entity }
func (c *Conversation) Profile() profile.Profile   { return c.profile }
func (c *Conversation) OpenedAt() time.Time        { return c.openedAt }

// LastActive is the later of the open time and the last submitted or
// answered turn.
func (c *Conversation) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

func (c *Conversation) SetAnalysis(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.analysis = text
	}
}

func (c *Conversation) Analysis() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analysis
}

// Transcript returns a copy of the chat turns, oldest first.
func (c *Conversation) Transcript() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Turn(nil), c.turns...)
}

func (c *Conversation) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Submit queues text and returns a channel that receives exactly one Reply.
func (c *Conversation) Submit(ctx context.Context, text string) (<-chan Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	req := request{ctx: ctx, text: text, reply: make(chan Reply, 1)}
	select {
	case c.queue <- req:
		c.lastActive = c.engine.now()
		return req.reply, nil
	default:
		return nil, ErrBusy
	}
}

// Send submits text and waits for its reply.
func (c *Conversation) Send(ctx context.Context, text string) (string, error) {
	ch, err := c.Submit(ctx, text)
	if err != nil {
		return "", err
	}
	select {
	case r := <-ch:
		if r.Discarded {
			return "", ErrClosed
		}
		return r.Text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops accepting messages. A completion already in flight still runs,
// but its reply is dropped rather than appended.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.queue)
}

func (c *Conversation) loop() {
	for req := range c.queue {
		req.reply <- c.process(req)
	}
}

func (c *Conversation) process(req request) Reply {
	c.mu.Lock()
	if c.closed || req.ctx.Err() != nil {
		c.mu.Unlock()
		return Reply{Discarded: true}
	}
	c.turns = append(c.turns, Turn{Role: userdb.RoleUser, Text: req.text})
	msgs := make([]ai.Message, 0, len(c.turns)+1)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: c.system})
	for _, t := range c.turns {
		role := ai.RoleUser
		if t.Role == userdb.RoleModel {
			role = ai.RoleAssistant
		}
		msgs = append(msgs, ai.Message{Role: role, Content: t.Text})
	}
	c.mu.Unlock()

	pb := c.engine.asm.Locale.book()
	text, err := c.engine.provider.Chat(req.ctx, msgs)
	failed := false
	if err != nil {
		c.engine.log.Warn("chat turn failed", "conversation", c.id, "entity", c.entity.EntityID(), "err", err)
		text, failed = pb.chatFailed, true
	} else if strings.TrimSpace(text) == "" {
		text, failed = pb.chatFailed, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Reply{Text: text, Failed: failed, Discarded: true}
	}
	c.turns = append(c.turns, Turn{Role: userdb.RoleModel, Text: text})
	c.lastActive = c.engine.now()
	return Reply{Text: text, Failed: failed}
}

// Snapshot renders the conversation as a saved inquiry. The inquiry id is
// fixed on the first call, so saving the same conversation twice overwrites.
func (c *Conversation) Snapshot(now time.Time) userdb.Inquiry {
	pb := c.engine.asm.Locale.book()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inquiryID == "" {
		c.inquiryID = inquiryID(c.entity, now)
	}
	return userdb.Inquiry{
		ID:          c.inquiryID,
		Date:        now.Format(pb.dateLayout),
		Kind:        c.entity.Kind(),
		EntityID:    c.entity.EntityID(),
		EntityTitle: pb.titlePrefix[c.entity.Kind()] + c.entity.DisplayTitle(),
		Summary:     c.analysis,
		ChatHistory: append([]Turn{}, c.turns...),
	}
}

func inquiryID(e content.Analyzable, now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	switch e.Kind() {
	case content.KindTrial:
		return "trial-" + e.EntityID() + "-" + ms
	case content.KindDrug:
		return "drug-" + e.EntityID() + "-" + ms
	default:
		return ms
	}
}
