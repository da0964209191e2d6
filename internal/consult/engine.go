package consult

import (
	"context"
	"strings"
	"time"

	"github.com/hanzhi-dmd/companion/internal/ai"
	"github.com/hanzhi-dmd/companion/internal/common"
	"github.com/hanzhi-dmd/companion/internal/content"
	"github.com/hanzhi-dmd/companion/internal/logger"
	"github.com/hanzhi-dmd/companion/internal/profile"
)

const defaultQueueSize = 8

// Engine runs initial analyses and opens conversations against one provider.
type Engine struct {
	provider  ai.Provider
	asm       Assembler
	log       *logger.Logger
	queueSize int
	now       func() time.Time
}

type Option func(*Engine)

// WithQueueSize bounds how many turns may wait behind the one in flight.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(p ai.Provider, asm Assembler, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		provider:  p,
		asm:       asm,
		log:       logger.OrNop(log).With("component", "consult"),
		queueSize: defaultQueueSize,
		now:       time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Disclaimer is the localized notice shown under every generated analysis.
func (e *Engine) Disclaimer() string { return e.asm.Disclaimer() }

// Analyze never fails: provider errors and empty replies come back as the
// localized apology text.
func (e *Engine) Analyze(ctx context.Context, entity content.Analyzable, p profile.Profile) string {
	pb := e.asm.Locale.book()
	prompt := e.asm.AnalysisPrompt(entity, p)

	start := time.Now()
	reply, err := e.provider.Chat(ctx, []ai.Message{{Role: ai.RoleUser, Content: prompt}})
	if err != nil {
		e.log.Warn("analysis failed", "kind", entity.Kind(), "entity", entity.EntityID(), "err", err)
		return pb.analysisFailed
	}
	e.log.Debug("analysis done", "kind", entity.Kind(), "entity", entity.EntityID(), "ms", time.Since(start).Milliseconds())
	if strings.TrimSpace(reply) == "" {
		return pb.emptyReply
	}
	return reply
}

// Open starts an empty conversation about exactly one entity. The profile is
// captured by value; later profile edits do not reach an open conversation.
func (e *Engine) Open(entity content.Analyzable, p profile.Profile) (*Conversation, error) {
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	now := e.now()
	c := &Conversation{
		id:         id,
		entity:     entity,
		profile:    p,
		system:     e.asm.SystemInstruction(entity, p),
		engine:     e,
		openedAt:   now,
		lastActive: now,
		turns:      []Turn{},
		queue:      make(chan request, e.queueSize),
	}
	go c.loop()
	return c, nil
}
