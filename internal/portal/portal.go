// Package portal is the top-level controller: it gates feeds on a stored
// profile and owns the open consultations of each device.
package portal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/hanzhi-dmd/companion/internal/consult"
	"github.com/hanzhi-dmd/companion/internal/content"
	"github.com/hanzhi-dmd/companion/internal/logger"
	"github.com/hanzhi-dmd/companion/internal/profile"
	"github.com/hanzhi-dmd/companion/internal/sources/trials"
	"github.com/hanzhi-dmd/companion/internal/userdb"
)

var (
	ErrProfileRequired      = errors.New("portal: profile must be configured first")
	ErrConsultationNotFound = errors.New("portal: consultation not found")
	ErrInvalidRange         = errors.New("portal: months must be 1, 3 or 12")
)

type ArticleSource interface {
	Articles(ctx context.Context, months int) []content.Article
}

type TrialSource interface {
	Trials(ctx context.Context) []content.ClinicalTrial
}

type DrugSource interface {
	Drugs(ctx context.Context) []content.Drug
}

// TrialView is a trial as shown to one patient.
type TrialView struct {
	content.ClinicalTrial
	Recruiting  bool   `json:"recruiting"`
	StatusLabel string `json:"statusLabel"`
	InMyRegion  bool   `json:"inMyRegion"`
}

// Opened is the result of starting a consultation.
type Opened struct {
	ID         string         `json:"id"`
	Entity     content.Fields `json:"entity"`
	Analysis   string         `json:"analysis"`
	Disclaimer string         `json:"disclaimer"`
}

type Service struct {
	articles ArticleSource
	trials   TrialSource
	drugs    DrugSource
	engine   *consult.Engine
	log      *logger.Logger
	now      func() time.Time

	mu    sync.Mutex
	convs map[convKey]*consult.Conversation
}

type convKey struct {
	device, username, id string
}

func NewService(a ArticleSource, t TrialSource, d DrugSource, engine *consult.Engine, log *logger.Logger) *Service {
	return &Service{
		articles: a,
		trials:   t,
		drugs:    d,
		engine:   engine,
		log:      logger.OrNop(log).With("component", "portal"),
		now:      time.Now,
		convs:    make(map[convKey]*consult.Conversation),
	}
}

// RequireProfile loads the session's stored profile or fails with
// ErrProfileRequired.
func (s *Service) RequireProfile(ctx context.Context, sess *userdb.Session) (profile.Profile, error) {
	rec, err := sess.UserData(ctx)
	if err != nil {
		return profile.Profile{}, err
	}
	if rec.Profile == nil || !rec.Profile.Configured {
		return profile.Profile{}, ErrProfileRequired
	}
	return *rec.Profile, nil
}

// ArticleFeed accepts a lookback of 1, 3 or 12 months; 0 means 1.
func (s *Service) ArticleFeed(ctx context.Context, sess *userdb.Session, months int) ([]content.Article, error) {
	if months == 0 {
		months = 1
	}
	if !lo.Contains([]int{1, 3, 12}, months) {
		return nil, ErrInvalidRange
	}
	if _, err := s.RequireProfile(ctx, sess); err != nil {
		return nil, err
	}
	return s.articles.Articles(ctx, months), nil
}

func (s *Service) TrialFeed(ctx context.Context, sess *userdb.Session) ([]TrialView, error) {
	p, err := s.RequireProfile(ctx, sess)
	if err != nil {
		return nil, err
	}
	list := s.trials.Trials(ctx)
	return lo.Map(list, func(t content.ClinicalTrial, _ int) TrialView {
		return TrialView{
			ClinicalTrial: t,
			Recruiting:    trials.IsRecruiting(t.Status),
			StatusLabel:   trials.StatusLabel(t.Status),
			InMyRegion:    trials.MatchesRegion(t, p.Region),
		}
	}), nil
}

func (s *Service) DrugFeed(ctx context.Context, sess *userdb.Session) ([]content.Drug, error) {
	if _, err := s.RequireProfile(ctx, sess); err != nil {
		return nil, err
	}
	return s.drugs.Drugs(ctx), nil
}

// OpenConsultation runs the initial analysis and keeps the conversation open
// for follow-up questions on this device. The conversation is registered
// before the analysis starts, so a logout that lands meanwhile closes it and
// the late analysis is dropped with ErrNoSession.
func (s *Service) OpenConsultation(ctx context.Context, sess *userdb.Session, entity content.Analyzable) (Opened, error) {
	p, err := s.RequireProfile(ctx, sess)
	if err != nil {
		return Opened{}, err
	}
	conv, err := s.engine.Open(entity, p)
	if err != nil {
		return Opened{}, fmt.Errorf("open conversation: %w", err)
	}
	k := convKey{sess.Device(), sess.Username(), conv.ID()}
	s.mu.Lock()
	s.convs[k] = conv
	s.mu.Unlock()

	analysis := s.engine.Analyze(ctx, entity, p)

	active, err := sess.Active(ctx)
	if err != nil || !active || conv.Closed() {
		s.drop(k, conv)
		if err != nil {
			return Opened{}, err
		}
		s.log.Info("analysis dropped, session ended", "id", conv.ID(), "username", sess.Username(), "device", sess.Device())
		return Opened{}, userdb.ErrNoSession
	}
	conv.SetAnalysis(analysis)

	s.log.Info("consultation opened", "id", conv.ID(), "kind", entity.Kind(), "entity", entity.EntityID(), "username", sess.Username())
	return Opened{
		ID:         conv.ID(),
		Entity:     entity.DisplayFields(),
		Analysis:   analysis,
		Disclaimer: s.engine.Disclaimer(),
	}, nil
}

// drop unregisters conv if it is still the entry under k, then closes it.
func (s *Service) drop(k convKey, conv *consult.Conversation) {
	s.mu.Lock()
	if s.convs[k] == conv {
		delete(s.convs, k)
	}
	s.mu.Unlock()
	conv.Close()
}

func (s *Service) conversation(sess *userdb.Session, id string) (*consult.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[convKey{sess.Device(), sess.Username(), id}]
	if !ok {
		return nil, ErrConsultationNotFound
	}
	return conv, nil
}

// Ask sends one follow-up question and returns the model's reply.
func (s *Service) Ask(ctx context.Context, sess *userdb.Session, id, text string) (string, error) {
	conv, err := s.conversation(sess, id)
	if err != nil {
		return "", err
	}
	return conv.Send(ctx, text)
}

// Transcript returns the chat turns and the time the conversation opened.
func (s *Service) Transcript(sess *userdb.Session, id string) ([]consult.Turn, time.Time, error) {
	conv, err := s.conversation(sess, id)
	if err != nil {
		return nil, time.Time{}, err
	}
	return conv.Transcript(), conv.OpenedAt(), nil
}

// SaveConsultation writes the conversation into the user's inquiries.
// Saving again updates the same inquiry.
func (s *Service) SaveConsultation(ctx context.Context, sess *userdb.Session, id string) (userdb.Inquiry, error) {
	conv, err := s.conversation(sess, id)
	if err != nil {
		return userdb.Inquiry{}, err
	}
	inq := conv.Snapshot(s.now())
	if err := sess.SaveInquiry(ctx, inq); err != nil {
		return userdb.Inquiry{}, err
	}
	return inq, nil
}

func (s *Service) CloseConsultation(sess *userdb.Session, id string) error {
	s.mu.Lock()
	k := convKey{sess.Device(), sess.Username(), id}
	conv, ok := s.convs[k]
	delete(s.convs, k)
	s.mu.Unlock()
	if !ok {
		return ErrConsultationNotFound
	}
	conv.Close()
	return nil
}

// CloseAll tears down every consultation of the session, as on logout.
func (s *Service) CloseAll(sess *userdb.Session) int {
	s.mu.Lock()
	var closing []*consult.Conversation
	for k, c := range s.convs {
		if k.device == sess.Device() && k.username == sess.Username() {
			closing = append(closing, c)
			delete(s.convs, k)
		}
	}
	s.mu.Unlock()
	for _, c := range closing {
		c.Close()
	}
	return len(closing)
}

// Sweep closes every conversation idle for longer than idle, whatever its
// session. Clients that vanish without logging out are reclaimed this way.
func (s *Service) Sweep(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	var closing []*consult.Conversation
	for k, c := range s.convs {
		if c.LastActive().Before(cutoff) {
			closing = append(closing, c)
			delete(s.convs, k)
		}
	}
	s.mu.Unlock()
	for _, c := range closing {
		c.Close()
	}
	return len(closing)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 || idle <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(idle); n > 0 {
				s.log.Info("idle consultations closed", "count", n, "idle", idle.String())
			}
		}
	}
}
