package portal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hanzhi-dmd/companion/internal/ai"
	"github.com/hanzhi-dmd/companion/internal/auth"
	"github.com/hanzhi-dmd/companion/internal/consult"
	"github.com/hanzhi-dmd/companion/internal/content"
	"github.com/hanzhi-dmd/companion/internal/kv"
	"github.com/hanzhi-dmd/companion/internal/profile"
	"github.com/hanzhi-dmd/companion/internal/userdb"
)

type fakeArticles struct{ months []int }

func (f *fakeArticles) Articles(_ context.Context, months int) []content.Article {
	f.months = append(f.months, months)
	return []content.Article{{ID: "1", Title: "Exon skipping review", Tags: []content.Tag{content.TagReview}}}
}

type fakeTrials struct{}

func (fakeTrials) Trials(context.Context) []content.ClinicalTrial {
	return []content.ClinicalTrial{
		{NCTID: "NCT1", Title: "Europe trial", Status: "RECRUITING", Regions: []profile.Region{profile.RegionEurope}},
		{NCTID: "NCT2", Title: "Asia trial", Status: "ACTIVE_NOT_RECRUITING", Regions: []profile.Region{profile.RegionAsia}},
	}
}

type fakeDrugs struct{}

func (fakeDrugs) Drugs(context.Context) []content.Drug {
	return []content.Drug{{BrandName: "Emflaza", GenericName: "deflazacort"}}
}

type echoProvider struct {
	mu    sync.Mutex
	calls int
}

func (p *echoProvider) Chat(_ context.Context, msgs []ai.Message) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return "re: " + msgs[len(msgs)-1].Content, nil
}

type fixture struct {
	svc      *Service
	store    *userdb.Store
	articles *fakeArticles
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	return newFixtureWith(t, &echoProvider{})
}

func newFixtureWith(t *testing.T, p ai.Provider, opts ...consult.Option) fixture {
	t.Helper()
	a, err := auth.NewStaticAuthenticator("", nil)
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}
	store := userdb.NewStore(kv.NewMemory(), a, userdb.Latencies{}, nil)
	engine := consult.NewEngine(p, consult.NewAssembler(consult.LocaleZH), nil, opts...)
	arts := &fakeArticles{}
	svc := NewService(arts, fakeTrials{}, fakeDrugs{}, engine, nil)
	svc.now = func() time.Time { return time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC) }
	return fixture{svc: svc, store: store, articles: arts}
}

func (f fixture) login(t *testing.T, device, user, pw string, withProfile bool) *userdb.Session {
	t.Helper()
	ctx := context.Background()
	sess, err := f.store.Login(ctx, device, user, pw)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if withProfile {
		p := profile.Profile{
			Configured: true,
			AgeGroup:   profile.AgeChild,
			Ambulatory: profile.Ambulatory,
			OnSteroids: profile.SteroidsUnsure,
			Region:     profile.RegionEurope,
		}
		if err := sess.SaveProfile(ctx, p); err != nil {
			t.Fatalf("save profile: %v", err)
		}
	}
	return sess
}

func TestFeeds_RequireProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.login(t, "", "DMDsetup#1", "52011", false)

	if _, err := f.svc.ArticleFeed(ctx, sess, 1); !errors.Is(err, ErrProfileRequired) {
		t.Fatalf("articles: expected ErrProfileRequired, got %v", err)
	}
	if _, err := f.svc.TrialFeed(ctx, sess); !errors.Is(err, ErrProfileRequired) {
		t.Fatalf("trials: expected ErrProfileRequired, got %v", err)
	}
	if _, err := f.svc.DrugFeed(ctx, sess); !errors.Is(err, ErrProfileRequired) {
		t.Fatalf("drugs: expected ErrProfileRequired, got %v", err)
	}
	if _, err := f.svc.OpenConsultation(ctx, sess, content.Drug{BrandName: "X"}); !errors.Is(err, ErrProfileRequired) {
		t.Fatalf("consult: expected ErrProfileRequired, got %v", err)
	}
	if len(f.articles.months) != 0 {
		t.Fatal("normalizer must not run before the profile exists")
	}
}

func TestArticleFeed_Months(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.login(t, "", "DMDsetup#1", "52011", true)

	for _, m := range []int{0, 1, 3, 12} {
		if _, err := f.svc.ArticleFeed(ctx, sess, m); err != nil {
			t.Fatalf("months=%d: %v", m, err)
		}
	}
	if got := f.articles.months; len(got) != 4 || got[0] != 1 || got[3] != 12 {
		t.Fatalf("months passed through = %v", got)
	}
	if _, err := f.svc.ArticleFeed(ctx, sess, 6); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestTrialFeed_FlagsRegionAndStatus(t *testing.T) {
	f := newFixture(t)
	sess := f.login(t, "", "DMDsetup#1", "52011", true)

	views, err := f.svc.TrialFeed(context.Background(), sess)
	if err != nil {
		t.Fatalf("trial feed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("len = %d", len(views))
	}
	if !views[0].InMyRegion || !views[0].Recruiting || views[0].StatusLabel != "正在招募" {
		t.Fatalf("europe trial view = %+v", views[0])
	}
	if views[1].InMyRegion || views[1].Recruiting {
		t.Fatalf("asia trial view = %+v", views[1])
	}
}

func TestConsultation_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.login(t, "", "DMDsetup#2", "52012", true)
	trial := content.ClinicalTrial{NCTID: "NCT9", Title: "Gene therapy", Status: "RECRUITING"}

	opened, err := f.svc.OpenConsultation(ctx, sess, trial)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened.ID == "" || !strings.HasPrefix(opened.Analysis, "re: ") || opened.Entity.ID != "NCT9" || opened.Disclaimer == "" {
		t.Fatalf("opened = %+v", opened)
	}

	reply, err := f.svc.Ask(ctx, sess, opened.ID, "Is my son eligible?")
	if err != nil || reply != "re: Is my son eligible?" {
		t.Fatalf("ask = %q, %v", reply, err)
	}

	inq, err := f.svc.SaveConsultation(ctx, sess, opened.ID)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if inq.ID != "trial-NCT9-1741341600000" || inq.EntityTitle != "临床试验匹配: Gene therapy" || len(inq.ChatHistory) != 2 {
		t.Fatalf("inquiry = %+v", inq)
	}

	if _, err := f.svc.Ask(ctx, sess, opened.ID, "And the side effects?"); err != nil {
		t.Fatalf("second ask: %v", err)
	}
	if _, err := f.svc.SaveConsultation(ctx, sess, opened.ID); err != nil {
		t.Fatalf("resave: %v", err)
	}
	rec, _ := sess.UserData(ctx)
	if len(rec.SavedInquiries) != 1 || len(rec.SavedInquiries[0].ChatHistory) != 4 {
		t.Fatalf("re-saving should update in place: %+v", rec.SavedInquiries)
	}

	if err := f.svc.CloseConsultation(sess, opened.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := f.svc.Ask(ctx, sess, opened.ID, "hello?"); !errors.Is(err, ErrConsultationNotFound) {
		t.Fatalf("expected ErrConsultationNotFound, got %v", err)
	}
}

func TestConsultation_ScopedToDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	phone := f.login(t, "phone", "DMDsetup#3", "52013", true)
	tablet := f.login(t, "tablet", "DMDsetup#3", "52013", false)

	opened, err := f.svc.OpenConsultation(ctx, phone, content.Drug{BrandName: "Emflaza"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, _, err := f.svc.Transcript(tablet, opened.ID); !errors.Is(err, ErrConsultationNotFound) {
		t.Fatalf("another device must not see the conversation, got %v", err)
	}
	if n := f.svc.CloseAll(phone); n != 1 {
		t.Fatalf("CloseAll closed %d", n)
	}
	if _, _, err := f.svc.Transcript(phone, opened.ID); !errors.Is(err, ErrConsultationNotFound) {
		t.Fatalf("expected ErrConsultationNotFound after CloseAll, got %v", err)
	}
}

type blockingProvider struct {
	started chan struct{}
	release chan struct{}
}

func (p *blockingProvider) Chat(ctx context.Context, _ []ai.Message) (string, error) {
	p.started <- struct{}{}
	select {
	case <-p.release:
		return "late analysis", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestOpenConsultation_LogoutDuringAnalysis(t *testing.T) {
	prov := &blockingProvider{started: make(chan struct{}, 1), release: make(chan struct{})}
	f := newFixtureWith(t, prov)
	ctx := context.Background()
	sess := f.login(t, "phone", "DMDsetup#4", "52014", true)

	type result struct {
		opened Opened
		err    error
	}
	done := make(chan result, 1)
	go func() {
		o, err := f.svc.OpenConsultation(ctx, sess, content.Drug{BrandName: "Emflaza"})
		done <- result{o, err}
	}()

	<-prov.started
	if n := f.svc.CloseAll(sess); n != 1 {
		t.Fatalf("CloseAll should reach the pending consultation, closed %d", n)
	}
	if err := sess.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	close(prov.release)

	var r result
	select {
	case r = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("open did not return")
	}
	if !errors.Is(r.err, userdb.ErrNoSession) || r.opened.Analysis != "" {
		t.Fatalf("late analysis should be dropped, got %+v, %v", r.opened, r.err)
	}
	f.svc.mu.Lock()
	left := len(f.svc.convs)
	f.svc.mu.Unlock()
	if left != 0 {
		t.Fatalf("conversations still registered after logout: %d", left)
	}
}

func TestOpenConsultation_SessionEndedWithoutCloseAll(t *testing.T) {
	prov := &blockingProvider{started: make(chan struct{}, 1), release: make(chan struct{})}
	f := newFixtureWith(t, prov)
	ctx := context.Background()
	sess := f.login(t, "tablet", "DMDsetup#4", "52014", true)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.OpenConsultation(ctx, sess, content.Drug{BrandName: "Emflaza"})
		done <- err
	}()
	<-prov.started
	if err := sess.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	close(prov.release)

	if err := <-done; !errors.Is(err, userdb.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	f.svc.mu.Lock()
	defer f.svc.mu.Unlock()
	if len(f.svc.convs) != 0 {
		t.Fatalf("conversation leaked: %d", len(f.svc.convs))
	}
}

func TestSweep_ClosesIdleConversations(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}
	f := newFixtureWith(t, &echoProvider{}, consult.WithClock(clock))
	f.svc.now = clock
	ctx := context.Background()
	sess := f.login(t, "phone", "DMDsetup#5", "52015", true)

	stale, err := f.svc.OpenConsultation(ctx, sess, content.Drug{BrandName: "Emflaza"})
	if err != nil {
		t.Fatalf("open stale: %v", err)
	}
	advance(20 * time.Minute)
	busy, err := f.svc.OpenConsultation(ctx, sess, content.Drug{BrandName: "Agamree"})
	if err != nil {
		t.Fatalf("open busy: %v", err)
	}
	advance(15 * time.Minute)
	if _, err := f.svc.Ask(ctx, sess, busy.ID, "still here"); err != nil {
		t.Fatalf("ask: %v", err)
	}

	if n := f.svc.Sweep(30 * time.Minute); n != 1 {
		t.Fatalf("Sweep closed %d", n)
	}
	if _, _, err := f.svc.Transcript(sess, stale.ID); !errors.Is(err, ErrConsultationNotFound) {
		t.Fatalf("idle conversation should be gone, got %v", err)
	}
	if _, _, err := f.svc.Transcript(sess, busy.ID); err != nil {
		t.Fatalf("active conversation should survive: %v", err)
	}
}
