package userdb

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hanzhi-dmd/companion/internal/auth"
	"github.com/hanzhi-dmd/companion/internal/kv"
	"github.com/hanzhi-dmd/companion/internal/profile"
)

func newTestStore(t *testing.T) (*Store, *kv.Memory) {
	t.Helper()
	a, err := auth.NewStaticAuthenticator("", nil)
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}
	mem := kv.NewMemory()
	return NewStore(mem, a, Latencies{}, nil), mem
}

func validProfile() profile.Profile {
	return profile.Profile{
		Configured:     true,
		AgeGroup:       profile.AgeChild,
		GeneticProfile: "Exon 45-50 deletion",
		Ambulatory:     profile.Ambulatory,
		OnSteroids:     profile.SteroidsYes,
		Region:         profile.RegionEurope,
		Interests:      []profile.InterestArea{profile.InterestMedications},
	}
}

func TestLogin_AllowListCreatesRecord(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()

	for u, pw := range auth.DefaultUsers() {
		sess, err := s.Login(ctx, "", u, pw)
		if err != nil {
			t.Fatalf("login %s: %v", u, err)
		}
		raw, err := mem.Get(ctx, RecordKey(u))
		if err != nil {
			t.Fatalf("record for %s missing: %v", u, err)
		}
		var r Record
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if r.Profile != nil || r.SavedInquiries == nil || len(r.SavedInquiries) != 0 || r.Username != u {
			t.Fatalf("unexpected first-login record %+v", r)
		}
		if cur, ok, _ := s.CurrentUser(ctx, ""); !ok || cur != sess.Username() {
			t.Fatalf("current user = %q, %v", cur, ok)
		}
	}
}

func TestLogin_RejectedLeavesCurrentUserUnset(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()

	for _, c := range []auth.Credentials{
		{Username: "DMDsetup#1", Password: "wrong"},
		{Username: "someone", Password: "52011"},
		{Username: "", Password: ""},
	} {
		if _, err := s.Login(ctx, "", c.Username, c.Password); !errors.Is(err, ErrAuthRejected) {
			t.Fatalf("%+v: expected ErrAuthRejected, got %v", c, err)
		}
	}
	if _, err := mem.Get(ctx, CurrentUserKey("")); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("current user key should not be set, got %v", err)
	}
	if _, err := mem.Get(ctx, RecordKey("someone")); !errors.Is(err, kv.ErrNotFound) {
		t.Fatal("rejected login must not create a record")
	}
}

func TestLogin_HonoursLatencyAndContext(t *testing.T) {
	a, _ := auth.NewStaticAuthenticator("", nil)
	s := NewStore(kv.NewMemory(), a, Latencies{Login: time.Hour}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Login(ctx, "", "DMDsetup#1", "52011"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSaveProfile_KeepsInquiries(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	sess, err := s.Login(ctx, "", "DMDsetup#2", "52012")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := sess.SaveInquiry(ctx, Inquiry{ID: "a", EntityID: "1", EntityTitle: "T"}); err != nil {
		t.Fatalf("save inquiry: %v", err)
	}
	before, _ := sess.UserData(ctx)

	p := validProfile()
	if err := sess.SaveProfile(ctx, p); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	after, err := sess.UserData(ctx)
	if err != nil {
		t.Fatalf("user data: %v", err)
	}
	if !reflect.DeepEqual(*after.Profile, p) {
		t.Fatalf("profile = %+v, want %+v", *after.Profile, p)
	}
	if !reflect.DeepEqual(after.SavedInquiries, before.SavedInquiries) {
		t.Fatalf("inquiries changed: %+v vs %+v", after.SavedInquiries, before.SavedInquiries)
	}
	if after.Revision != before.Revision+1 {
		t.Fatalf("revision = %d, want %d", after.Revision, before.Revision+1)
	}
}

func TestSaveProfile_IncompleteIsRejected(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	sess, _ := s.Login(ctx, "", "DMDsetup#3", "52013")

	d := profile.Draft{AgeGroup: profile.AgeChild, Ambulatory: profile.Wheelchair}
	if d.Complete() {
		t.Fatal("draft without region must not be complete")
	}
	if _, err := d.Submit(); !errors.Is(err, profile.ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete from submit, got %v", err)
	}

	p := validProfile()
	p.Region = ""
	if err := sess.SaveProfile(ctx, p); !errors.Is(err, profile.ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	r, _ := sess.UserData(ctx)
	if r.Profile != nil {
		t.Fatalf("profile should remain nil, got %+v", r.Profile)
	}
}

func TestSaveInquiry_PrependAndReplaceInPlace(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	sess, _ := s.Login(ctx, "", "DMDsetup#4", "52014")

	for _, id := range []string{"one", "two", "three"} {
		if err := sess.SaveInquiry(ctx, Inquiry{ID: id, Summary: id}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	r, _ := sess.UserData(ctx)
	if got := []string{r.SavedInquiries[0].ID, r.SavedInquiries[1].ID, r.SavedInquiries[2].ID}; !reflect.DeepEqual(got, []string{"three", "two", "one"}) {
		t.Fatalf("new inquiries should be prepended: %v", got)
	}

	if err := sess.SaveInquiry(ctx, Inquiry{ID: "two", Summary: "updated"}); err != nil {
		t.Fatalf("resave: %v", err)
	}
	r, _ = sess.UserData(ctx)
	if len(r.SavedInquiries) != 3 || r.SavedInquiries[1].ID != "two" || r.SavedInquiries[1].Summary != "updated" {
		t.Fatalf("existing id should be replaced in place: %+v", r.SavedInquiries)
	}

	if err := sess.DeleteInquiry(ctx, "two"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	r, _ = sess.UserData(ctx)
	if len(r.SavedInquiries) != 2 || r.SavedInquiries[0].ID != "three" || r.SavedInquiries[1].ID != "one" {
		t.Fatalf("unexpected list after delete: %+v", r.SavedInquiries)
	}
}

func TestSession_WritesAfterLogoutAreDropped(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()
	sess, _ := s.Login(ctx, "", "DMDsetup#5", "52015")

	if err := sess.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok, _ := s.CurrentUser(ctx, ""); ok {
		t.Fatal("current user should be cleared")
	}
	if err := sess.SaveInquiry(ctx, Inquiry{ID: "late"}); err != nil {
		t.Fatalf("write after logout should be a silent no-op, got %v", err)
	}
	if _, err := sess.UserData(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	r, err := s.Record(ctx, "DMDsetup#5")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(r.SavedInquiries) != 0 {
		t.Fatalf("dropped write reached the record: %+v", r.SavedInquiries)
	}
	if _, err := mem.Get(ctx, RecordKey("DMDsetup#5")); err != nil {
		t.Fatal("logout must keep the record")
	}
}

func TestSession_DevicesAreIndependent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a, _ := s.Login(ctx, "phone", "DMDsetup#6", "52016")
	b, _ := s.Login(ctx, "tablet", "DMDsetup#7", "52017")

	if err := a.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if ok, _ := b.Active(ctx); !ok {
		t.Fatal("logging out one device must not end another")
	}
	resumed, err := s.Resume(ctx, "tablet")
	if err != nil || resumed.Username() != "DMDsetup#7" {
		t.Fatalf("resume = %v, %v", resumed, err)
	}
	if _, err := s.Resume(ctx, "phone"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestLogin_ExistingRecordIsKept(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	sess, _ := s.Login(ctx, "", "DMDsetup#8", "52018")
	_ = sess.SaveProfile(ctx, validProfile())
	_ = sess.Logout(ctx)

	again, err := s.Login(ctx, "", "DMDsetup#8", "52018")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	r, _ := again.UserData(ctx)
	if r.Profile == nil {
		t.Fatal("second login must not reset the record")
	}
}

type flakyKV struct {
	*kv.Memory
	failPrefix string
	ttls       map[string]time.Duration
}

func (f *flakyKV) Set(ctx context.Context, key, value string) error {
	if f.failPrefix != "" && strings.HasPrefix(key, f.failPrefix) {
		return errors.New("disk full")
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *flakyKV) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if f.ttls == nil {
		f.ttls = map[string]time.Duration{}
	}
	f.ttls[key] = ttl
	return f.Memory.SetWithTTL(ctx, key, value, ttl)
}

func TestLogin_RecordFailureLeavesDeviceUnset(t *testing.T) {
	a, _ := auth.NewStaticAuthenticator("", nil)
	store := &flakyKV{Memory: kv.NewMemory(), failPrefix: recordPrefix}
	s := NewStore(store, a, Latencies{}, nil)
	ctx := context.Background()

	if _, err := s.Login(ctx, "phone", "DMDsetup#1", "52011"); err == nil {
		t.Fatal("login should fail when the record cannot be written")
	}
	if _, ok, _ := s.CurrentUser(ctx, "phone"); ok {
		t.Fatal("device must not point at a user without a record")
	}
}

func TestLogin_CurrentUserExpiresWithSession(t *testing.T) {
	a, _ := auth.NewStaticAuthenticator("", nil)
	store := &flakyKV{Memory: kv.NewMemory()}
	s := NewStore(store, a, Latencies{}, nil, WithSessionTTL(2*time.Hour))

	if _, err := s.Login(context.Background(), "phone", "DMDsetup#1", "52011"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if got := store.ttls[CurrentUserKey("phone")]; got != 2*time.Hour {
		t.Fatalf("current-user ttl = %s", got)
	}
	if _, ok := store.ttls[RecordKey("DMDsetup#1")]; ok {
		t.Fatal("user records must not expire")
	}
}
