package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStaticAuthenticator_DefaultAllowList(t *testing.T) {
	a, err := NewStaticAuthenticator("", nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	id, err := a.Authenticate(context.Background(), Credentials{Username: "DMDsetup#3", Password: "52013"})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if id.Username != "DMDsetup#3" {
		t.Fatalf("unexpected identity %+v", id)
	}

	for _, c := range []Credentials{
		{Username: "DMDsetup#3", Password: "52014"},
		{Username: "DMDsetup#10", Password: "52020"},
		{Username: "dmdsetup#1", Password: "52011"},
		{Username: "DMDsetup#1", Password: ""},
	} {
		if _, err := a.Authenticate(context.Background(), c); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("%+v: expected ErrInvalidCredentials, got %v", c, err)
		}
	}
}

func writeUsers(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write users file: %v", err)
	}
}

func TestStaticAuthenticator_FileWithHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	path := filepath.Join(t.TempDir(), "users.yaml")
	writeUsers(t, path, "users:\n  - username: alice\n    password_hash: \""+hash+"\"\n  - username: bob\n    password: plain\n")

	a, err := NewStaticAuthenticator(path, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := a.Authenticate(context.Background(), Credentials{Username: "alice", Password: "s3cret"}); err != nil {
		t.Fatalf("alice: %v", err)
	}
	if _, err := a.Authenticate(context.Background(), Credentials{Username: "bob", Password: "plain"}); err != nil {
		t.Fatalf("bob: %v", err)
	}
	if _, err := a.Authenticate(context.Background(), Credentials{Username: "DMDsetup#1", Password: "52011"}); err == nil {
		t.Fatal("a users file replaces the built-in list")
	}
}

func TestStaticAuthenticator_RejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	writeUsers(t, path, "users:\n  - username: nopass\n")
	if _, err := NewStaticAuthenticator(path, nil); err == nil {
		t.Fatal("expected error for entry without a password")
	}
}

func TestStaticAuthenticator_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	writeUsers(t, path, "users:\n  - username: carol\n    password: one\n")

	a, err := NewStaticAuthenticator(path, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Watch(ctx); err != nil {
		t.Fatalf("watch: %v", err)
	}

	writeUsers(t, path, "users:\n  - username: carol\n    password: two\n")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := a.Authenticate(context.Background(), Credentials{Username: "carol", Password: "two"}); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("users file change was not picked up")
}

func TestJWT_RoundTrip(t *testing.T) {
	tok, err := SignJWT("DMDsetup#1", "device-1", "secret", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := ParseJWT(tok, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "DMDsetup#1" || claims.Device != "device-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := ParseJWT(tok, "other"); err == nil {
		t.Fatal("expected signature error")
	}

	expired, _ := SignJWT("u", "d", "secret", -time.Minute)
	if _, err := ParseJWT(expired, "secret"); err == nil {
		t.Fatal("expected expiry error")
	}
}
