package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/hanzhi-dmd/companion/internal/logger"
)

type userEntry struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
}

type usersFile struct {
	Users []userEntry `yaml:"users"`
}

// StaticAuthenticator checks credentials against a fixed allow-list, either
// the built-in demo accounts or a YAML users file.
type StaticAuthenticator struct {
	mu    sync.RWMutex
	users map[string]userEntry
	path  string
	log   *logger.Logger
}

// DefaultUsers is the built-in allow-list: DMDsetup#1..9 with passwords
// 52011..52019.
func DefaultUsers() map[string]string {
	out := make(map[string]string, 9)
	for i := 1; i <= 9; i++ {
		out["DMDsetup#"+strconv.Itoa(i)] = strconv.Itoa(52010 + i)
	}
	return out
}

// NewStaticAuthenticator loads path when set and falls back to DefaultUsers.
func NewStaticAuthenticator(path string, log *logger.Logger) (*StaticAuthenticator, error) {
	a := &StaticAuthenticator{path: path, log: logger.OrNop(log).With("component", "auth")}
	if path == "" {
		users := make(map[string]userEntry)
		for u, p := range DefaultUsers() {
			users[u] = userEntry{Username: u, Password: p}
		}
		a.users = users
		return a, nil
	}
	if err := a.reload(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *StaticAuthenticator) Authenticate(ctx context.Context, c Credentials) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	a.mu.RLock()
	u, ok := a.users[c.Username]
	a.mu.RUnlock()
	if !ok || c.Password == "" {
		return Identity{}, ErrInvalidCredentials
	}
	if u.PasswordHash != "" {
		if !CheckPassword(u.PasswordHash, c.Password) {
			return Identity{}, ErrInvalidCredentials
		}
	} else if subtle.ConstantTimeCompare([]byte(u.Password), []byte(c.Password)) != 1 {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{Username: u.Username}, nil
}

func (a *StaticAuthenticator) Usernames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.users))
	for u := range a.users {
		out = append(out, u)
	}
	return out
}

func (a *StaticAuthenticator) reload() error {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return fmt.Errorf("auth: read users file: %w", err)
	}
	var f usersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("auth: parse users file: %w", err)
	}
	users := make(map[string]userEntry, len(f.Users))
	for i, u := range f.Users {
		u.Username = strings.TrimSpace(u.Username)
		if u.Username == "" || (u.Password == "" && u.PasswordHash == "") {
			return fmt.Errorf("auth: users file entry %d needs username and password or password_hash", i)
		}
		users[u.Username] = u
	}

	a.mu.Lock()
	a.users = users
	a.mu.Unlock()
	return nil
}

// Watch reloads the users file whenever it changes until ctx is done. A
// file that fails to parse leaves the previous allow-list in place.
func (a *StaticAuthenticator) Watch(ctx context.Context) error {
	if a.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// editors often replace the file, so watch the directory
	if err := w.Add(filepath.Dir(a.path)); err != nil {
		w.Close()
		return err
	}

	target := filepath.Clean(a.path)
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if err := a.reload(); err != nil {
					a.log.Warn("users file reload failed", "path", a.path, "err", err)
					continue
				}
				a.log.Info("users file reloaded", "path", a.path, "users", len(a.Usernames()))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				a.log.Warn("users file watcher error", "err", err)
			}
		}
	}()
	return nil
}
