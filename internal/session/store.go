// Package session persists the access/refresh token pair in encrypted local
// storage. It is the sole source of truth for "is a session present".
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dearfriend/dearfriend-go/internal/crypto/sessioncrypto"
	"github.com/dearfriend/dearfriend-go/internal/model"
)

// Store owns the local token pair. The API client borrows a read-only copy per
// request and writes back only through SetTokens during refresh.
type Store interface {
	// Tokens returns the stored pair, or nil when no complete pair is present.
	Tokens() (*model.SessionTokens, error)
	// SetTokens replaces the pair wholesale. Both fields must be non-empty.
	SetTokens(tokens model.SessionTokens) error
	// Clear destroys the session. Subsequent Tokens calls return nil.
	Clear() error
	// CurrentUser returns the user captured when the session was established,
	// or nil when no session is present.
	CurrentUser() (*model.CurrentUser, error)
}

const (
	keyFileName     = "key.bin"
	sessionFileName = "session.bin"

	sealPurpose = "dearfriend/session-v1"
)

// payload is the sealed on-disk shape. Tokens and the captured user live in
// one blob so a write replaces everything or nothing.
type payload struct {
	AccessToken  string             `json:"access_token"`
	RefreshToken string             `json:"refresh_token"`
	User         *model.CurrentUser `json:"user,omitempty"`
}

// FileStore keeps the pair in a single sealed file under dir. The seal key is
// a random local key generated on first use.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the storage directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("empty storage dir")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// DefaultDir returns the per-user config directory for the client.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "dearfriend")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "dearfriend")
}

// Tokens returns nil unless both tokens are present and non-empty, guarding
// against partial or corrupt state.
func (s *FileStore) Tokens() (*model.SessionTokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.read()
	if err != nil || p == nil {
		return nil, err
	}
	if p.AccessToken == "" || p.RefreshToken == "" {
		return nil, nil
	}
	return &model.SessionTokens{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}, nil
}

// SetTokens seals and writes the pair atomically (temp file + rename). The
// current user is re-captured from the access token subject on every write.
func (s *FileStore) SetTokens(tokens model.SessionTokens) error {
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return errors.New("partial token pair")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := payload{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         userFromToken(tokens.AccessToken),
	}
	return s.write(p)
}

// Clear removes the session file. Missing file is not an error.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(filepath.Join(s.dir, sessionFileName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// CurrentUser returns the captured user, or nil when no session is present.
func (s *FileStore) CurrentUser() (*model.CurrentUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.read()
	if err != nil || p == nil {
		return nil, err
	}
	if p.AccessToken == "" || p.RefreshToken == "" {
		return nil, nil
	}
	return p.User, nil
}

func (s *FileStore) read() (*payload, error) {
	blob, err := os.ReadFile(filepath.Join(s.dir, sessionFileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	key, err := s.sealKey()
	if err != nil {
		return nil, err
	}
	plain, err := sessioncrypto.Open(key, blob)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	var p payload
	if err := json.Unmarshal(plain, &p); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &p, nil
}

func (s *FileStore) write(p payload) error {
	key, err := s.sealKey()
	if err != nil {
		return err
	}
	plain, err := json.Marshal(p)
	if err != nil {
		return err
	}
	blob, err := sessioncrypto.Seal(key, plain)
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}

	dst := filepath.Join(s.dir, sessionFileName)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// sealKey loads the local master key, generating it on first use.
func (s *FileStore) sealKey() ([]byte, error) {
	path := filepath.Join(s.dir, keyFileName)
	master, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		master, err = sessioncrypto.Rand(sessioncrypto.KeyLen)
		if err != nil {
			return nil, err
		}
		if werr := os.WriteFile(path, master, 0o600); werr != nil {
			return nil, fmt.Errorf("write key file: %w", werr)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	if len(master) != sessioncrypto.KeyLen {
		return nil, errors.New("bad key file")
	}
	return sessioncrypto.DeriveKey(master, sealPurpose)
}

// userFromToken decodes the unverified access token claims. The server remains
// the authority; this only labels the local session for display and ownership
// checks.
func userFromToken(accessToken string) *model.CurrentUser {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil
	}
	u := &model.CurrentUser{}
	if sub, err := claims.GetSubject(); err == nil {
		u.ID = sub
	}
	if email, ok := claims["email"].(string); ok {
		u.Email = email
	}
	if u.ID == "" && u.Email == "" {
		return nil
	}
	return u
}
