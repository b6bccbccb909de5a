// Package session holds the signed-in identity of a profile and the on-disk
// layout under ~/.gigchat.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrNoSession is returned when a profile has no stored credentials.
var ErrNoSession = errors.New("no session: run `gigchatctl login` first")

// Session is the authenticated identity passed explicitly to every component
// that talks to the backend.
type Session struct {
	Profile string `toml:"-"`
	UserID  string `toml:"user_id"`
	Token   string `toml:"token"`
}

// Validate reports missing fields.
func (s Session) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return errors.New("session: user_id is empty")
	}
	if strings.TrimSpace(s.Token) == "" {
		return errors.New("session: token is empty")
	}
	return nil
}

// Load reads the credentials of profile. A missing file yields ErrNoSession.
func Load(profile string) (Session, error) {
	return LoadFile(profile, FilePath(profile))
}

// LoadFile reads credentials from path and tags them with profile.
func LoadFile(profile, path string) (Session, error) {
	var s Session
	if _, err := toml.DecodeFile(path, &s); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("read session %s: %w", path, err)
	}
	s.Profile = profile
	if err := s.Validate(); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Save stores the credentials of s.Profile with owner-only permissions.
func Save(s Session) error {
	return SaveFile(FilePath(s.Profile), s)
}

// SaveFile writes s to path, creating parent dirs as needed.
func SaveFile(path string, s Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(s)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Remove deletes the stored credentials of profile. Missing files are not an error.
func Remove(profile string) error {
	err := os.Remove(FilePath(profile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
