package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.gigchat. GIGCHAT_HOME overrides it.
func BaseDir() string {
	if dir := os.Getenv("GIGCHAT_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".gigchat")
}

// Dir returns the profile-specific directory.
func Dir(profile string) string {
	return filepath.Join(BaseDir(), "profiles", profile)
}

// SocketPath returns the control API socket path for a profile.
func SocketPath(profile string) string {
	return filepath.Join(Dir(profile), "gigchat.sock")
}

// LockPath returns the lock file path for a profile.
func LockPath(profile string) string {
	return filepath.Join(Dir(profile), "LOCK")
}

// FilePath returns the credentials file of a profile.
func FilePath(profile string) string {
	return filepath.Join(Dir(profile), "session.toml")
}

// DBPath returns the local journal database path.
func DBPath(profile string) string {
	return filepath.Join(Dir(profile), "gigchat.db")
}

// LogDir returns the log directory for a profile.
func LogDir(profile string) string {
	return filepath.Join(Dir(profile), "logs")
}

// LogPath returns the client log file path.
func LogPath(profile string) string {
	return filepath.Join(LogDir(profile), "gigchat.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree with proper permissions.
func EnsureDir(profile string) error {
	dirs := []string{
		Dir(profile),
		LogDir(profile),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
