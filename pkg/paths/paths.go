// Package paths provides centralized path handling for fls.
// It resolves user-supplied file operands to canonical absolute paths,
// derives the per-user daemon socket endpoint, and locates the XDG
// config and state directories.
package paths

import (
	stderrors "errors"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/adrg/xdg"

	"github.com/arthur-debert/fls/pkg/errors"
)

// Environment variable names
const (
	// EnvFlsConfigDir overrides the XDG config directory for fls
	EnvFlsConfigDir = "FLS_CONFIG_DIR"

	// EnvFlsStateDir overrides the XDG state directory for fls
	EnvFlsStateDir = "FLS_STATE_DIR"

	// EnvHome is the standard home directory variable
	EnvHome = "HOME"

	// EnvUser names the login user when os/user cannot
	EnvUser = "USER"
)

const (
	// FlsDirName is the directory name for fls-specific files
	FlsDirName = "fls"

	// ConfigFileName is the name of the user configuration file
	ConfigFileName = "config.toml"

	// LogFileName is the name of the client log file
	LogFileName = "fls.log"

	// SocketSuffix is appended to the user name to form the socket file name
	SocketSuffix = "-fls.sock"
)

// ConfigDir returns the fls configuration directory
func ConfigDir() string {
	if dir := os.Getenv(EnvFlsConfigDir); dir != "" {
		return expandHome(dir)
	}
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, FlsDirName)
	}
	return filepath.Join(xdg.ConfigHome, FlsDirName)
}

// ConfigFilePath returns the path of the user configuration file
func ConfigFilePath() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}

// StateDir returns the fls state directory
func StateDir() string {
	if dir := os.Getenv(EnvFlsStateDir); dir != "" {
		return expandHome(dir)
	}
	// xdg.StateHome is fixed at init, so the variable is read directly
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, FlsDirName)
	}
	return filepath.Join(xdg.StateHome, FlsDirName)
}

// LogFilePath returns the path to the client log file
func LogFilePath() string {
	return filepath.Join(StateDir(), LogFileName)
}

// SocketPath returns the daemon endpoint for the current user inside dir.
// An empty dir means the OS temporary directory.
func SocketPath(dir string) string {
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(expandHome(dir), userName()+SocketSuffix)
}

// userName resolves the login name: os/user, then $USER, then the uid.
func userName() string {
	name := ""
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	if name == "" {
		name = os.Getenv(EnvUser)
	}
	if name == "" {
		name = strconv.Itoa(os.Getuid())
	}
	return strings.NewReplacer("/", "_", "\\", "_").Replace(name)
}

// AbsPath returns the canonical absolute path of an existing file, with a
// trailing separator when it is a directory other than the root.
func AbsPath(path string) (string, error) {
	if path == "" {
		return "", errors.New(errors.ErrInvalidInput, "empty path")
	}

	abs, err := filepath.Abs(expandHome(path))
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to get absolute path for `%s'", path)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) || stderrors.Is(err, syscall.ENOTDIR) {
			return "", errors.Wrapf(err, errors.ErrFileNotFound, "file `%s' does not exist", path).
				WithDetail("path", path)
		}
		return "", errors.Wrapf(err, errors.ErrFileAccess, "cannot resolve `%s'", path)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFileAccess, "cannot stat `%s'", resolved)
	}
	if info.IsDir() && resolved != string(filepath.Separator) {
		resolved += string(filepath.Separator)
	}
	return resolved, nil
}

// RealTarget resolves a destination operand. An existing target resolves
// like AbsPath. A missing target resolves to its canonical parent
// directory plus the final component; the parent must exist. An empty
// target means the current directory.
func RealTarget(target string) (string, error) {
	if target == "" {
		target = "."
	}

	resolved, err := AbsPath(target)
	if err == nil {
		return resolved, nil
	}
	if !errors.IsErrorCode(err, errors.ErrFileNotFound) {
		return "", err
	}

	cleaned := filepath.Clean(expandHome(target))
	dir, base := filepath.Dir(cleaned), filepath.Base(cleaned)

	parent, err := AbsPath(dir)
	if err != nil || !IsDirPath(parent) {
		return "", errors.Newf(errors.ErrTargetDirMissing, "target directory `%s' does not exist", dir).
			WithDetail("target", target)
	}
	return parent + base, nil
}

// IsDirPath reports whether a resolved path names a directory, using the
// trailing separator AbsPath adds.
func IsDirPath(resolved string) bool {
	return strings.HasSuffix(resolved, string(filepath.Separator))
}

// ExpandHome expands a leading ~ to the user's home directory
func ExpandHome(path string) string {
	return expandHome(path)
}

// expandHome expands ~ to the home directory
func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}

	homeDir, err := GetHomeDirectory()
	if err != nil {
		// Can't expand, return as-is
		return path
	}

	if len(path) == 1 {
		return homeDir
	}

	// Handle both ~/ and ~
	if path[1] == '/' || path[1] == filepath.Separator {
		return filepath.Join(homeDir, path[2:])
	}

	// ~something (not the user's home)
	return path
}

// GetHomeDirectory returns the user's home directory with proper error handling
func GetHomeDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Try the HOME environment variable as a fallback
		if home := os.Getenv(EnvHome); home != "" {
			return home, nil
		}
		return "", errors.Wrapf(err, errors.ErrFileAccess, "failed to get home directory")
	}
	return homeDir, nil
}
