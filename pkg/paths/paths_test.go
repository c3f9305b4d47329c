package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/fls/pkg/errors"
	"github.com/arthur-debert/fls/pkg/testutil"
)

// canonicalTempDir returns t.TempDir with symlinks resolved, since some
// platforms put it behind a link (/tmp -> /private/tmp).
func canonicalTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(orig)
	})
}

func TestAbsPath(t *testing.T) {
	root := canonicalTempDir(t)
	file := testutil.CreateFile(t, root, "notes.txt", "hello")
	dir := testutil.CreateDir(t, root, "photos")
	testutil.CreateSymlink(t, file, filepath.Join(root, "link.txt"))

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr errors.ErrorCode
	}{
		{name: "regular file", input: file, want: file},
		{name: "directory gets trailing slash", input: dir, want: dir + "/"},
		{name: "symlink is canonicalized", input: filepath.Join(root, "link.txt"), want: file},
		{name: "dot segments", input: filepath.Join(dir, "..", "notes.txt"), want: file},
		{name: "root keeps single slash", input: "/", want: "/"},
		{name: "missing file", input: filepath.Join(root, "nope"), wantErr: errors.ErrFileNotFound},
		{name: "empty", input: "", wantErr: errors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AbsPath(tt.input)
			if tt.wantErr != "" {
				assert.True(t, errors.IsErrorCode(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAbsPathRelative(t *testing.T) {
	root := canonicalTempDir(t)
	testutil.CreateFile(t, root, "a.txt", "")
	chdir(t, root)

	got, err := AbsPath("a.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "a.txt"), got)
}

func TestRealTarget(t *testing.T) {
	root := canonicalTempDir(t)
	dir := testutil.CreateDir(t, root, "dest")
	existing := testutil.CreateFile(t, root, "exists.txt", "")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr errors.ErrorCode
	}{
		{name: "existing directory", input: dir, want: dir + "/"},
		{name: "existing file", input: existing, want: existing},
		{name: "new name in existing directory", input: filepath.Join(dir, "new.txt"), want: dir + "/new.txt"},
		{name: "missing parent", input: filepath.Join(root, "nope", "new.txt"), wantErr: errors.ErrTargetDirMissing},
		{name: "parent is a file", input: filepath.Join(existing, "new.txt"), wantErr: errors.ErrTargetDirMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RealTarget(tt.input)
			if tt.wantErr != "" {
				assert.True(t, errors.IsErrorCode(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRealTargetDefaultsToWorkingDirectory(t *testing.T) {
	root := canonicalTempDir(t)
	chdir(t, root)

	got, err := RealTarget("")
	require.NoError(t, err)
	assert.Equal(t, root+"/", got)
	assert.True(t, IsDirPath(got))
}

func TestSocketPath(t *testing.T) {
	got := SocketPath("/run/user/1000")
	assert.Equal(t, "/run/user/1000", filepath.Dir(got))
	assert.True(t, strings.HasSuffix(got, SocketSuffix))
	assert.NotEqual(t, SocketSuffix, filepath.Base(got), "user name should prefix the socket name")

	got = SocketPath("")
	assert.Equal(t, filepath.Clean(os.TempDir()), filepath.Dir(got))
}

func TestXDGDirectories(t *testing.T) {
	t.Setenv(EnvFlsConfigDir, "")
	t.Setenv(EnvFlsStateDir, "")
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	t.Setenv("XDG_STATE_HOME", "/custom/state")

	assert.Equal(t, "/custom/config/fls", ConfigDir())
	assert.Equal(t, "/custom/config/fls/config.toml", ConfigFilePath())
	assert.Equal(t, "/custom/state/fls", StateDir())
	assert.Equal(t, "/custom/state/fls/fls.log", LogFilePath())

	t.Setenv(EnvFlsConfigDir, "/override/config")
	t.Setenv(EnvFlsStateDir, "/override/state")
	assert.Equal(t, "/override/config", ConfigDir())
	assert.Equal(t, "/override/state", StateDir())
}

func TestExpandHome(t *testing.T) {
	home, err := GetHomeDirectory()
	require.NoError(t, err)

	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, filepath.Join(home, "tmp"), ExpandHome("~/tmp"))
	assert.Equal(t, "~other/tmp", ExpandHome("~other/tmp"))
	assert.Equal(t, "/abs", ExpandHome("/abs"))
	assert.Equal(t, "", ExpandHome(""))
}
