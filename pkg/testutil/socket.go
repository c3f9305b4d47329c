package testutil

import (
	"net"
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

// SocketPair returns both ends of a connected Unix stream socket pair.
// Both ends are closed when the test completes.
func SocketPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Failed to create socket pair: %v", err)
	}

	a := fileConn(t, fds[0], "fls-test-a")
	b := fileConn(t, fds[1], "fls-test-b")

	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func fileConn(t *testing.T, fd int, name string) net.Conn {
	t.Helper()

	f := os.NewFile(uintptr(fd), name)
	defer func() {
		_ = f.Close()
	}()

	conn, err := net.FileConn(f)
	if err != nil {
		t.Fatalf("Failed to wrap socket %s: %v", name, err)
	}
	return conn
}

// ShortSocketDir returns a temporary directory whose path is short enough
// to hold a Unix socket. t.TempDir paths can exceed the sun_path limit on
// some systems.
func ShortSocketDir(t *testing.T) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "fls")
	if err != nil {
		t.Fatalf("Failed to create socket directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(dir)
	})
	return dir
}
