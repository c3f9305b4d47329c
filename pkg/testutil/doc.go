// Package testutil holds helpers shared by fls tests: file fixtures on
// the real filesystem and connected socket pairs for exercising the
// protocol without a listening daemon.
package testutil
