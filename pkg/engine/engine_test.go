package engine

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/fls/pkg/actions"
	"github.com/arthur-debert/fls/pkg/daemon"
	"github.com/arthur-debert/fls/pkg/errors"
	"github.com/arthur-debert/fls/pkg/protocol"
	"github.com/arthur-debert/fls/pkg/testutil"
	"github.com/arthur-debert/fls/pkg/ui"
	"github.com/arthur-debert/fls/pkg/ui/confirmations"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, argv []string) error {
	args := m.Called(ctx, argv)
	return args.Error(0)
}

type mockPrompter struct {
	mock.Mock
}

func (m *mockPrompter) ConfirmBatch(verb string, n int, dest string) (confirmations.Answer, error) {
	args := m.Called(verb, n, dest)
	return args.Get(0).(confirmations.Answer), args.Error(1)
}

func (m *mockPrompter) ConfirmItem(verb, source, dest string) (confirmations.Answer, error) {
	args := m.Called(verb, source, dest)
	return args.Get(0).(confirmations.Answer), args.Error(1)
}

func (m *mockPrompter) ConfirmStop() (bool, error) {
	args := m.Called()
	return args.Bool(0), args.Error(1)
}

// failingPops lets the first ok pops through, then fails every pop.
type failingPops struct {
	*protocol.Client
	ok int
}

func (f *failingPops) Pop() (string, error) {
	if f.ok <= 0 {
		return "", errors.New(errors.ErrTransport, "connection reset")
	}
	f.ok--
	return f.Client.Pop()
}

// recordingClient notes every command sent to the daemon.
type recordingClient struct {
	*protocol.Client
	sent []string
}

func (r *recordingClient) Size() (int, error) {
	r.sent = append(r.sent, protocol.CmdSize)
	return r.Client.Size()
}

func (r *recordingClient) Push(path string) (string, error) {
	r.sent = append(r.sent, protocol.CmdPush)
	return r.Client.Push(path)
}

func (r *recordingClient) Pop() (string, error) {
	r.sent = append(r.sent, protocol.CmdPop)
	return r.Client.Pop()
}

func (r *recordingClient) Peek() (string, error) {
	r.sent = append(r.sent, protocol.CmdPeek)
	return r.Client.Peek()
}

func (r *recordingClient) Pick(index int) (string, error) {
	r.sent = append(r.sent, protocol.CmdPick)
	return r.Client.Pick(index)
}

func (r *recordingClient) Stop() error {
	r.sent = append(r.sent, protocol.CmdStop)
	return r.Client.Stop()
}

func (r *recordingClient) Send(text string) error {
	r.sent = append(r.sent, text)
	return r.Client.Send(text)
}

type harness struct {
	client   *protocol.Client
	runner   *mockRunner
	prompter *mockPrompter
	out      *bytes.Buffer
	stopped  chan bool
}

// newHarness connects a client to a real daemon session over a
// socketpair and pushes entries, bottom first.
func newHarness(t *testing.T, capacity int, entries ...string) *harness {
	t.Helper()

	clientConn, serverConn := testutil.SocketPair(t)
	d := daemon.New(nil, "", capacity, protocol.DefaultLimits())
	stopped := make(chan bool, 1)
	go func() {
		stopped <- d.ServeConn(serverConn)
	}()

	c := protocol.NewClient(clientConn, protocol.DefaultLimits())
	for _, e := range entries {
		_, err := c.Push(e)
		require.NoError(t, err)
	}

	return &harness{
		client:   c,
		runner:   &mockRunner{},
		prompter: &mockPrompter{},
		out:      &bytes.Buffer{},
		stopped:  stopped,
	}
}

func (h *harness) engine(opts Options) *Engine {
	if opts.Client == nil {
		opts.Client = h.client
	}
	opts.Runner = h.runner
	opts.Prompter = h.prompter
	opts.Printer = ui.NewPrinter(h.out, ui.FormatText)
	return New(opts)
}

func (h *harness) size(t *testing.T) int {
	t.Helper()
	n, err := h.client.Size()
	require.NoError(t, err)
	return n
}

func canonicalTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func TestPushPrintDrop(t *testing.T) {
	root := canonicalTempDir(t)
	file := testutil.CreateFile(t, root, "a.txt", "hello")
	h := newHarness(t, 10)
	e := h.engine(Options{})

	require.NoError(t, e.Execute(context.Background(), Request{Kind: actions.Push, Files: []string{file}}))
	assert.Equal(t, "Pushed `"+file+"'\n", h.out.String())
	assert.Equal(t, 1, h.size(t))

	top, err := h.client.Pick(0)
	require.NoError(t, err)
	assert.Equal(t, file, top)

	h.out.Reset()
	require.NoError(t, e.Execute(context.Background(), Request{Kind: actions.Print}))
	assert.Equal(t, "1 file in stack\n0: "+file+"\n", h.out.String())

	h.out.Reset()
	require.NoError(t, e.Execute(context.Background(), Request{Kind: actions.Drop, Count: 1}))
	assert.Equal(t, file+"\n", h.out.String())
	assert.Equal(t, 0, h.size(t))
}

func TestPushDirectoryGetsTrailingSlash(t *testing.T) {
	root := canonicalTempDir(t)
	dir := testutil.CreateDir(t, root, "photos")
	h := newHarness(t, 10)

	require.NoError(t, h.engine(Options{}).Push([]string{dir}))
	top, err := h.client.Peek()
	require.NoError(t, err)
	assert.Equal(t, dir+"/", top)
}

func TestPushMissingFile(t *testing.T) {
	h := newHarness(t, 10)
	err := h.engine(Options{}).Push([]string{filepath.Join(t.TempDir(), "nope")})
	assert.True(t, errors.IsErrorCode(err, errors.ErrFileNotFound))
	assert.Equal(t, 0, h.size(t))
}

func TestPushStackFull(t *testing.T) {
	root := canonicalTempDir(t)
	a := testutil.CreateFile(t, root, "a", "")
	b := testutil.CreateFile(t, root, "b", "")
	h := newHarness(t, 1)

	err := h.engine(Options{}).Push([]string{a, b})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrStackFull))
	assert.Contains(t, err.Error(), "Could not push")
	assert.Equal(t, 1, h.size(t))
}

func TestPrintJSON(t *testing.T) {
	h := newHarness(t, 10, "/src/a", "/src/b/")
	e := h.engine(Options{})
	e.printer = ui.NewPrinter(h.out, ui.FormatJSON)

	require.NoError(t, e.Print())
	assert.JSONEq(t, `{"size": 2, "entries": [
		{"index": 0, "path": "/src/b/"},
		{"index": 1, "path": "/src/a"}
	]}`, h.out.String())
}

func TestPickBeyondDepth(t *testing.T) {
	h := newHarness(t, 10, "/src/a", "/src/b")

	_, err := h.client.Pick(5)
	assert.True(t, errors.IsErrorCode(err, errors.ErrIndexOutOfRange))
	assert.Equal(t, 2, h.size(t))
}

func TestDropMoreThanDepth(t *testing.T) {
	h := newHarness(t, 10, "/src/a")
	e := h.engine(Options{})

	err := e.Drop(2)
	assert.True(t, errors.IsErrorCode(err, errors.ErrCountExceedsDepth))
	assert.Contains(t, err.Error(), "asked to drop 2 files, only 1 in stack")
	assert.Equal(t, 1, h.size(t))

	h2 := newHarness(t, 10)
	err = h2.engine(Options{}).Drop(1)
	assert.Contains(t, err.Error(), "cannot pop, file stack empty")
}

func TestDropReportsPartialProgress(t *testing.T) {
	h := newHarness(t, 10, "/src/a", "/src/b", "/src/c")
	e := h.engine(Options{Client: &failingPops{Client: h.client, ok: 1}})

	err := e.Drop(3)
	assert.True(t, errors.IsErrorCode(err, errors.ErrTransport))
	assert.Equal(t, "/src/c\npopped 1 file\n", h.out.String())
	assert.Equal(t, 2, h.size(t))
}

func TestStop(t *testing.T) {
	h := newHarness(t, 10, "/src/a")
	e := h.engine(Options{})

	h.prompter.On("ConfirmStop").Return(false, nil).Once()
	err := e.Stop()
	assert.True(t, errors.IsErrorCode(err, errors.ErrCanceled))
	assert.Equal(t, 1, h.size(t))

	h.prompter.On("ConfirmStop").Return(true, nil).Once()
	require.NoError(t, e.Stop())
	assert.Equal(t, "Server shutting down.\n", h.out.String())

	select {
	case stop := <-h.stopped:
		assert.True(t, stop)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}
	h.prompter.AssertExpectations(t)
}

func TestStopEmptyStackDoesNotAsk(t *testing.T) {
	h := newHarness(t, 10)
	require.NoError(t, h.engine(Options{}).Stop())
	h.prompter.AssertNotCalled(t, "ConfirmStop")
}

func TestInteractive(t *testing.T) {
	h := newHarness(t, 10)
	input := strings.Join([]string{
		"size",
		"push",
		"/tmp/x",
		"bogus",
		strings.Repeat("x", protocol.DefaultPathMax),
		"q",
		"size",
	}, "\n") + "\n"
	e := h.engine(Options{Input: strings.NewReader(input), ProbeInterval: 100 * time.Millisecond})

	require.NoError(t, e.Interactive())

	want := "> recv> `0'\n" +
		"> recv> `okay'\n" +
		"> recv> `okay'\nrecv> `/tmp/x'\n" +
		"> recv> `error'\nrecv> `unknown command `bogus''\n" +
		"> Didn't send, input too long\n" +
		"> "
	assert.Equal(t, want, h.out.String())
	assert.Equal(t, 1, h.size(t))
}

func TestInteractiveEOF(t *testing.T) {
	h := newHarness(t, 10)
	e := h.engine(Options{Input: strings.NewReader(""), ProbeInterval: 10 * time.Millisecond})
	require.NoError(t, e.Interactive())
	assert.Equal(t, "> \n", h.out.String())
}

func TestExecuteUnknownKind(t *testing.T) {
	h := newHarness(t, 10)
	err := h.engine(Options{}).Execute(context.Background(), Request{Kind: actions.Kind("teleport")})
	assert.True(t, errors.IsErrorCode(err, errors.ErrActionInvalid))
}
