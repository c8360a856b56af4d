// Package lspclient is a backend driving an external language server over stdio.
// Every compiled snippet is written into a scaffolded workspace and opened as a
// document; hovers, completions and diagnostics are answered by the server.
package lspclient

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/twoslash/pkg/backend"
	"github.com/walteh/twoslash/pkg/project"
	"github.com/walteh/twoslash/pkg/rpclog"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
)

const (
	Name = "lsp"

	DefaultDiagnosticsWait = 5 * time.Second
)

var ErrNoCommand = errors.Base("no language server command configured")

var _ backend.Backend = (*Backend)(nil)

// Backend is a connection to one language server.
type Backend struct {
	settings backend.Settings
	client   *jrpc2.Client
	project  *project.Project
	caps     ServerCapabilities
	cmd      *exec.Cmd
	store    *diagnosticStore
	versions atomic.Int32
	closeMu  sync.Mutex
	closed   bool
}

// New launches settings.Command and initializes it on a workspace scaffolded in
// settings.WorkDir.
func New(ctx context.Context, s backend.Settings) (backend.Backend, error) {
	if len(s.Command) == 0 {
		return nil, ErrNoCommand
	}

	cmd := exec.Command(s.Command[0], s.Command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Errorf("opening stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Errorf("opening stdout: %w", err)
	}
	cmd.Stderr = zerolog.Ctx(ctx).With().Str("lsp_server", s.Command[0]).Logger()

	if err := cmd.Start(); err != nil {
		return nil, errors.Errorf("starting %s: %w", s.Command[0], err)
	}

	zerolog.Ctx(ctx).Debug().Strs("command", s.Command).Int("pid", cmd.Process.Pid).Msg("started language server")

	b, err := Connect(ctx, channel.LSP(stdout, stdin), s, afero.NewOsFs())
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}
	b.cmd = cmd
	return b, nil
}

// Connect initializes a language server reachable over ch.
func Connect(ctx context.Context, ch channel.Channel, s backend.Settings, fs afero.Fs) (*Backend, error) {
	if s.DiagnosticsWait <= 0 {
		s.DiagnosticsWait = DefaultDiagnosticsWait
	}
	if s.FileName == "" {
		s.FileName = "snippet" + s.Extension
	}

	proj, err := project.Scaffold(ctx, fs, s.WorkDir, s.Manifest)
	if err != nil {
		return nil, err
	}

	me := &Backend{
		settings: s,
		project:  proj,
		store:    newDiagnosticStore(),
	}

	logger := zerolog.Ctx(ctx).With().Str("lsp_role", "client").Logger()
	me.client = jrpc2.NewClient(ch, &jrpc2.ClientOptions{
		Logger: rpclog.ClientLogger(ctx, "client"),
		OnNotify: func(req *jrpc2.Request) {
			me.onNotify(logger, req)
		},
		OnCallback: me.onCallback,
	})

	if err := me.initialize(ctx); err != nil {
		return nil, multierr.Combine(err, me.client.Close(), proj.Close())
	}

	return me, nil
}

func (me *Backend) Name() string { return Name }

func (me *Backend) Extension() string {
	if me.settings.Extension != "" {
		return me.settings.Extension
	}
	return filepath.Ext(me.settings.FileName)
}

func (me *Backend) initialize(ctx context.Context) error {
	pid := int32(os.Getpid())
	root := fileURI(me.project.Root())
	params := &InitializeParams{
		ProcessID:    &pid,
		ClientInfo:   &ClientInfo{Name: "twoslash"},
		RootURI:      root,
		Capabilities: clientCapabilities,
		WorkspaceFolders: []WorkspaceFolder{
			{URI: root, Name: filepath.Base(me.project.Root())},
		},
	}

	var result InitializeResult
	if err := me.client.CallResult(ctx, "initialize", params, &result); err != nil {
		return errors.Errorf("initializing language server: %w", err)
	}
	me.caps = result.Capabilities

	if err := me.client.Notify(ctx, "initialized", struct{}{}); err != nil {
		return errors.Errorf("sending initialized: %w", err)
	}

	ev := zerolog.Ctx(ctx).Debug().Bool("pull_diagnostics", me.caps.PullsDiagnostics())
	if result.ServerInfo != nil {
		ev = ev.Str("server", result.ServerInfo.Name).Str("version", result.ServerInfo.Version)
	}
	ev.Msg("language server initialized")

	return nil
}

var clientCapabilities = json.RawMessage(`{
	"textDocument": {
		"hover": {"contentFormat": ["markdown", "plaintext"]},
		"completion": {"completionItem": {"snippetSupport": false}},
		"publishDiagnostics": {"relatedInformation": false},
		"diagnostic": {"dynamicRegistration": false}
	},
	"workspace": {"configuration": true, "workspaceFolders": true}
}`)

func (me *Backend) onNotify(logger zerolog.Logger, req *jrpc2.Request) {
	switch req.Method() {
	case "textDocument/publishDiagnostics":
		var params PublishDiagnosticsParams
		if err := req.UnmarshalParams(&params); err != nil {
			logger.Warn().Err(err).Msg("decoding published diagnostics")
			return
		}
		me.store.publish(params.URI, params.Diagnostics)
	case "window/logMessage", "window/showMessage":
		logger.Debug().Str("params", req.ParamString()).Msg(req.Method())
	default:
		logger.Trace().Str("method", req.Method()).Msg("ignoring notification")
	}
}

// onCallback answers the requests servers commonly send during startup.
func (me *Backend) onCallback(ctx context.Context, req *jrpc2.Request) (any, error) {
	switch req.Method() {
	case "workspace/configuration":
		var params ConfigurationParams
		if err := req.UnmarshalParams(&params); err != nil {
			return nil, err
		}
		return make([]any, len(params.Items)), nil
	case "workspace/workspaceFolders":
		return []WorkspaceFolder{{URI: fileURI(me.project.Root()), Name: filepath.Base(me.project.Root())}}, nil
	default:
		return nil, nil
	}
}

// Compile writes text as a new document and opens it on the server.
func (me *Backend) Compile(ctx context.Context, text string) (backend.Snapshot, error) {
	unit, err := me.project.NewUnit(ctx, me.settings.FileName, text)
	if err != nil {
		return nil, &backend.CompileError{Backend: Name, Detail: "writing unit", Err: err}
	}

	uri := fileURI(unit.Path)
	published := me.store.expect(uri)

	err = me.client.Notify(ctx, "textDocument/didOpen", &DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        uri,
			LanguageID: me.settings.LanguageID,
			Version:    me.versions.Add(1),
			Text:       text,
		},
	})
	if err != nil {
		me.store.forget(uri)
		return nil, &backend.CompileError{Backend: Name, Detail: "opening document", Err: multierr.Append(err, unit.Remove())}
	}

	return newSnapshot(me, unit, uri, text, published), nil
}

// Close shuts the server down and removes the workspace.
func (me *Backend) Close() error {
	me.closeMu.Lock()
	defer me.closeMu.Unlock()
	if me.closed {
		return nil
	}
	me.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if _, cerr := me.client.Call(ctx, "shutdown", nil); cerr != nil {
		err = multierr.Append(err, errors.Errorf("shutting down language server: %w", cerr))
	}
	_ = me.client.Notify(ctx, "exit", nil)
	err = multierr.Append(err, me.client.Close())

	if me.cmd != nil {
		done := make(chan error, 1)
		go func() { done <- me.cmd.Wait() }()
		select {
		case <-done:
		case <-ctx.Done():
			_ = me.cmd.Process.Kill()
			<-done
		}
	}

	return multierr.Append(err, me.project.Close())
}

func fileURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// diagnosticStore keeps the latest published diagnostics per document.
type diagnosticStore struct {
	mu      sync.Mutex
	latest  map[string][]Diagnostic
	waiters map[string]chan struct{}
}

func newDiagnosticStore() *diagnosticStore {
	return &diagnosticStore{
		latest:  make(map[string][]Diagnostic),
		waiters: make(map[string]chan struct{}),
	}
}

// expect registers interest in uri. The returned channel closes on the first publish.
func (me *diagnosticStore) expect(uri string) <-chan struct{} {
	me.mu.Lock()
	defer me.mu.Unlock()
	ch := make(chan struct{})
	me.waiters[uri] = ch
	return ch
}

func (me *diagnosticStore) publish(uri string, diags []Diagnostic) {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.latest[uri] = diags
	if ch, ok := me.waiters[uri]; ok {
		close(ch)
		delete(me.waiters, uri)
	}
}

// wait returns the diagnostics published for uri, waiting up to timeout for the first
// publish. The bool is false when nothing was published in time.
func (me *diagnosticStore) wait(ctx context.Context, uri string, published <-chan struct{}, timeout time.Duration) ([]Diagnostic, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-published:
	case <-timer.C:
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}

	me.mu.Lock()
	defer me.mu.Unlock()
	return me.latest[uri], true, nil
}

func (me *diagnosticStore) forget(uri string) {
	me.mu.Lock()
	defer me.mu.Unlock()
	delete(me.latest, uri)
	delete(me.waiters, uri)
}
