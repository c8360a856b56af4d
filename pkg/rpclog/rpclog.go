// Package rpclog records and logs the JSON-RPC traffic of the twoslash server and the
// language servers it drives.
package rpclog

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/rs/zerolog"
)

// Message is one request or response seen by a Tracker.
type Message struct {
	Method   string
	Request  *jrpc2.Request
	Response *jrpc2.Response
	Time     time.Time
}

var (
	_ jrpc2.RPCLogger = (*Tracker)(nil)
	_ jrpc2.RPCLogger = (*Multi)(nil)
	_ jrpc2.RPCLogger = Zerolog{}
)

// Tracker keeps every message it logs and lets callers wait for specific ones.
type Tracker struct {
	mu sync.RWMutex

	messages     []Message
	subs         map[chan<- Message]struct{}
	knownMethods map[string]string
}

func NewTracker() *Tracker {
	return &Tracker{
		subs:         make(map[chan<- Message]struct{}),
		knownMethods: make(map[string]string),
	}
}

func (t *Tracker) LogRequest(ctx context.Context, req *jrpc2.Request) {
	if !req.IsNotification() {
		t.mu.Lock()
		t.knownMethods[req.ID()] = req.Method()
		t.mu.Unlock()
	}
	t.track(Message{Method: req.Method(), Request: req})
}

func (t *Tracker) LogResponse(ctx context.Context, rsp *jrpc2.Response) {
	t.mu.RLock()
	method := t.knownMethods[rsp.ID()]
	t.mu.RUnlock()
	t.track(Message{Method: method, Response: rsp})
}

func (t *Tracker) track(msg Message) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	msg.Time = time.Now()
	t.messages = append(t.messages, msg)

	for ch := range t.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Messages returns every tracked message.
func (t *Tracker) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Message{}, t.messages...)
}

// Methods returns the methods of the tracked requests in arrival order.
func (t *Tracker) Methods() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	methods := make([]string, 0, len(t.messages))
	for _, msg := range t.messages {
		if msg.Request != nil {
			methods = append(methods, msg.Method)
		}
	}
	return methods
}

func (t *Tracker) subscribe(size int) (<-chan Message, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan Message, size)
	t.subs[ch] = struct{}{}

	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, ch)
		close(ch)
	}
}

// WaitFor blocks until count messages matching predicate were tracked or timeout
// passes. It reports whether enough messages arrived.
func (t *Tracker) WaitFor(count int, timeout time.Duration, predicate func(Message) bool) ([]Message, bool) {
	ch, unsub := t.subscribe(16)
	defer unsub()

	result := slices.DeleteFunc(t.Messages(), func(msg Message) bool { return !predicate(msg) })
	if len(result) >= count {
		return result, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case msg := <-ch:
			if predicate(msg) {
				result = append(result, msg)
			}
			if len(result) >= count {
				return result, true
			}
		case <-timer.C:
			return result, false
		}
	}
}

// Multi fans out to several loggers.
type Multi struct {
	mu      sync.Mutex
	loggers []jrpc2.RPCLogger
}

func NewMulti(loggers ...jrpc2.RPCLogger) *Multi {
	return &Multi{loggers: loggers}
}

func (m *Multi) Add(logger jrpc2.RPCLogger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loggers = append(m.loggers, logger)
}

func (m *Multi) LogRequest(ctx context.Context, req *jrpc2.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, logger := range m.loggers {
		logger.LogRequest(ctx, req)
	}
}

func (m *Multi) LogResponse(ctx context.Context, rsp *jrpc2.Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, logger := range m.loggers {
		logger.LogResponse(ctx, rsp)
	}
}

// Zerolog writes traffic at trace level to the logger in the request context.
type Zerolog struct {
	Role string
}

func (z Zerolog) LogRequest(ctx context.Context, req *jrpc2.Request) {
	zerolog.Ctx(ctx).Trace().
		Str("rpc_role", z.Role).
		Str("rpc_method", req.Method()).
		Str("rpc_id", req.ID()).
		Str("params", req.ParamString()).
		Msg("rpc request")
}

func (z Zerolog) LogResponse(ctx context.Context, rsp *jrpc2.Response) {
	ev := zerolog.Ctx(ctx).Trace().
		Str("rpc_role", z.Role).
		Str("rpc_id", rsp.ID())
	if err := rsp.Error(); err != nil {
		ev = ev.Err(err)
	} else {
		ev = ev.Str("result", rsp.ResultString())
	}
	ev.Msg("rpc response")
}

// ClientLogger adapts the logger in ctx to the debug logger of a jrpc2 client.
func ClientLogger(ctx context.Context, role string) jrpc2.Logger {
	logger := zerolog.Ctx(ctx).With().Str("rpc_role", role).Logger()
	return func(text string) {
		logger.Trace().Msg(text)
	}
}
