package serve_test

import (
	"context"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/twoslash/cmd/twoslash/serve"
	"github.com/walteh/twoslash/pkg/backend/backendtest"
	"github.com/walteh/twoslash/pkg/batch"
	"github.com/walteh/twoslash/pkg/rpclog"
	"github.com/walteh/twoslash/pkg/session"
	"github.com/walteh/twoslash/pkg/twoslash"
)

func newClient(t *testing.T) (*jrpc2.Client, *backendtest.Fake) {
	cli, fake, _ := newTrackedClient(t)
	return cli, fake
}

func newTrackedClient(t *testing.T) (*jrpc2.Client, *backendtest.Fake, *rpclog.Tracker) {
	t.Helper()
	ctx := context.Background()

	fake := &backendtest.Fake{Hovers: map[string]string{"bar": "(method) bar()"}}
	proc := twoslash.NewProcessor(fake, twoslash.Options{})
	runner, err := batch.New(proc, batch.Options{})
	require.NoError(t, err)

	cch, sch := channel.Direct()
	tracker := rpclog.NewTracker()
	srv := serve.NewServer(ctx, &session.Session{Backend: fake, Processor: proc, Runner: runner}, sch, tracker)
	cli := jrpc2.NewClient(cch, nil)
	t.Cleanup(func() {
		cli.Close()
		srv.Stop()
	})
	return cli, fake, tracker
}

func TestProcess(t *testing.T) {
	ctx := context.Background()
	cli, fake := newClient(t)

	var res twoslash.Result
	require.NoError(t, cli.CallResult(ctx, "twoslash/process", serve.ProcessParams{Source: "foo.bar()\n//   ^?"}, &res))
	assert.Equal(t, "foo.bar()", res.Code)
	require.Len(t, res.Queries, 1)
	require.NotNil(t, res.Queries[0].Text)
	assert.Equal(t, "(method) bar()", *res.Queries[0].Text)

	_, err := cli.Call(ctx, "twoslash/process", serve.ProcessParams{Source: "//  ^?\nlet a = 1;"})
	require.Error(t, err)
	assert.Equal(t, 1, fake.Compiles(), "malformed sources never reach the backend")
}

func TestBatch(t *testing.T) {
	ctx := context.Background()
	cli, fake := newClient(t)

	var items []serve.BatchItem
	require.NoError(t, cli.CallResult(ctx, "twoslash/batch", serve.BatchParams{Documents: []serve.BatchDocument{
		{Name: "a", Source: "foo.bar()\n//   ^?"},
		{Name: "b", Source: "//  ^?\nlet a = 1;"},
	}}, &items))

	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Name)
	require.NotNil(t, items[0].Result)
	assert.Empty(t, items[0].Error)
	assert.Equal(t, "b", items[1].Name)
	assert.Nil(t, items[1].Result)
	assert.NotEmpty(t, items[1].Error)
	assert.Equal(t, 1, fake.Compiles())
}

func TestInfo(t *testing.T) {
	cli, _, tracker := newTrackedClient(t)

	var info serve.Info
	require.NoError(t, cli.CallResult(context.Background(), "twoslash/info", nil, &info))
	assert.Equal(t, serve.Info{Backend: "fake", Extension: ".fake"}, info)

	responses, ok := tracker.WaitFor(1, time.Second, func(m rpclog.Message) bool { return m.Response != nil })
	require.True(t, ok)
	assert.Equal(t, "twoslash/info", responses[0].Method)
	assert.Equal(t, []string{"twoslash/info"}, tracker.Methods())
}
