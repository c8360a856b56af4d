package serve

import (
	"context"
	"io"
	"os"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/twoslash/pkg/batch"
	"github.com/walteh/twoslash/pkg/rpclog"
	"github.com/walteh/twoslash/pkg/session"
	"github.com/walteh/twoslash/pkg/twoslash"
)

type Handler struct {
	flags session.Flags
}

func NewServeCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve twoslash/process requests as JSON-RPC over stdio",
	}

	me.flags.Register(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return me.Run(cmd.Context(), os.Stdin, os.Stdout)
	}

	return cmd
}

type ProcessParams struct {
	Source string `json:"source"`
}

type BatchDocument struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

type BatchParams struct {
	Documents []BatchDocument `json:"documents"`
}

type BatchItem struct {
	Name   string           `json:"name"`
	Result *twoslash.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
	Cached bool             `json:"cached,omitempty"`
}

type Info struct {
	Backend   string `json:"backend"`
	Extension string `json:"extension"`
}

// Handlers exposes a session over JSON-RPC.
func Handlers(s *session.Session) handler.Map {
	return handler.Map{
		"twoslash/process": handler.New(func(ctx context.Context, p *ProcessParams) (*twoslash.Result, error) {
			res, _, err := s.Runner.Process(ctx, p.Source)
			return res, err
		}),
		"twoslash/batch": handler.New(func(ctx context.Context, p *BatchParams) ([]BatchItem, error) {
			docs := make([]batch.Document, 0, len(p.Documents))
			for _, d := range p.Documents {
				docs = append(docs, batch.Document{Name: d.Name, Source: d.Source})
			}
			// per-document failures are reported in the items
			outcomes, _ := s.Runner.Run(ctx, docs)
			items := make([]BatchItem, 0, len(outcomes))
			for _, o := range outcomes {
				item := BatchItem{Name: o.Name, Result: o.Result, Cached: o.Cached}
				if o.Err != nil {
					item.Error = o.Err.Error()
				}
				items = append(items, item)
			}
			return items, nil
		}),
		"twoslash/info": handler.New(func(ctx context.Context) (*Info, error) {
			return &Info{Backend: s.Backend.Name(), Extension: s.Processor.Extension()}, nil
		}),
	}
}

// NewServer starts serving s on ch. Traffic is traced to the context logger and to
// every extra logger.
func NewServer(ctx context.Context, s *session.Session, ch channel.Channel, loggers ...jrpc2.RPCLogger) *jrpc2.Server {
	rpcLog := rpclog.NewMulti(rpclog.Zerolog{Role: "server"})
	for _, l := range loggers {
		rpcLog.Add(l)
	}
	return jrpc2.NewServer(Handlers(s), &jrpc2.ServerOptions{
		RPCLog:     rpcLog,
		NewContext: func() context.Context { return ctx },
	}).Start(ch)
}

func (me *Handler) Run(ctx context.Context, in io.Reader, out io.WriteCloser) (err error) {
	s, err := session.Open(ctx, afero.NewOsFs(), ".", me.flags, session.DefaultRegistry(), os.LookupEnv)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = errors.Errorf("closing backend: %w", cerr)
		}
	}()

	zerolog.Ctx(ctx).Info().Str("backend", s.Backend.Name()).Msg("serving on stdio")

	if err := NewServer(ctx, s, channel.LSP(in, out)).Wait(); err != nil {
		return errors.Errorf("serving: %w", err)
	}
	return nil
}
