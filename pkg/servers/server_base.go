package servers

import (
	"context"

	"github.com/qmdx00/lifecycle"
	"github.com/rs/zerolog/log"

	"calendar-service/pkg/resources"
)

// baseServer owns no listener. It blocks until the application stops and
// then closes the shared resources (pools, exporters) handed to it, so the
// HTTP servers drain before their backends go away.
type baseServer struct {
	name      string
	done      chan struct{}
	closables []resources.Closable
}

func BuildBaseServer(closables ...resources.Closable) (string, Server) {
	return "base-server", NewBaseServer(closables...)
}

func NewBaseServer(closables ...resources.Closable) lifecycle.Server {
	return &baseServer{
		name:      "base-server",
		done:      make(chan struct{}),
		closables: closables,
	}
}

func (server *baseServer) Run(ctx context.Context) error {
	log.Ctx(ctx).Info().Str("component", server.name).Msg("holding shared resources")

	<-server.done

	return nil
}

func (server *baseServer) Stop(ctx context.Context) error {
	log.Ctx(ctx).Info().Str("component", server.name).Msg("closing shared resources")
	defer log.Ctx(ctx).Info().Str("component", server.name).Msg("closed")

	for _, closable := range server.closables {
		closable.Close()
	}

	close(server.done)

	return nil
}
