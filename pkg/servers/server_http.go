package servers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/qmdx00/lifecycle"
	"github.com/rs/zerolog/log"
)

type httpServer struct {
	name     string
	delegate *http.Server
}

func BuildHttpServer(server *http.Server) (string, Server) {
	return "http-server", NewHttpServer(server)
}

func NewHttpServer(server *http.Server) lifecycle.Server {
	return &httpServer{name: "http-server", delegate: server}
}

func (server *httpServer) Run(ctx context.Context) error {
	log.Ctx(ctx).Info().Str("component", server.name).Str("addr", server.delegate.Addr).Msg("listening")

	err := server.delegate.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server %s failed to start: %w", server.name, err)
	}

	return nil
}

func (server *httpServer) Stop(ctx context.Context) error {
	log.Ctx(ctx).Info().Str("component", server.name).Msg("stopping")
	defer log.Ctx(ctx).Info().Str("component", server.name).Msg("stopped")

	err := server.delegate.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("server %s failed to stop: %w", server.name, err)
	}

	return nil
}
