package cli

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"producer-service/internal/config"
	"producer-service/internal/handler"
	"producer-service/internal/logger"
)

func newSinkCmd() *cobra.Command {
	var addr string

	sinkCmd := &cobra.Command{
		Use:   "sink",
		Short: "Serve a local POST /api/messages endpoint that acknowledges messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger.ConfigureLogging(os.Getenv("LOG_LEVEL"), logger.LogMode(os.Getenv("LOG_TYPE")))

			if !cmd.Flags().Changed("addr") {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				addr = cfg.SinkAddr
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           newSinkMux(time.Now),
				ReadHeaderTimeout: 10 * time.Second,
			}
			log.Info().Str("addr", addr).Msg("Sink started")
			log.Info().Msgf("Endpoint: POST http://localhost%s/api/messages", addr)
			log.Info().Msgf("Health: GET http://localhost%s/health", addr)
			return srv.ListenAndServe()
		},
	}

	sinkCmd.Flags().StringVar(&addr, "addr", ":3000", "listen address (overrides SINK_ADDR)")

	return sinkCmd
}

func newSinkMux(now func() time.Time) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/messages", handler.NewMessagesHandler(now))
	mux.Handle("/health", handler.NewHealthHandler(now))
	return mux
}
