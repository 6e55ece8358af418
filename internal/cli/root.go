package cli

import (
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"producer-service/internal/config"
	"producer-service/internal/logger"
	"producer-service/internal/producer"
)

// NewRootCmd returns the producer command. Running it delivers one message;
// the outcome is only logged and never turned into a command error.
func NewRootCmd() *cobra.Command {
	var maxRetries, retryDelay int

	rootCmd := &cobra.Command{
		Use:           "producer",
		Short:         "Send a timestamped message to the API",
		Long:          "Builds a {datetime, environment} message and POSTs it to {API_URL}/api/messages with bounded retries.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			logger.ConfigureLogging(os.Getenv("LOG_LEVEL"), logger.LogMode(os.Getenv("LOG_TYPE")))

			cfg, err := config.Load()
			if err != nil {
				log.Error().Err(err).Msg("Configuration validation failed")
				return
			}
			logger.ConfigureLogging(cfg.LogLevel, logger.LogMode(cfg.LogType))
			for _, w := range cfg.Warnings {
				log.Warn().Msg(w)
			}

			if cmd.Flags().Changed("max-retries") {
				cfg.MaxRetries = maxRetries
			}
			if cmd.Flags().Changed("retry-delay") {
				cfg.RetryDelaySeconds = retryDelay
			}
			if err := cfg.Validate(); err != nil {
				log.Error().Err(err).Msg("Configuration validation failed")
				return
			}

			ctx := log.With().Str("run_id", uuid.NewString()).Logger().WithContext(cmd.Context())
			producer.New(cfg).Run(ctx)
		},
	}

	rootCmd.Flags().IntVar(&maxRetries, "max-retries", 3, "maximum number of delivery attempts (overrides MAX_RETRIES)")
	rootCmd.Flags().IntVar(&retryDelay, "retry-delay", 30, "seconds to wait between attempts (overrides RETRY_DELAY_SECONDS)")

	rootCmd.AddCommand(newSinkCmd())

	return rootCmd
}
