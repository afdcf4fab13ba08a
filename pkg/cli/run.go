package cli

import (
	"github.com/beam-cloud/gmail2tg/pkg/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the poller and the health endpoint",
	Long: `Start polling Gmail and forwarding new messages to Telegram.

On the first run only mail arriving after startup is forwarded. The health
endpoint listens on PORT (default 10000).`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	srv, err := server.NewServer(ctx, config)
	if err != nil {
		return err
	}

	log.Info().
		Str("version", Version).
		Str("query", config.Gmail.Query).
		Dur("interval", config.Poll.Interval).
		Interface("telegram", config.Telegram.Redact()).
		Msg("starting gmail2tg")

	return srv.Start(ctx)
}
