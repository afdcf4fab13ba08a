package cli

import (
	"fmt"
	"os"

	"github.com/beam-cloud/gmail2tg/pkg/common"
	"github.com/beam-cloud/gmail2tg/pkg/types"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Build information (injected at compile time via ldflags)
var Version = "dev"

var (
	configPath string
	jsonOutput bool
)

// Custom help template with styled output
var helpTemplate = `{{with .Long}}{{. | trim}}

{{end}}{{if .HasAvailableSubCommands}}` + `{{.CommandPath}}` + ` ` + `<command>` + `

{{end}}{{if .HasAvailableSubCommands}}Commands:
{{range .Commands}}{{if .IsAvailableCommand}}  {{rpad .Name .NamePadding }}  {{.Short}}
{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}
Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}
`

var rootCmd = &cobra.Command{
	Use:   "gmail2tg",
	Short: "Forward new Gmail messages to a Telegram chat",
	Long: lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true).Render("gmail2tg") + ` - Forward new Gmail messages to a Telegram chat

Polls the inbox, sends every new message to Telegram exactly once and
marks it read and labelled in Gmail. Run without a command to start
the poller.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		SetJSONOutput(jsonOutput)

		if configPath != "" {
			os.Setenv("CONFIG_PATH", configPath)
		}
	},
	RunE: runRun,
}

func init() {
	rootCmd.SetHelpTemplate(helpTemplate)
	rootCmd.SetVersionTemplate(fmt.Sprintf("  %s version %s\n", BrandStyle.Render("gmail2tg"), Version))

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (yaml or json), same as CONFIG_PATH")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(chatIDCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(statusCmd)
}

// Execute runs the CLI. Errors have already been printed when it returns.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		PrintFormattedError("gmail2tg failed", err)
	}
	return err
}

// loadConfig reads the layered config and sets up the global logger from it
func loadConfig() (types.AppConfig, error) {
	configManager, err := common.NewConfigManager[types.AppConfig]()
	if err != nil {
		return types.AppConfig{}, &types.ErrStartup{Reason: "unable to load configuration", Err: err}
	}
	config := configManager.GetConfig()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if config.DebugMode || config.PrettyLogs {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if config.PrettyLogs {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	return config, nil
}

func isTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}
