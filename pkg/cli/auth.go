package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/beam-cloud/gmail2tg/pkg/oauth"
	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

var (
	authTokenPath string
	authCode      string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize Gmail access and write token.json",
	Long: `Authorize gmail2tg to read and label your mail.

Opens nothing by itself: visit the printed URL, approve access, then paste
the code (or the whole redirect URL) back here.`,
	Example: `  gmail2tg auth
  gmail2tg auth --token /etc/secrets/token.json
  gmail2tg auth --code 4/0Ab...`,
	RunE: runAuth,
}

func init() {
	authCmd.Flags().StringVar(&authTokenPath, "token", "token.json", "Where to write the token")
	authCmd.Flags().StringVar(&authCode, "code", "", "Authorization code or redirect URL, skips the prompt")
}

func runAuth(cmd *cobra.Command, args []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	gc, err := oauth.NewGoogleClient(config.Gmail.CredentialsPaths)
	if err != nil {
		return err
	}

	state := uuid.NewString()
	PrintHeader("Gmail authorization")
	PrintKeyValue("Client", CodeStyle.Render(gc.CredentialsPath()))
	PrintInfo("Open this URL and approve access:")
	fmt.Printf("\n  %s\n\n", gc.AuthorizeURL(state))

	input := authCode
	if input == "" {
		input, err = promptCode()
		if err != nil {
			return err
		}
	}

	var token *oauth2.Token
	err = RunSpinnerCtx(cmd.Context(), "Exchanging code...", func(ctx context.Context) error {
		var exchangeErr error
		token, exchangeErr = gc.Exchange(ctx, input, state)
		return exchangeErr
	})
	if err != nil {
		return err
	}

	if token.RefreshToken == "" {
		PrintWarning("No refresh token returned, revoke the app's access in your Google account and run auth again")
	}

	if err := oauth.SaveToken(authTokenPath, token); err != nil {
		return err
	}

	PrintSuccessf("Token saved to %s", CodeStyle.Render(authTokenPath))
	return nil
}

// promptCode asks for the code with a form on a terminal, else reads a line
func promptCode() (string, error) {
	var code string

	if !isTerminal() {
		fmt.Print("  Paste the code here: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read authorization code: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	err := huh.NewInput().
		Title("Authorization code").
		Description("Paste the code or the full redirect URL").
		Value(&code).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("code is required")
			}
			return nil
		}).
		Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(code), nil
}
