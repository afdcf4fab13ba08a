package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beam-cloud/gmail2tg/pkg/types"
)

// KindMessages maps capability error kinds to human-readable messages
var KindMessages = map[types.ErrorKind]string{
	types.ErrorKindAuth:      "Authentication failed - invalid, expired or revoked credentials",
	types.ErrorKindNotFound:  "Resource not found",
	types.ErrorKindPermanent: "Request rejected",
	types.ErrorKindTransient: "Service unavailable - try again in a few moments",
}

// KindSuggestions provides helpful suggestions per capability and error kind
var KindSuggestions = map[string]map[types.ErrorKind][]string{
	types.CapabilityMailbox: {
		types.ErrorKindAuth: {
			"Create a new Gmail token: " + CodeStyle.Render("gmail2tg auth"),
			"Check that the OAuth client in credentials.json is still enabled",
		},
	},
	types.CapabilityDelivery: {
		types.ErrorKindAuth: {
			"Check the bot token: " + CodeStyle.Render("TG_TOKEN"),
		},
		types.ErrorKindNotFound: {
			"Check the chat id: " + CodeStyle.Render("gmail2tg chatid"),
		},
		types.ErrorKindPermanent: {
			"Send /start to the bot from the target chat",
			"Check the chat id: " + CodeStyle.Render("gmail2tg chatid"),
		},
	},
}

// FormatError converts an error to a human-readable message
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var capErr *types.CapabilityError
	if errors.As(err, &capErr) {
		if msg, ok := KindMessages[capErr.Kind]; ok {
			return fmt.Sprintf("%s %s: %s", capErr.Capability, capErr.Op, msg)
		}
	}

	return cleanErrorMessage(err.Error())
}

// GetErrorSuggestions returns helpful suggestions for an error
func GetErrorSuggestions(err error) []string {
	if err == nil {
		return nil
	}

	var capErr *types.CapabilityError
	if errors.As(err, &capErr) {
		return KindSuggestions[capErr.Capability][capErr.Kind]
	}

	var startupErr *types.ErrStartup
	if errors.As(err, &startupErr) {
		reason := startupErr.Reason
		switch {
		case strings.Contains(reason, "token.json"), strings.Contains(reason, "token file"):
			return []string{"Create a Gmail token: " + CodeStyle.Render("gmail2tg auth")}
		case strings.Contains(reason, "credentials.json"), strings.Contains(reason, "client secret"):
			return []string{
				"Download the OAuth client (Desktop app) from the Google Cloud console",
				"Place it at " + CodeStyle.Render("credentials.json") + " or " + CodeStyle.Render("/etc/secrets/credentials.json"),
			}
		case strings.Contains(reason, "configuration"):
			return []string{
				"Set " + CodeStyle.Render("TG_TOKEN") + " and " + CodeStyle.Render("TG_CHAT_ID") + " in the environment or .env",
				"Find the chat id with " + CodeStyle.Render("gmail2tg chatid"),
			}
		case strings.Contains(reason, "redis"):
			return []string{"Check " + CodeStyle.Render("REDIS_ADDR") + " and that redis is reachable"}
		}
	}

	return nil
}

// cleanErrorMessage cleans up common error message patterns
func cleanErrorMessage(msg string) string {
	msg = strings.TrimPrefix(msg, "error: ")
	msg = strings.TrimPrefix(msg, "Error: ")
	return msg
}

// PrintFormattedError prints an error with styling and optional suggestions
func PrintFormattedError(title string, err error) {
	fmt.Println()
	PrintErrorMsg(title)

	if err != nil {
		fmt.Printf("  %s\n", DimStyle.Render(FormatError(err)))

		if suggestions := GetErrorSuggestions(err); len(suggestions) > 0 {
			PrintSuggestions("Suggestions:", suggestions)
		}
	}
	fmt.Println()
}
