package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/beam-cloud/gmail2tg/pkg/clients"
	"github.com/spf13/cobra"
)

var chatIDCmd = &cobra.Command{
	Use:   "chatid",
	Short: "List the chats that messaged the bot",
	Long: `Print the id of every chat that recently wrote to the bot.

Send /start to the bot from the chat you want mail in, then run this and
put the id in TG_CHAT_ID.`,
	RunE: runChatID,
}

// ChatInfo is one chat seen in the bot's pending updates
type ChatInfo struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	Last  string `json:"last_message,omitempty"`
	Count int    `json:"messages"`
}

func runChatID(cmd *cobra.Command, args []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	if config.Telegram.Token == "" {
		return fmt.Errorf("TG_TOKEN is not set")
	}

	tg := clients.NewTelegramClient(config.Telegram)

	var (
		me      *clients.TelegramUser
		updates []clients.TelegramUpdate
	)
	err = RunSpinnerCtx(cmd.Context(), "Fetching updates...", func(ctx context.Context) error {
		var callErr error
		if me, callErr = tg.GetMe(ctx); callErr != nil {
			return callErr
		}
		updates, callErr = tg.GetUpdates(ctx)
		return callErr
	})
	if err != nil {
		return err
	}

	chats := CollectChats(updates)
	if PrintJSON(chats) {
		return nil
	}

	PrintHeader("Chats for @" + me.Username)
	if len(chats) == 0 {
		PrintInfo("No messages yet")
		PrintHint("Send /start to @" + me.Username + " from the target chat, then run this again")
		return nil
	}

	table := NewTable("CHAT ID", "TYPE", "NAME", "LAST MESSAGE")
	for _, c := range chats {
		table.AddRow(fmt.Sprintf("%d", c.ID), c.Type, c.Name, c.Last)
	}
	table.Print()

	if config.Telegram.ChatID == 0 {
		PrintHint("Set TG_CHAT_ID to one of these ids")
	}
	return nil
}

// CollectChats groups updates by chat, in order of first appearance
func CollectChats(updates []clients.TelegramUpdate) []ChatInfo {
	var chats []ChatInfo
	index := make(map[int64]int)

	for _, u := range updates {
		if u.Message == nil {
			continue
		}
		chat := u.Message.Chat

		i, ok := index[chat.ID]
		if !ok {
			i = len(chats)
			index[chat.ID] = i
			chats = append(chats, ChatInfo{ID: chat.ID, Type: chat.Type, Name: chatName(chat)})
		}
		chats[i].Count++
		if text := strings.TrimSpace(u.Message.Text); text != "" {
			chats[i].Last = text
		}
	}
	return chats
}

func chatName(chat clients.TelegramChat) string {
	switch {
	case chat.Title != "":
		return chat.Title
	case chat.Username != "":
		return "@" + chat.Username
	default:
		return chat.FirstName
	}
}
