// Package relay forwards new mailbox messages to a chat, once per message id.
//
// The Poller owns the persisted state. Each tick lists recent inbox ids,
// delivers the ones not yet processed oldest first, labels them in the
// mailbox and records them, then persists the state if anything changed.
package relay

import (
	"context"

	"github.com/beam-cloud/gmail2tg/pkg/types"
)

// Mailbox is the mail provider the poller reads from and labels
type Mailbox interface {
	ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error)
	GetMessage(ctx context.Context, id string) (*types.Message, error)
	ListLabels(ctx context.Context) ([]types.Label, error)
	CreateLabel(ctx context.Context, name string) (*types.Label, error)
	ModifyLabels(ctx context.Context, id string, add, remove []string) error
}

// Notifier delivers a plain text notification to a chat
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// TickLock guards ticks when several replicas share one state backend.
// Hold reports whether this process may run the current tick.
type TickLock interface {
	Hold(ctx context.Context) (bool, error)
	Release() error
}
