package relay

import (
	"context"

	"github.com/beam-cloud/gmail2tg/pkg/types"
	"github.com/rs/zerolog/log"
)

// LabelReconciler marks forwarded messages in the mailbox: read, plus the
// marker label when one is available.
type LabelReconciler struct {
	mailbox Mailbox
}

func NewLabelReconciler(mailbox Mailbox) *LabelReconciler {
	return &LabelReconciler{mailbox: mailbox}
}

// EnsureMarkerLabel returns the id of the label called name, creating it if
// needed. On any failure it logs and returns "", and messages are then only
// marked read.
func (r *LabelReconciler) EnsureMarkerLabel(ctx context.Context, name string) string {
	if name == "" {
		return ""
	}

	labels, err := r.mailbox.ListLabels(ctx)
	if err != nil {
		log.Warn().Err(err).Str("label", name).Str("kind", string(types.KindOf(err))).
			Msg("unable to list labels, forwarding without marker label")
		return ""
	}

	for _, l := range labels {
		if l.Name == name {
			log.Debug().Str("label", name).Str("label_id", l.ID).Msg("marker label found")
			return l.ID
		}
	}

	created, err := r.mailbox.CreateLabel(ctx, name)
	if err != nil {
		log.Warn().Err(err).Str("label", name).Str("kind", string(types.KindOf(err))).
			Msg("unable to create marker label, forwarding without it")
		return ""
	}
	if created == nil || created.ID == "" {
		log.Warn().Str("label", name).Msg("marker label created without an id, forwarding without it")
		return ""
	}

	log.Info().Str("label", name).Str("label_id", created.ID).Msg("created marker label")
	return created.ID
}

// Reconcile removes UNREAD from the message and adds labelID if set, in one
// request. Applying it twice has no further effect.
func (r *LabelReconciler) Reconcile(ctx context.Context, id, labelID string) error {
	var add []string
	if labelID != "" {
		add = []string{labelID}
	}
	return r.mailbox.ModifyLabels(ctx, id, add, []string{types.LabelUnread})
}
