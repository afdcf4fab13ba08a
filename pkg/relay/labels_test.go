package relay

import (
	"context"
	"testing"

	"github.com/beam-cloud/gmail2tg/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestEnsureMarkerLabel_ExistingLabel(t *testing.T) {
	mailbox := newFakeMailbox()
	mailbox.labels = []types.Label{
		{ID: "INBOX", Name: "INBOX"},
		{ID: "Label_7", Name: "TG_FORWARDED"},
	}

	id := NewLabelReconciler(mailbox).EnsureMarkerLabel(context.Background(), "TG_FORWARDED")

	assert.Equal(t, "Label_7", id)
	assert.Empty(t, mailbox.created)
}

func TestEnsureMarkerLabel_ExactNameOnly(t *testing.T) {
	mailbox := newFakeMailbox()
	mailbox.labels = []types.Label{{ID: "Label_1", Name: "tg_forwarded"}}

	id := NewLabelReconciler(mailbox).EnsureMarkerLabel(context.Background(), "TG_FORWARDED")

	assert.Equal(t, "Label_TG_FORWARDED", id)
	assert.Equal(t, []string{"TG_FORWARDED"}, mailbox.created)
}

func TestEnsureMarkerLabel_CreateFails(t *testing.T) {
	mailbox := newFakeMailbox()
	mailbox.createErr = &types.CapabilityError{Capability: types.CapabilityMailbox, Op: "create label", Kind: types.ErrorKindPermanent, Code: 409, Err: errBoom}

	id := NewLabelReconciler(mailbox).EnsureMarkerLabel(context.Background(), "TG_FORWARDED")
	assert.Empty(t, id)
}

func TestEnsureMarkerLabel_EmptyName(t *testing.T) {
	var events []string
	mailbox := newFakeMailbox()
	mailbox.events = &events

	id := NewLabelReconciler(mailbox).EnsureMarkerLabel(context.Background(), "")

	assert.Empty(t, id)
	assert.Empty(t, events)
}

func TestReconcile(t *testing.T) {
	mailbox := newFakeMailbox()
	r := NewLabelReconciler(mailbox)
	ctx := context.Background()

	assert.NoError(t, r.Reconcile(ctx, "m1", "Label_7"))
	assert.NoError(t, r.Reconcile(ctx, "m2", ""))

	assert.Equal(t, []modifyCall{
		{ID: "m1", Add: []string{"Label_7"}, Remove: []string{types.LabelUnread}},
		{ID: "m2", Add: nil, Remove: []string{types.LabelUnread}},
	}, mailbox.modified)
}

func TestReconcile_Error(t *testing.T) {
	mailbox := newFakeMailbox()
	mailbox.modifyErr = transient(types.CapabilityMailbox)

	err := NewLabelReconciler(mailbox).Reconcile(context.Background(), "m1", "Label_7")
	assert.Equal(t, types.ErrorKindTransient, types.KindOf(err))
}
