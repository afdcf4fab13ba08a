package clients

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/beam-cloud/gmail2tg/pkg/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	GmailDefaultUser = "me"
	GmailFormatFull  = "full"
)

// API call counter for metrics
var gmailAPICallCount int64

// GetGmailAPICallCount returns the current API call count
func GetGmailAPICallCount() int64 {
	return atomic.LoadInt64(&gmailAPICallCount)
}

// ResetGmailAPICallCount resets the API call counter
func ResetGmailAPICallCount() {
	atomic.StoreInt64(&gmailAPICallCount, 0)
}

// GmailClient is the mailbox capability backed by the Gmail REST API
type GmailClient struct {
	srv    *gmail.Service
	userID string
}

// NewGmailClient creates a client that authenticates through httpClient,
// normally the one built from the stored OAuth token.
func NewGmailClient(ctx context.Context, httpClient *http.Client, userID string, opts ...option.ClientOption) (*GmailClient, error) {
	if userID == "" {
		userID = GmailDefaultUser
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, &types.ErrStartup{Reason: "unable to create gmail service", Err: err}
	}

	return &GmailClient{srv: srv, userID: userID}, nil
}

func countCall(op string) {
	count := atomic.AddInt64(&gmailAPICallCount, 1)
	log.Debug().Int64("api_calls", count).Str("op", op).Msg("gmail API call")
}

// ListMessageIDs returns up to max message ids matching query, newest first
func (c *GmailClient) ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error) {
	countCall("messages.list")

	resp, err := c.srv.Users.Messages.List(c.userID).Q(query).MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, mailboxError("list", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m != nil && m.Id != "" {
			ids = append(ids, m.Id)
		}
	}
	return ids, nil
}

// GetMessage fetches a message with its full part tree
func (c *GmailClient) GetMessage(ctx context.Context, id string) (*types.Message, error) {
	countCall("messages.get")

	msg, err := c.srv.Users.Messages.Get(c.userID, id).Format(GmailFormatFull).Context(ctx).Do()
	if err != nil {
		return nil, mailboxError("get", err)
	}

	return &types.Message{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		Snippet:      msg.Snippet,
		LabelIDs:     msg.LabelIds,
		InternalDate: msg.InternalDate,
		Payload:      convertPart(msg.Payload),
	}, nil
}

func (c *GmailClient) ListLabels(ctx context.Context) ([]types.Label, error) {
	countCall("labels.list")

	resp, err := c.srv.Users.Labels.List(c.userID).Context(ctx).Do()
	if err != nil {
		return nil, mailboxError("labels.list", err)
	}

	labels := make([]types.Label, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		if l != nil {
			labels = append(labels, types.Label{ID: l.Id, Name: l.Name})
		}
	}
	return labels, nil
}

// CreateLabel creates a user label shown in both the label and message lists
func (c *GmailClient) CreateLabel(ctx context.Context, name string) (*types.Label, error) {
	countCall("labels.create")

	created, err := c.srv.Users.Labels.Create(c.userID, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   types.LabelListShow,
		MessageListVisibility: types.MessageListShow,
	}).Context(ctx).Do()
	if err != nil {
		return nil, mailboxError("labels.create", err)
	}

	return &types.Label{ID: created.Id, Name: created.Name}, nil
}

// ModifyLabels adds and removes labels on one message in a single request
func (c *GmailClient) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	countCall("messages.modify")

	_, err := c.srv.Users.Messages.Modify(c.userID, id, &gmail.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}).Context(ctx).Do()
	if err != nil {
		return mailboxError("modify", err)
	}
	return nil
}

// convertPart copies a Gmail part tree without recursion
func convertPart(root *gmail.MessagePart) *types.MessagePart {
	if root == nil {
		return nil
	}

	type pair struct {
		src *gmail.MessagePart
		dst *types.MessagePart
	}

	out := &types.MessagePart{}
	stack := []pair{{src: root, dst: out}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		p.dst.MimeType = p.src.MimeType
		p.dst.Filename = p.src.Filename
		for _, h := range p.src.Headers {
			if h != nil {
				p.dst.Headers = append(p.dst.Headers, types.Header{Name: h.Name, Value: h.Value})
			}
		}
		if b := p.src.Body; b != nil {
			p.dst.Body = &types.PartBody{Data: b.Data, AttachmentID: b.AttachmentId, Size: b.Size}
		}

		if len(p.src.Parts) == 0 {
			continue
		}
		p.dst.Parts = make([]*types.MessagePart, 0, len(p.src.Parts))
		for _, child := range p.src.Parts {
			if child == nil {
				continue
			}
			dst := &types.MessagePart{}
			p.dst.Parts = append(p.dst.Parts, dst)
			stack = append(stack, pair{src: child, dst: dst})
		}
	}
	return out
}

// mailboxError classifies a Gmail API failure
func mailboxError(op string, err error) error {
	capErr := &types.CapabilityError{
		Capability: types.CapabilityMailbox,
		Op:         op,
		Kind:       types.ErrorKindUnknown,
		Err:        err,
	}

	var apiErr *googleapi.Error
	var tokenErr *oauth2.RetrieveError
	var netErr net.Error
	switch {
	case errors.As(err, &apiErr):
		capErr.Code = apiErr.Code
		capErr.Kind = types.KindFromStatus(apiErr.Code)
	case errors.As(err, &tokenErr):
		capErr.Kind = types.ErrorKindAuth
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		capErr.Kind = types.ErrorKindTransient
	}
	return capErr
}
