package relay

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/beam-cloud/gmail2tg/pkg/types"
)

var errBoom = errors.New("boom")

type modifyCall struct {
	ID     string
	Add    []string
	Remove []string
}

type fakeMailbox struct {
	mu sync.Mutex

	ids       []string
	messages  map[string]*types.Message
	getErr    map[string]error
	listErr   error
	labels    []types.Label
	labelsErr error
	createErr error
	modifyErr error

	queries  []string
	fetched  []string
	modified []modifyCall
	created  []string
	events   *[]string
}

func newFakeMailbox(ids ...string) *fakeMailbox {
	m := &fakeMailbox{
		messages: make(map[string]*types.Message),
		getErr:   make(map[string]error),
	}
	m.setListing(ids...)
	return m
}

// setListing sets the newest-first listing and creates any missing messages
func (m *fakeMailbox) setListing(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = ids
	for _, id := range ids {
		if _, ok := m.messages[id]; !ok {
			m.messages[id] = newMessage(id)
		}
	}
}

func (m *fakeMailbox) record(event string) {
	if m.events != nil {
		*m.events = append(*m.events, event)
	}
}

func (m *fakeMailbox) ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("list")
	m.queries = append(m.queries, query)
	if m.listErr != nil {
		return nil, m.listErr
	}
	ids := append([]string(nil), m.ids...)
	if int64(len(ids)) > max {
		ids = ids[:max]
	}
	return ids, nil
}

func (m *fakeMailbox) GetMessage(ctx context.Context, id string) (*types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("get:" + id)
	m.fetched = append(m.fetched, id)
	if err := m.getErr[id]; err != nil {
		return nil, err
	}
	return m.messages[id], nil
}

func (m *fakeMailbox) ListLabels(ctx context.Context) ([]types.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("labels")
	return m.labels, m.labelsErr
}

func (m *fakeMailbox) CreateLabel(ctx context.Context, name string) (*types.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("create:" + name)
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, name)
	label := types.Label{ID: "Label_" + name, Name: name}
	m.labels = append(m.labels, label)
	return &label, nil
}

func (m *fakeMailbox) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("modify:" + id)
	m.modified = append(m.modified, modifyCall{ID: id, Add: add, Remove: remove})
	return m.modifyErr
}

func (m *fakeMailbox) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

type sentMessage struct {
	ChatID int64
	Text   string
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []sentMessage
	failOn map[string]error // subject -> error
	events *[]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{failOn: make(map[string]error)}
}

func (n *fakeNotifier) Send(ctx context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for subject, err := range n.failOn {
		if strings.Contains(text, "Subject: "+subject+"\n") {
			return err
		}
	}
	if n.events != nil {
		*n.events = append(*n.events, "send:"+subjectOf(text))
	}
	n.sent = append(n.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

// Subjects returns the subject line of every delivered message, in order
func (n *fakeNotifier) Subjects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, subjectOf(s.Text))
	}
	return out
}

func subjectOf(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if rest, ok := strings.CutPrefix(line, "Subject: "); ok {
			return rest
		}
	}
	return ""
}

// newMessage builds a message whose subject is its id
func newMessage(id string) *types.Message {
	return &types.Message{
		ID:      id,
		Snippet: "snippet of " + id,
		Payload: &types.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []types.Header{
				{Name: "From", Value: "Alice <alice@example.com>"},
				{Name: "Subject", Value: id},
				{Name: "Date", Value: "Mon, 2 Jan 2026 15:04:05 +0000"},
			},
			Parts: []*types.MessagePart{
				{MimeType: "text/plain", Body: &types.PartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("body of " + id))}},
			},
		},
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func notFound() error {
	return &types.CapabilityError{Capability: types.CapabilityMailbox, Op: "get", Kind: types.ErrorKindNotFound, Code: 404, Err: errBoom}
}

func transient(capability string) error {
	return &types.CapabilityError{Capability: capability, Op: "x", Kind: types.ErrorKindTransient, Code: 503, Err: errBoom}
}
