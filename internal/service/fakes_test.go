package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dearfriend/dearfriend-go/internal/api"
	"github.com/dearfriend/dearfriend-go/internal/model"
	"github.com/dearfriend/dearfriend-go/internal/session"
)

// fakeDoer records every request and lets each test script the response.
type fakeDoer struct {
	calls   []api.Request
	handler func(req api.Request, out any) error
}

var _ Doer = (*fakeDoer)(nil)

func (f *fakeDoer) Do(ctx context.Context, req api.Request, out any) error {
	f.calls = append(f.calls, req)
	if f.handler == nil {
		return nil
	}
	return f.handler(req, out)
}

func (f *fakeDoer) last(t *testing.T) api.Request {
	t.Helper()
	if len(f.calls) == 0 {
		t.Fatalf("no requests made")
	}
	return f.calls[len(f.calls)-1]
}

// respond marshals v into the caller's out pointer, the way the real client
// decodes a response body.
func respond(t *testing.T, out, v any) {
	t.Helper()
	if out == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
}

// bodyField reads one string field out of a request's JSON payload.
func bodyField(t *testing.T, req api.Request, key string) string {
	t.Helper()
	raw, err := json.Marshal(req.JSON)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal request body: %v", err)
	}
	s, _ := m[key].(string)
	return s
}

// fakeStore is an in-memory session.Store.
type fakeStore struct {
	tokens *model.SessionTokens
	user   *model.CurrentUser
}

var _ session.Store = (*fakeStore)(nil)

func (f *fakeStore) Tokens() (*model.SessionTokens, error) { return f.tokens, nil }

func (f *fakeStore) SetTokens(t model.SessionTokens) error {
	cp := t
	f.tokens = &cp
	return nil
}

func (f *fakeStore) Clear() error {
	f.tokens = nil
	f.user = nil
	return nil
}

func (f *fakeStore) CurrentUser() (*model.CurrentUser, error) {
	if f.tokens == nil {
		return nil, nil
	}
	return f.user, nil
}
