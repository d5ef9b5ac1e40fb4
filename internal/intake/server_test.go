package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bowerhall/recall/internal/llm"
	"github.com/bowerhall/recall/internal/pipeline"
	"github.com/bowerhall/recall/internal/retrieval"
	"github.com/bowerhall/recall/internal/store"
)

type fakeLLM struct{}

func (fakeLLM) Chat(ctx context.Context, system string, messages []llm.Message) (string, error) {
	return `{"store": false}`, nil
}

func (fakeLLM) ChatWithOptions(ctx context.Context, system string, messages []llm.Message, opts llm.CallOptions) (string, error) {
	return `{"store": false}`, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	pipe := pipeline.New(st, fakeLLM{}, fakeLLM{}, nil, nil, nil, pipeline.Config{})
	engine := retrieval.New(st, fakeLLM{}, nil)

	s := NewServer("127.0.0.1:0", pipe, engine, st)
	ts := httptest.NewServer(s.http.Handler)
	t.Cleanup(ts.Close)

	return ts, st
}

func TestCaptureEndpoint(t *testing.T) {
	ts, st := newTestServer(t)

	body := `{
		"app_name": "Claude",
		"title": "Project X",
		"raw_text": "raw window text",
		"messages": [
			{"role": "user", "content": "hi"},
			{"role": "assistant", "content": "ok"}
		]
	}`

	resp, err := http.Post(ts.URL+"/capture", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post capture: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		Inserted int `json:"inserted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Inserted != 2 {
		t.Errorf("expected 2 inserted, got %d", result.Inserted)
	}

	msgs, err := st.GetMessages("claude:project x")
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("expected 2 stored messages, got %d", len(msgs))
	}
}

func TestCaptureEndpointRejectsMissingApp(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/capture", "application/json", strings.NewReader(`{"title": "x"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestNoteEndpoint(t *testing.T) {
	ts, st := newTestServer(t)

	resp, err := http.Post(ts.URL+"/note", "application/json",
		strings.NewReader(`{"text": "Prefers dark roast coffee", "app_name": "cli"}`))
	if err != nil {
		t.Fatalf("post note: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	memories, err := st.ListMemoriesBySession("notes:cli")
	if err != nil {
		t.Fatalf("list memories: %v", err)
	}
	if len(memories) != 1 {
		t.Errorf("expected 1 note memory, got %d", len(memories))
	}
}

func TestForgetMemoryEndpoint(t *testing.T) {
	ts, st := newTestServer(t)

	if err := st.UpsertConversation("claude:x", "x", "claude"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	m, _, err := st.InsertMemory(store.InsertMemoryParams{
		Content: "Allergic to shellfish", SourceApp: "claude", SessionID: "claude:x",
	})
	if err != nil {
		t.Fatalf("insert memory: %v", err)
	}

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/memory/%d", ts.URL, m.ID), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	memories, err := st.ListMemoriesBySession("claude:x")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(memories) != 0 {
		t.Errorf("expected memory gone, found %d", len(memories))
	}
}

func TestForgetConversationEndpoint(t *testing.T) {
	ts, st := newTestServer(t)

	if err := st.UpsertConversation("claude:old", "old", "claude"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := st.InsertMessages("claude:old", []store.NewMessage{
		{Role: "user", Content: "anything"},
	}); err != nil {
		t.Fatalf("insert messages: %v", err)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/conversation/claude:old", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	msgs, err := st.GetMessages("claude:old")
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected messages gone, found %d", len(msgs))
	}
}

func TestSearchEndpoint(t *testing.T) {
	ts, st := newTestServer(t)

	if err := st.UpsertConversation("claude:x", "x", "claude"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, _, err := st.InsertMemory(store.InsertMemoryParams{
		Content: "Chose Postgres for the backend", SourceApp: "claude", SessionID: "claude:x",
	}); err != nil {
		t.Fatalf("insert memory: %v", err)
	}

	resp, err := http.Get(ts.URL + "/search?q=postgres")
	if err != nil {
		t.Fatalf("get search: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var result retrieval.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Memories) != 1 {
		t.Errorf("expected 1 memory hit, got %d", len(result.Memories))
	}
}

func TestSearchEndpointRequiresQuery(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/search")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
