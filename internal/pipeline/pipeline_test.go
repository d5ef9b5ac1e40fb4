package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bowerhall/recall/internal/capture"
	"github.com/bowerhall/recall/internal/llm"
	"github.com/bowerhall/recall/internal/store"
)

type scriptedLLM struct {
	mu      sync.Mutex
	calls   []string
	handler func(prompt string, opts llm.CallOptions) (string, error)
}

func (s *scriptedLLM) Chat(ctx context.Context, system string, messages []llm.Message) (string, error) {
	return s.ChatWithOptions(ctx, system, messages, llm.CallOptions{})
}

func (s *scriptedLLM) ChatWithOptions(ctx context.Context, system string, messages []llm.Message, opts llm.CallOptions) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, opts.Label)
	s.mu.Unlock()

	prompt := ""
	if len(messages) > 0 {
		prompt = messages[len(messages)-1].Content
	}
	return s.handler(prompt, opts)
}

func (s *scriptedLLM) callCount(label string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == label {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu             sync.Mutex
	memories       []*store.Memory
	entities       []*store.Entity
	summaries      []string
	masterProgress [][2]int
	messageCounts  []int
}

func (r *recordingNotifier) NewMessages(sessionID string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messageCounts = append(r.messageCounts, count)
}

func (r *recordingNotifier) NewMemory(m *store.Memory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memories = append(r.memories, m)
}

func (r *recordingNotifier) NewEntity(e *store.Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = append(r.entities, e)
}

func (r *recordingNotifier) SummaryGenerated(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, sessionID)
}

func (r *recordingNotifier) ReprocessProgress(string, int, int) {}

func (r *recordingNotifier) MasterMemoryProgress(current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.masterProgress = append(r.masterProgress, [2]int{current, total})
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestShouldEvaluate(t *testing.T) {
	cases := []struct {
		role, content string
		want          bool
	}{
		{"user", "", false},
		{"user", "Thanks!", false},
		{"user", "short msg", false},
		{"user", "I decided to move the whole backend over to Postgres next month", true},
		{"assistant", "This reply is long enough for a user but not an assistant", true},
		{"assistant", "Under fifty characters of assistant text", false},
		{"user", "good morning", false},
	}

	for _, c := range cases {
		if got := shouldEvaluate(c.role, c.content); got != c.want {
			t.Errorf("shouldEvaluate(%s, %q) = %v, want %v", c.role, c.content, got, c.want)
		}
	}
}

func TestAcceptMemory(t *testing.T) {
	if acceptMemory("") {
		t.Error("accepted empty memory")
	}
	if acceptMemory("too few words") {
		t.Error("accepted memory under 4 words")
	}
	if acceptMemory(strings.Repeat("long ", 60)) {
		t.Error("accepted memory over 280 characters")
	}
	if acceptMemory("The user asked about database options") {
		t.Error("accepted generic meta-statement")
	}
	if !acceptMemory("Chose Postgres for the backend") {
		t.Error("rejected a valid memory")
	}
}

func TestParseClassificationDefensive(t *testing.T) {
	c := parseClassification("```json\n{\"store\": true, \"name\": \"db\", \"memory\": \"uses Postgres\"}\n```")
	if !c.Store || c.Memory != "uses Postgres" {
		t.Errorf("failed to parse fenced json: %+v", c)
	}

	c = parseClassification(`Sure! Here is the result: {"store": false} Hope that helps.`)
	if c.Store {
		t.Error("expected store=false from prose-wrapped json")
	}

	// garbage falls back to the safe default
	c = parseClassification("I cannot produce JSON today.")
	if c.Store {
		t.Error("expected store=false for non-json output")
	}
}

func TestParseExtractedEntitiesDefensive(t *testing.T) {
	if got := parseExtractedEntities("no array here"); got != nil {
		t.Errorf("expected nil for non-json, got %+v", got)
	}

	got := parseExtractedEntities("```json\n[{\"name\": \"Postgres\", \"type\": \"Technology\", \"facts\": [\"backend db\"]}]\n```")
	if len(got) != 1 || got[0].Name != "Postgres" || len(got[0].Facts) != 1 {
		t.Errorf("unexpected entities: %+v", got)
	}
}

func TestEdgeWeight(t *testing.T) {
	if w := edgeWeight(1); w != 0.5 {
		t.Errorf("edgeWeight(1) = %f, want 0.5", w)
	}

	prev := 0.0
	for n := 1; n <= 20; n++ {
		w := edgeWeight(n)
		if w <= prev {
			t.Fatalf("edgeWeight not strictly increasing at %d: %f <= %f", n, w, prev)
		}
		if w >= 1 {
			t.Fatalf("edgeWeight(%d) = %f, expected < 1", n, w)
		}
		prev = w
	}
}

func TestChunkSummariesNeverSplits(t *testing.T) {
	// 20k + 20k fits one 50k chunk; the 30k summary overflows it
	texts := []string{
		strings.Repeat("a", 20000),
		strings.Repeat("b", 20000),
		strings.Repeat("c", 30000),
	}

	chunks := chunkSummaries(texts, chunkSizeLimit)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 2 || len(chunks[1]) != 1 {
		t.Fatalf("expected chunks [2 1], got [%d %d]", len(chunks[0]), len(chunks[1]))
	}
	// every chunk member is a whole original summary
	want := map[int]bool{20000: true, 30000: true}
	for _, chunk := range chunks {
		for _, s := range chunk {
			if !want[len(s)] {
				t.Fatalf("summary was split: len %d", len(s))
			}
		}
	}
}

func TestChunkSummariesOversizeSummary(t *testing.T) {
	texts := []string{strings.Repeat("a", 80000), "small"}

	chunks := chunkSummaries(texts, chunkSizeLimit)
	if len(chunks) != 2 {
		t.Fatalf("expected oversize summary in its own chunk, got %d chunks", len(chunks))
	}
	if len(chunks[0]) != 1 || len(chunks[0][0]) != 80000 {
		t.Error("oversize summary must stay whole in its own chunk")
	}
}

func TestEvaluateMessageStoresAndDedupes(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertConversation("claude:x", "x", "claude"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	ids, err := s.InsertMessages("claude:x", []store.NewMessage{
		{Role: "user", Content: "Let's use Postgres for the backend of the project"},
	})
	if err != nil {
		t.Fatalf("insert messages: %v", err)
	}

	model := &scriptedLLM{handler: func(prompt string, opts llm.CallOptions) (string, error) {
		return `{"store": true, "name": "backend choice", "memory": "Chose Postgres for the backend"}`, nil
	}}
	notifier := &recordingNotifier{}
	p := New(s, model, model, nil, notifier, nil, Config{})

	m, err := p.EvaluateMessage(context.Background(), "claude:x", "claude", ids[0], "user", "Let's use Postgres for the backend of the project")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if m == nil || m.Content != "Chose Postgres for the backend" {
		t.Fatalf("unexpected memory: %+v", m)
	}
	if m.MessageID == nil || *m.MessageID != ids[0] {
		t.Error("memory not linked to its source message")
	}
	if len(notifier.memories) != 1 {
		t.Errorf("expected 1 new-memory event, got %d", len(notifier.memories))
	}

	// re-evaluation finds the existing row, no second event
	if _, err := p.EvaluateMessage(context.Background(), "claude:x", "claude", ids[0], "user", "Let's use Postgres for the backend of the project"); err != nil {
		t.Fatalf("re-evaluate: %v", err)
	}
	memories, _ := s.ListMemoriesBySession("claude:x")
	if len(memories) != 1 {
		t.Errorf("expected 1 memory after re-evaluation, got %d", len(memories))
	}
	if len(notifier.memories) != 1 {
		t.Errorf("expected no second new-memory event, got %d", len(notifier.memories))
	}
}

func TestEvaluateMessageRejectsNearDuplicate(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertConversation("claude:x", "x", "claude"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, _, err := s.InsertMemory(store.InsertMemoryParams{
		Content: "The user chose Postgres for the backend database", SourceApp: "claude", SessionID: "claude:x",
	}); err != nil {
		t.Fatalf("seed memory: %v", err)
	}

	model := &scriptedLLM{handler: func(prompt string, opts llm.CallOptions) (string, error) {
		return `{"store": true, "memory": "chose postgres for the backend"}`, nil
	}}
	p := New(s, model, model, nil, nil, nil, Config{})

	var id int64 = 99
	m, err := p.EvaluateMessage(context.Background(), "claude:x", "claude", id, "user", "We should definitely go with Postgres for the backend")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if m != nil {
		t.Errorf("expected near-duplicate rejection, got %+v", m)
	}
}

func TestExtractSessionFiltersEntities(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertConversation("claude:x", "x", "claude"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, _, err := s.InsertMemory(store.InsertMemoryParams{
		Content: "Chose Postgres for the backend", SourceApp: "claude", SessionID: "claude:x",
	}); err != nil {
		t.Fatalf("seed memory: %v", err)
	}

	model := &scriptedLLM{handler: func(prompt string, opts llm.CallOptions) (string, error) {
		if opts.Label == "entity extraction" {
			return `[
				{"name": "api", "type": "Technology", "facts": ["generic term"]},
				{"name": "Go", "type": "Technology", "facts": ["too short"]},
				{"name": "Kafka", "type": "Technology", "facts": []},
				{"name": "Postgres", "type": "Technology", "facts": ["chosen for the backend"]}
			]`, nil
		}
		return "Postgres is the backend database.", nil
	}}
	notifier := &recordingNotifier{}
	p := New(s, model, model, nil, notifier, nil, Config{})

	if err := p.ExtractSession(context.Background(), "claude:x"); err != nil {
		t.Fatalf("extract: %v", err)
	}

	// blocklisted, short-named, and fact-less entities are all discarded
	if e, _ := s.FindEntity("api", "Technology"); e != nil {
		t.Error("blocklisted entity was stored")
	}
	if e, _ := s.FindEntity("Go", "Technology"); e != nil {
		t.Error("short-named entity was stored")
	}
	if e, _ := s.FindEntity("Kafka", "Technology"); e != nil {
		t.Error("fact-less entity was stored")
	}

	e, err := s.FindEntity("Postgres", "Technology")
	if err != nil || e == nil {
		t.Fatalf("expected Postgres entity, err=%v", err)
	}
	facts, _ := s.GetEntityFacts(e.ID)
	if len(facts) != 1 {
		t.Errorf("expected 1 fact, got %d", len(facts))
	}
	if e2, _ := s.GetEntity(e.ID); e2.Summary == "" {
		t.Error("expected rewritten entity summary")
	}
	if len(notifier.entities) != 1 {
		t.Errorf("expected 1 new-entity event, got %d", len(notifier.entities))
	}
}

func TestRebuildGraphDeterministic(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"claude:a", "claude:b"} {
		if err := s.UpsertConversation(id, id, "claude"); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	e1, _ := s.UpsertEntity("Postgres", "Technology")
	e2, _ := s.UpsertEntity("Kafka", "Technology")
	e3, _ := s.UpsertEntity("Alice", "Person")

	// session a mentions all three, session b mentions two
	for _, eid := range []int64{e1.ID, e2.ID, e3.ID} {
		if err := s.AddEntitySession(eid, "claude:a"); err != nil {
			t.Fatalf("add session: %v", err)
		}
	}
	for _, eid := range []int64{e1.ID, e2.ID} {
		if err := s.AddEntitySession(eid, "claude:b"); err != nil {
			t.Fatalf("add session: %v", err)
		}
	}

	p := New(s, nil, nil, nil, nil, nil, Config{})

	if err := p.RebuildGraph(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	first, err := s.ListEdges()
	if err != nil {
		t.Fatalf("list edges: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 edges, got %d", len(first))
	}

	// the pair seen in both sessions has more evidence
	pair, err := s.GetEdge(e1.ID, e2.ID, "cooccurrence")
	if err != nil || pair == nil {
		t.Fatalf("missing postgres-kafka edge: %v", err)
	}
	if pair.EvidenceCount != 2 || pair.Weight != edgeWeight(2) {
		t.Errorf("unexpected edge: %+v", pair)
	}

	// idempotent: a second rebuild yields identical weights
	if err := p.RebuildGraph(); err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	second, _ := s.ListEdges()
	if len(second) != len(first) {
		t.Fatalf("edge count changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Weight != second[i].Weight || first[i].EvidenceCount != second[i].EvidenceCount {
			t.Errorf("edge %d diverged after rebuild: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestRegenerateMasterMemoryZeroSummaries(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetMasterMemory("stale document"); err != nil {
		t.Fatalf("seed master: %v", err)
	}

	model := &scriptedLLM{handler: func(prompt string, opts llm.CallOptions) (string, error) {
		t.Fatal("model must not be called with zero summaries")
		return "", nil
	}}
	p := New(s, model, model, nil, nil, nil, Config{})

	if err := p.RegenerateMasterMemory(context.Background()); err != nil {
		t.Fatalf("regenerate: %v", err)
	}

	master, _ := s.GetMasterMemory()
	if master != "" {
		t.Errorf("expected cleared master memory, got %q", master)
	}
}

func TestRegenerateMasterMemoryMapReduce(t *testing.T) {
	s := newTestStore(t)
	sizes := []int{20000, 20000, 30000}
	for i, sessionID := range []string{"claude:a", "claude:b", "claude:c"} {
		if err := s.UpsertConversation(sessionID, sessionID, "claude"); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := s.UpsertChatSummary(sessionID, strings.Repeat(string(rune('a'+i)), sizes[i])); err != nil {
			t.Fatalf("seed summary: %v", err)
		}
	}

	model := &scriptedLLM{handler: func(prompt string, opts llm.CallOptions) (string, error) {
		return "partial document", nil
	}}
	notifier := &recordingNotifier{}
	p := New(s, model, model, nil, notifier, nil, Config{})

	if err := p.RegenerateMasterMemory(context.Background()); err != nil {
		t.Fatalf("regenerate: %v", err)
	}

	// 70,000 chars of summaries: 20k+20k pack into one chunk, 30k into a
	// second, plus the final reduce
	if n := model.callCount("master memory regeneration"); n != 3 {
		t.Errorf("expected 3 consolidation calls, got %d", n)
	}
	last := notifier.masterProgress[len(notifier.masterProgress)-1]
	if last != [2]int{3, 3} {
		t.Errorf("expected final progress (3, 3), got %v", last)
	}
}

func TestRegenerateMasterMemorySingleShot(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertConversation("claude:a", "a", "claude"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.UpsertChatSummary("claude:a", "a short summary"); err != nil {
		t.Fatalf("seed summary: %v", err)
	}

	model := &scriptedLLM{handler: func(prompt string, opts llm.CallOptions) (string, error) {
		return "the whole document", nil
	}}
	p := New(s, model, model, nil, nil, nil, Config{})

	if err := p.RegenerateMasterMemory(context.Background()); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if n := model.callCount("master memory regeneration"); n != 1 {
		t.Errorf("expected single-shot regeneration, got %d calls", n)
	}
}

func TestHandleCaptureIdempotent(t *testing.T) {
	s := newTestStore(t)
	model := &scriptedLLM{handler: func(prompt string, opts llm.CallOptions) (string, error) {
		return `{"store": false}`, nil
	}}
	p := New(s, model, model, nil, nil, nil, Config{})

	c := capture.Capture{ID: "cap-1", AppName: "Claude", Title: "Project X", RawText: "raw"}
	parsed := []store.NewMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "ok"},
	}

	n, err := p.HandleCapture(context.Background(), c, parsed)
	if err != nil {
		t.Fatalf("first capture: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 inserted, got %d", n)
	}

	// identical re-capture inserts nothing
	n, err = p.HandleCapture(context.Background(), c, parsed)
	if err != nil {
		t.Fatalf("second capture: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 inserted on re-capture, got %d", n)
	}

	msgs, _ := s.GetMessages("claude:project x")
	if len(msgs) != 2 {
		t.Errorf("expected 2 stored messages, got %d", len(msgs))
	}
}

func TestEndToEndCaptureToMasterMemory(t *testing.T) {
	s := newTestStore(t)

	model := &scriptedLLM{handler: func(prompt string, opts llm.CallOptions) (string, error) {
		switch opts.Label {
		case "memory classification":
			if strings.Contains(prompt, "Postgres") {
				return `{"store": true, "name": "backend choice", "memory": "Chose Postgres for the backend"}`, nil
			}
			return `{"store": false}`, nil
		case "entity extraction":
			return `[{"name": "Postgres", "type": "Technology", "facts": ["chosen for the backend"]}]`, nil
		case "entity summary":
			return "Postgres is the project's backend database.", nil
		case "session summary":
			return "The user chose Postgres as the backend for project x.", nil
		case "master memory update":
			return "## Technical Environment\n- Uses Postgres for the backend", nil
		}
		t.Errorf("unexpected call %q", opts.Label)
		return "", nil
	}}
	notifier := &recordingNotifier{}
	p := New(s, model, model, nil, notifier, nil, Config{})

	sessionID := capture.DeriveSessionID("claude", "project-x")
	if err := s.UpsertConversation(sessionID, "project-x", "claude"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	msgs := []store.NewMessage{
		{Role: "user", Content: "Let's use Postgres for the backend"},
		{Role: "assistant", Content: "Sounds good"},
	}
	ids, err := s.InsertMessages(sessionID, msgs)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	p.processBatch(context.Background(), sessionID, "claude", ids, msgs)

	// memory linked to the originating message
	m, err := s.GetMemoryByMessageID(ids[0])
	if err != nil || m == nil {
		t.Fatalf("expected memory for message %d, err=%v", ids[0], err)
	}
	if m.Content != "Chose Postgres for the backend" {
		t.Errorf("unexpected memory: %q", m.Content)
	}

	// the short assistant ack never became a memory
	if m, _ := s.GetMemoryByMessageID(ids[1]); m != nil {
		t.Errorf("acknowledgement stored as memory: %+v", m)
	}

	e, err := s.FindEntity("Postgres", "Technology")
	if err != nil || e == nil {
		t.Fatalf("expected Postgres entity, err=%v", err)
	}
	facts, _ := s.GetEntityFacts(e.ID)
	if len(facts) != 1 {
		t.Errorf("expected 1 fact, got %d", len(facts))
	}

	cs, err := s.GetChatSummary(sessionID)
	if err != nil || cs == nil {
		t.Fatalf("expected chat summary, err=%v", err)
	}
	if !strings.Contains(cs.Summary, "Postgres") {
		t.Errorf("summary does not mention Postgres: %q", cs.Summary)
	}

	master, err := s.GetMasterMemory()
	if err != nil {
		t.Fatalf("get master: %v", err)
	}
	if !strings.Contains(master, "Technical Environment") || !strings.Contains(master, "Postgres") {
		t.Errorf("unexpected master memory: %q", master)
	}

	if len(notifier.summaries) != 1 {
		t.Errorf("expected 1 summary event, got %d", len(notifier.summaries))
	}
}
