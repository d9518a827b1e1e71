package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"botforge-server/src/configs"
	corechat "botforge-server/src/core/chat"
	"botforge-server/src/core/knowledge"
	"botforge-server/src/core/providers/llm"
	"botforge-server/src/core/rag"
	"botforge-server/src/core/utils"
	"botforge-server/src/models"
)

type fakeBots struct {
	bot *models.Bot
	err error
}

func (f *fakeBots) GetPublished(ctx context.Context, slug string) (*models.Bot, error) {
	return f.bot, f.err
}

type fakeEmbedder struct {
	vec   []float32
	err   error
	errAt int // fail only this call number; 0 applies err to every call
	calls int
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.errAt != 0 {
		if f.calls == f.errAt {
			return nil, fmt.Errorf("embedding unavailable")
		}
		return f.vec, nil
	}
	return f.vec, f.err
}

type fakeRetriever struct {
	chunks []knowledge.ScoredChunk
	err    error
	calls  int
}

func (f *fakeRetriever) TopChunks(ctx context.Context, botID uint, query []float32, k int, minSimilarity float32) ([]knowledge.ScoredChunk, error) {
	f.calls++
	return f.chunks, f.err
}

type fakeCompleter struct {
	reply    string
	err      error
	gotMsgs  []llm.Message
	gotModel string
	gotProv  string
}

func (f *fakeCompleter) Complete(ctx context.Context, provider, model string, messages []llm.Message, temperature float32) (string, error) {
	f.gotProv = provider
	f.gotModel = model
	f.gotMsgs = messages
	return f.reply, f.err
}

type fakeConvs struct {
	conv      *models.Conversation
	ensureErr error
	history   []models.Message
	outcome   corechat.LogOutcome
	appended  [][2]string
}

func (f *fakeConvs) Ensure(ctx context.Context, botID uint, conversationID, firstUserMessage string) (*models.Conversation, error) {
	return f.conv, f.ensureErr
}

func (f *fakeConvs) Recent(ctx context.Context, conversationID string, n int) ([]models.Message, error) {
	return f.history, nil
}

func (f *fakeConvs) AppendExchange(ctx context.Context, conversationID, userContent, assistantContent string) corechat.LogOutcome {
	f.appended = append(f.appended, [2]string{userContent, assistantContent})
	return f.outcome
}

type fakeMemory struct {
	recalled []corechat.RecalledTurn
	appended []string
}

func (f *fakeMemory) Append(ctx context.Context, userID, botID uint, conversationID, role, content string, vector []float32) error {
	f.appended = append(f.appended, role+":"+content)
	return nil
}

func (f *fakeMemory) Recall(ctx context.Context, userID, botID uint, query []float32, n int) ([]corechat.RecalledTurn, error) {
	return f.recalled, nil
}

func testConfig() *configs.Config {
	cfg := &configs.Config{}
	cfg.Chat.TopK = 3
	cfg.Chat.ContextBudget = 8000
	cfg.Chat.HistoryLimit = 10
	cfg.Chat.MemoryEnabled = true
	return cfg
}

func testBot() *models.Bot {
	return &models.Bot{
		ID:          7,
		Slug:        "support",
		Name:        "Support Bot",
		Directive:   "Answer politely.",
		Model:       "gpt-4o-mini",
		Provider:    models.ProviderOpenAI,
		Temperature: 0.4,
		Public:      true,
	}
}

func newTestService(bots *fakeBots, emb *fakeEmbedder, ret *fakeRetriever, comp *fakeCompleter, convs *fakeConvs, mem *fakeMemory) *ChatService {
	return NewChatService(testConfig(), utils.NewLogger("", "", "error"), bots, emb, ret, comp, convs, mem)
}

func userRequest(content string) *ChatRequest {
	return &ChatRequest{Messages: []IncomingMessage{{Role: "user", Content: content}}}
}

func TestComplete_HappyPath(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	ret := &fakeRetriever{chunks: []knowledge.ScoredChunk{
		{FileName: "faq.pdf", Content: "Refunds within 30 days.", Similarity: 0.9},
	}}
	comp := &fakeCompleter{reply: "You can get a refund within 30 days."}
	convs := &fakeConvs{conv: &models.Conversation{ID: "conv-1", BotID: 7}, outcome: corechat.LogOK}
	svc := newTestService(&fakeBots{bot: testBot()}, emb, ret, comp, convs, &fakeMemory{})

	resp, err := svc.Complete(context.Background(), "support", userRequest("refund policy?"))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Reply != comp.reply {
		t.Errorf("reply = %q", resp.Reply)
	}
	if resp.ConversationID == nil || *resp.ConversationID != "conv-1" {
		t.Errorf("conversation id = %v, want conv-1", resp.ConversationID)
	}
	if comp.gotProv != models.ProviderOpenAI || comp.gotModel != "gpt-4o-mini" {
		t.Errorf("routed to %s/%s", comp.gotProv, comp.gotModel)
	}

	// system prompt, context block, then the user turn
	if len(comp.gotMsgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(comp.gotMsgs))
	}
	if !strings.HasPrefix(comp.gotMsgs[0].Content, "You are Support Bot") {
		t.Errorf("system prompt = %q", comp.gotMsgs[0].Content)
	}
	if !strings.Contains(comp.gotMsgs[1].Content, "[Source: faq.pdf]") {
		t.Errorf("context block missing snippet: %q", comp.gotMsgs[1].Content)
	}
	if comp.gotMsgs[2].Role != "user" || comp.gotMsgs[2].Content != "refund policy?" {
		t.Errorf("last message = %+v", comp.gotMsgs[2])
	}

	if len(convs.appended) != 1 || convs.appended[0][1] != comp.reply {
		t.Errorf("exchange not logged: %v", convs.appended)
	}
}

func TestComplete_UnpublishedBot(t *testing.T) {
	wantErr := fmt.Errorf("not found")
	svc := newTestService(&fakeBots{err: wantErr}, &fakeEmbedder{}, &fakeRetriever{}, &fakeCompleter{}, &fakeConvs{}, &fakeMemory{})

	if _, err := svc.Complete(context.Background(), "ghost", userRequest("hi")); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want bot lookup error", err)
	}
}

func TestComplete_ValidatesLastRole(t *testing.T) {
	svc := newTestService(&fakeBots{bot: testBot()}, &fakeEmbedder{}, &fakeRetriever{}, &fakeCompleter{}, &fakeConvs{}, &fakeMemory{})

	req := &ChatRequest{Messages: []IncomingMessage{{Role: "assistant", Content: "hello"}}}
	if _, err := svc.Complete(context.Background(), "support", req); !errors.Is(err, ErrLastNotUser) {
		t.Errorf("err = %v, want ErrLastNotUser", err)
	}
	if _, err := svc.Complete(context.Background(), "support", &ChatRequest{}); !errors.Is(err, ErrNoMessages) {
		t.Errorf("err = %v, want ErrNoMessages", err)
	}
}

func TestComplete_EmbeddingFailureSkipsRetrieval(t *testing.T) {
	emb := &fakeEmbedder{err: fmt.Errorf("quota exceeded")}
	ret := &fakeRetriever{}
	comp := &fakeCompleter{reply: "best effort answer"}
	convs := &fakeConvs{conv: &models.Conversation{ID: "conv-2"}, outcome: corechat.LogOK}
	svc := newTestService(&fakeBots{bot: testBot()}, emb, ret, comp, convs, &fakeMemory{})

	resp, err := svc.Complete(context.Background(), "support", userRequest("hi"))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if ret.calls != 0 {
		t.Error("retriever called without a query vector")
	}
	if resp.Reply != "best effort answer" {
		t.Errorf("reply = %q", resp.Reply)
	}
	// no snippets means the placeholder context
	if !strings.Contains(comp.gotMsgs[1].Content, "No relevant information") {
		t.Errorf("context = %q, want placeholder", comp.gotMsgs[1].Content)
	}
}

func TestComplete_ConversationFailureStillAnswers(t *testing.T) {
	convs := &fakeConvs{ensureErr: fmt.Errorf("db down")}
	comp := &fakeCompleter{reply: "still here"}
	svc := newTestService(&fakeBots{bot: testBot()}, &fakeEmbedder{vec: []float32{1}}, &fakeRetriever{}, comp, convs, &fakeMemory{})

	resp, err := svc.Complete(context.Background(), "support", userRequest("hi"))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Reply != "still here" {
		t.Errorf("reply = %q", resp.Reply)
	}
	if resp.ConversationID != nil {
		t.Errorf("conversation id = %v, want nil", resp.ConversationID)
	}
}

func TestComplete_LogFailedNullsConversationID(t *testing.T) {
	convs := &fakeConvs{conv: &models.Conversation{ID: "conv-3"}, outcome: corechat.LogFailed}
	svc := newTestService(&fakeBots{bot: testBot()}, &fakeEmbedder{vec: []float32{1}}, &fakeRetriever{}, &fakeCompleter{reply: "ok"}, convs, &fakeMemory{})

	resp, err := svc.Complete(context.Background(), "support", userRequest("hi"))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.ConversationID != nil {
		t.Errorf("conversation id = %v, want nil after double write failure", resp.ConversationID)
	}
}

func TestComplete_CompletionErrorPropagates(t *testing.T) {
	provErr := &llm.ProviderError{Provider: "openai", StatusCode: 429}
	comp := &fakeCompleter{err: provErr}
	convs := &fakeConvs{conv: &models.Conversation{ID: "conv-4"}}
	svc := newTestService(&fakeBots{bot: testBot()}, &fakeEmbedder{vec: []float32{1}}, &fakeRetriever{}, comp, convs, &fakeMemory{})

	_, err := svc.Complete(context.Background(), "support", userRequest("hi"))
	var got *llm.ProviderError
	if !errors.As(err, &got) || got.StatusCode != 429 {
		t.Errorf("err = %v, want ProviderError 429", err)
	}
	if len(convs.appended) != 0 {
		t.Error("failed completion must not be logged")
	}
}

func TestComplete_HistoryIncluded(t *testing.T) {
	convs := &fakeConvs{
		conv: &models.Conversation{ID: "conv-5"},
		history: []models.Message{
			{Role: "user", Content: "earlier question"},
			{Role: "assistant", Content: models.TagOperator("operator answer")},
		},
		outcome: corechat.LogOK,
	}
	comp := &fakeCompleter{reply: "ok"}
	svc := newTestService(&fakeBots{bot: testBot()}, &fakeEmbedder{vec: []float32{1}}, &fakeRetriever{}, comp, convs, &fakeMemory{})

	if _, err := svc.Complete(context.Background(), "support", userRequest("followup")); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	// system, context, 2 history turns, user
	if len(comp.gotMsgs) != 5 {
		t.Fatalf("got %d messages, want 5", len(comp.gotMsgs))
	}
	if comp.gotMsgs[2].Content != "earlier question" {
		t.Errorf("history[0] = %q", comp.gotMsgs[2].Content)
	}
	// operator marker must not leak upstream
	if comp.gotMsgs[3].Content != "operator answer" {
		t.Errorf("history[1] = %q, marker not stripped", comp.gotMsgs[3].Content)
	}
}

func TestComplete_MemoryRecallAndAppend(t *testing.T) {
	bot := testBot()
	bot.Rules = []byte(`{"use_memory": true}`)
	mem := &fakeMemory{recalled: []corechat.RecalledTurn{
		{Role: "user", Content: "my name is Ada", Similarity: 0.8},
	}}
	comp := &fakeCompleter{reply: "Hello Ada"}
	convs := &fakeConvs{conv: &models.Conversation{ID: "conv-6"}, outcome: corechat.LogOK}
	svc := newTestService(&fakeBots{bot: bot}, &fakeEmbedder{vec: []float32{1}}, &fakeRetriever{}, comp, convs, mem)

	if _, err := svc.Complete(context.Background(), "support", userRequest("who am I?")); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !strings.Contains(comp.gotMsgs[1].Content, "my name is Ada") {
		t.Errorf("recalled turn missing from context: %q", comp.gotMsgs[1].Content)
	}
	if len(mem.appended) != 2 {
		t.Fatalf("memory appends = %v, want user and assistant turns", mem.appended)
	}
	if mem.appended[0] != "user:who am I?" || mem.appended[1] != "assistant:Hello Ada" {
		t.Errorf("memory appends = %v", mem.appended)
	}
}

func TestWireKeys_ConversationID(t *testing.T) {
	var req ChatRequest
	payload := `{"conversationId": "conv-abc", "userId": 3, "messages": [{"role": "user", "content": "hi"}]}`
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.ConversationID != "conv-abc" {
		t.Errorf("conversationId not bound: %q", req.ConversationID)
	}
	if req.UserID != 3 {
		t.Errorf("userId not bound: %d", req.UserID)
	}

	id := "conv-abc"
	out, err := json.Marshal(&ChatResponse{Reply: "hi", ConversationID: &id})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"conversationId":"conv-abc"`) {
		t.Errorf("response keys = %s", out)
	}

	// null, not omitted, when logging failed
	out, _ = json.Marshal(&ChatResponse{Reply: "hi"})
	if !strings.Contains(string(out), `"conversationId":null`) {
		t.Errorf("failed-log response = %s", out)
	}
}

func TestComplete_KnowledgeFallbackDirective(t *testing.T) {
	bot := testBot()
	bot.Rules = []byte(`{"knowledge_fallback": true}`)
	comp := &fakeCompleter{reply: "ok"}
	convs := &fakeConvs{conv: &models.Conversation{ID: "conv-8"}, outcome: corechat.LogOK}
	svc := newTestService(&fakeBots{bot: bot}, &fakeEmbedder{vec: []float32{1}}, &fakeRetriever{}, comp, convs, &fakeMemory{})

	if _, err := svc.Complete(context.Background(), "support", userRequest("hi")); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !strings.Contains(comp.gotMsgs[1].Content, rag.KnowledgeFallbackDirective) {
		t.Errorf("fallback directive missing: %q", comp.gotMsgs[1].Content)
	}

	// default bots stay strictly grounded
	comp2 := &fakeCompleter{reply: "ok"}
	svc2 := newTestService(&fakeBots{bot: testBot()}, &fakeEmbedder{vec: []float32{1}}, &fakeRetriever{}, comp2, convs, &fakeMemory{})
	if _, err := svc2.Complete(context.Background(), "support", userRequest("hi")); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if strings.Contains(comp2.gotMsgs[1].Content, rag.KnowledgeFallbackDirective) {
		t.Errorf("fallback directive present without the rule: %q", comp2.gotMsgs[1].Content)
	}
}

func TestComplete_ReplyEmbedFailureDropsMemoryTurnOnly(t *testing.T) {
	bot := testBot()
	bot.Rules = []byte(`{"use_memory": true}`)
	emb := &fakeEmbedder{vec: []float32{1}, errAt: 2} // query embeds, reply does not
	mem := &fakeMemory{}
	convs := &fakeConvs{conv: &models.Conversation{ID: "conv-9"}, outcome: corechat.LogOK}
	svc := newTestService(&fakeBots{bot: bot}, emb, &fakeRetriever{}, &fakeCompleter{reply: "answer"}, convs, mem)

	resp, err := svc.Complete(context.Background(), "support", userRequest("hi"))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Reply != "answer" {
		t.Errorf("reply = %q", resp.Reply)
	}
	if len(mem.appended) != 1 || mem.appended[0] != "user:hi" {
		t.Errorf("memory appends = %v, want only the user turn", mem.appended)
	}
}

func TestComplete_MemoryOffByDefault(t *testing.T) {
	mem := &fakeMemory{recalled: []corechat.RecalledTurn{{Role: "user", Content: "secret"}}}
	comp := &fakeCompleter{reply: "ok"}
	convs := &fakeConvs{conv: &models.Conversation{ID: "conv-7"}, outcome: corechat.LogOK}
	svc := newTestService(&fakeBots{bot: testBot()}, &fakeEmbedder{vec: []float32{1}}, &fakeRetriever{}, comp, convs, mem)

	if _, err := svc.Complete(context.Background(), "support", userRequest("hi")); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if strings.Contains(comp.gotMsgs[1].Content, "secret") {
		t.Error("memory recalled despite the bot rule being off")
	}
	if len(mem.appended) != 0 {
		t.Errorf("memory written despite the bot rule being off: %v", mem.appended)
	}
}
