package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/chatcommerce/assist/internal/ai"
	"github.com/chatcommerce/assist/internal/diag"
	"github.com/chatcommerce/assist/internal/ratelimit"
)

type fakeProvider struct {
	calls       int
	lastHistory []ai.Message
	lastMessage string

	reply     string
	tokens    int
	err       error
	chunks    []string
	streamErr error
}

func (p *fakeProvider) Name() string            { return "fake" }
func (p *fakeProvider) SupportsStreaming() bool { return true }

func (p *fakeProvider) TestConnection(ctx context.Context) ai.ProbeResult {
	_ = ctx
	return ai.ProbeResult{Success: true}
}

func (p *fakeProvider) Generate(ctx context.Context, history []ai.Message, message string) (*ai.Result, error) {
	_ = ctx
	p.calls++
	// copy to avoid mutations
	p.lastHistory = append([]ai.Message(nil), history...)
	p.lastMessage = message
	if p.err != nil {
		return nil, p.err
	}
	return &ai.Result{Content: p.reply, Tokens: p.tokens}, nil
}

func (p *fakeProvider) Stream(ctx context.Context, history []ai.Message, message string) (<-chan string, <-chan ai.StreamEnd) {
	p.calls++
	p.lastHistory = append([]ai.Message(nil), history...)
	p.lastMessage = message

	chunks := make(chan string, len(p.chunks))
	end := make(chan ai.StreamEnd, 1)
	go func() {
		defer close(chunks)
		defer close(end)
		for _, c := range p.chunks {
			select {
			case chunks <- c:
			case <-ctx.Done():
				end <- ai.StreamEnd{Err: ctx.Err()}
				return
			}
		}
		if p.streamErr != nil {
			end <- ai.StreamEnd{Err: p.streamErr}
			return
		}
		end <- ai.StreamEnd{Tokens: p.tokens}
	}()
	return chunks, end
}

type denyLimiter struct{}

func (denyLimiter) Check(ctx context.Context, identifier string) (bool, error) { return false, nil }
func (denyLimiter) Reset(ctx context.Context, identifier string) error         { return nil }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// per-test database so rows never collide across tests
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Session{}, &Message{}, &Feedback{}, &Lead{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, prov ai.Provider, window int) *Service {
	t.Helper()
	return NewService(NewRepo(db), prov, ratelimit.NewMemoryLimiter(100, time.Minute), diag.NewMemoryLog(), window)
}

func seedSession(t *testing.T, repo *Repo, sessionID string) {
	t.Helper()
	if err := repo.CreateSession(context.Background(), &Session{
		SessionID:    sessionID,
		StartedAt:    time.Now(),
		LastActivity: time.Now(),
	}); err != nil {
		t.Fatalf("create session: %v", err)
	}
}

func TestHandleTurn_WritesUserAndAssistant(t *testing.T) {
	db := openTestDB(t)
	prov := &fakeProvider{reply: "ok", tokens: 7}
	svc := newTestService(t, db, prov, 6)

	seedSession(t, NewRepo(db), "sess-turn-basic")

	res, cerr := svc.HandleTurn(context.Background(), "sess-turn-basic", "Hello")
	if cerr != nil {
		t.Fatalf("handle turn: %v", cerr)
	}
	if res.Content != "ok" {
		t.Fatalf("unexpected reply: %q", res.Content)
	}
	if res.Tokens != 7 {
		t.Fatalf("unexpected tokens: %d", res.Tokens)
	}
	if res.MessageID == 0 {
		t.Fatalf("expected assistant message id to be set")
	}

	var msgs []Message
	if err := db.Where("session_id = ?", "sess-turn-basic").Order("id ASC").Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "Hello" {
		t.Fatalf("unexpected user msg: role=%q content=%q", msgs[0].Role, msgs[0].Content)
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != "ok" {
		t.Fatalf("unexpected assistant msg: role=%q content=%q", msgs[1].Role, msgs[1].Content)
	}
	if msgs[1].TokensUsed == nil || *msgs[1].TokensUsed != 7 {
		t.Fatalf("expected assistant tokens_used=7, got %v", msgs[1].TokensUsed)
	}

	var sess Session
	if err := db.Where("session_id = ?", "sess-turn-basic").First(&sess).Error; err != nil {
		t.Fatalf("query session: %v", err)
	}
	if sess.MessageCount != 1 {
		t.Fatalf("expected message_count=1, got %d", sess.MessageCount)
	}
}

func TestHandleTurn_InvalidSessionSkipsProvider(t *testing.T) {
	db := openTestDB(t)
	prov := &fakeProvider{reply: "ok"}
	svc := newTestService(t, db, prov, 6)

	_, cerr := svc.HandleTurn(context.Background(), "sess-does-not-exist", "Hello")
	if cerr == nil {
		t.Fatalf("expected error for unknown session")
	}
	if cerr.Kind != KindInvalidSession {
		t.Fatalf("expected kind %q, got %q", KindInvalidSession, cerr.Kind)
	}
	if prov.calls != 0 {
		t.Fatalf("provider must not be invoked for invalid session, got %d calls", prov.calls)
	}

	var count int64
	db.Model(&Message{}).Where("session_id = ?", "sess-does-not-exist").Count(&count)
	if count != 0 {
		t.Fatalf("expected no persisted messages, got %d", count)
	}
}

func TestHandleTurn_RateLimitedBeforePersist(t *testing.T) {
	db := openTestDB(t)
	prov := &fakeProvider{reply: "ok"}
	repo := NewRepo(db)
	svc := NewService(repo, prov, denyLimiter{}, diag.NewMemoryLog(), 6)

	seedSession(t, repo, "sess-rate-limited")

	_, cerr := svc.HandleTurn(context.Background(), "sess-rate-limited", "Hello")
	if cerr == nil || cerr.Kind != KindRateLimited {
		t.Fatalf("expected rate_limited, got %v", cerr)
	}
	if prov.calls != 0 {
		t.Fatalf("provider must not be invoked when rate limited")
	}

	var count int64
	db.Model(&Message{}).Where("session_id = ?", "sess-rate-limited").Count(&count)
	if count != 0 {
		t.Fatalf("rejected turn must not persist the user message, got %d rows", count)
	}
}

func TestHandleTurn_NilProviderIsNotConfigured(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	svc := NewService(repo, nil, ratelimit.NewMemoryLimiter(100, time.Minute), diag.NewMemoryLog(), 6)

	seedSession(t, repo, "sess-no-provider")

	_, cerr := svc.HandleTurn(context.Background(), "sess-no-provider", "Hello")
	if cerr == nil || cerr.Kind != KindProviderNotConfigured {
		t.Fatalf("expected provider_not_configured, got %v", cerr)
	}
}

func TestHandleTurn_HistoryWindowExcludesNewMessage(t *testing.T) {
	db := openTestDB(t)
	prov := &fakeProvider{reply: "ok"}
	repo := NewRepo(db)

	window := 3
	svc := NewService(repo, prov, ratelimit.NewMemoryLimiter(100, time.Minute), diag.NewMemoryLog(), window)

	seedSession(t, repo, "sess-history")

	// seed 5 prior turns
	for i := 0; i < 5; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		if err := repo.InsertMessage(context.Background(), &Message{
			SessionID: "sess-history",
			Role:      role,
			Content:   "seed",
		}); err != nil {
			t.Fatalf("seed msg %d: %v", i, err)
		}
	}

	if _, cerr := svc.HandleTurn(context.Background(), "sess-history", "new"); cerr != nil {
		t.Fatalf("handle turn: %v", cerr)
	}

	// History holds the window of prior turns; the new user message travels
	// separately so it is never duplicated in the context.
	if len(prov.lastHistory) != window {
		t.Fatalf("expected %d history messages, got %d", window, len(prov.lastHistory))
	}
	for i, m := range prov.lastHistory {
		if m.Content == "new" {
			t.Fatalf("history[%d] must not contain the new user message", i)
		}
	}
	if prov.lastMessage != "new" {
		t.Fatalf("expected provider message %q, got %q", "new", prov.lastMessage)
	}
}

func TestHandleTurnStream_ForwardsChunksThenPersists(t *testing.T) {
	db := openTestDB(t)
	prov := &fakeProvider{
		chunks: []string{"We ", "accept ", "returns ", "within 30 days."},
		tokens: 9,
	}
	svc := newTestService(t, db, prov, 6)

	seedSession(t, NewRepo(db), "sess-stream")

	chunks, end := svc.HandleTurnStream(context.Background(), "sess-stream", "What is your returns policy?")

	var got []string
	for c := range chunks {
		got = append(got, c)
	}
	res, ok := <-end
	if !ok {
		t.Fatalf("expected terminal value on end channel")
	}
	if res.Err != nil {
		t.Fatalf("stream failed: %v", res.Err)
	}
	if res.Tokens != 9 {
		t.Fatalf("unexpected tokens: %d", res.Tokens)
	}
	if res.MessageID == 0 {
		t.Fatalf("expected persisted assistant message id")
	}

	want := []string{"We ", "accept ", "returns ", "within 30 days."}
	if len(got) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	// exactly one terminal value, then closed
	if _, more := <-end; more {
		t.Fatalf("end channel must close after the terminal value")
	}

	var assistant Message
	if err := db.Where("id = ?", res.MessageID).First(&assistant).Error; err != nil {
		t.Fatalf("query assistant message: %v", err)
	}
	if assistant.Content != "We accept returns within 30 days." {
		t.Fatalf("unexpected persisted content: %q", assistant.Content)
	}
}

func TestHandleTurnStream_ProviderErrorPersistsPartial(t *testing.T) {
	db := openTestDB(t)
	prov := &fakeProvider{
		chunks:    []string{"partial "},
		streamErr: &ai.APIError{Provider: "openai", Status: 500, Message: "boom"},
	}
	svc := newTestService(t, db, prov, 6)

	seedSession(t, NewRepo(db), "sess-stream-err")

	chunks, end := svc.HandleTurnStream(context.Background(), "sess-stream-err", "hi")
	for range chunks {
	}
	res := <-end
	if res.Err == nil {
		t.Fatalf("expected terminal error")
	}
	if res.Err.Kind != KindProviderUnavailable {
		t.Fatalf("expected provider_unavailable, got %q", res.Err.Kind)
	}
	if res.Err.RequestID == "" {
		t.Fatalf("expected request id on pipeline error")
	}

	var msgs []Message
	if err := db.Where("session_id = ? AND role = ?", "sess-stream-err", "assistant").Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "partial " {
		t.Fatalf("expected one partial assistant message, got %+v", msgs)
	}
}

func TestHandleTurnStream_ErrorRecordedForDiagnostics(t *testing.T) {
	db := openTestDB(t)
	prov := &fakeProvider{err: &ai.APIError{Provider: "openai", Status: 401, Message: "bad key"}}
	repo := NewRepo(db)
	errlog := diag.NewMemoryLog()
	svc := NewService(repo, prov, ratelimit.NewMemoryLimiter(100, time.Minute), errlog, 6)

	seedSession(t, repo, "sess-diag")

	_, cerr := svc.HandleTurn(context.Background(), "sess-diag", "hi")
	if cerr == nil || cerr.Kind != KindProviderAuth {
		t.Fatalf("expected provider_auth_error, got %v", cerr)
	}

	last, err := errlog.Last(context.Background())
	if err != nil {
		t.Fatalf("read error log: %v", err)
	}
	if last == nil {
		t.Fatalf("expected failure recorded in error log")
	}
	if last.RequestID != cerr.RequestID {
		t.Fatalf("error log request id %q does not match pipeline error %q", last.RequestID, cerr.RequestID)
	}
}

func TestSubmitFeedback_AppliesToMessageOnce(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	svc := newTestService(t, db, &fakeProvider{reply: "ok"}, 6)

	seedSession(t, repo, "sess-feedback")

	msg := &Message{SessionID: "sess-feedback", Role: "assistant", Content: "answer"}
	if err := repo.InsertMessage(context.Background(), msg); err != nil {
		t.Fatalf("insert message: %v", err)
	}

	if err := svc.SubmitFeedback(context.Background(), "sess-feedback", &msg.ID, 1, "great"); err != nil {
		t.Fatalf("submit feedback: %v", err)
	}
	// second rating must not overwrite the first
	if err := svc.SubmitFeedback(context.Background(), "sess-feedback", &msg.ID, 0, "changed my mind"); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	var stored Message
	if err := db.First(&stored, "id = ?", msg.ID).Error; err != nil {
		t.Fatalf("query message: %v", err)
	}
	if stored.Rating == nil || *stored.Rating != 1 {
		t.Fatalf("expected rating to stay 1, got %v", stored.Rating)
	}

	var count int64
	db.Model(&Feedback{}).Where("session_id = ?", "sess-feedback").Count(&count)
	if count != 2 {
		t.Fatalf("expected both feedback rows stored, got %d", count)
	}
}

func TestSubmitFeedback_UnknownSession(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db, &fakeProvider{}, 6)

	err := svc.SubmitFeedback(context.Background(), "sess-missing-fb", nil, 1, "")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
}

func TestCaptureLead_RequiresConsent(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	svc := newTestService(t, db, &fakeProvider{}, 6)

	seedSession(t, repo, "sess-lead")

	if _, err := svc.CaptureLead(context.Background(), "sess-lead", "Ada", "ada@example.com", "", false); !errors.Is(err, ErrConsentRequired) {
		t.Fatalf("expected consent error, got %v", err)
	}

	lead, err := svc.CaptureLead(context.Background(), "sess-lead", "Ada", "ada@example.com", "555-0100", true)
	if err != nil {
		t.Fatalf("capture lead: %v", err)
	}
	if lead.ID == 0 {
		t.Fatalf("expected persisted lead id")
	}

	var sess Session
	if err := db.Where("session_id = ?", "sess-lead").First(&sess).Error; err != nil {
		t.Fatalf("query session: %v", err)
	}
	if !sess.LeadCaptured {
		t.Fatalf("expected session marked lead_captured")
	}
}
