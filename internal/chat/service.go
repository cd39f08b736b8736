package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chatcommerce/assist/internal/ai"
	"github.com/chatcommerce/assist/internal/common"
	"github.com/chatcommerce/assist/internal/diag"
	"github.com/chatcommerce/assist/internal/ratelimit"
)

// Service orchestrates one chat turn: validate session, rate limit, persist
// the inbound message, load bounded history, dispatch to the provider,
// persist the outbound message, and classify failures.
type Service struct {
	repo          *Repo
	provider      ai.Provider // nil until the operator fixes configuration
	limiter       ratelimit.Limiter
	errlog        diag.ErrorLog
	historyWindow int
}

func NewService(repo *Repo, provider ai.Provider, limiter ratelimit.Limiter, errlog diag.ErrorLog, historyWindow int) *Service {
	if historyWindow <= 0 || historyWindow > 100 {
		historyWindow = 6
	}
	return &Service{
		repo:          repo,
		provider:      provider,
		limiter:       limiter,
		errlog:        errlog,
		historyWindow: historyWindow,
	}
}

// Provider exposes the active provider for the admin connectivity probe.
// Nil when construction failed at startup.
func (s *Service) Provider() ai.Provider { return s.provider }

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.CollectStats(ctx)
}

func (s *Service) StartSession(ctx context.Context, userID *uint64) (*Session, error) {
	now := time.Now()
	sess := &Session{
		SessionID:    uuid.NewString(),
		UserID:       userID,
		StartedAt:    now,
		LastActivity: now,
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

type TurnResult struct {
	Content   string
	Tokens    int
	MessageID uint64
}

// TurnEnd is the single terminal value of a streamed turn.
type TurnEnd struct {
	Tokens    int
	MessageID uint64
	Err       *Error
}

// beginTurn runs the shared front of the pipeline: session gate, rate
// limit, inbound persistence, activity bump, bounded history. On success it
// returns the chronological context window (excluding the new user turn).
func (s *Service) beginTurn(ctx context.Context, sessionID, content string) ([]ai.Message, *Error) {
	if _, err := s.repo.GetSessionBySessionID(ctx, sessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &Error{Kind: KindInvalidSession, Message: msgInvalidSession, cause: err}
		}
		return nil, s.fail(ctx, "session_lookup_error", err)
	}

	allowed, err := s.limiter.Check(ctx, sessionID)
	if err != nil {
		// The limiter cache is transient; fail open rather than block chat.
		log.Printf("[chat] rate limiter unavailable session=%s err=%v", sessionID, err)
		allowed = true
	}
	if !allowed {
		return nil, &Error{Kind: KindRateLimited, Message: msgRateLimited}
	}

	if s.provider == nil {
		return nil, &Error{Kind: KindProviderNotConfigured, Message: msgNotConfigured, cause: ai.ErrNotConfigured}
	}

	userMsg := &Message{
		SessionID: sessionID,
		Role:      "user",
		Content:   content,
	}
	if err := s.repo.InsertMessage(ctx, userMsg); err != nil {
		return nil, s.fail(ctx, "message_store_error", err)
	}

	if err := s.repo.TouchSession(ctx, sessionID); err != nil {
		return nil, s.fail(ctx, "session_update_error", err)
	}

	recentDesc, err := s.repo.ListRecentMessagesBefore(ctx, sessionID, userMsg.ID, s.historyWindow)
	if err != nil {
		return nil, s.fail(ctx, "history_load_error", err)
	}

	// Reverse to chronological order before replaying into the provider.
	history := make([]ai.Message, 0, len(recentDesc))
	for i := len(recentDesc) - 1; i >= 0; i-- {
		m := recentDesc[i]
		history = append(history, ai.Message{Role: m.Role, Content: m.Content})
	}
	return history, nil
}

// HandleTurn is the buffered path: one blocking provider call, one complete
// response.
func (s *Service) HandleTurn(ctx context.Context, sessionID, content string) (*TurnResult, *Error) {
	history, cerr := s.beginTurn(ctx, sessionID, content)
	if cerr != nil {
		return nil, cerr
	}

	res, err := s.provider.Generate(ctx, history, content)
	if err != nil {
		return nil, s.fail(ctx, "chat_error", err)
	}

	assistant := &Message{
		SessionID:  sessionID,
		Role:       "assistant",
		Content:    res.Content,
		TokensUsed: &res.Tokens,
	}
	if err := s.repo.InsertMessage(ctx, assistant); err != nil {
		return nil, s.fail(ctx, "message_store_error", err)
	}

	return &TurnResult{Content: res.Content, Tokens: res.Tokens, MessageID: assistant.ID}, nil
}

// HandleTurnStream is the streaming path. Chunks are forwarded as they
// arrive from the provider; the assembled text is persisted after the
// provider signals completion. If the client disconnects or the provider
// fails mid-stream, whatever partial content accumulated is persisted
// best-effort on a detached context.
func (s *Service) HandleTurnStream(ctx context.Context, sessionID, content string) (<-chan string, <-chan TurnEnd) {
	out := make(chan string, 16)
	end := make(chan TurnEnd, 1)

	go func() {
		defer close(out)
		defer close(end)

		history, cerr := s.beginTurn(ctx, sessionID, content)
		if cerr != nil {
			end <- TurnEnd{Err: cerr}
			return
		}

		pChunks, pEnd := s.provider.Stream(ctx, history, content)

		var b strings.Builder
	forward:
		for c := range pChunks {
			b.WriteString(c)
			select {
			case out <- c:
			case <-ctx.Done():
				break forward
			}
		}

		res, ok := <-pEnd
		if !ok {
			res = ai.StreamEnd{Err: errors.New("provider stream ended without result")}
		}

		if ctx.Err() != nil || res.Err != nil {
			s.persistPartial(ctx, sessionID, b.String())
			cause := res.Err
			if cause == nil {
				cause = ctx.Err()
			}
			end <- TurnEnd{Err: s.fail(ctx, "stream_error", cause)}
			return
		}

		tokens := res.Tokens
		assistant := &Message{
			SessionID:  sessionID,
			Role:       "assistant",
			Content:    b.String(),
			TokensUsed: &tokens,
		}
		if err := s.repo.InsertMessage(ctx, assistant); err != nil {
			end <- TurnEnd{Err: s.fail(ctx, "message_store_error", err)}
			return
		}

		end <- TurnEnd{Tokens: tokens, MessageID: assistant.ID}
	}()

	return out, end
}

func (s *Service) persistPartial(ctx context.Context, sessionID, partial string) {
	if partial == "" {
		return
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	tokens := ai.EstimateTokens(len(partial))
	err := s.repo.InsertMessage(dctx, &Message{
		SessionID:  sessionID,
		Role:       "assistant",
		Content:    partial,
		TokensUsed: &tokens,
	})
	if err != nil {
		log.Printf("[chat] partial persist failed session=%s err=%v", sessionID, err)
	}
}

// fail classifies a raw failure, logs it server-side with a fresh
// correlation id and credentials masked, records it for diagnostics, and
// returns the sanitized pipeline error.
func (s *Service) fail(ctx context.Context, code string, err error) *Error {
	kind, safe := Classify(err)
	reqID := common.NewRequestID()

	log.Printf("[chat] [%s] [%s] %s | kind=%s user_message=%q", code, reqID, Redact(err.Error()), kind, safe)

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if recErr := s.errlog.Record(dctx, diag.Record{
		Code:      code,
		Message:   safe,
		RequestID: reqID,
		Timestamp: time.Now(),
	}); recErr != nil {
		log.Printf("[chat] error log record failed: %v", recErr)
	}

	return &Error{Kind: kind, Message: safe, RequestID: reqID, cause: err}
}

var ErrConsentRequired = errors.New("consent is required to capture lead information")

func (s *Service) SubmitFeedback(ctx context.Context, sessionID string, messageID *uint64, rating int, comment string) error {
	if _, err := s.repo.GetSessionBySessionID(ctx, sessionID); err != nil {
		return err
	}

	if err := s.repo.InsertFeedback(ctx, &Feedback{
		SessionID: sessionID,
		MessageID: messageID,
		Rating:    rating,
		Comment:   comment,
	}); err != nil {
		return err
	}

	if messageID != nil {
		applied, err := s.repo.SetMessageFeedback(ctx, *messageID, rating, comment)
		if err != nil {
			return err
		}
		if !applied {
			log.Printf("[chat] feedback already set message_id=%d session=%s", *messageID, sessionID)
		}
	}
	return nil
}

func (s *Service) CaptureLead(ctx context.Context, sessionID, name, email, phone string, consent bool) (*Lead, error) {
	if !consent {
		return nil, ErrConsentRequired
	}
	if _, err := s.repo.GetSessionBySessionID(ctx, sessionID); err != nil {
		return nil, err
	}

	lead := &Lead{
		SessionID: sessionID,
		Name:      name,
		Email:     email,
		Phone:     phone,
		Consent:   consent,
	}
	if err := s.repo.CreateLead(ctx, lead); err != nil {
		return nil, err
	}
	if err := s.repo.MarkLeadCaptured(ctx, sessionID); err != nil {
		return nil, err
	}
	return lead, nil
}

func (s *Service) ListMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	return s.repo.ListMessages(ctx, sessionID, limit)
}
