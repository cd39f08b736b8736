package chat

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetSessionBySessionID(ctx context.Context, sessionID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// TouchSession bumps last_activity and message_count in one update so the
// counter only ever increases.
func (r *Repo) TouchSession(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"last_activity": time.Now(),
			"message_count": gorm.Expr("message_count + 1"),
		}).Error
}

func (r *Repo) MarkLeadCaptured(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ?", sessionID).
		Update("lead_captured", true).Error
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListRecentMessagesBefore returns up to limit messages older than beforeID
// in DESC id order (newest -> oldest). Insertion order defines conversation
// order.
func (r *Repo) ListRecentMessagesBefore(ctx context.Context, sessionID string, beforeID uint64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 6
	}
	q := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) ListMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) InsertFeedback(ctx context.Context, f *Feedback) error {
	return r.db.WithContext(ctx).Create(f).Error
}

// SetMessageFeedback sets rating/feedback_text on a message if it has none
// yet. Returns false when the message was already rated (or does not exist).
func (r *Repo) SetMessageFeedback(ctx context.Context, messageID uint64, rating int, comment string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ? AND rating IS NULL", messageID).
		Updates(map[string]any{
			"rating":        rating,
			"feedback_text": comment,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *Repo) CreateLead(ctx context.Context, l *Lead) error {
	return r.db.WithContext(ctx).Create(l).Error
}

type Stats struct {
	Sessions int64 `json:"total_sessions"`
	Messages int64 `json:"total_messages"`
	Leads    int64 `json:"total_leads"`
}

func (r *Repo) CollectStats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := r.db.WithContext(ctx).Model(&Session{}).Count(&st.Sessions).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&Message{}).Count(&st.Messages).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&Lead{}).Count(&st.Leads).Error; err != nil {
		return nil, err
	}
	return &st, nil
}
