package chat

import "time"

type Session struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID    string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"session_id"`
	UserID       *uint64   `gorm:"index" json:"-"`
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `gorm:"not null;default:0" json:"message_count"`
	LeadCaptured bool      `gorm:"not null;default:false" json:"lead_captured"`
}

func (Session) TableName() string { return "chat_sessions" }

// Message rows are immutable once written except for Rating/FeedbackText,
// which a later feedback call may set at most once.
type Message struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID    string    `gorm:"type:varchar(36);index;not null" json:"session_id"`
	Role         string    `gorm:"type:varchar(16);not null" json:"role"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	TokensUsed   *int      `json:"tokens_used,omitempty"`
	Rating       *int      `json:"rating,omitempty"` // 0 or 1
	FeedbackText *string   `gorm:"type:text" json:"feedback_text,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

type Feedback struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"type:varchar(36);index;not null" json:"session_id"`
	MessageID *uint64   `gorm:"index" json:"message_id,omitempty"`
	Rating    int       `gorm:"not null" json:"rating"`
	Comment   string    `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

func (Feedback) TableName() string { return "chat_feedback" }

type Lead struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"type:varchar(36);index;not null" json:"session_id"`
	Name      string    `gorm:"type:varchar(191)" json:"name"`
	Email     string    `gorm:"type:varchar(191);not null" json:"email"`
	Phone     string    `gorm:"type:varchar(64)" json:"phone"`
	Consent   bool      `gorm:"not null" json:"consent"`
	CreatedAt time.Time `json:"created_at"`
}

func (Lead) TableName() string { return "chat_leads" }
