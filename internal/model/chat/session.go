package chat

import "time"

// Session captures the backend view of one client session identifier.
type Session struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
}

// Analytics 会话统计信息
type Analytics struct {
	TotalMessages int            `json:"totalMessages"`
	IntentsUsed   map[string]int `json:"intentsUsed"`
	SessionStart  time.Time      `json:"sessionStart"`
	LastActive    time.Time      `json:"lastActive"`
}
