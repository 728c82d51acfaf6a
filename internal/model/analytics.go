package model

import "time"

// Overview is a snapshot of platform totals.
type Overview struct {
	TotalUsers          int `json:"total_users"`
	ActiveUsers         int `json:"active_users"`
	TotalConversations  int `json:"total_conversations"`
	ActiveConversations int `json:"active_conversations"`
	TotalMessages       int `json:"total_messages"`
	MessagesToday       int `json:"messages_today"`
	UnprocessedMessages int `json:"unprocessed_messages"`
}

// DailyMessageCount is the message volume of one UTC day.
type DailyMessageCount struct {
	Date     time.Time `json:"date"`
	Incoming int       `json:"incoming"`
	Outgoing int       `json:"outgoing"`
	Total    int       `json:"total"`
}

// ConversationMetrics aggregates conversations by status.
type ConversationMetrics struct {
	ByStatus                   map[StatusKind]int `json:"by_status"`
	TotalConversations         int                `json:"total_conversations"`
	TotalMessages              int                `json:"total_messages"`
	AvgMessagesPerConversation float64            `json:"avg_messages_per_conversation"`
}
