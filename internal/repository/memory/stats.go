package memory

import (
	"context"
	"sort"
	"time"

	"github.com/wpp-platform/customer-service/internal/model"
)

type statsRepository struct{ s *Store }

func (r *statsRepository) Overview(_ context.Context, dayStart time.Time) (*model.Overview, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o := &model.Overview{
		TotalUsers:         len(r.s.users),
		TotalConversations: len(r.s.conversations),
		TotalMessages:      len(r.s.messages),
	}
	for _, u := range r.s.users {
		if u.Active {
			o.ActiveUsers++
		}
	}
	for _, c := range r.s.conversations {
		if c.IsActive() {
			o.ActiveConversations++
		}
	}
	for _, m := range r.s.messages {
		if !m.CreatedAt.Before(dayStart) {
			o.MessagesToday++
		}
		if !m.Processed && m.IsIncoming() {
			o.UnprocessedMessages++
		}
	}
	return o, nil
}

func (r *statsRepository) DailyMessageCounts(_ context.Context, from time.Time) ([]model.DailyMessageCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byDay := map[time.Time]*model.DailyMessageCount{}
	for _, m := range r.s.messages {
		if m.CreatedAt.Before(from) {
			continue
		}
		t := m.CreatedAt.UTC()
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		d, ok := byDay[day]
		if !ok {
			d = &model.DailyMessageCount{Date: day}
			byDay[day] = d
		}
		if m.IsIncoming() {
			d.Incoming++
		} else {
			d.Outgoing++
		}
		d.Total++
	}

	out := make([]model.DailyMessageCount, 0, len(byDay))
	for _, d := range byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *statsRepository) ConversationMetrics(context.Context) (*model.ConversationMetrics, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m := &model.ConversationMetrics{
		ByStatus:           map[model.StatusKind]int{},
		TotalConversations: len(r.s.conversations),
		TotalMessages:      len(r.s.messages),
	}
	for _, c := range r.s.conversations {
		m.ByStatus[c.Status.Kind]++
	}
	if m.TotalConversations > 0 {
		m.AvgMessagesPerConversation = float64(m.TotalMessages) / float64(m.TotalConversations)
	}
	return m, nil
}
