package integration

import (
	"context"
	"sync"
	"time"

	"github.com/brightpath/stagegate/internal/config"
	"github.com/brightpath/stagegate/internal/reminder"
)

// capturingNotifier records reminders instead of delivering them.
type capturingNotifier struct {
	mu   sync.Mutex
	sent []reminder.Reminder
}

func (n *capturingNotifier) SendReminder(_ context.Context, r reminder.Reminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, r)
	return nil
}

func testReminderConfig() config.ReminderConfig {
	return config.ReminderConfig{
		Enabled:            true,
		Interval:           time.Hour,
		StallThresholdDays: 3,
		TickTimeout:        10 * time.Second,
	}
}
