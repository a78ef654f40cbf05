package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/MikhalGarbuz/analyze-your-life/internal/domain"
)

// ReminderText is sent to users who have not logged anything today.
const ReminderText = "You have not logged today's values yet. Start data entry when you are ready."

// ReminderService nudges users that have no entry for the current day.
type ReminderService struct {
	entries  domain.EntryRepository
	notifier domain.Notifier
	hour     int
	minute   int
	now      func() time.Time
}

// NewReminderService creates a ReminderService that runs daily at the given
// local hour and minute.
func NewReminderService(entries domain.EntryRepository, notifier domain.Notifier, hour, minute int) *ReminderService {
	return &ReminderService{entries: entries, notifier: notifier, hour: hour, minute: minute, now: time.Now}
}

// RemindMissing notifies every user with no entry on day and returns how many
// were notified. Delivery failures are logged and do not stop the run.
func (s *ReminderService) RemindMissing(ctx context.Context, day string) (int, error) {
	users, err := s.entries.FindUsersMissingEntry(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("find users missing %s: %w", day, err)
	}
	sent := 0
	for _, u := range users {
		if err := s.notifier.Notify(ctx, u, ReminderText); err != nil {
			log.Printf("reminder: user=%d: %v", u.ID, err)
			continue
		}
		sent++
	}
	log.Printf("reminder: day=%s missing=%d sent=%d", day, len(users), sent)
	return sent, nil
}

// NextRun returns the first scheduled time strictly after t.
func (s *ReminderService) NextRun(t time.Time) time.Time {
	t = t.In(time.Local)
	next := time.Date(t.Year(), t.Month(), t.Day(), s.hour, s.minute, 0, 0, time.Local)
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run sends reminders once a day until ctx is cancelled.
func (s *ReminderService) Run(ctx context.Context) error {
	for {
		next := s.NextRun(s.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-timer.C:
		}
		if _, err := s.RemindMissing(ctx, domain.LocalDay(next)); err != nil {
			log.Printf("reminder: %v", err)
		}
	}
}
