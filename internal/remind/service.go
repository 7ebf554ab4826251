// Package remind sends users a scheduled summary of what's still pending.
package remind

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"mindmate/pkg/activity"
	"mindmate/pkg/notify"
	"mindmate/pkg/task"
	"mindmate/pkg/user"
)

// Service runs the reminder digest on a cron schedule.
type Service struct {
	users    user.Store
	tasks    task.Store
	notifier notify.Notifier
	log      activity.Store
	schedule string
	cron     *cron.Cron
}

// New creates a Service. Schedule is a standard 5-field cron expression.
func New(users user.Store, tasks task.Store, notifier notify.Notifier, log activity.Store, schedule string) *Service {
	return &Service{
		users:    users,
		tasks:    tasks,
		notifier: notifier,
		log:      log,
		schedule: schedule,
	}
}

// Start registers the digest job and starts the scheduler.
func (s *Service) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.RunDigest(context.Background()); err != nil {
			log.Printf("[remind] digest: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("register digest job %q: %w", s.schedule, err)
	}
	s.cron.Start()
	log.Printf("[remind] digest scheduled at %q", s.schedule)
	return nil
}

// Stop halts the scheduler; running jobs finish.
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunDigest sends one digest round: every user with pending tasks gets a
// summary notification. Failures for one user don't stop the others.
func (s *Service) RunDigest(ctx context.Context) error {
	users, err := s.users.List(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	var failed int
	for _, u := range users {
		n, err := s.tasks.PendingCount(ctx, u.ID)
		if err != nil {
			log.Printf("[remind] pending count for %s: %v", u.ID, err)
			failed++
			continue
		}
		if n == 0 {
			continue
		}

		body := fmt.Sprintf("You have %d pending tasks. Pick an energy level and get a suggestion.", n)
		if err := s.notifier.Push(ctx, u.ID, "MindMate daily digest", body); err != nil {
			log.Printf("[remind] push to %s: %v", u.ID, err)
			failed++
			continue
		}
		s.log.Append(ctx, activity.DigestSent, u.ID, map[string]any{"pending_tasks": n})
	}

	if failed > 0 {
		return fmt.Errorf("digest: %d of %d users failed", failed, len(users))
	}
	return nil
}
