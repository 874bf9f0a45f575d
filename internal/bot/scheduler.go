package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// runScheduler is the single periodic driver: a fixed one-minute ticker that
// opens sessions at the configured time and sweeps reminders on every tick.
// It stops cleanly when ctx is cancelled.
func (b *Bot) runScheduler(ctx context.Context) {
	ticker := time.NewTicker(b.tickInterval)
	defer ticker.Stop()

	log.Printf("[scheduler] started, report time %s, interval %dh",
		b.cfg.Report.Time, b.cfg.Report.ReminderIntervalHours)

	for {
		select {
		case <-ticker.C:
			b.tick(ctx, b.localNow())
		case <-ctx.Done():
			log.Printf("[scheduler] stopped")
			return
		}
	}
}

// tick runs one scheduler pass. Errors and panics are contained so no tick
// can terminate the loop.
func (b *Bot) tick(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[scheduler] tick panic recovered: %v", r)
		}
	}()

	hour, minute := b.cfg.Report.ReportClock()
	day := b.dayOf(now)

	b.mu.Lock()
	opened := b.openedDay == day
	b.mu.Unlock()

	if now.Hour() == hour && now.Minute() == minute && !opened {
		b.openSessions(ctx, now)
		// Recorded even when nothing opened (non-reporting day): the
		// minute must not retrigger within the same day.
		b.mu.Lock()
		b.openedDay = day
		b.mu.Unlock()
	}

	b.sweepReminders(ctx, now)
}

// openSessions opens today's reporting session in every eligible channel:
// post the prompt tagging members, record the session, and log the request
// for accountability statistics. Previous sessions and all pending reminder
// state are discarded first so unresolved reminders never leak across days.
func (b *Bot) openSessions(ctx context.Context, now time.Time) {
	if !b.cfg.Report.IsReportingDay(now.Weekday()) {
		log.Printf("[scheduler] %s is not a reporting day, skipping", now.Weekday())
		return
	}

	b.mu.Lock()
	b.sessions = make(map[string]*Session)
	channels := b.registry.Snapshot()
	b.mu.Unlock()

	day := b.dayOf(now)
	log.Printf("[scheduler] opening sessions for %s across %d channels", day, len(channels))

	for _, ch := range channels {
		if excludedChannelName(ch.Name) {
			continue
		}
		requested := b.eligibleMembers(ch.Members)
		if len(requested) == 0 {
			continue
		}

		message := b.composePrompt(now, requested)
		post, err := b.platform.CreatePost(ctx, ch.ID, message, "")
		if err != nil {
			// One channel's failure must not abort the rest.
			log.Printf("[scheduler] post prompt to %s: %v", ch.Name, err)
			continue
		}

		sess := newSession(ch.ID, ch.Name, day, post.ID, now, requested)
		b.mu.Lock()
		b.sessions[ch.ID] = sess
		b.mu.Unlock()

		if err := b.store.AddRequest(ch.ID, ch.Name, day, requested); err != nil {
			log.Printf("[scheduler] record request for %s: %v", ch.Name, err)
		}
		log.Printf("[scheduler] session open in %s, %d members requested", ch.Name, len(requested))
	}
}

func (b *Bot) composePrompt(now time.Time, requested []string) string {
	tags := make([]string, 0, len(requested))
	for _, u := range requested {
		tags = append(tags, "@"+u)
	}
	return fmt.Sprintf("## 🔔 **Daily Scrum Report for %s**\n\n%s\n\n%s",
		now.Format("Monday, January 2, 2006"),
		strings.Join(tags, " "),
		b.cfg.Report.PromptText())
}

// OpenSessionCount reports how many sessions are currently open.
func (b *Bot) OpenSessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}
