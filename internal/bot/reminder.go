package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// sweepReminders is one pass of the reminder tracker over all open sessions.
// A member is nudged at most once per sweep no matter how many channels they
// owe; the single DM aggregates a deep link per pending channel, and every
// channel listed is stamped so the spacing invariant holds across channels.
func (b *Bot) sweepReminders(ctx context.Context, now time.Time) {
	interval := b.cfg.Report.ReminderInterval()

	b.mu.Lock()
	sessions := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	remindedThisRound := make(map[string]bool)

	for _, sess := range sessions {
		reporters, err := b.store.TodayReporters(sess.ChannelID)
		if err != nil {
			log.Printf("[reminder] today reporters for %s: %v", sess.ChannelName, err)
			continue
		}

		b.mu.Lock()
		var due []string
		for member := range sess.Requested {
			if reporters[member] {
				// Reported since the last sweep: drop their pending state
				// regardless of cadence.
				sess.clearReminder(member)
				continue
			}
			if remindedThisRound[member] || b.cfg.Report.IsExcluded(member) {
				continue
			}
			if sess.reminderDue(member, now, interval) {
				due = append(due, member)
			}
		}
		b.mu.Unlock()

		for _, member := range due {
			if remindedThisRound[member] {
				continue
			}
			if b.sendReminder(ctx, member, now) {
				remindedThisRound[member] = true
			}
		}
	}
}

// sendReminder DMs one member a reminder covering every channel where they
// still owe today's report, each rendered as a deep link to that channel's
// prompt thread. Returns false when nothing was sent.
func (b *Bot) sendReminder(ctx context.Context, username string, now time.Time) bool {
	b.mu.Lock()
	pending := make([]*Session, 0, len(b.sessions))
	for _, sess := range b.sessions {
		if sess.Requested[username] {
			pending = append(pending, sess)
		}
	}
	b.mu.Unlock()

	// Re-check the store per channel so a just-accepted report suppresses
	// its channel from the aggregate.
	var owed []*Session
	for _, sess := range pending {
		reported, err := b.store.HasReportedToday(sess.ChannelID, username)
		if err != nil {
			log.Printf("[reminder] has reported check for %s in %s: %v", username, sess.ChannelName, err)
			continue
		}
		if !reported {
			owed = append(owed, sess)
		}
	}
	if len(owed) == 0 {
		return false
	}

	user, err := b.platform.GetUserByUsername(ctx, username)
	if err != nil {
		log.Printf("[reminder] resolve user %s: %v", username, err)
		return false
	}
	dm, err := b.platform.CreateDirectChannel(ctx, b.botUser.ID, user.ID)
	if err != nil {
		log.Printf("[reminder] open DM with %s: %v", username, err)
		return false
	}

	var sb strings.Builder
	sb.WriteString(b.cfg.Report.ReminderText())
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "⏰ **Daily Report Reminder for %s**\n\n", now.Format("Monday, January 2, 2006"))
	sb.WriteString("You still need to submit your daily report in the following channels:\n")
	for _, sess := range owed {
		fmt.Fprintf(&sb, "• [%s](%s)\n", sess.ChannelName, b.platform.PermalinkURL(sess.PostID))
	}

	if _, err := b.platform.CreatePost(ctx, dm.ID, sb.String(), ""); err != nil {
		log.Printf("[reminder] DM %s: %v", username, err)
		return false
	}

	// Stamp every channel covered by this DM: one reminder event satisfies
	// the interval in all of them.
	b.mu.Lock()
	for _, sess := range owed {
		sess.stampReminder(username, now)
	}
	b.mu.Unlock()

	log.Printf("[reminder] nudged %s for %d pending channels", username, len(owed))
	return true
}
