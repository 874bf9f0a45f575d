package bot

import (
	"context"
	"log"

	"github.com/stellarlinkco/scrumbot/internal/platform"
)

// handleReply reconciles one thread reply against the open session for its
// channel. Replies outside a session's prompt thread are inert.
func (b *Bot) handleReply(ctx context.Context, post *platform.Post) {
	b.mu.Lock()
	sess := b.sessions[post.ChannelID]
	b.mu.Unlock()

	if sess == nil || sess.PostID != post.RootID {
		return
	}

	user, err := b.platform.GetUser(ctx, post.UserID)
	if err != nil {
		log.Printf("[reconciler] resolve sender %s: %v", post.UserID, err)
		return
	}

	verdict := b.vgw.Validate(ctx, post.Message)

	if verdict.Accepted {
		already, err := b.store.HasReportedToday(post.ChannelID, user.Username)
		if err != nil {
			log.Printf("[reconciler] dedup check for %s: %v", user.Username, err)
		} else if already {
			log.Printf("[reconciler] %s already reported in %s today", user.Username, sess.ChannelName)
		} else if err := b.store.AddReport(post.ChannelID, sess.ChannelName, user.Username, post.Message); err != nil {
			// Store failure loses this report but must not take the
			// reconciler down; the member stays on the reminder list.
			log.Printf("[reconciler] persist report from %s: %v", user.Username, err)
		} else {
			b.mu.Lock()
			sess.clearReminder(user.Username)
			b.mu.Unlock()
			log.Printf("[reconciler] accepted report from %s in %s", user.Username, sess.ChannelName)
		}
	}

	if verdict.Feedback != "" {
		feedback := "@" + user.Username + " " + verdict.Feedback
		if _, err := b.platform.CreatePost(ctx, post.ChannelID, feedback, sess.PostID); err != nil {
			log.Printf("[reconciler] post feedback to %s: %v", user.Username, err)
		}
	}
}
