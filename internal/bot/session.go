package bot

import "time"

// Session is the open reporting window for one channel on one calendar day.
// Sessions for the previous day are discarded wholesale when a new day's
// sessions open; history lives only in the store.
type Session struct {
	ChannelID   string
	ChannelName string
	Day         string // YYYY-MM-DD, local
	PostID      string // the prompt post, thread root for replies and deep links
	OpenedAt    time.Time

	// Requested is the set of members tagged in the prompt.
	Requested map[string]bool

	// reminders maps member -> last nudge time while the session is open.
	// Absent means no nudge has been sent yet. Guarded by the Bot's mutex.
	reminders map[string]time.Time
}

func newSession(channelID, channelName, day, postID string, openedAt time.Time, requested []string) *Session {
	s := &Session{
		ChannelID:   channelID,
		ChannelName: channelName,
		Day:         day,
		PostID:      postID,
		OpenedAt:    openedAt,
		Requested:   make(map[string]bool, len(requested)),
		reminders:   make(map[string]time.Time),
	}
	for _, u := range requested {
		s.Requested[u] = true
	}
	return s
}

// clearReminder drops the member's pending reminder state, if any.
func (s *Session) clearReminder(username string) {
	delete(s.reminders, username)
}

// reminderDue reports whether the member is owed a nudge at now: the first
// one interval after the session opened, then one interval after each nudge.
func (s *Session) reminderDue(username string, now time.Time, interval time.Duration) bool {
	last, nudged := s.reminders[username]
	if !nudged {
		return !now.Before(s.OpenedAt.Add(interval))
	}
	return !now.Before(last.Add(interval))
}

// stampReminder records that the member was nudged at now.
func (s *Session) stampReminder(username string, now time.Time) {
	s.reminders[username] = now
}
