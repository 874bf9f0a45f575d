// Package bot holds the reporting core: the channel registry, the daily
// session lifecycle, the reminder tracker, and the reply reconciler driving
// them all off a single scheduler loop and the platform event feed.
package bot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/stellarlinkco/scrumbot/internal/config"
	"github.com/stellarlinkco/scrumbot/internal/platform"
	"github.com/stellarlinkco/scrumbot/internal/validator"
)

// Platform is the subset of the chat binding the bot needs (allows mocking
// in tests).
type Platform interface {
	Me(ctx context.Context) (*platform.User, error)
	TeamsForMe(ctx context.Context) ([]platform.TeamMember, error)
	ChannelsForMe(ctx context.Context, teamID string) ([]platform.Channel, error)
	GetChannel(ctx context.Context, channelID string) (*platform.Channel, error)
	ChannelMembers(ctx context.Context, channelID string) ([]platform.ChannelMember, error)
	GetUser(ctx context.Context, userID string) (*platform.User, error)
	GetUserByUsername(ctx context.Context, username string) (*platform.User, error)
	CreatePost(ctx context.Context, channelID, message, rootID string) (*platform.Post, error)
	CreateDirectChannel(ctx context.Context, userID, otherUserID string) (*platform.Channel, error)
	PermalinkURL(postID string) string
	Listen(ctx context.Context, handler func(platform.Event)) error
}

// ReportStore is the durable log consumed by the bot.
type ReportStore interface {
	AddReport(channelID, channelName, username, message string) error
	AddRequest(channelID, channelName, day string, usernames []string) error
	TodayReporters(channelID string) (map[string]bool, error)
	HasReportedToday(channelID, username string) (bool, error)
}

// Validator classifies one reply and never fails.
type Validator interface {
	Validate(ctx context.Context, text string) validator.Verdict
}

type Bot struct {
	cfg      *config.Config
	platform Platform
	store    ReportStore
	vgw      Validator
	loc      *time.Location

	// mu guards registry, sessions, and openedDay. Both the scheduler loop
	// and the event handler touch them.
	mu        sync.Mutex
	registry  *Registry
	sessions  map[string]*Session // channelID -> today's open session
	openedDay string

	botUser *platform.User

	// now and tickInterval are swapped in tests.
	now          func() time.Time
	tickInterval time.Duration
}

func New(cfg *config.Config, p Platform, store ReportStore, vgw Validator) *Bot {
	return &Bot{
		cfg:          cfg,
		platform:     p,
		store:        store,
		vgw:          vgw,
		loc:          cfg.Report.Location(),
		registry:     NewRegistry(),
		sessions:     make(map[string]*Session),
		now:          time.Now,
		tickInterval: time.Minute,
	}
}

// Run authenticates, snapshots channel membership, then drives the scheduler
// loop and the event feed until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	me, err := b.platform.Me(ctx)
	if err != nil {
		return fmt.Errorf("authenticate bot user: %w", err)
	}
	b.botUser = me
	log.Printf("[bot] authenticated as %s", me.Username)

	b.refreshChannels(ctx)

	go b.runScheduler(ctx)

	err = b.platform.Listen(ctx, func(ev platform.Event) {
		b.handleEvent(ctx, ev)
	})
	if err == context.Canceled {
		return nil
	}
	return err
}

// refreshChannels rebuilds the registry from the bot's team memberships.
// One channel's failure never aborts the rest.
func (b *Bot) refreshChannels(ctx context.Context) {
	teams, err := b.platform.TeamsForMe(ctx)
	if err != nil {
		log.Printf("[bot] list teams: %v", err)
		return
	}
	for _, team := range teams {
		channels, err := b.platform.ChannelsForMe(ctx, team.TeamID)
		if err != nil {
			log.Printf("[bot] list channels for team %s: %v", team.TeamID, err)
			continue
		}
		for _, ch := range channels {
			if err := b.updateChannelInfo(ctx, ch.ID); err != nil {
				log.Printf("[bot] refresh channel %s: %v", ch.ID, err)
			}
		}
	}
	b.mu.Lock()
	count := b.registry.Len()
	b.mu.Unlock()
	log.Printf("[bot] registry holds %d channels", count)
}

// updateChannelInfo snapshots one channel's name and member usernames into
// the registry. Excluded channels are silently skipped.
func (b *Bot) updateChannelInfo(ctx context.Context, channelID string) error {
	ch, err := b.platform.GetChannel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("get channel: %w", err)
	}
	if excludedChannelName(ch.Name) {
		return nil
	}

	members, err := b.platform.ChannelMembers(ctx, channelID)
	if err != nil {
		return fmt.Errorf("get channel members: %w", err)
	}
	usernames := make([]string, 0, len(members))
	for _, m := range members {
		user, err := b.platform.GetUser(ctx, m.UserID)
		if err != nil {
			log.Printf("[bot] resolve member %s in %s: %v", m.UserID, ch.Name, err)
			continue
		}
		usernames = append(usernames, user.Username)
	}

	b.mu.Lock()
	b.registry.Upsert(ChannelInfo{ID: channelID, Name: ch.Name, Members: usernames})
	b.mu.Unlock()
	return nil
}

// handleEvent consumes one decoded realtime event. Panics are contained here
// so a bad event can never take down the listener.
func (b *Bot) handleEvent(ctx context.Context, ev platform.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[bot] event handler panic recovered: %v", r)
		}
	}()

	switch ev.Kind {
	case platform.EventHello:
		log.Printf("[bot] event feed connected")
	case platform.EventPosted:
		post := ev.Post
		if b.botUser != nil && post.UserID == b.botUser.ID {
			return
		}
		if post.RootID != "" {
			b.handleReply(ctx, post)
			return
		}
		// Top-level traffic refreshes the registry opportunistically.
		b.mu.Lock()
		_, known := b.registry.Get(post.ChannelID)
		b.mu.Unlock()
		if !known {
			if err := b.updateChannelInfo(ctx, post.ChannelID); err != nil {
				log.Printf("[bot] observe channel %s: %v", post.ChannelID, err)
			}
		}
	default:
		// Unrecognized event types are no-ops.
	}
}

// eligibleMembers filters a channel's member list down to those who owe a
// report: not the bot, not globally excluded.
func (b *Bot) eligibleMembers(members []string) []string {
	var out []string
	for _, m := range members {
		if b.botUser != nil && m == b.botUser.Username {
			continue
		}
		if m == b.cfg.Mattermost.BotUsername {
			continue
		}
		if b.cfg.Report.IsExcluded(m) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (b *Bot) localNow() time.Time {
	return b.now().In(b.loc)
}

func (b *Bot) dayOf(t time.Time) string {
	return t.Format("2006-01-02")
}
