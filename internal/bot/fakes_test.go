package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/stellarlinkco/scrumbot/internal/platform"
	"github.com/stellarlinkco/scrumbot/internal/validator"
)

type recordedPost struct {
	ChannelID string
	Message   string
	RootID    string
}

// fakePlatform is an in-memory Platform for tests.
type fakePlatform struct {
	mu       sync.Mutex
	me       platform.User
	teams    []platform.TeamMember
	teamChs  map[string][]platform.Channel
	chans    map[string]platform.Channel
	members  map[string][]platform.ChannelMember
	users    map[string]platform.User // by ID
	byName   map[string]platform.User
	posts    []recordedPost
	nextPost int
	failPost map[string]error // channelID -> error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		me:       platform.User{ID: "bot-id", Username: "scrum-bot"},
		teamChs:  make(map[string][]platform.Channel),
		chans:    make(map[string]platform.Channel),
		members:  make(map[string][]platform.ChannelMember),
		users:    make(map[string]platform.User),
		byName:   make(map[string]platform.User),
		failPost: make(map[string]error),
	}
}

func (f *fakePlatform) addUser(id, username string) {
	u := platform.User{ID: id, Username: username}
	f.users[id] = u
	f.byName[username] = u
}

func (f *fakePlatform) addChannel(id, name string, memberIDs ...string) {
	f.chans[id] = platform.Channel{ID: id, Name: name}
	for _, uid := range memberIDs {
		f.members[id] = append(f.members[id], platform.ChannelMember{ChannelID: id, UserID: uid})
	}
}

func (f *fakePlatform) Me(ctx context.Context) (*platform.User, error) {
	u := f.me
	return &u, nil
}

func (f *fakePlatform) TeamsForMe(ctx context.Context) ([]platform.TeamMember, error) {
	return f.teams, nil
}

func (f *fakePlatform) ChannelsForMe(ctx context.Context, teamID string) ([]platform.Channel, error) {
	return f.teamChs[teamID], nil
}

func (f *fakePlatform) GetChannel(ctx context.Context, channelID string) (*platform.Channel, error) {
	ch, ok := f.chans[channelID]
	if !ok {
		return nil, fmt.Errorf("channel %s not found", channelID)
	}
	return &ch, nil
}

func (f *fakePlatform) ChannelMembers(ctx context.Context, channelID string) ([]platform.ChannelMember, error) {
	return f.members[channelID], nil
}

func (f *fakePlatform) GetUser(ctx context.Context, userID string) (*platform.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s not found", userID)
	}
	return &u, nil
}

func (f *fakePlatform) GetUserByUsername(ctx context.Context, username string) (*platform.User, error) {
	u, ok := f.byName[username]
	if !ok {
		return nil, fmt.Errorf("username %s not found", username)
	}
	return &u, nil
}

func (f *fakePlatform) CreatePost(ctx context.Context, channelID, message, rootID string) (*platform.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failPost[channelID]; err != nil {
		return nil, err
	}
	f.nextPost++
	p := platform.Post{
		ID:        fmt.Sprintf("p%d", f.nextPost),
		ChannelID: channelID,
		UserID:    f.me.ID,
		RootID:    rootID,
		Message:   message,
	}
	f.posts = append(f.posts, recordedPost{ChannelID: channelID, Message: message, RootID: rootID})
	return &p, nil
}

func (f *fakePlatform) CreateDirectChannel(ctx context.Context, userID, otherUserID string) (*platform.Channel, error) {
	return &platform.Channel{ID: "dm-" + otherUserID, Type: "D"}, nil
}

func (f *fakePlatform) PermalinkURL(postID string) string {
	return "https://chat.example.com/eng/pl/" + postID
}

func (f *fakePlatform) Listen(ctx context.Context, handler func(platform.Event)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakePlatform) postsTo(channelID string) []recordedPost {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedPost
	for _, p := range f.posts {
		if p.ChannelID == channelID {
			out = append(out, p)
		}
	}
	return out
}

// memStore is an in-memory ReportStore for tests.
type memStore struct {
	mu        sync.Mutex
	reports   map[string]map[string]string // channelID -> username -> message
	requests  map[string][]string          // channelID -> requested usernames
	addCalls  int
	failAdd   error
	failQuery error
}

func newMemStore() *memStore {
	return &memStore{
		reports:  make(map[string]map[string]string),
		requests: make(map[string][]string),
	}
}

func (m *memStore) AddReport(channelID, channelName, username, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls++
	if m.failAdd != nil {
		return m.failAdd
	}
	if m.reports[channelID] == nil {
		m.reports[channelID] = make(map[string]string)
	}
	m.reports[channelID][username] = message
	return nil
}

func (m *memStore) AddRequest(channelID, channelName, day string, usernames []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[channelID] = append([]string(nil), usernames...)
	return nil
}

func (m *memStore) TodayReporters(channelID string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failQuery != nil {
		return nil, m.failQuery
	}
	out := make(map[string]bool)
	for user := range m.reports[channelID] {
		out[user] = true
	}
	return out, nil
}

func (m *memStore) HasReportedToday(channelID, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failQuery != nil {
		return false, m.failQuery
	}
	_, ok := m.reports[channelID][username]
	return ok, nil
}

// validatorFunc adapts a function to the Validator interface.
type validatorFunc func(ctx context.Context, text string) validator.Verdict

func (f validatorFunc) Validate(ctx context.Context, text string) validator.Verdict {
	return f(ctx, text)
}

func acceptAll(feedback string) validatorFunc {
	return func(ctx context.Context, text string) validator.Verdict {
		return validator.Verdict{Accepted: true, Feedback: feedback}
	}
}

func rejectAll(feedback string) validatorFunc {
	return func(ctx context.Context, text string) validator.Verdict {
		return validator.Verdict{Accepted: false, Feedback: feedback}
	}
}
