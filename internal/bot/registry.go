package bot

import "strings"

// ChannelInfo is the in-memory snapshot of one channel the bot sits in.
type ChannelInfo struct {
	ID      string
	Name    string
	Members []string // usernames
}

// Registry indexes channel snapshots by channel ID. It carries no lock of its
// own: all access goes through the owning Bot's mutex.
type Registry struct {
	channels map[string]ChannelInfo
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]ChannelInfo)}
}

func (r *Registry) Upsert(info ChannelInfo) {
	r.channels[info.ID] = info
}

func (r *Registry) Get(channelID string) (ChannelInfo, bool) {
	info, ok := r.channels[channelID]
	return info, ok
}

func (r *Registry) Snapshot() []ChannelInfo {
	out := make([]ChannelInfo, 0, len(r.channels))
	for _, info := range r.channels {
		out = append(out, info)
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.channels)
}

// excludedChannelName filters the broadcast channel and direct-message
// channels, which Mattermost names with a double underscore between user IDs.
func excludedChannelName(name string) bool {
	return name == "" || name == "town-square" || strings.Contains(name, "__")
}
