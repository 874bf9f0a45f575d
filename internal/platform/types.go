// Package platform is the thin Mattermost binding: REST calls the bot makes
// and the realtime event feed it consumes. No reporting decisions live here.
package platform

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type Team struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

type TeamMember struct {
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
}

type Channel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

type ChannelMember struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
}

type Post struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	RootID    string `json:"root_id"`
	Message   string `json:"message"`
}

type EventKind int

const (
	EventUnknown EventKind = iota
	EventHello
	EventPosted
)

// Event is the tagged variant decoded once at the websocket boundary.
// Unrecognized event types map to EventUnknown and are no-ops downstream.
type Event struct {
	Kind EventKind
	Post *Post // set for EventPosted
}
