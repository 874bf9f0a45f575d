package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/tidwall/gjson"
)

const reconnectDelay = 5 * time.Second

// DecodeEvent turns one raw websocket frame into a tagged Event. The posted
// payload nests the post itself as a JSON string inside data.post, so it is
// unwrapped here and nowhere else.
func DecodeEvent(raw []byte) (Event, error) {
	if !gjson.ValidBytes(raw) {
		return Event{}, fmt.Errorf("frame is not valid json")
	}

	switch gjson.GetBytes(raw, "event").String() {
	case "hello":
		return Event{Kind: EventHello}, nil
	case "posted":
		postJSON := gjson.GetBytes(raw, "data.post").String()
		if postJSON == "" {
			return Event{}, fmt.Errorf("posted event without data.post")
		}
		var post Post
		if err := json.Unmarshal([]byte(postJSON), &post); err != nil {
			return Event{}, fmt.Errorf("decode post payload: %w", err)
		}
		if post.ID == "" || post.ChannelID == "" {
			return Event{}, fmt.Errorf("post payload missing id or channel_id")
		}
		return Event{Kind: EventPosted, Post: &post}, nil
	default:
		return Event{Kind: EventUnknown}, nil
	}
}

func (c *Client) websocketURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/v4/websocket"
}

// Listen consumes the realtime event feed and invokes handler for every
// decoded event. Malformed frames are logged and discarded. The connection is
// re-dialed after transport errors until ctx is cancelled.
func (c *Client) Listen(ctx context.Context, handler func(Event)) error {
	for {
		if err := c.listenOnce(ctx, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[platform] websocket error: %v, reconnecting in %s", err, reconnectDelay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Client) listenOnce(ctx context.Context, handler func(Event)) error {
	conn, _, err := websocket.Dial(ctx, c.websocketURL(), nil)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	challenge := map[string]any{
		"seq":    1,
		"action": "authentication_challenge",
		"data":   map[string]string{"token": c.token},
	}
	data, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("marshal auth challenge: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("send auth challenge: %w", err)
	}
	log.Printf("[platform] websocket connected")

	for {
		_, frame, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		ev, err := DecodeEvent(frame)
		if err != nil {
			log.Printf("[platform] dropping malformed event: %v", err)
			continue
		}
		handler(ev)
	}
}
