package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultHTTPTimeout = 15 * time.Second

// Client talks to the Mattermost REST API v4. Every request is bounded by the
// underlying http.Client timeout so a stuck platform call cannot stall the
// scheduler cadence.
type Client struct {
	baseURL    string
	token      string
	teamName   string
	httpClient *http.Client
}

func NewClient(baseURL, token, teamName string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		teamName:   teamName,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// NewClientWithHTTP allows injecting the http.Client in tests.
func NewClientWithHTTP(baseURL, token, teamName string, hc *http.Client) *Client {
	c := NewClient(baseURL, token, teamName)
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/v4"+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

// Me returns the authenticated bot user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// TeamsForMe lists the team memberships of the bot user.
func (c *Client) TeamsForMe(ctx context.Context) ([]TeamMember, error) {
	var members []TeamMember
	if err := c.do(ctx, http.MethodGet, "/users/me/teams/members", nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// ChannelsForMe lists the channels the bot belongs to in a team.
func (c *Client) ChannelsForMe(ctx context.Context, teamID string) ([]Channel, error) {
	var channels []Channel
	if err := c.do(ctx, http.MethodGet, "/users/me/teams/"+url.PathEscape(teamID)+"/channels", nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

func (c *Client) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	var ch Channel
	if err := c.do(ctx, http.MethodGet, "/channels/"+url.PathEscape(channelID), nil, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *Client) ChannelMembers(ctx context.Context, channelID string) ([]ChannelMember, error) {
	var members []ChannelMember
	if err := c.do(ctx, http.MethodGet, "/channels/"+url.PathEscape(channelID)+"/members", nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/username/"+url.PathEscape(username), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreatePost posts a message, optionally as a thread reply when rootID is set.
func (c *Client) CreatePost(ctx context.Context, channelID, message, rootID string) (*Post, error) {
	body := map[string]string{
		"channel_id": channelID,
		"message":    message,
	}
	if rootID != "" {
		body["root_id"] = rootID
	}
	var p Post
	if err := c.do(ctx, http.MethodPost, "/posts", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateDirectChannel opens (or resolves) the DM channel between the two users.
func (c *Client) CreateDirectChannel(ctx context.Context, userID, otherUserID string) (*Channel, error) {
	var ch Channel
	if err := c.do(ctx, http.MethodPost, "/channels/direct", []string{userID, otherUserID}, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// PermalinkURL builds the deep link to a post, shown in reminder DMs.
func (c *Client) PermalinkURL(postID string) string {
	return fmt.Sprintf("%s/%s/pl/%s", c.baseURL, c.teamName, postID)
}
