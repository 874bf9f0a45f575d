package platform

import (
	"encoding/json"
	"testing"
)

func postedFrame(t *testing.T, post Post) []byte {
	t.Helper()
	postJSON, err := json.Marshal(post)
	if err != nil {
		t.Fatal(err)
	}
	frame, err := json.Marshal(map[string]any{
		"event": "posted",
		"data":  map[string]string{"post": string(postJSON)},
		"seq":   2,
	})
	if err != nil {
		t.Fatal(err)
	}
	return frame
}

func TestDecodeEvent_Hello(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"event":"hello","data":{"server_version":"9.0"},"seq":0}`))
	if err != nil {
		t.Fatalf("DecodeEvent error: %v", err)
	}
	if ev.Kind != EventHello {
		t.Errorf("kind = %v, want hello", ev.Kind)
	}
}

func TestDecodeEvent_Posted(t *testing.T) {
	frame := postedFrame(t, Post{
		ID:        "p1",
		ChannelID: "c1",
		UserID:    "u1",
		RootID:    "root1",
		Message:   "Done the login page. Today: signup. No blockers.",
	})

	ev, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("DecodeEvent error: %v", err)
	}
	if ev.Kind != EventPosted {
		t.Fatalf("kind = %v, want posted", ev.Kind)
	}
	if ev.Post.ID != "p1" || ev.Post.ChannelID != "c1" || ev.Post.RootID != "root1" {
		t.Errorf("post = %+v", ev.Post)
	}
}

func TestDecodeEvent_NotJSON(t *testing.T) {
	_, err := DecodeEvent([]byte("not json"))
	if err == nil {
		t.Error("expected error for malformed frame")
	}
}

func TestDecodeEvent_UnknownType(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"event":"typing","data":{},"seq":5}`))
	if err != nil {
		t.Fatalf("DecodeEvent error: %v", err)
	}
	if ev.Kind != EventUnknown {
		t.Errorf("kind = %v, want unknown", ev.Kind)
	}
}

func TestDecodeEvent_PostedWithoutPost(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"event":"posted","data":{},"seq":3}`))
	if err == nil {
		t.Error("expected error for posted event without post payload")
	}
}

func TestDecodeEvent_PostedBadPayload(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"event":"posted","data":{"post":"{{{"},"seq":3}`))
	if err == nil {
		t.Error("expected error for unparseable post payload")
	}
}

func TestDecodeEvent_PostedMissingIDs(t *testing.T) {
	frame := postedFrame(t, Post{Message: "no ids"})
	if _, err := DecodeEvent(frame); err == nil {
		t.Error("expected error for post missing id/channel_id")
	}
}
