package validator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stellarlinkco/scrumbot/internal/config"
)

// fakeCompleter returns scripted outputs per attempt.
type fakeCompleter struct {
	outputs []string
	errs    []error
	calls   int
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var out string
	if i < len(f.outputs) {
		out = f.outputs[i]
	}
	return out, err
}

func TestValidate_Disabled(t *testing.T) {
	g := NewWithCompleter(false, nil)
	v := g.Validate(context.Background(), "whatever")
	if !v.Accepted {
		t.Error("disabled gateway must accept")
	}
	if v.Feedback != "" {
		t.Errorf("disabled gateway feedback = %q, want empty", v.Feedback)
	}
}

func TestNew_NoAPIKeyDisables(t *testing.T) {
	g := New(config.ValidatorConfig{Enabled: true})
	if g.Enabled() {
		t.Error("gateway without API key should be disabled")
	}
}

func TestValidate_AcceptsFirstTry(t *testing.T) {
	fc := &fakeCompleter{outputs: []string{`{"valid": true, "message": "Great report, accepted!"}`}}
	g := NewWithCompleter(true, fc)

	v := g.Validate(context.Background(), "1. shipped login 2. signup 3. none")
	if !v.Accepted {
		t.Error("should be accepted")
	}
	if v.Feedback != "Great report, accepted!" {
		t.Errorf("feedback = %q", v.Feedback)
	}
	if fc.calls != 1 {
		t.Errorf("calls = %d, want 1 (short-circuit)", fc.calls)
	}
}

func TestValidate_Rejection(t *testing.T) {
	fc := &fakeCompleter{outputs: []string{`{"valid": false, "message": "Missing today's plan."}`}}
	g := NewWithCompleter(true, fc)

	v := g.Validate(context.Background(), "hi")
	if v.Accepted {
		t.Error("should be rejected")
	}
	if v.Feedback != "Missing today's plan." {
		t.Errorf("feedback = %q", v.Feedback)
	}
}

func TestValidate_FailOpenAfterThreeTimeouts(t *testing.T) {
	errTimeout := errors.New("timeout")
	fc := &fakeCompleter{errs: []error{errTimeout, errTimeout, errTimeout}}
	g := NewWithCompleter(true, fc)

	v := g.Validate(context.Background(), "some report")
	if !v.Accepted {
		t.Error("must fail open")
	}
	if v.Feedback == "" {
		t.Error("fallback must carry a notice")
	}
	if fc.calls != 3 {
		t.Errorf("calls = %d, want exactly 3", fc.calls)
	}
}

func TestValidate_RetriesPastGarbage(t *testing.T) {
	fc := &fakeCompleter{outputs: []string{
		"I think the report looks fine",
		`{"valid": true, "message": "accepted"}`,
	}}
	g := NewWithCompleter(true, fc)

	v := g.Validate(context.Background(), "report")
	if !v.Accepted || v.Feedback != "accepted" {
		t.Errorf("verdict = %+v", v)
	}
	if fc.calls != 2 {
		t.Errorf("calls = %d, want 2", fc.calls)
	}
}

func TestSalvageDecode(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		ok       bool
		accepted bool
		feedback string
	}{
		{
			name:     "plain json",
			raw:      `{"valid": true, "message": "ok"}`,
			ok:       true,
			accepted: true,
			feedback: "ok",
		},
		{
			name:     "json fence",
			raw:      "```json\n{\"valid\": false, \"message\": \"needs work\"}\n```",
			ok:       true,
			accepted: false,
			feedback: "needs work",
		},
		{
			name:     "stray backticks",
			raw:      "`{\"valid\": true, \"message\": \"fine\"}`",
			ok:       true,
			accepted: true,
			feedback: "fine",
		},
		{
			name:     "trailing comma before brace",
			raw:      "{\"valid\": true, \"message\": \"ok\",}",
			ok:       true,
			accepted: true,
			feedback: "ok",
		},
		{
			name:     "trailing comma before newline brace",
			raw:      "{\"valid\": true, \"message\": \"ok\",\n}",
			ok:       true,
			accepted: true,
			feedback: "ok",
		},
		{
			name: "missing message field",
			raw:  `{"valid": true}`,
			ok:   false,
		},
		{
			name: "not json at all",
			raw:  "the report is valid",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := salvageDecode(tt.raw)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if v.Accepted != tt.accepted {
				t.Errorf("accepted = %v, want %v", v.Accepted, tt.accepted)
			}
			if v.Feedback != tt.feedback {
				t.Errorf("feedback = %q, want %q", v.Feedback, tt.feedback)
			}
		})
	}
}

func TestBuildPrompt_ContainsReport(t *testing.T) {
	p := buildPrompt("Done the login page. Today: signup. No blockers.")
	if len(p) == 0 {
		t.Fatal("empty prompt")
	}
	if !strings.Contains(p, "Done the login page") {
		t.Error("prompt must embed the report text")
	}
	if !strings.Contains(p, "valid") || !strings.Contains(p, "message") {
		t.Error("prompt must name the required fields")
	}
}
