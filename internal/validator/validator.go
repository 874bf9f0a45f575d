// Package validator wraps the free-text report classifier. The gateway never
// returns an error to its caller: every failure mode degrades to accepting
// the report with a generic notice, so infrastructure trouble can never block
// a legitimate submission.
package validator

import (
	"context"
	"log"
	"strings"

	"github.com/stellarlinkco/scrumbot/internal/config"
	"github.com/tidwall/gjson"
)

const maxAttempts = 3

// Verdict is the structured outcome of classifying one reply.
type Verdict struct {
	Accepted bool
	Feedback string
}

// Completer performs one classification exchange: prompt in, raw model text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Gateway struct {
	enabled   bool
	completer Completer
}

func New(cfg config.ValidatorConfig) *Gateway {
	if !cfg.Enabled {
		return &Gateway{enabled: false}
	}
	if cfg.APIKey == "" {
		log.Printf("[validator] no API key configured, validation disabled")
		return &Gateway{enabled: false}
	}
	return &Gateway{
		enabled:   true,
		completer: newOpenRouterCompleter(cfg),
	}
}

// NewWithCompleter builds a gateway over an injected completer, for tests.
func NewWithCompleter(enabled bool, c Completer) *Gateway {
	return &Gateway{enabled: enabled, completer: c}
}

// Enabled reports whether replies actually reach the classifier.
func (g *Gateway) Enabled() bool {
	return g.enabled
}

// Validate classifies one reply. With validation disabled every reply is
// accepted with no feedback.
func (g *Gateway) Validate(ctx context.Context, text string) Verdict {
	if !g.enabled {
		return Verdict{Accepted: true}
	}

	prompt := buildPrompt(text)
	fallback := Verdict{Accepted: true, Feedback: "Unable to validate report at this time, accepted as-is."}

	return retry(maxAttempts, fallback, func(attempt int) (Verdict, bool) {
		raw, err := g.completer.Complete(ctx, prompt)
		if err != nil {
			log.Printf("[validator] attempt %d: classifier call failed: %v", attempt, err)
			return Verdict{}, false
		}
		v, ok := salvageDecode(raw)
		if !ok {
			log.Printf("[validator] attempt %d: unparseable classifier output", attempt)
		}
		return v, ok
	})
}

// retry runs attempt up to max times, returning the first success or fallback
// once attempts are exhausted.
func retry(max int, fallback Verdict, attempt func(n int) (Verdict, bool)) Verdict {
	for n := 1; n <= max; n++ {
		if v, ok := attempt(n); ok {
			return v
		}
	}
	return fallback
}

// salvageDecode extracts {valid, message} from model output that may be
// wrapped in code fences, backticks, or carry a trailing comma before the
// closing brace. Both fields must be present for the decode to count.
func salvageDecode(raw string) (Verdict, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.ReplaceAll(cleaned, "`", "")
	cleaned = strings.ReplaceAll(cleaned, ",\n}", "\n}")
	cleaned = strings.ReplaceAll(cleaned, ",}", "}")
	cleaned = strings.TrimSpace(cleaned)

	if !gjson.Valid(cleaned) {
		return Verdict{}, false
	}
	valid := gjson.Get(cleaned, "valid")
	message := gjson.Get(cleaned, "message")
	if !valid.Exists() || !message.Exists() {
		return Verdict{}, false
	}
	return Verdict{Accepted: valid.Bool(), Feedback: message.String()}, true
}

func buildPrompt(reportText string) string {
	var sb strings.Builder
	sb.WriteString(`Please analyze this daily report and check if it follows proper scrum report format.
A proper daily report should include:
1. What was accomplished yesterday
2. What will be worked on today
3. Any blockers or impediments

User message to analyze:
`)
	sb.WriteString(reportText)
	sb.WriteString(`

Return your analysis as a JSON with two fields:
- valid: boolean indicating if the report follows the format
- message: string with either thanks for a good report or instructions on how to improve. If the report is valid, notice them **the report is accepted** and they don't need to reply further

Remember:
- Vague but honest answers like "Done the CRUD API of User" or "continue fixing the feedback bug" are acceptable; the PM knows the context.
- "Nothing, my work already done" passes without all three parts.
- Respond in the user's language. If the message is in Vietnamese, answer in Vietnamese.
- If the user is sick or has a personal issue, show empathy and accept the report.
- "None" or "nothing" is fine for any part as long as it is explained.
- Blockers may be skipped when there are none.
- Keep the tone friendly and natural.
- If the message does not look like a report, tell the user to keep this thread for reports only.
- Explain per part what was right or wrong and how to improve.
- Numbered "1. ... 2. ... 3. ..." answers pass as long as they describe what happened.
- Encourage including the ticket code (example JAR-123), but do not require it.
Only return the JSON, no other text.`)
	return sb.String()
}
