// Package classify adapts the external AI collaborator into the
// reply/intent/isIssue triple the pipeline consumes. Classification failures
// never abort the pipeline: every failure mode collapses into a fixed
// fallback triple.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/llm"
	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
	"github.com/josho007237-max/bn88Yoyo-sub000/pkg/logger"
	"github.com/josho007237-max/bn88Yoyo-sub000/pkg/metrics"
	"go.uber.org/zap"
)

// FallbackReply is the reply used whenever classification cannot produce one.
const FallbackReply = "ขออภัยค่ะ ระบบไม่สามารถประมวลผลข้อความได้ในขณะนี้ กรุณาลองใหม่อีกครั้ง"

// IntentOther is the neutral intent used when none could be determined.
const IntentOther = "other"

// Result is the structured outcome of one classification.
type Result struct {
	Reply   string   `json:"reply"`
	Intent  string   `json:"intent"`
	IsIssue bool     `json:"is_issue"`
	Labels  []string `json:"labels,omitempty"`
}

// Fallback returns the fixed result used when classification fails.
func Fallback() Result {
	return Result{Reply: FallbackReply, Intent: IntentOther, IsIssue: false}
}

// Classifier produces a Result for one inbound user text.
type Classifier interface {
	Classify(ctx context.Context, bot *model.Bot, platform model.Platform, userText string) Result
}

// LLMClassifier calls an LLM provider and parses its JSON answer.
type LLMClassifier struct {
	client  llm.Client
	timeout time.Duration
	logger  *logger.Logger
}

// NewLLMClassifier creates a classifier backed by the given LLM client.
func NewLLMClassifier(client llm.Client, timeout time.Duration, log *logger.Logger) *LLMClassifier {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &LLMClassifier{client: client, timeout: timeout, logger: log}
}

// Classify sends the bot configuration and user text to the LLM and parses
// the response. Any failure, including timeout and a missing or unconfigured
// bot, yields the fallback result.
func (c *LLMClassifier) Classify(ctx context.Context, bot *model.Bot, platform model.Platform, userText string) Result {
	if c.client == nil || !bot.Configured() {
		metrics.ClassifierFallbacks.WithLabelValues("no_config").Inc()
		return Fallback()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Complete(ctx, &llm.CompletionRequest{
		Model:  bot.Model,
		System: buildSystemPrompt(bot, platform),
		Messages: []llm.ChatMessage{
			{Role: "user", Content: userText},
		},
	})
	if err != nil {
		c.logger.Warn("classifier call failed",
			zap.String("bot_id", bot.ID),
			zap.Error(err),
		)
		metrics.ClassifierFallbacks.WithLabelValues("call_error").Inc()
		metrics.RecordClassifier(c.client.Name(), "error", time.Since(start).Seconds())
		return Fallback()
	}
	metrics.RecordClassifier(c.client.Name(), "ok", time.Since(start).Seconds())

	result, ok := Parse(resp.Content)
	if !ok {
		c.logger.Warn("classifier returned unparseable content",
			zap.String("bot_id", bot.ID),
			zap.Int("content_len", len(resp.Content)),
		)
		metrics.ClassifierFallbacks.WithLabelValues("parse_error").Inc()
		return Fallback()
	}
	return result
}

// Parse attempts a strict JSON parse of the classifier content. ok is false
// when the content is not a JSON object at all; fields that are missing or
// carry the wrong type inside a valid object are individually defaulted.
func Parse(content string) (Result, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &raw); err != nil {
		return Result{}, false
	}

	result := Fallback()
	if v, ok := raw["reply"]; ok {
		var s string
		if json.Unmarshal(v, &s) == nil && s != "" {
			result.Reply = s
		}
	}
	if v, ok := raw["intent"]; ok {
		var s string
		if json.Unmarshal(v, &s) == nil && s != "" {
			result.Intent = s
		}
	}
	if v, ok := raw["isIssue"]; ok {
		var b bool
		if json.Unmarshal(v, &b) == nil {
			result.IsIssue = b
		}
	}
	if v, ok := raw["labels"]; ok {
		var labels []string
		if json.Unmarshal(v, &labels) == nil {
			result.Labels = labels
		}
	}
	return result, true
}

func buildSystemPrompt(bot *model.Bot, platform model.Platform) string {
	var b strings.Builder
	b.WriteString(bot.SystemPrompt)
	b.WriteString("\n\n")
	if len(bot.IntentCatalog) > 0 {
		fmt.Fprintf(&b, "Classify the user message into one of these intents: %s.\n",
			strings.Join(bot.IntentCatalog, ", "))
	}
	fmt.Fprintf(&b, "The message arrives via %s.\n", platform)
	b.WriteString(`Respond with a single JSON object: {"reply": string, "intent": string, "isIssue": boolean}. ` +
		`Set isIssue to true only when the message reports an operational problem needing human follow-up.`)
	return b.String()
}
