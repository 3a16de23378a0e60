package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ComplaintSummary is the advisory text the LLM drafts for a complaint.
// It never changes the department or priority of the complaint.
type ComplaintSummary struct {
	Title           string `json:"title"`
	Acknowledgement string `json:"acknowledgement"`
}

// Client wraps the Anthropic API for complaint summaries.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildSummaryPrompt constructs the system and user prompts for a complaint summary.
func buildSummaryPrompt(description, department, priority string) (system string, user string) {
	system = `You help a city grievance desk triage citizen complaints. Given a complaint description, the department it was routed to and its priority, return a JSON object with exactly two fields:

- "title": a neutral one-line title for the complaint, at most 80 characters
- "acknowledgement": two or three polite sentences the department can send to the citizen confirming receipt and naming the department handling it

Rules:
- Do not change or second-guess the department or the priority
- Do not promise a resolution date
- Write in plain English even if the complaint mixes languages
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Department: ")
	sb.WriteString(department)
	sb.WriteString("\nPriority: ")
	sb.WriteString(priority)
	sb.WriteString("\n\nComplaint:\n")
	if strings.TrimSpace(description) == "" {
		sb.WriteString("(no description given)")
	} else {
		sb.WriteString(description)
	}
	user = sb.String()
	return
}

// stripFencing removes a surrounding markdown code fence if present.
func stripFencing(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

func parseSummary(text string) (*ComplaintSummary, error) {
	text = stripFencing(text)
	var summary ComplaintSummary
	if err := json.Unmarshal([]byte(text), &summary); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	if summary.Title == "" {
		return nil, fmt.Errorf("LLM response has no title")
	}
	return &summary, nil
}

// SummarizeComplaint asks the LLM for a title and acknowledgement draft.
func (c *Client) SummarizeComplaint(ctx context.Context, description, department, priority string) (*ComplaintSummary, error) {
	systemPrompt, userPrompt := buildSummaryPrompt(description, department, priority)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	// Extract text from response
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return parseSummary(text)
}
