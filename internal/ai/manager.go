package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const emptyResponseMarker = "Empty Response"

type ManagerConfig struct {
	Timeout       int
	MaxInputChars int
}

// Manager owns the prompts. Providers stay prompt-agnostic.
type Manager struct {
	generator IGenerator
	cfg       ManagerConfig
}

func NewManager(generator IGenerator, cfg ManagerConfig) *Manager {
	return &Manager{generator: generator, cfg: cfg}
}

func (m *Manager) Configured() bool {
	return m != nil && m.generator != nil
}

// Answer synthesizes a reply from numbered context passages. An empty Text means the
// model had nothing to say and callers should fall back.
func (m *Manager) Answer(ctx context.Context, gen IGenerator, question string, passages []string) (*Generation, error) {
	if gen == nil {
		gen = m.generator
	}
	if gen == nil {
		return nil, ErrUnavailable
	}
	var sb strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, strings.TrimSpace(p))
	}
	prompt := fmt.Sprintf(`You are a helpful assistant answering questions about the user's documents.
Answer using ONLY the context passages below. Cite passages by their number.
If the context does not contain the answer, reply with an empty message.

CONTEXT:
%s
QUESTION:
%s`, m.clip(sb.String()), question)
	res, err := m.generate(ctx, gen, prompt)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.Text) == emptyResponseMarker {
		res.Text = ""
	}
	return res, nil
}

func (m *Manager) Title(ctx context.Context, question, answer string) (string, error) {
	if m.generator == nil {
		return "", ErrUnavailable
	}
	prompt := fmt.Sprintf(`Write a short title (at most 6 words) for a conversation that starts like this.
Output ONLY the title, without quotes.

USER: %s
ASSISTANT: %s`, question, answer)
	res, err := m.generate(ctx, m.generator, prompt)
	if err != nil {
		return "", err
	}
	title := strings.Trim(strings.TrimSpace(res.Text), `"'`)
	if title == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return title, nil
}

func (m *Manager) Summarize(ctx context.Context, transcript string) (string, error) {
	if m.generator == nil {
		return "", ErrUnavailable
	}
	prompt := fmt.Sprintf(`You are a helpful assistant.
Summarize the following conversation into a concise paragraph (2-4 sentences).
- Use the same language as the conversation.
- Keep factual accuracy and key points.
- Output ONLY the summary text.

CONVERSATION:
%s`, m.clip(transcript))
	res, err := m.generate(ctx, m.generator, prompt)
	if err != nil {
		return "", err
	}
	if res.Text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return res.Text, nil
}

func (m *Manager) generate(ctx context.Context, gen IGenerator, prompt string) (*Generation, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	res, err := gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &Generation{}, nil
	}
	res.Text = strings.TrimSpace(res.Text)
	return res, nil
}

func (m *Manager) clip(text string) string {
	if m.cfg.MaxInputChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= m.cfg.MaxInputChars {
		return text
	}
	return string(runes[:m.cfg.MaxInputChars])
}
