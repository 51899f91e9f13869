package genai

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func completion(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestGeneratePromptWithContext_Success(t *testing.T) {
	mock := &mockChatService{resp: completion("  Hola  ")}
	client := &Client{chat: mock, model: "test-model", temperature: 0.2, maxTokens: 50}
	out, err := client.GeneratePromptWithContext(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hola" {
		t.Errorf("expected trimmed 'Hola', got %q", out)
	}
	if mock.params.Model != "test-model" {
		t.Errorf("model = %q", mock.params.Model)
	}
	if len(mock.params.Messages) != 2 {
		t.Errorf("expected system and user messages, got %d", len(mock.params.Messages))
	}
}

func TestGeneratePromptWithContext_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}, model: "m"}
	_, err := client.GeneratePromptWithContext(context.Background(), "sys", "usr")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGeneratePromptWithContext_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: openai.ChatCompletion{}}, model: "m"}
	_, err := client.GeneratePromptWithContext(context.Background(), "sys", "usr")
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-test"), WithMaxTokens(10))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli.model != "gpt-test" || cli.maxTokens != 10 || cli.temperature != DefaultTemperature {
		t.Errorf("options not applied: %+v", cli)
	}
}

type stubGenerator struct {
	answer   string
	err      error
	messages []openai.ChatCompletionMessageParamUnion
	prompts  []string
}

func (s *stubGenerator) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	s.messages = messages
	return s.answer, s.err
}

func (s *stubGenerator) GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.prompts = []string{systemPrompt, userPrompt}
	return s.answer, s.err
}

func TestKnowledgeAnswerer(t *testing.T) {
	tests := []struct {
		name         string
		knowledge    string
		gen          *stubGenerator
		wantMessages int
		wantPrompts  int
		wantErr      error
	}{
		{"with knowledge", "El préstamo se descuenta vía nómina.", &stubGenerator{answer: "Sí."}, 3, 0, nil},
		{"without knowledge", "  ", &stubGenerator{answer: "Sí."}, 0, 2, nil},
		{"empty answer", "", &stubGenerator{}, 0, 2, ErrNoChoicesReturned},
		{"generator error", "", &stubGenerator{err: ErrMissingAPIKey}, 0, 2, ErrMissingAPIKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewKnowledgeAnswerer(tt.gen, tt.knowledge)
			got, err := a.AnswerQuestion(context.Background(), "¿Cuánto tarda?")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err == nil && got != tt.gen.answer {
				t.Errorf("answer = %q", got)
			}
			if len(tt.gen.messages) != tt.wantMessages {
				t.Errorf("messages = %d, want %d", len(tt.gen.messages), tt.wantMessages)
			}
			if len(tt.gen.prompts) != tt.wantPrompts {
				t.Errorf("prompts = %d, want %d", len(tt.gen.prompts), tt.wantPrompts)
			}
			if tt.wantPrompts > 0 && (tt.gen.prompts[0] != answerSystemPrompt || tt.gen.prompts[1] != "¿Cuánto tarda?") {
				t.Errorf("prompt call = %q", tt.gen.prompts)
			}
		})
	}
}

func TestKnowledgeAnswererTruncates(t *testing.T) {
	a := NewKnowledgeAnswerer(&stubGenerator{}, strings.Repeat("a", maxKnowledgeBytes+10))
	if len(a.knowledge) != maxKnowledgeBytes {
		t.Errorf("knowledge length = %d", len(a.knowledge))
	}
}

func TestLoadKnowledge(t *testing.T) {
	if text, err := LoadKnowledge(""); err != nil || text != "" {
		t.Errorf("empty path = (%q, %v)", text, err)
	}

	path := filepath.Join(t.TempDir(), "manual.txt")
	if err := os.WriteFile(path, []byte("requisitos"), 0o600); err != nil {
		t.Fatal(err)
	}
	text, err := LoadKnowledge(path)
	if err != nil || text != "requisitos" {
		t.Errorf("LoadKnowledge = (%q, %v)", text, err)
	}

	if _, err := LoadKnowledge(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
