package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
)

// maxKnowledgeBytes caps the reference text sent with every question.
const maxKnowledgeBytes = 48 * 1024

const answerSystemPrompt = `Eres Vicky, asesora de préstamos IMSS Ley 73 y créditos empresariales.
Responde en español, en un máximo de tres frases, con tono amable y profesional.
Responde únicamente con base en el material de referencia. Si la respuesta no está ahí,
di que un asesor le dará seguimiento y sugiere escribir "menu" para ver las opciones.
Nunca prometas montos, tasas ni aprobaciones.`

// Generator is the chat calls the answerer depends on. *Client satisfies it.
type Generator interface {
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
	GeneratePromptWithContext(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// KnowledgeAnswerer answers free-form user questions from a fixed reference text.
type KnowledgeAnswerer struct {
	gen       Generator
	knowledge string
}

// NewKnowledgeAnswerer returns an answerer over knowledge, which may be empty.
func NewKnowledgeAnswerer(gen Generator, knowledge string) *KnowledgeAnswerer {
	knowledge = strings.TrimSpace(knowledge)
	if len(knowledge) > maxKnowledgeBytes {
		slog.Warn("genai.NewKnowledgeAnswerer: knowledge truncated", "bytes", len(knowledge), "limit", maxKnowledgeBytes)
		knowledge = strings.ToValidUTF8(knowledge[:maxKnowledgeBytes], "")
	}
	return &KnowledgeAnswerer{gen: gen, knowledge: knowledge}
}

// LoadKnowledge reads a plain-text reference file. An empty path yields "".
func LoadKnowledge(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read knowledge file %s: %w", path, err)
	}
	return string(data), nil
}

// AnswerQuestion asks the model about question and returns its reply.
func (a *KnowledgeAnswerer) AnswerQuestion(ctx context.Context, question string) (string, error) {
	var (
		answer string
		err    error
	)
	if a.knowledge == "" {
		answer, err = a.gen.GeneratePromptWithContext(ctx, answerSystemPrompt, question)
	} else {
		answer, err = a.gen.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(answerSystemPrompt),
			openai.SystemMessage("Material de referencia:\n\n" + a.knowledge),
			openai.UserMessage(question),
		})
	}
	if err != nil {
		return "", err
	}
	if answer == "" {
		return "", ErrNoChoicesReturned
	}
	return answer, nil
}
