package chatbot

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Generator — источник ответов языковой модели.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Gemini — генератор ответов через Google Gemini.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini создаёт клиент Gemini для указанной модели.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("не задан API-ключ Gemini")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("создание клиента Gemini: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.4)
	model.SetMaxOutputTokens(512)

	return &Gemini{client: client, model: model}, nil
}

// Generate возвращает текст первого кандидата.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("генерация ответа: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("Gemini не вернул кандидатов")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("Gemini вернул пустой ответ")
	}
	if txt, ok := candidate.Content.Parts[0].(genai.Text); ok {
		return string(txt), nil
	}
	return "", errors.New("неожиданный формат ответа Gemini")
}

// Close закрывает клиент.
func (g *Gemini) Close() error {
	return g.client.Close()
}
