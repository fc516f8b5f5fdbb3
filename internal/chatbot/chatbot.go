// Пакет chatbot — ассистент портала: ответы языковой модели
// с резервной таблицей ответов по ключевым словам.
//
// Любая ошибка модели (или отсутствие ключа) приводит к резервному ответу,
// поэтому Reply возвращает ошибку только для некорректного сообщения.
package chatbot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MaxMessageRunes — максимальная длина сообщения пользователя.
const MaxMessageRunes = 1000

// Источники ответа.
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

// systemPrompt — контекст портала для модели.
const systemPrompt = "You are the assistant of StudyVibe, a free portal with question papers and " +
	"previous year questions (PYQs) of Indian school boards: CBSE, ICSE, UP Board and Bihar Board, " +
	"classes 9 to 12. Answer briefly and kindly. Help with finding and downloading papers " +
	"and with general study advice."

var (
	// ErrEmptyMessage — пустое сообщение.
	ErrEmptyMessage = errors.New("сообщение не может быть пустым")
	// ErrMessageTooLong — сообщение длиннее MaxMessageRunes.
	ErrMessageTooLong = errors.New("сообщение слишком длинное")
)

var chatRepliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sv_chat_replies_total",
	Help: "Ответы ассистента (по источнику).",
}, []string{"source"})

// Reply — ответ ассистента.
type Reply struct {
	Text   string
	Source string
}

// Assistant отвечает на вопросы посетителей.
type Assistant struct {
	gen     Generator
	timeout time.Duration
	logger  *slog.Logger
}

// NewAssistant создаёт ассистента. gen == nil — только резервные ответы.
func NewAssistant(gen Generator, timeout time.Duration, logger *slog.Logger) *Assistant {
	return &Assistant{
		gen:     gen,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "chatbot")),
	}
}

// Reply возвращает ответ на сообщение.
func (a *Assistant) Reply(ctx context.Context, message string) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(message) > MaxMessageRunes {
		return Reply{}, ErrMessageTooLong
	}

	if a.gen != nil {
		text, err := a.generate(ctx, message)
		if err == nil && strings.TrimSpace(text) != "" {
			chatRepliesTotal.WithLabelValues(SourceModel).Inc()
			return Reply{Text: text, Source: SourceModel}, nil
		}
		if err != nil {
			a.logger.Warn("Модель недоступна, используется резервный ответ",
				slog.String("error", err.Error()),
			)
		}
	}

	chatRepliesTotal.WithLabelValues(SourceFallback).Inc()
	return Reply{Text: Fallback(message), Source: SourceFallback}, nil
}

func (a *Assistant) generate(ctx context.Context, message string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	return a.gen.Generate(ctx, systemPrompt+"\n\nUser question: "+message)
}
