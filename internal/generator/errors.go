package generator

import "errors"

// Ошибки адаптера генерации.
var (
	// ErrChatService — сбой обращения к chat-completions API.
	ErrChatService = errors.New("chat completion request failed")

	// ErrBadPayload — ответ генератора не удалось разобрать ни в одной
	// из известных форм.
	ErrBadPayload = errors.New("unparseable generator payload")

	// ErrEmptyChoice — API вернул ответ без вариантов.
	ErrEmptyChoice = errors.New("chat completion returned no choices")
)
