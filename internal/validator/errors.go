package validator

import "errors"

// Ошибки адаптеров валидации.
var (
	// ErrCompileService — сбой обращения к compile-сервису.
	ErrCompileService = errors.New("compile service request failed")

	// ErrEmptyCommand — не задана команда локального компилятора.
	ErrEmptyCommand = errors.New("validator command is empty")
)
