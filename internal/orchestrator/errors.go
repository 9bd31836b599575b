package orchestrator

import "errors"

// ErrAlreadyExecuted возвращается при повторном вызове Execute:
// экземпляр оркестратора обслуживает ровно один запуск.
var ErrAlreadyExecuted = errors.New("orchestrator already executed a run")

// ErrMissingGenerator возвращается конструктором, если не задан генератор.
var ErrMissingGenerator = errors.New("generator is required")

// ErrMissingValidator возвращается конструктором, если не задан валидатор.
var ErrMissingValidator = errors.New("validator is required")
