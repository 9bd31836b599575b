package mq

import "errors"

// ErrNoChannel возвращается, когда канал недоступен (идёт переподключение).
var ErrNoChannel = errors.New("no amqp channel available")

// ErrStop — сигнальная ошибка обработчика подписки: остановить приём,
// не считая это сбоем.
var ErrStop = errors.New("stop consuming")
