package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrEmptyDomains       = fmt.Errorf("no blocked domains have been found")
	ErrReconnectExhausted = fmt.Errorf("reconnect attempts exhausted")
	ErrChatNotFound       = fmt.Errorf("chat not found")
)
