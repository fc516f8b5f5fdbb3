// clock.go — источник времени для таймеров шлюза.
package gate

import "time"

// Timer — отменяемый отложенный вызов.
type Timer interface {
	Stop() bool
}

// Clock — планировщик отложенных вызовов.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock — часы на основе time.AfterFunc.
type SystemClock struct{}

// AfterFunc планирует f через d.
func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
