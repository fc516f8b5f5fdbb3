// Пакет gate — конечный автомат шлюза скачивания (ad gate).
//
// Шлюз задерживает вызов действия (обычно выдачу файла) до истечения
// обратного отсчёта:
//
//	idle → showing(N) → ready → closed → idle
//	                 ↘ cancelled → idle
//
// Повторный Open в showing/ready сбрасывает отсчёт и заменяет действие:
// одновременно ожидает не более одной попытки. Единственный активный таймер
// останавливается перед запуском следующего.
//
// Потокобезопасен через sync.Mutex.
package gate

import (
	"fmt"
	"sync"
	"time"
)

// State — состояние шлюза.
type State string

const (
	// StateIdle — шлюз неактивен
	StateIdle State = "idle"
	// StateShowing — идёт обратный отсчёт, подтверждение заблокировано
	StateShowing State = "showing"
	// StateReady — отсчёт завершён, подтверждение разрешено
	StateReady State = "ready"
	// StateClosed — подтверждено, действие будет вызвано после задержки закрытия
	StateClosed State = "closed"
	// StateCancelled — отменено, действие отброшено
	StateCancelled State = "cancelled"
)

const (
	// DefaultDuration — длительность отсчёта по умолчанию (секунд).
	DefaultDuration = 8
	// DefaultCloseDelay — задержка визуального закрытия перед вызовом действия.
	DefaultCloseDelay = 300 * time.Millisecond

	tickInterval = time.Second
)

// validTransitions — матрица допустимых переходов.
// showing → showing и ready → showing — повторный Open.
var validTransitions = map[State]map[State]bool{
	StateIdle:      {StateShowing: true},
	StateShowing:   {StateShowing: true, StateReady: true, StateCancelled: true},
	StateReady:     {StateShowing: true, StateClosed: true, StateCancelled: true},
	StateClosed:    {StateIdle: true, StateCancelled: true},
	StateCancelled: {StateIdle: true},
}

// Transition — запись о переходе, передаётся наблюдателю.
type Transition struct {
	From      State
	To        State
	Remaining int
}

// Snapshot — текущее состояние шлюза.
type Snapshot struct {
	State     State `json:"state"`
	Remaining int   `json:"remaining"`
}

// Option — опция конструктора.
type Option func(*Gate)

// WithDuration задаёт длительность отсчёта в секундах (0 — сразу ready).
func WithDuration(seconds int) Option {
	return func(g *Gate) {
		if seconds >= 0 {
			g.duration = seconds
		}
	}
}

// WithCloseDelay задаёт задержку между подтверждением и вызовом действия.
func WithCloseDelay(d time.Duration) Option {
	return func(g *Gate) {
		if d >= 0 {
			g.closeDelay = d
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(c Clock) Option {
	return func(g *Gate) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithObserver регистрирует наблюдателя переходов.
// Наблюдатель вызывается вне блокировки, после применения перехода.
func WithObserver(fn func(Transition)) Option {
	return func(g *Gate) {
		g.observer = fn
	}
}

// Gate — шлюз скачивания для одной попытки за раз.
type Gate struct {
	mu         sync.Mutex
	clock      Clock
	duration   int
	closeDelay time.Duration
	observer   func(Transition)

	state     State
	remaining int
	action    func()
	timer     Timer
	// epoch увеличивается при каждом Open/Cancel и отсекает устаревшие тики.
	epoch uint64
}

// New создаёт шлюз в состоянии idle.
func New(opts ...Option) *Gate {
	g := &Gate{
		clock:      SystemClock{},
		duration:   DefaultDuration,
		closeDelay: DefaultCloseDelay,
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Snapshot возвращает текущее состояние и остаток отсчёта.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{State: g.state, Remaining: g.remaining}
}

// Open запускает отсчёт и сохраняет действие.
// В showing/ready сбрасывает отсчёт и заменяет действие.
//
// Ошибки:
//   - INVALID_ACTION — action == nil
//   - GATE_CLOSING — подтверждённое действие ещё не выполнено
func (g *Gate) Open(action func()) error {
	if action == nil {
		return &TransitionError{Code: "INVALID_ACTION", Message: "действие не задано"}
	}

	g.mu.Lock()
	if !validTransitions[g.state][StateShowing] {
		state := g.state
		g.mu.Unlock()
		return &TransitionError{
			Code:    "GATE_CLOSING",
			Message: fmt.Sprintf("открытие недопустимо в состоянии %s", state),
		}
	}

	g.stopTimer()
	g.epoch++
	g.action = action
	g.remaining = g.duration

	var events []Transition
	events = append(events, g.transition(StateShowing))
	if g.remaining == 0 {
		events = append(events, g.transition(StateReady))
	} else {
		g.scheduleTick(g.epoch)
	}
	g.mu.Unlock()

	g.notify(events)
	return nil
}

// Confirm подтверждает скачивание. Допустим только в ready.
// Действие вызывается ровно один раз после задержки закрытия,
// затем шлюз возвращается в idle.
func (g *Gate) Confirm() error {
	g.mu.Lock()
	if g.state != StateReady {
		state, remaining := g.state, g.remaining
		g.mu.Unlock()
		return &TransitionError{
			Code:    "GATE_NOT_READY",
			Message: fmt.Sprintf("подтверждение недопустимо в состоянии %s (осталось %d с)", state, remaining),
		}
	}

	action := g.action
	g.action = nil
	epoch := g.epoch
	events := []Transition{g.transition(StateClosed)}
	g.timer = g.clock.AfterFunc(g.closeDelay, func() { g.finish(epoch, action) })
	g.mu.Unlock()

	g.notify(events)
	return nil
}

// Cancel отбрасывает действие без вызова. Допустим в любом состоянии, кроме idle,
// включая closed до истечения задержки закрытия.
func (g *Gate) Cancel() error {
	g.mu.Lock()
	if g.state == StateIdle {
		g.mu.Unlock()
		return &TransitionError{Code: "GATE_IDLE", Message: "нет активной попытки скачивания"}
	}

	g.stopTimer()
	g.epoch++
	g.action = nil
	g.remaining = 0
	events := []Transition{g.transition(StateCancelled), g.transition(StateIdle)}
	g.mu.Unlock()

	g.notify(events)
	return nil
}

// scheduleTick — вызывается под g.mu.
func (g *Gate) scheduleTick(epoch uint64) {
	g.timer = g.clock.AfterFunc(tickInterval, func() { g.tick(epoch) })
}

func (g *Gate) tick(epoch uint64) {
	g.mu.Lock()
	if epoch != g.epoch || g.state != StateShowing {
		g.mu.Unlock()
		return
	}

	var events []Transition
	g.remaining--
	if g.remaining <= 0 {
		g.remaining = 0
		g.timer = nil
		events = append(events, g.transition(StateReady))
	} else {
		g.scheduleTick(epoch)
	}
	g.mu.Unlock()

	g.notify(events)
}

// finish переводит closed → idle и вызывает подтверждённое действие.
// Отменённая или перезапущенная попытка действие не вызывает.
func (g *Gate) finish(epoch uint64, action func()) {
	g.mu.Lock()
	if epoch != g.epoch || g.state != StateClosed {
		g.mu.Unlock()
		return
	}
	g.timer = nil
	events := []Transition{g.transition(StateIdle)}
	g.mu.Unlock()

	action()
	g.notify(events)
}

// transition — вызывается под g.mu. Матрица переходов проверена вызывающим.
func (g *Gate) transition(to State) Transition {
	t := Transition{From: g.state, To: to, Remaining: g.remaining}
	g.state = to
	return t
}

// stopTimer — вызывается под g.mu.
func (g *Gate) stopTimer() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *Gate) notify(events []Transition) {
	if g.observer == nil {
		return
	}
	for _, e := range events {
		g.observer(e)
	}
}

// TransitionError — ошибка недопустимой операции шлюза.
type TransitionError struct {
	Code    string // GATE_NOT_READY, GATE_IDLE, GATE_CLOSING, INVALID_ACTION
	Message string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
