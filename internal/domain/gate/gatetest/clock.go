// Пакет gatetest — ручные часы для тестов шлюза скачивания.
package gatetest

import (
	"sort"
	"sync"
	"time"

	"github.com/shivnayan54/studyvibe/internal/domain/gate"
)

var _ gate.Clock = (*ManualClock)(nil)

// ManualClock — детерминированные часы: время идёт только через Advance.
// Отложенные вызовы выполняются в горутине, вызвавшей Advance.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	clock *ManualClock
	when  time.Time
	seq   uint64
	f     func()
	done  bool
}

// NewManualClock создаёт ручные часы с начальным моментом start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now возвращает текущее время часов.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc планирует f на момент Now()+d.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) gate.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &manualTimer{clock: c, when: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Pending возвращает количество незавершённых таймеров.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// Advance сдвигает время на d и выполняет все наступившие вызовы
// в порядке их срока (при равенстве — в порядке планирования).
// Вызовы, запланированные во время Advance, тоже выполняются, если их срок наступил.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDue(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.done = true
		c.now = next.when
		c.mu.Unlock()

		next.f()
	}
}

// nextDue — вызывается под c.mu.
func (c *ManualClock) nextDue(target time.Time) *manualTimer {
	active := c.timers[:0]
	for _, t := range c.timers {
		if !t.done {
			active = append(active, t)
		}
	}
	c.timers = active

	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].when.Equal(c.timers[j].when) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].when.Before(c.timers[j].when)
	})

	if len(c.timers) == 0 || c.timers[0].when.After(target) {
		return nil
	}
	return c.timers[0]
}

// Stop отменяет таймер. Возвращает false, если вызов уже выполнен или отменён.
func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	return true
}
