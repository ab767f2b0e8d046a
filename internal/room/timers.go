package room

import "time"

// schedule runs fn after d under the room lock, replacing any pending
// transition. A non-positive d runs fn immediately.
func (e *Engine) schedule(d time.Duration, fn func()) {
	e.stopPending()
	if d <= 0 {
		fn()
		return
	}
	gen := e.pendingGen
	e.pending = e.clock.AfterFunc(d, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed || gen != e.pendingGen {
			return
		}
		e.pending = nil
		fn()
	})
}

func (e *Engine) stopPending() {
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
	e.pendingGen++
}

// runSequence runs steps one after another with delay between them, then
// done. A step returning false ends the sequence without calling done.
func (e *Engine) runSequence(steps []func() bool, delay time.Duration, done func()) {
	if len(steps) == 0 {
		done()
		return
	}
	if !steps[0]() {
		return
	}
	if len(steps) == 1 {
		done()
		return
	}
	e.schedule(delay, func() { e.runSequence(steps[1:], delay, done) })
}

// scheduleLevel arms the blind clock for the next tournament level.
func (e *Engine) scheduleLevel() {
	at, ok := e.nextLevelTime()
	e.armLevel(at, ok)
}

// nextLevelTime returns when the level after the current one starts, if
// there is one.
func (e *Engine) nextLevelTime() (time.Time, bool) {
	if e.level >= len(e.levels)-1 || e.cfg.LevelDuration <= 0 {
		return time.Time{}, false
	}
	return e.clock.Now().Add(e.cfg.LevelDuration), true
}

func (e *Engine) armLevel(at time.Time, ok bool) {
	e.stopBlindClock()
	e.nextLevelAt = nil
	if !ok {
		return
	}

	e.nextLevelAt = &at
	gen := e.blindGen
	e.blindTimer = e.clock.AfterFunc(e.cfg.LevelDuration, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed || gen != e.blindGen || !e.running {
			return
		}
		e.blindTimer = nil
		e.level++

		lvl := e.currentBlinds()
		e.logger.Info("Blinds up", "level", lvl.Level, "small", lvl.SmallBlind, "big", lvl.BigBlind, "ante", lvl.Ante)
		ev := BlindsUpEvent{BlindLevel: lvl}
		next, more := e.nextLevelTime()
		if more {
			ev.NextLevelAt = &next
		}
		e.transport.Broadcast(e.id, ev)
		e.armLevel(next, more)
	})
}

func (e *Engine) stopBlindClock() {
	if e.blindTimer != nil {
		e.blindTimer.Stop()
		e.blindTimer = nil
	}
	e.blindGen++
}
