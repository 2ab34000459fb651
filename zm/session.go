package zm

import (
	"fmt"
)

// Session owns a Machine on a dedicated goroutine and exposes the driver
// surface as blocking, race-free calls. The machine is single-threaded; a
// host mixing input sources (a UI loop, timers, a network connection)
// funnels everything through one Session instead of touching the machine
// directly.
type Session struct {
	m     *Machine
	calls chan sessionCall
	quit  chan struct{}
}

// sessionCall carries one driver operation to the machine goroutine.
type sessionCall struct {
	step func(*Machine) (State, error)
	done chan sessionOutcome
}

// sessionOutcome is what a driver call produces: the machine's state
// afterwards, the serialized save when that state is AwaitingSave, and any
// error (game errors included).
type sessionOutcome struct {
	state State
	save  []byte
	err   error
}

// NewSession wraps a machine and starts its goroutine. The caller must not
// use the machine directly afterwards.
func NewSession(m *Machine) *Session {
	s := &Session{
		m:     m,
		calls: make(chan sessionCall, 8),
		quit:  make(chan struct{}),
	}
	go s.serve()
	return s
}

func (s *Session) serve() {
	for {
		select {
		case c := <-s.calls:
			c.done <- s.invoke(c.step)
		case <-s.quit:
			return
		}
	}
}

// invoke runs one driver operation on the machine goroutine. A panic in
// the interpreter halts the machine and surfaces as an error rather than
// tearing down the session.
func (s *Session) invoke(step func(*Machine) (State, error)) (out sessionOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out.err = fmt.Errorf("machine fault: %v", r)
			s.m.halt(out.err)
			out.state = Halted
		}
	}()
	out.state, out.err = step(s.m)
	if out.state == AwaitingSave {
		out.save = append([]byte(nil), s.m.PendingSave()...)
	}
	return out
}

// call submits a driver operation and blocks for its outcome.
func (s *Session) call(step func(*Machine) (State, error)) (State, []byte, error) {
	c := sessionCall{step: step, done: make(chan sessionOutcome, 1)}
	s.calls <- c
	out := <-c.done
	return out.state, out.save, out.err
}

// advance resumes with resume, then keeps running while the machine is
// Running, so one call carries the game to its next suspension or halt.
func advance(m *Machine, resume func() (State, error)) (State, error) {
	st, err := resume()
	if st != Running || err != nil {
		return st, err
	}
	return m.Run()
}

// Run executes until the machine suspends or halts. The save payload is
// non-nil exactly when the returned state is AwaitingSave.
func (s *Session) Run() (State, []byte, error) {
	return s.call(func(m *Machine) (State, error) {
		return m.Run()
	})
}

// FeedLine answers a pending line read and runs on to the next suspension.
func (s *Session) FeedLine(text string) (State, []byte, error) {
	return s.call(func(m *Machine) (State, error) {
		return advance(m, func() (State, error) { return m.ResumeWithLine(text) })
	})
}

// FeedChar answers a pending character read and runs on.
func (s *Session) FeedChar(r rune) (State, []byte, error) {
	return s.call(func(m *Machine) (State, error) {
		return advance(m, func() (State, error) { return m.ResumeWithChar(r) })
	})
}

// FinishSave reports whether the host persisted the pending save, and
// runs on.
func (s *Session) FinishSave(ok bool) (State, []byte, error) {
	return s.call(func(m *Machine) (State, error) {
		return advance(m, func() (State, error) { return m.ResumeWithSaveResult(ok) })
	})
}

// FinishRestore feeds a save file to a pending restore and runs on. A
// rejected file comes back as a game error with the machine still Running;
// the host may simply Run again.
func (s *Session) FinishRestore(data []byte) (State, []byte, error) {
	return s.call(func(m *Machine) (State, error) {
		return advance(m, func() (State, error) { return m.ResumeWithRestoreData(data) })
	})
}

// State reports the machine's state without advancing it.
func (s *Session) State() State {
	st, _, _ := s.call(func(m *Machine) (State, error) {
		return m.State(), nil
	})
	return st
}

// Close stops the session goroutine. Calls made after Close block.
func (s *Session) Close() {
	close(s.quit)
}
