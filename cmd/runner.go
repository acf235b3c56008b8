package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pingo-core/pingo/transport"
)

// Runner drives one Session end to end and wires up the console
// reporting callbacks, adapted from the teacher's cmd/runner.go Runner.
type Runner struct {
	session *transport.Session
	sigch   chan os.Signal
	endch   chan error
}

// newRunner creates a runner with its callbacks already registered.
func newRunner(addr string, settings *transport.Settings) (*Runner, error) {
	session, err := transport.NewSession(addr, settings)
	if err != nil {
		return nil, err
	}

	p := newPrinter(session)
	session.AddStartHandler(p.onStart)
	session.AddOutcomeHandler(p.onOutcome)
	session.AddEndHandler(p.onEnd)

	return &Runner{
		session: session,
		sigch:   make(chan os.Signal, 1),
		endch:   make(chan error, 1),
	}, nil
}

// Start launches the session's Run loop in the background and begins
// watching for interrupt/termination signals.
func (r *Runner) Start() {
	r.handleSignals()

	go func() {
		r.endch <- r.session.Run()
	}()
}

// RequestStop asks the underlying session to end its run early.
func (r *Runner) RequestStop() {
	r.session.RequestStop()
}

// Wait blocks until the session finishes and returns its result.
func (r *Runner) Wait() error {
	return <-r.endch
}

// handleSignals forwards SIGINT/SIGTERM into a graceful RequestStop,
// matching the teacher's handleSignals.
func (r *Runner) handleSignals() {
	signal.Notify(r.sigch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-r.sigch
		r.RequestStop()
	}()
}
