package cmd

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pingo-core/pingo/transport"
)

func testSettings() *transport.Settings {
	s := transport.DefaultSettings()
	s.Count = 0 // the engine terminates right after Init without sending a probe, per the boundary case; Run still opens the ICMP socket first
	return s
}

// TestNewRunner tests if a runner is properly initialized.
func TestNewRunner(t *testing.T) {
	r, err := newRunner("localhost", testSettings())
	assert.NoError(t, err)

	assert.NotNil(t, r.session)
	assert.Empty(t, r.endch)
	assert.Empty(t, r.sigch)
}

// TestRequestStopWaitStops tests if when a runner is stopped, the session has really finished.
func TestRequestStopWaitStops(t *testing.T) {
	r, err := newRunner("localhost", testSettings())
	assert.NoError(t, err)

	r.Start()
	r.RequestStop()

	ch := make(chan error, 1)
	go func() {
		ch <- r.Wait()
	}()

	select {
	case err := <-ch:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		assert.Fail(t, "requesting stop of session did not stop session")
	}
}

// TestSigTermHandling tests if the sigterm signal really stops the run.
func TestSigTermHandling(t *testing.T) {
	r, err := newRunner("localhost", testSettings())
	assert.NoError(t, err)

	r.Start()

	ch := make(chan error, 1)
	go func() {
		ch <- r.Wait()
	}()

	r.sigch <- syscall.SIGTERM

	select {
	case err := <-ch:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		assert.Fail(t, "sigterm did not end run on time")
	}
}
