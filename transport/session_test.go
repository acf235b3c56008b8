package transport

import (
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pingo-core/pingo/engine"
)

func boundedSettings() *Settings {
	s := DefaultSettings()
	s.Count = 1
	s.Deadline = 10 * time.Second
	s.DoResolve = false // keep these tests off the network
	return s
}

// TestNewSession verifies a freshly built Session's defaults, in the
// teacher's own session_test.go style (direct field inspection rather
// than only exercising getters).
func TestNewSession(t *testing.T) {
	s, err := NewSession("localhost", boundedSettings())
	assert.NoError(t, err)
	assert.NotNil(t, s)

	assert.Equal(t, 0, s.lastSeq)
	assert.GreaterOrEqual(t, math.MaxUint16, s.id)
	assert.Empty(t, s.pending)
	assert.Empty(t, s.outcomeHandlers)
	assert.False(t, s.isStarted)
	assert.False(t, s.isFinished)
}

func TestSessionAddress(t *testing.T) {
	s, err := NewSession("localhost", boundedSettings())
	assert.NoError(t, err)
	assert.Equal(t, s.addr, s.Address())
}

func TestSessionCNAME(t *testing.T) {
	s, err := NewSession("localhost", boundedSettings())
	assert.NoError(t, err)
	assert.Equal(t, s.cname, s.CNAME())
}

func TestSessionAddOutcomeHandler(t *testing.T) {
	s, err := NewSession("localhost", boundedSettings())
	assert.NoError(t, err)

	prevlen := len(s.outcomeHandlers)
	s.AddOutcomeHandler(func(*Session, engine.Outcome) {})
	assert.Equal(t, prevlen+1, len(s.outcomeHandlers))
}

func TestSessionAddStartAndEndHandler(t *testing.T) {
	s, err := NewSession("localhost", boundedSettings())
	assert.NoError(t, err)

	s.AddStartHandler(func(*Session) {})
	s.AddEndHandler(func(*Session) {})
	assert.Len(t, s.startHandlers, 1)
	assert.Len(t, s.endHandlers, 1)
}

func TestSessionQuietAndShowTimestamp(t *testing.T) {
	settings := boundedSettings()
	settings.Quiet = true
	settings.ShowTimestamp = true

	s, err := NewSession("localhost", settings)
	assert.NoError(t, err)
	assert.True(t, s.Quiet())
	assert.True(t, s.ShowTimestamp())
}

// TestSessionTimeoutDurationDefault verifies the fallback to
// Settings.Timeout before any successful reply is recorded.
func TestSessionTimeoutDurationDefault(t *testing.T) {
	s, err := NewSession("localhost", boundedSettings())
	assert.NoError(t, err)
	assert.Equal(t, s.settings.Timeout, s.timeoutDuration())
}

// TestSessionTimeoutDurationAfterReply verifies the teacher's policy of
// twice the largest observed RTT once at least one reply has landed.
func TestSessionTimeoutDurationAfterReply(t *testing.T) {
	s, err := NewSession("localhost", boundedSettings())
	assert.NoError(t, err)

	s.machine.State().Stats.Record(0.05)
	assert.Equal(t, 100*time.Millisecond, s.timeoutDuration())
}

// TestSessionSendAssignsSequentialSeq verifies send() assigns wrapping
// sequence numbers and records a pending entry without yet arming a
// timer (performSend does that once the stagger delay elapses).
func TestSessionSendAssignsSequentialSeq(t *testing.T) {
	s, err := NewSession("localhost", boundedSettings())
	assert.NoError(t, err)

	probe := engine.NewProbe(4, 8, 0, nil, 0, 64)
	probe.SetDelay(0)

	ok := s.send(probe)
	assert.True(t, ok)
	assert.Equal(t, 1, s.lastSeq)
	assert.Len(t, s.pending, 1)

	pp, found := s.pending[0]
	assert.True(t, found)
	assert.Nil(t, pp.timer)
	assert.Same(t, probe, pp.probe)
}

func TestSessionSendWrapsSeqAt16Bits(t *testing.T) {
	s, err := NewSession("localhost", boundedSettings())
	assert.NoError(t, err)
	s.lastSeq = 0xffff

	s.send(engine.NewProbe(4, 8, 0, nil, 0, 64))
	assert.Equal(t, 0, s.lastSeq)
}

// TestSessionHandleTimeoutSeqUnknown verifies a fired timer whose entry
// was already resolved by a race-won reply is silently ignored.
func TestSessionHandleTimeoutSeqUnknown(t *testing.T) {
	s, err := NewSession("localhost", boundedSettings())
	assert.NoError(t, err)

	terminate := s.handleTimeoutSeq(42)
	assert.False(t, terminate)
}

// TestSessionHandleTimeoutSeqDrivesMachine drives a real dispatch
// through Machine.Init (via send, never performSend, so no socket is
// touched) and verifies handleTimeoutSeq forwards the Timeout outcome
// and reports termination once the lone probe is accounted for.
func TestSessionHandleTimeoutSeqDrivesMachine(t *testing.T) {
	s, err := NewSession("8.8.8.8", boundedSettings())
	assert.NoError(t, err)

	dispatched, _, terminate := s.machine.Init()
	assert.Equal(t, 1, dispatched)
	assert.False(t, terminate)
	assert.Len(t, s.pending, 1)

	var got []engine.Outcome
	s.AddOutcomeHandler(func(_ *Session, o engine.Outcome) {
		got = append(got, o)
	})

	didTerminate := s.handleTimeoutSeq(0)
	assert.True(t, didTerminate)
	assert.Len(t, got, 2)
	assert.IsType(t, engine.Timeout{}, got[0])
	assert.IsType(t, engine.AllProbesSent{}, got[1])
	assert.Empty(t, s.pending)
}

// TestSessionHandleRawPacketUnknownSeqIgnored verifies a reply whose
// sequence number has no pending entry (already timed out, or bogus)
// does not disturb the session.
func TestSessionHandleRawPacketUnknownSeqIgnored(t *testing.T) {
	s, err := NewSession("localhost", boundedSettings())
	assert.NoError(t, err)

	raw := buildEchoReplyPacket(t, s.id, 99, s.isIPv4)
	terminate := s.handleRawPacket(raw)
	assert.False(t, terminate)
}

func TestSessionDestinationAndMaxTTL(t *testing.T) {
	settings := boundedSettings()
	settings.TTL = 42
	s, err := NewSession("8.8.8.8", settings)
	assert.NoError(t, err)

	assert.Equal(t, net.ParseIP("8.8.8.8").To4(), s.Destination().To4())
	assert.Equal(t, uint8(42), s.MaxTTL())
}
