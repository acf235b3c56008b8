package transport

import (
	"fmt"
	"math/rand"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/icmp"

	"github.com/pingo-core/pingo/engine"
)

// pendingProbe ties a dispatched probe to the timer that will declare
// it timed out if no reply matches its sequence number first.
type pendingProbe struct {
	probe *engine.Probe
	timer *time.Timer
}

// Session is the transport-level framework that drives one run of the
// ping algorithm core: it owns the ICMP socket, the per-probe timeout
// timers, and the receive loop, and feeds engine.Machine the
// PROBE_REPLY/PROBE_TIMEOUT events spec.md §6 describes. It is the
// "ambient probing framework" spec.md §1 treats as an external
// collaborator.
type Session struct {
	settings *Settings
	logger   *log.Logger

	addr   net.Addr
	destIP net.IP
	cname  string
	isIPv4 bool

	id       int
	lastSeq  int
	skeleton *engine.Probe
	machine  *engine.Machine
	conn     *icmp.PacketConn

	pending map[int]*pendingProbe

	finishReqs chan error
	scheduled  chan int
	timeouts   chan int
	stopPoll   chan struct{}

	isStarted  bool
	isFinished bool

	outcomeHandlers []func(*Session, engine.Outcome)
	startHandlers   []func(*Session)
	endHandlers     []func(*Session)
}

// NewSession resolves address and prepares a Session ready to Run.
func NewSession(address string, settings *Settings) (*Session, error) {
	logger := NewLogger(settings.LogLevel)

	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	ipaddr, err := net.ResolveIPAddr("ip", address)
	if err != nil {
		return nil, fmt.Errorf("error resolving address %s: %w", address, err)
	}

	cname := address
	if settings.DoResolve {
		if names, err := net.LookupAddr(ipaddr.String()); err == nil && len(names) > 0 {
			cname = names[0]
		}
	}

	v4 := isIPv4(ipaddr.IP)

	var dst net.Addr = ipaddr
	if !settings.IsPrivileged {
		dst = &net.UDPAddr{IP: ipaddr.IP, Zone: ipaddr.Zone}
	}

	r := rand.New(rand.NewSource(time.Now().UTC().UnixNano()))

	version := uint8(6)
	echoType := uint8(128) // ICMPv6 echo request
	if v4 {
		version = 4
		echoType = 8 // ICMPv4 echo request
	}
	skeleton := engine.NewProbe(version, echoType, echoCode, nil, 0, uint8(settings.TTL))
	// A real duration (rather than the BestEffortDelay sentinel) makes
	// the Probe Dispatcher stagger each dispatch batch's departures by
	// i * interval, per spec.md §4.3.
	skeleton.SetDelay(settings.Interval)

	opts := engine.Options{
		Destination:   ipaddr.IP,
		Count:         settings.Count,
		Interval:      settings.Interval,
		MaxTTL:        uint8(settings.TTL),
		DoResolve:     settings.DoResolve,
		ShowTimestamp: settings.ShowTimestamp,
		Quiet:         settings.Quiet,
	}
	if opts.Count < 0 {
		// Unbounded runs (bounded only by deadline) are expressed to the
		// engine as a very large but finite count; the deadline timer
		// (if any) ends Run's event loop first.
		opts.Count = 1 << 30
	}

	s := &Session{
		settings:   settings,
		logger:     logger,
		addr:       dst,
		destIP:     ipaddr.IP,
		cname:      cname,
		isIPv4:     v4,
		id:         r.Intn(1 << 16),
		skeleton:   skeleton,
		pending:    make(map[int]*pendingProbe),
		finishReqs: make(chan error, 1),
		scheduled:  make(chan int, 16),
		timeouts:   make(chan int, 16),
		stopPoll:   make(chan struct{}),
	}

	machine, err := engine.NewMachine(opts, skeleton, settings.frameworkTimeout(), s.send)
	if err != nil {
		return nil, err
	}
	s.machine = machine

	return s, nil
}

// AddOutcomeHandler registers a callback invoked for every outcome the
// engine emits upstream.
func (s *Session) AddOutcomeHandler(h func(*Session, engine.Outcome)) {
	s.outcomeHandlers = append(s.outcomeHandlers, h)
}

// AddStartHandler registers a callback invoked once Run begins.
func (s *Session) AddStartHandler(h func(*Session)) {
	s.startHandlers = append(s.startHandlers, h)
}

// AddEndHandler registers a callback invoked once Run is about to return.
func (s *Session) AddEndHandler(h func(*Session)) {
	s.endHandlers = append(s.endHandlers, h)
}

// Address returns the resolved destination address.
func (s *Session) Address() net.Addr { return s.addr }

// Destination returns the resolved destination IP.
func (s *Session) Destination() net.IP { return s.destIP }

// CNAME returns the resolved hostname of the destination, if any.
func (s *Session) CNAME() string { return s.cname }

// MaxTTL returns the configured TTL.
func (s *Session) MaxTTL() uint8 { return s.skeleton.TTL() }

// Quiet reports whether per-reply output should be suppressed (-q).
func (s *Session) Quiet() bool { return s.settings.Quiet }

// ShowTimestamp reports whether a Unix timestamp prefix is requested (-D).
func (s *Session) ShowTimestamp() bool { return s.settings.ShowTimestamp }

// State exposes the engine's current state, useful for end-of-run reporting.
func (s *Session) State() *engine.State { return s.machine.State() }

// RequestStop requests the session to end its run early.
func (s *Session) RequestStop() {
	if s.isFinished {
		return
	}
	select {
	case s.finishReqs <- nil:
	default:
	}
}

// Run drives the session's event loop until the algorithm terminates,
// the deadline fires, or RequestStop is called. It is the single
// cooperative event loop spec.md §5 describes: engine.Machine's
// transition methods are only ever called from this goroutine.
func (s *Session) Run() error {
	if s.isFinished {
		return fmt.Errorf("session already finished")
	}
	if s.isStarted {
		return fmt.Errorf("session already started")
	}
	s.isStarted = true

	if !s.settings.IsPrivileged {
		s.logger.Warnf("running unprivileged: TimeExceeded/Unreachable replies may not surface on all platforms")
	}

	for _, h := range s.startHandlers {
		h(s)
	}

	conn, err := openConnection(s.settings, s.isIPv4)
	if err != nil {
		return err
	}
	s.conn = conn
	defer conn.Close()

	var deadline <-chan time.Time
	if s.settings.isDeadlineActive() {
		timer := time.NewTimer(s.settings.Deadline)
		defer timer.Stop()
		deadline = timer.C
	}

	rawPackets := make(chan *rawPacket, 16)
	done := make(chan struct{})
	go s.pollConnection(rawPackets, done)

	s.logger.Infof("starting ping to %s (%s)", s.cname, s.destIP)

	dispatched, outcomes, terminate := s.machine.Init()
	s.logger.Debugf("initial dispatch: %d probes", dispatched)
	s.forward(outcomes)

	finishErr := error(nil)
	if terminate {
		close(s.stopPoll)
		<-done
		return s.finish(finishErr)
	}

loop:
	for {
		select {
		case <-deadline:
			s.logger.Info("deadline reached, ending session")
			break loop
		case seq := <-s.scheduled:
			s.performSend(seq)
		case seq := <-s.timeouts:
			if s.handleTimeoutSeq(seq) {
				break loop
			}
		case raw := <-rawPackets:
			if s.handleRawPacket(raw) {
				break loop
			}
		case err := <-s.finishReqs:
			finishErr = err
			break loop
		}
	}

	close(s.stopPoll)
	<-done
	return s.finish(finishErr)
}

// pollConnection continuously reads inbound ICMP packets and forwards
// them to recv, exiting when stopPoll is closed. Adapted from the
// teacher's core/icmp.go pollConnection.
func (s *Session) pollConnection(recv chan<- *rawPacket, done chan<- struct{}) {
	defer close(done)

	buf := make([]byte, 1500)
	for {
		select {
		case <-s.stopPoll:
			return
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			s.logger.Errorf("setting read deadline: %s", err)
			return
		}

		n, cm, err := readPacket(s.conn, s.isIPv4, buf)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				continue
			}
			s.logger.Debugf("read error, ending poll: %s", err)
			return
		}

		content := make([]byte, n)
		copy(content, buf[:n])
		recv <- &rawPacket{content: content, length: n, cm: cm}
	}
}

// send is the engine.Sender passed to the Machine. It only assigns the
// probe its sequence number and schedules the actual wire transmission
// after probe.Delay() — honoring the Probe Dispatcher's staggered
// departure times (spec.md §4.3) without blocking the Machine's
// synchronous dispatch call. The real send happens in performSend,
// invoked from the Run goroutine when the scheduled timer fires, which
// keeps every mutation of s.pending confined to that one goroutine.
func (s *Session) send(probe *engine.Probe) bool {
	seq := s.lastSeq
	s.lastSeq = (s.lastSeq + 1) & 0xffff

	s.pending[seq] = &pendingProbe{probe: probe}

	delay := probe.Delay()
	if delay < 0 {
		delay = 0
	}
	time.AfterFunc(delay, func() {
		select {
		case s.scheduled <- seq:
		default:
		}
	})

	return true
}

// performSend actually transmits the echo request for seq and arms its
// timeout timer, relative to the real send time. Called only from the
// Run goroutine.
func (s *Session) performSend(seq int) {
	pp, found := s.pending[seq]
	if !found {
		return // session already finished and cleared pending
	}

	payload := make([]byte, 8)
	now := time.Now()
	putUnixNano(payload, now.UnixNano())

	msg := buildEchoMessage(s.isIPv4, s.id, seq, payload)
	pp.probe.SetSendTime(now)

	if err := writeEcho(s.conn, s.addr, msg); err != nil {
		s.logger.Errorf("sending probe seq=%d: %s", seq, err)
		delete(s.pending, seq)
		return
	}

	pp.timer = time.AfterFunc(s.timeoutDuration(), func() {
		select {
		case s.timeouts <- seq:
		default:
		}
	})
}

// timeoutDuration returns the per-probe timeout: twice the largest
// observed RTT once we have successful replies, the configured
// Settings.Timeout otherwise — matching the teacher's
// getTimeoutDuration policy in core/session.go.
func (s *Session) timeoutDuration() time.Duration {
	st := s.machine.State()
	samples := st.Stats.Samples()
	if len(samples) == 0 {
		return s.settings.Timeout
	}
	return time.Duration(2 * st.Stats.Max() * float64(time.Second))
}

// handleRawPacket processes one inbound datagram. Returns true if the
// session should stop its event loop (the algorithm has terminated).
func (s *Session) handleRawPacket(raw *rawPacket) bool {
	parsed, ok, err := parseInbound(raw, s.isIPv4, s.id)
	if err != nil {
		s.logger.Debugf("discarding unparseable packet: %s", err)
		return false
	}
	if !ok {
		return false
	}

	pp, found := s.pending[parsed.seq]
	if !found {
		s.logger.Tracef("no pending probe for seq=%d, ignoring", parsed.seq)
		return false
	}
	delete(s.pending, parsed.seq)
	if pp.timer != nil {
		pp.timer.Stop()
	}

	outcomes, n := s.machine.HandleReply(pp.probe, parsed.probe, time.Now())
	s.forward(outcomes)
	return s.afterDispatch(n)
}

// handleTimeoutSeq processes one fired timeout timer. Returns true if
// the session should stop its event loop.
func (s *Session) handleTimeoutSeq(seq int) bool {
	pp, found := s.pending[seq]
	if !found {
		return false // already resolved by a race-won reply
	}
	delete(s.pending, seq)

	outcomes, n := s.machine.HandleTimeout(pp.probe)
	s.forward(outcomes)
	return s.afterDispatch(n)
}

// afterDispatch reports whether the Machine just signaled termination.
func (s *Session) afterDispatch(n int) bool {
	return n == engine.Terminated
}

// forward calls every registered outcome handler for each outcome.
func (s *Session) forward(outcomes []engine.Outcome) {
	for _, o := range outcomes {
		for _, h := range s.outcomeHandlers {
			h(s, o)
		}
	}
}

// finish stops all pending timers, runs end handlers, and marks the
// session finished. Idempotent with respect to the timers it owns.
func (s *Session) finish(err error) error {
	for _, pp := range s.pending {
		if pp.timer != nil {
			pp.timer.Stop()
		}
	}
	s.pending = nil

	for _, h := range s.endHandlers {
		h(s)
	}

	s.machine.Terminate()

	s.isFinished = true
	return err
}

func putUnixNano(b []byte, v int64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
