// Package klippy maintains a session with the printer daemon over its unix
// socket and turns the daemon's state into resolved visual states.
package klippy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/fkcurrie/klipper-status-led/internal/metrics"
	"github.com/fkcurrie/klipper-status-led/internal/resolver"
	"github.com/fkcurrie/klipper-status-led/internal/types"
)

// Defaults for MonitorConfig
const (
	DefaultPollInterval      = 250 * time.Millisecond
	DefaultReconnectInterval = 100 * time.Millisecond
	DefaultReadTimeout       = time.Second
	DefaultMaxInFlight       = 8
)

const readBufferSize = 4096

// Updater receives the output of a Monitor. display.Renderer implements it.
type Updater interface {
	UpdateState(states []types.VisualState)
	SetEnabled(on bool)
}

// MonitorConfig configures a Monitor
type MonitorConfig struct {
	SocketPath        string
	PollInterval      time.Duration
	ReconnectInterval time.Duration
	ReadTimeout       time.Duration
	MaxInFlight       int
	Clock             clockwork.Clock
	Logger            *slog.Logger
	Recorder          metrics.Recorder
}

// Monitor tracks the daemon's connection, daemon, print and custom state and
// pushes a freshly resolved set of visual states whenever the composite
// label changes.
//
// Run, SetModel and Label may be called concurrently. All session state is
// owned by the goroutine running Run.
type Monitor struct {
	cfg    MonitorConfig
	out    Updater
	clock  clockwork.Clock
	logger *slog.Logger
	rec    metrics.Recorder
	reload chan *types.Model

	model    *types.Model
	state    types.ConnectionState
	ledger   *Ledger
	splitter Splitter
	label    string

	published atomic.Pointer[string]
}

// NewMonitor creates a monitor that resolves labels against model
func NewMonitor(model *types.Model, out Updater, cfg MonitorConfig) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NoopRecorder{}
	}

	return &Monitor{
		cfg:    cfg,
		out:    out,
		clock:  cfg.Clock,
		logger: cfg.Logger.With("component", "klippy", "socket", cfg.SocketPath),
		rec:    cfg.Recorder,
		reload: make(chan *types.Model, 1),
		model:  model,
		ledger: NewLedger(cfg.MaxInFlight),
	}
}

// SetModel replaces the model used for resolution. The current label is
// resolved again against the new model. Only the latest pending model is
// kept.
func (m *Monitor) SetModel(model *types.Model) {
	for {
		select {
		case m.reload <- model:
			return
		default:
		}
		select {
		case <-m.reload:
		default:
		}
	}
}

// Label returns the last published composite label
func (m *Monitor) Label() string {
	if l := m.published.Load(); l != nil {
		return *l
	}
	return ""
}

// Run connects to the daemon and keeps the session alive until ctx is
// cancelled or a connect error cannot be fixed by retrying. In the latter
// case the returned error is a *ConnectError.
func (m *Monitor) Run(ctx context.Context) error {
	m.publish(true)

	for {
		conn, err := m.connect(ctx)
		if err != nil {
			return err
		}

		m.logger.Info("Connected to daemon")
		err = m.session(ctx, conn)
		m.disconnect()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Warn("Disconnected from daemon", "error", err)
	}
}

func (m *Monitor) connect(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	waiting := false

	for {
		conn, err := d.DialContext(ctx, "unix", m.cfg.SocketPath)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		cerr := classifyDialError(m.cfg.SocketPath, err)
		if cerr.Fatal {
			m.logger.Error("Unable to connect", "error", cerr)
			return nil, cerr
		}
		if !waiting {
			m.logger.Info("Waiting for daemon", "error", err)
			waiting = true
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case model := <-m.reload:
			m.applyModel(model)
		case <-m.clock.After(m.cfg.ReconnectInterval):
		}
	}
}

type readResult struct {
	data []byte
	err  error
}

func (m *Monitor) session(ctx context.Context, conn net.Conn) error {
	m.state = types.ConnectionState{Connected: true}
	m.ledger.Reset()
	m.splitter.Reset()
	m.rec.IncReconnect()
	m.rec.SetInFlight(0)
	m.publish(false)

	done := make(chan struct{})
	reads := make(chan readResult)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.readLoop(conn, reads, done)
	}()
	defer func() {
		close(done)
		conn.Close()
		wg.Wait()
	}()

	ticker := m.clock.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	if err := m.send(conn, registerRequest); err != nil {
		return err
	}
	if err := m.query(conn); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if err := m.query(conn); err != nil {
				return err
			}
		case r := <-reads:
			for _, msg := range m.splitter.Feed(r.data) {
				m.handle(msg)
			}
			if r.err != nil {
				return r.err
			}
		case model := <-m.reload:
			m.applyModel(model)
		}
	}
}

// readLoop forwards everything read from conn until an error occurs or done
// is closed. Read timeouts only wake it up to check done.
func (m *Monitor) readLoop(conn net.Conn, reads chan<- readResult, done <-chan struct{}) {
	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-done:
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout)); err != nil {
			m.deliver(reads, done, readResult{err: err})
			return
		}
		n, err := conn.Read(buf)
		if errors.Is(err, os.ErrDeadlineExceeded) {
			if n > 0 {
				m.deliver(reads, done, readResult{data: append([]byte(nil), buf[:n]...)})
			}
			continue
		}
		r := readResult{err: err}
		if n > 0 {
			r.data = append([]byte(nil), buf[:n]...)
		}
		if n == 0 && err == nil {
			r.err = errors.New("empty read")
		}
		if !m.deliver(reads, done, r) || r.err != nil {
			return
		}
	}
}

func (m *Monitor) deliver(reads chan<- readResult, done <-chan struct{}, r readResult) bool {
	select {
	case reads <- r:
		return true
	case <-done:
		return false
	}
}

// query sends the status query and, while the daemon is ready, the print
// status query.
func (m *Monitor) query(conn net.Conn) error {
	if err := m.send(conn, infoRequest); err != nil {
		return err
	}
	if m.state.Daemon != types.DaemonReady {
		return nil
	}
	return m.send(conn, statsRequest)
}

func (m *Monitor) send(conn net.Conn, req Request) error {
	if !m.ledger.CanSend() {
		m.logger.Debug("Request ceiling reached, skipping", "method", req.Method, "in_flight", m.ledger.InFlight())
		return nil
	}

	frame, err := Encode(req)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(m.cfg.ReadTimeout)); err != nil {
		return err
	}
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("failed to send %s: %w", req.Method, err)
	}

	m.ledger.Sent()
	m.rec.IncRequest(req.Method)
	m.rec.SetInFlight(m.ledger.InFlight())
	return nil
}

// handle dispatches one inbound message
func (m *Monitor) handle(data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		m.logger.Warn("Dropping malformed message", "error", err, "bytes", len(data))
		m.rec.IncMalformed()
		m.answered()
		return
	}

	if msg.Action != "" {
		m.handleNotification(&msg)
		return
	}

	switch msg.ID {
	case idInfo, idStats, idRegister:
		m.answered()
		m.rec.IncResponse(msg.ID)
	default:
		m.logger.Debug("Ignoring message", "id", msg.ID)
		return
	}

	if msg.failed() {
		m.logger.Warn("Request failed", "id", msg.ID, "error", string(msg.Error))
		return
	}

	switch msg.ID {
	case idInfo:
		var res infoResult
		if err := json.Unmarshal(msg.Result, &res); err != nil {
			m.logger.Warn("Dropping malformed info result", "error", err)
			m.rec.IncMalformed()
			return
		}
		m.setDaemon(res.State, res.StateMessage)
	case idStats:
		var res statsResult
		if err := json.Unmarshal(msg.Result, &res); err != nil {
			m.logger.Warn("Dropping malformed print_stats result", "error", err)
			m.rec.IncMalformed()
			return
		}
		m.setPrint(res.Status.PrintStats.State)
	case idRegister:
		m.logger.Info("Registered remote method", "method", ActionSetStatusLED)
	}
}

func (m *Monitor) handleNotification(msg *inbound) {
	if msg.Action != ActionSetStatusLED {
		m.logger.Debug("Ignoring notification", "action", msg.Action)
		return
	}
	m.rec.IncNotification(msg.Action)

	var p statusLEDParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &p); err != nil {
			m.logger.Warn("Dropping malformed notification", "action", msg.Action, "error", err)
			m.rec.IncMalformed()
			return
		}
	}

	if p.Enabled != nil {
		m.logger.Info("Output toggled", "enabled", *p.Enabled)
		m.out.SetEnabled(*p.Enabled)
	}
	if p.State != nil && *p.State != m.state.Custom {
		m.state.Custom = *p.State
		m.publish(false)
	}
}

func (m *Monitor) answered() {
	m.ledger.Answered()
	m.rec.SetInFlight(m.ledger.InFlight())
}

func (m *Monitor) setDaemon(state, message string) {
	if state == m.state.Daemon {
		return
	}
	m.logger.Info("Daemon state changed", "from", m.state.Daemon, "to", state, "message", message)
	m.state.Daemon = state
	m.state.Print = ""
	m.state.Custom = ""
	m.publish(false)
}

func (m *Monitor) setPrint(state string) {
	if m.state.Daemon != types.DaemonReady || state == m.state.Print {
		return
	}
	m.state.Print = state
	m.state.Custom = ""
	m.publish(false)
}

func (m *Monitor) disconnect() {
	m.state = types.ConnectionState{}
	m.ledger.Reset()
	m.splitter.Reset()
	m.rec.SetInFlight(0)
	m.publish(false)
}

func (m *Monitor) applyModel(model *types.Model) {
	if model == nil {
		return
	}
	m.logger.Info("Model replaced", "sections", len(model.Sections), "states", len(model.States))
	m.model = model
	m.publish(true)
}

// publish resolves the composite label and pushes the result when the label
// changed or force is set
func (m *Monitor) publish(force bool) {
	label := m.state.Label()
	if label == m.label && !force {
		return
	}
	changed := label != m.label
	if changed {
		m.logger.Info("Status changed", "from", m.label, "to", label)
	}
	m.label = label
	m.published.Store(&label)

	states := resolver.Resolve(m.model, label)
	for _, s := range states {
		name := s.Section
		if name == "" {
			name = "default"
		}
		m.logger.Debug("Section state",
			"section", name,
			"bounds", s.Bounds.String(),
			"primary", s.Primary.String(),
			"secondary", s.Secondary.String(),
			"animation", s.Animation.String(),
			"period", s.Period)
	}

	m.rec.SetLabel(label, changed)
	m.out.UpdateState(states)
}
