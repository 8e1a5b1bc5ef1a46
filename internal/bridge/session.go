// Package bridge connects the bot to a voxelcraft world server over
// websocket. A Session keeps the latest observation, answers world queries
// from it and turns agent primitives into ACT tasks.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voxelcraft.ai/goalbot/internal/agent"
	"voxelcraft.ai/goalbot/internal/catalogs"
	"voxelcraft.ai/goalbot/internal/encoding"
	"voxelcraft.ai/goalbot/internal/protocol"
	"voxelcraft.ai/goalbot/internal/tuning"
)

type Options struct {
	Tuning   tuning.Bridge
	Catalogs *catalogs.Catalogs
	Logger   *zap.Logger
	// Output gets a line per finished task; optional.
	Output Printer
	// OnMemory receives the memory entries of every OBS that carries any.
	OnMemory func([]protocol.MemoryKV)
}

type Session struct {
	cfg      tuning.Bridge
	log      *zap.Logger
	out      Printer
	onMemory func([]protocol.MemoryKV)
	cats     atomic.Pointer[catalogs.Catalogs]

	writeMu sync.Mutex

	mu          sync.RWMutex
	conn        *websocket.Conn
	connDone    chan struct{} // closed when the current connection ends
	ready       chan struct{} // closed on the first OBS of the current connection
	readyClosed bool
	connected   bool
	lastErr     string

	agentID     string
	resumeToken string
	welcome     protocol.WelcomeMsg
	palette     []string
	obs         *protocol.ObsMsg
	view        voxelView

	waiters  map[string]chan protocol.TaskEvent
	controls []string
}

func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Session{
		cfg:      opts.Tuning,
		log:      opts.Logger.Named("bridge"),
		out:      opts.Output,
		onMemory: opts.OnMemory,
		connDone: make(chan struct{}),
		ready:    make(chan struct{}),
		waiters:  map[string]chan protocol.TaskEvent{},
	}
	close(s.connDone)
	if opts.Catalogs != nil {
		s.cats.Store(opts.Catalogs)
	}
	if m, err := loadStateFile(s.cfg.StateFile); err != nil {
		s.log.Warn("ignoring bridge state file", zap.String("path", s.cfg.StateFile), zap.Error(err))
	} else if ps, ok := m[s.cfg.AgentName]; ok {
		s.resumeToken = ps.ResumeToken
		s.agentID = ps.AgentID
	}
	return s
}

// SetCatalogs swaps the catalogs used for recipe lookups and as the
// fallback block palette.
func (s *Session) SetCatalogs(c *catalogs.Catalogs) { s.cats.Store(c) }

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		Connected: s.connected,
		AgentID:   s.agentID,
		URL:       s.cfg.URL,
		Pending:   len(s.waiters),
		LastError: s.lastErr,
	}
	if s.obs != nil {
		st.LastObsTick = s.obs.Tick
	}
	return st
}

// WaitReady blocks until the current connection has delivered an OBS.
func (s *Session) WaitReady(ctx context.Context) error {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run connects and reconnects with exponential backoff until ctx ends.
func (s *Session) Run(ctx context.Context) error {
	backoff := s.cfg.BackoffMin
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		connected, err := s.connectAndReadLoop(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = s.cfg.BackoffMin
		}
		s.mu.Lock()
		s.connected = false
		if err != nil {
			s.lastErr = err.Error()
		}
		s.mu.Unlock()
		s.log.Warn("world connection lost", zap.Error(err), zap.Duration("retry_in", backoff))

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		if backoff < s.cfg.BackoffMax {
			backoff *= 2
			if backoff > s.cfg.BackoffMax {
				backoff = s.cfg.BackoffMax
			}
		}
	}
}

// connectAndReadLoop runs one connection. connected reports whether the
// handshake got as far as a WELCOME.
func (s *Session) connectAndReadLoop(ctx context.Context) (connected bool, err error) {
	d := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	conn, resp, err := d.DialContext(ctx, s.cfg.URL, http.Header{})
	if err != nil {
		return false, err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	s.mu.RLock()
	hello := protocol.NewHello(s.cfg.AgentName, strings.TrimSpace(s.resumeToken), s.cfg.MaxQueue)
	s.mu.RUnlock()
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return false, err
	}

	connDone := make(chan struct{})
	s.mu.Lock()
	s.conn = conn
	s.connDone = connDone
	s.lastErr = ""
	s.mu.Unlock()

	stopWatch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stopWatch:
		}
	}()
	defer func() {
		close(stopWatch)
		_ = conn.Close()
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.connected = false
		close(connDone)
		s.ready = make(chan struct{})
		s.readyClosed = false
		s.controls = nil
		s.mu.Unlock()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return connected, err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			s.log.Debug("undecodable message", zap.Error(err))
			continue
		}
		if !protocol.IsSupportedVersion(base.ProtocolVersion) {
			s.log.Debug("unsupported protocol version", zap.String("type", base.Type),
				zap.String("version", base.ProtocolVersion))
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			s.handleWelcome(w)
			connected = true
		case protocol.TypeCatalog:
			var c protocol.CatalogMsg
			if err := json.Unmarshal(msg, &c); err != nil {
				continue
			}
			s.handleCatalog(c)
		case protocol.TypeObs:
			var o protocol.ObsMsg
			if err := json.Unmarshal(msg, &o); err != nil {
				s.log.Debug("bad obs", zap.Error(err))
				continue
			}
			s.handleObs(o)
		}
	}
}

func (s *Session) handleWelcome(w protocol.WelcomeMsg) {
	s.mu.Lock()
	s.welcome = w
	s.agentID = w.AgentID
	s.resumeToken = w.ResumeToken
	s.connected = true
	s.mu.Unlock()
	s.log.Info("connected", zap.String("agent_id", w.AgentID), zap.String("world", w.CurrentWorldID))

	err := saveSession(s.cfg.StateFile, s.cfg.AgentName, persistedSession{
		ResumeToken: w.ResumeToken,
		AgentID:     w.AgentID,
	}, time.Now())
	if err != nil {
		s.log.Warn("saving bridge state failed", zap.Error(err))
	}
}

func (s *Session) handleCatalog(c protocol.CatalogMsg) {
	if strings.ToLower(strings.TrimSpace(c.Name)) != protocol.CatalogBlockPalette {
		return
	}
	var palette []string
	if err := json.Unmarshal(c.Data, &palette); err != nil {
		s.log.Warn("bad block palette", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.palette = palette
	s.mu.Unlock()
}

func (s *Session) handleObs(o protocol.ObsMsg) {
	var events []protocol.TaskEvent
	for _, ev := range o.Events {
		if te, ok := protocol.DecodeTaskEvent(ev); ok {
			events = append(events, te)
		}
	}

	s.mu.Lock()
	if err := s.view.apply(o.Voxels); err != nil {
		s.log.Debug("voxel window not applied", zap.Uint64("tick", o.Tick), zap.Error(err))
	}
	o.Voxels = protocol.VoxelsObs{}
	s.obs = &o
	if o.AgentID != "" {
		s.agentID = o.AgentID
	}
	if !s.readyClosed {
		close(s.ready)
		s.readyClosed = true
	}
	waiters := make([]chan protocol.TaskEvent, len(events))
	for i, te := range events {
		waiters[i] = s.waiters[te.TaskID]
	}
	s.mu.Unlock()

	for i, te := range events {
		if s.out != nil {
			s.out.Printf("%s\n", te)
		}
		if !protocol.IsKnownCode(te.Code) {
			s.log.Debug("unknown task error code", zap.String("task_id", te.TaskID), zap.String("code", te.Code))
		}
		if ch := waiters[i]; ch != nil {
			select {
			case ch <- te:
			default:
			}
		}
	}
	if len(o.Memory) > 0 && s.onMemory != nil {
		s.onMemory(o.Memory)
	}
}

// send writes one ACT stamped with the latest observed tick.
func (s *Session) send(act protocol.ActMsg) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	conn := s.conn
	act.AgentID = s.agentID
	if s.obs != nil {
		act.Tick = s.obs.Tick
	}
	s.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	act.Type = protocol.TypeAct
	act.ProtocolVersion = protocol.Version

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteJSON(act); err != nil {
		return fmt.Errorf("write act: %w", err)
	}
	return nil
}

// voxelView is the decoded cube of blocks around the last OBS center.
type voxelView struct {
	center agent.Vec3
	radius int
	ids    []uint16
}

func (v *voxelView) apply(vox protocol.VoxelsObs) error {
	center := agent.V(vox.Center[0], vox.Center[1], vox.Center[2])
	switch vox.Encoding {
	case "":
		return nil
	case protocol.EncodingRLE:
		n := encoding.WindowSize(vox.Radius)
		ids, err := encoding.DecodeRLE(vox.Data, n)
		if err != nil {
			return err
		}
		if len(ids) != n {
			return fmt.Errorf("voxel window has %d blocks, want %d", len(ids), n)
		}
		*v = voxelView{center: center, radius: vox.Radius, ids: ids}
		return nil
	case protocol.EncodingDelta:
		if v.ids == nil || v.center != center || v.radius != vox.Radius {
			return fmt.Errorf("delta without a matching base window")
		}
		for _, op := range vox.Ops {
			if i, ok := encoding.Index(op.D[0], op.D[1], op.D[2], v.radius); ok {
				v.ids[i] = op.B
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown voxel encoding %q", vox.Encoding)
	}
}
