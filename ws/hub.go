package ws

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type HubState int

const (
	StateClosed HubState = iota
	StateClosing
	StateRunning
)

type ConnHub struct {
	conns map[string]Conn

	connectChan chan Conn

	disconnectChan chan Conn
	// in is used to send incoming packets to the hub goroutine
	in chan *InPacket
	// exit is used to signal that the hub should stop accepting new connections and exit
	exit chan struct{}

	logger *slog.Logger

	onConnect func(HubActions, Conn)

	onDisconnect func(HubActions, Conn)

	baseCtx context.Context

	wg sync.WaitGroup

	onPacket func(HubActions, *InPacket)

	connFactory ConnFactory

	authenticator Authenticator

	closeTimeout time.Duration
	// ready indicates whether the hub is ready to accept new connections.
	ready atomic.Bool
	// state is the lifecycle state of the hub. The hub is considered closed
	// when the main goroutine is stopped.
	state HubState
	mu    sync.RWMutex
}

func New(cf ConnFactory, a Authenticator, opts ...HubOption) *ConnHub {
	hub := &ConnHub{
		conns:          make(map[string]Conn),
		connectChan:    make(chan Conn),
		disconnectChan: make(chan Conn),
		in:             make(chan *InPacket),
		exit:           make(chan struct{}),
		logger: slog.New(slog.NewTextHandler(os.Stdout,
			&slog.HandlerOptions{Level: slog.LevelInfo})),
		baseCtx:       context.Background(),
		closeTimeout:  time.Second * 10,
		authenticator: a,
		connFactory:   cf,
		state:         StateClosed,
	}

	for _, opt := range opts {
		opt(hub)
	}

	return hub
}

type HubOption func(*ConnHub)

func WithLogger(logger *slog.Logger) HubOption {
	return func(h *ConnHub) {
		h.logger = logger
	}
}

func WithBaseContext(ctx context.Context) HubOption {
	return func(h *ConnHub) {
		h.baseCtx = ctx
	}
}

func (hub *ConnHub) Start() {
	hub.wg.Add(1)
	go func() {
		defer func() {
			hub.wg.Done()
			hub.logger.Info("hub stopped")
		}()
		hub.start()
	}()
	hub.logger.Info("hub started")
}

// start runs the hub main loop. Registry mutations and fan-out emissions all
// happen on this single goroutine, so packet dispatch order equals receipt
// order for every room.
func (hub *ConnHub) start() {
	hub.mu.Lock()
	hub.state = StateRunning
	hub.mu.Unlock()
	hub.ready.Store(true)
	defer func() {
		hub.ready.Store(false)
		hub.mu.Lock()
		hub.state = StateClosed
		hub.mu.Unlock()
	}()
	for {
		select {
		case <-hub.exit:
			return
		case newC := <-hub.connectChan:
			hub.connect(newC)
		case c := <-hub.disconnectChan:
			hub.disconnect(c)
		case packetIn := <-hub.in:
			packetIn.context = hub.baseCtx
			if hub.onPacket != nil {
				hub.onPacket(hub, packetIn)
			}
		}
	}
}

func (hub *ConnHub) OnPacket(f func(HubActions, *InPacket)) {
	hub.onPacket = f
}

func (hub *ConnHub) OnConnect(f func(HubActions, Conn)) {
	hub.onConnect = f
}

func (hub *ConnHub) OnDisconnect(f func(HubActions, Conn)) {
	hub.onDisconnect = f
}

// Close start closing the hub.
// It does not wait for the clean up to complete.
// The closing sequence is as following:
//  1. Deregister connection from the hub then signal connection handler goroutine to close the connection then exit.
//  2. Signal the hub main goroutine to exit.
func (hub *ConnHub) Close() {
	hub.logger.Info("closing connections...")
	if hub.state != StateRunning {
		return
	}
	hub.mu.Lock()
	hub.state = StateClosing
	hub.mu.Unlock()
	for _, conn := range hub.conns {
		hub.disconnect(conn)
	}
	hub.logger.Info("exiting hub...")
	close(hub.exit)
	timer := time.NewTimer(hub.closeTimeout)
	defer timer.Stop()
	done := make(chan struct{})
	go func() {
		hub.wg.Wait()
		close(done)
	}()

	select {
	case <-timer.C:
		hub.logger.Info("hub closed with timeout")
	case <-done:
		hub.logger.Info("hub closed gracefully")
	}
}

func (hub *ConnHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := hub.authenticator.Authenticate(w, r)
	if !ok {
		hub.logger.Info("authenticator rejected connection")
		return
	}
	id := uuid.New().String()
	conn, ok := hub.connFactory.NewConn(w, r, hub, id, identity)
	if !ok {
		return
	}
	hub.Connect(conn)
}

func (hub *ConnHub) startConn(conn Conn) {
	hub.wg.Add(1)
	go func() {
		defer hub.wg.Done()
		conn.readLoop()
	}()

	hub.wg.Add(1)
	go func() {
		defer hub.wg.Done()
		conn.writeLoop()
	}()
}

func (hub *ConnHub) Connect(c Conn) {
	hub.connectChan <- c
}

func (hub *ConnHub) Disconnect(c Conn) {
	hub.disconnectChan <- c
}

func (hub *ConnHub) pass(packet *InPacket) {
	hub.in <- packet
}

func (hub *ConnHub) connect(c Conn) {
	hub.startConn(c)
	hub.mu.Lock()
	hub.conns[c.ID()] = c
	hub.mu.Unlock()
	hub.logger.Info("new connection",
		slog.String("id", c.ID()), slog.String("user", c.Identity().UserID))
	if hub.onConnect != nil {
		hub.onConnect(hub, c)
	}
}

func (hub *ConnHub) disconnect(c Conn) {
	hub.mu.Lock()
	_, ok := hub.conns[c.ID()]
	if ok {
		delete(hub.conns, c.ID())
	}
	hub.mu.Unlock()
	if !ok {
		return
	}
	c.close()
	if hub.onDisconnect != nil {
		hub.onDisconnect(hub, c)
	}
}
