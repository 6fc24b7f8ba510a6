package collector

import (
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	logindInterface         = "org.freedesktop.login1.Manager"
	prepareForShutdownName  = logindInterface + ".PrepareForShutdown"
	prepareForShutdownEvent = "PrepareForShutdown"
)

// ShutdownMonitor listens for systemd-logind PrepareForShutdown signals so a
// host shutdown can be handled like an operator interrupt.
type ShutdownMonitor struct {
	conn     *dbus.Conn
	done     chan struct{}
	shutdown chan struct{}
	once     sync.Once
	log      *slog.Logger
}

// NewShutdownMonitor creates a shutdown monitor connected to the system bus.
func NewShutdownMonitor(logger *slog.Logger) (*ShutdownMonitor, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}

	err = conn.AddMatchSignal(
		dbus.WithMatchInterface(logindInterface),
		dbus.WithMatchMember(prepareForShutdownEvent),
	)
	if err != nil {
		return nil, err
	}

	m := &ShutdownMonitor{
		conn:     conn,
		done:     make(chan struct{}),
		shutdown: make(chan struct{}, 1),
		log:      logger,
	}
	go m.listen()
	return m, nil
}

// Shutdown returns a channel that receives a value when the host starts shutting down.
func (m *ShutdownMonitor) Shutdown() <-chan struct{} {
	return m.shutdown
}

// Close stops the monitor. It is safe to call more than once.
func (m *ShutdownMonitor) Close() {
	m.once.Do(func() { close(m.done) })
}

func (m *ShutdownMonitor) listen() {
	ch := make(chan *dbus.Signal, 16)
	m.conn.Signal(ch)
	defer m.conn.RemoveSignal(ch)

	for {
		select {
		case sig := <-ch:
			if !isShutdownSignal(sig) {
				continue
			}
			m.log.Info("system preparing for shutdown")
			select {
			case m.shutdown <- struct{}{}:
			default:
			}
		case <-m.done:
			return
		}
	}
}

// isShutdownSignal reports whether sig is PrepareForShutdown(true).
func isShutdownSignal(sig *dbus.Signal) bool {
	if sig == nil || sig.Name != prepareForShutdownName || len(sig.Body) < 1 {
		return false
	}
	active, ok := sig.Body[0].(bool)
	return ok && active
}
