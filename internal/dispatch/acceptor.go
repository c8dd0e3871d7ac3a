package dispatch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/fd1az/venue-gateway/internal/logger"
	"github.com/fd1az/venue-gateway/internal/subscriber"
)

const (
	clientOutboundBuffer = 256
	clientInboundBuffer  = 256
	clientWriteTimeout   = 10 * time.Second
)

// Acceptor upgrades incoming strategy-client sockets to WebSocket and
// hands each one to the dispatch hub over a Connection channel. Every
// accepted socket gets a reader and a writer pump goroutine that
// bidirectionally forward between the socket and its channel pair.
type Acceptor struct {
	log logger.LoggerInterface
	srv *http.Server
}

// NewAcceptor builds an HTTP server whose single route upgrades every
// request to a WebSocket. Call Serve on a net.Listener to start accepting.
func NewAcceptor(connections chan<- *Connection, log logger.LoggerInterface) *Acceptor {
	a := &Acceptor{log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("/", a.handleUpgrade(connections))
	a.srv = &http.Server{Handler: mux}
	return a
}

// Serve blocks accepting connections on ln until it is closed by Shutdown.
func (a *Acceptor) Serve(ln net.Listener) error {
	if err := a.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting new connections, waiting for in-flight upgrade
// requests to finish.
func (a *Acceptor) Shutdown(ctx context.Context) error {
	return a.srv.Shutdown(ctx)
}

func (a *Acceptor) handleUpgrade(connections chan<- *Connection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// Strategy clients are plain TCP/WS programs, not browsers;
			// they carry no Origin header to validate against.
			InsecureSkipVerify: true,
		})
		if err != nil {
			if a.log != nil {
				a.log.Warn(r.Context(), "websocket upgrade failed", "remote", r.RemoteAddr, "error", err.Error())
			}
			return
		}

		addr := subscriber.Addr(fmt.Sprintf("%s-%s", r.RemoteAddr, uuid.NewString()))
		outbound := make(chan []byte, clientOutboundBuffer)
		inbound := make(chan []byte, clientInboundBuffer)
		connections <- &Connection{Addr: addr, Outbound: outbound, Inbound: inbound}

		done := make(chan struct{})
		go a.pumpWriter(conn, addr, outbound, done)
		a.pumpReader(conn, addr, inbound, done)
	}
}

// pumpReader blocks the upgrade handler's goroutine reading frames off the
// socket until it closes or errors, forwarding text/binary frames onto
// inbound. A full inbound buffer makes the reader wait for the hub to
// drain it; frames are never dropped. Closing inbound and done signals
// disconnect to both the hub and the writer pump.
func (a *Acceptor) pumpReader(conn *websocket.Conn, addr subscriber.Addr, inbound chan []byte, done chan struct{}) {
	defer close(inbound)
	defer close(done)

	ctx := context.Background()
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if msgType != websocket.MessageText && msgType != websocket.MessageBinary {
			continue
		}
		inbound <- data
	}
}

func (a *Acceptor) pumpWriter(conn *websocket.Conn, addr subscriber.Addr, outbound <-chan []byte, done <-chan struct{}) {
	ctx := context.Background()
	for {
		select {
		case <-done:
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case payload, ok := <-outbound:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, clientWriteTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				if a.log != nil {
					a.log.Warn(ctx, "client write failed", "addr", string(addr), "error", err.Error())
				}
				conn.CloseNow()
				return
			}
		}
	}
}
