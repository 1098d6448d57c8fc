package runtime

import (
	"io"
	"net/http"

	"github.com/gorilla/websocket"
)

// wsConn adapts a *websocket.Conn to io.ReadWriteCloser so serve() can
// drive a browser-facing signaling client through the exact same framing,
// dispatch, and secure-channel path a raw TCP socket gets (spec.md §4.9:
// "the wire format is transport-agnostic"). Every ACIP frame travels as
// one binary WebSocket message.
type wsConn struct {
	conn *websocket.Conn
	r    io.Reader
}

var wsUpgrader = websocket.Upgrader{
	// ACIP clients are native apps and browser pages on arbitrary origins,
	// not same-site browser tabs; origin checking buys nothing here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.r != nil {
			n, err := c.r.Read(p)
			if err == io.EOF {
				c.r = nil
				if n > 0 {
					return n, nil
				}
				continue
			}
			return n, err
		}
		msgType, r, err := c.conn.NextReader()
		if err != nil {
			return 0, err
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		c.r = r
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error { return c.conn.Close() }

// ListenAndServeWS upgrades every request on addr to a WebSocket and hands
// it to the same serve() loop ListenAndServeTCP uses, giving browser
// clients a path into the discovery server without a second dispatch
// table (spec.md §4.9).
func (s *ServerRuntime) ListenAndServeWS(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			s.deps.Log.DebugRuntime("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(&wsConn{conn: conn}, conn.RemoteAddr().String())
		}()
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-s.stopCh
		srv.Close()
	}()

	s.deps.Log.Info("acipd listening", "addr", addr, "transport", "websocket")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
