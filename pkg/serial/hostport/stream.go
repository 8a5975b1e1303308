package hostport

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/golang/glog"
	bugst "go.bug.st/serial"
	"golang.org/x/net/websocket"
)

// SerialConfig selects an OS serial device.
type SerialConfig struct {
	Device string
	Baud   int
}

// OpenSerial opens an OS serial device in 8N1 mode.
func OpenSerial(cfg SerialConfig) (bugst.Port, error) {
	mode := &bugst.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	port, err := bugst.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}
	return port, nil
}

// ListSerial lists available serial devices.
func ListSerial() ([]string, error) {
	return bugst.GetPortsList()
}

// WebsocketStream carries the byte stream in binary websocket messages.
type WebsocketStream struct {
	conn *websocket.Conn

	lock    sync.Mutex
	pending []byte
}

// NewWebsocketStream wraps conn.
func NewWebsocketStream(conn *websocket.Conn) *WebsocketStream {
	return &WebsocketStream{conn: conn}
}

// DialWebsocket connects to a websocket endpoint.
func DialWebsocket(url string) (*WebsocketStream, error) {
	conn, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		return nil, err
	}
	return NewWebsocketStream(conn), nil
}

// Read implements io.Reader. One message may span several reads.
func (s *WebsocketStream) Read(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for len(s.pending) == 0 {
		var msg []byte
		if err := websocket.Message.Receive(s.conn, &msg); err != nil {
			return 0, err
		}
		s.pending = msg
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Write implements io.Writer, one message per call.
func (s *WebsocketStream) Write(p []byte) (int, error) {
	if err := websocket.Message.Send(s.conn, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close implements io.Closer.
func (s *WebsocketStream) Close() error {
	return s.conn.Close()
}

// WebsocketHandler serves the Port to websocket clients, one at a time.
func (p *Port) WebsocketHandler() http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		remote := conn.Request().RemoteAddr
		glog.Infof("host %s connected", remote)
		err := p.Serve(conn.Request().Context(), NewWebsocketStream(conn))
		if err != nil {
			glog.Warningf("host %s: %v", remote, err)
			return
		}
		glog.Infof("host %s disconnected", remote)
	})
}
