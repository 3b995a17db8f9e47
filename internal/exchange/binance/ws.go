package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a control frame to the peer.
	writeWait = 10 * time.Second

	// readWait bounds the silence tolerated on the stream. Binance pings
	// roughly every 3 minutes; the deadline is refreshed on every frame.
	readWait = 4 * time.Minute

	handshakeTimeout = 15 * time.Second
)

// StreamDialer opens combined-stream market data sessions.
type StreamDialer struct {
	baseURL string
}

// NewStreamDialer creates a dialer for the given WebSocket root, e.g.
// "wss://fstream.binance.com".
func NewStreamDialer(baseURL string) *StreamDialer {
	return &StreamDialer{baseURL: baseURL}
}

// Dial opens one combined-stream connection carrying all the given streams
// (e.g. "btcusdt@aggTrade"). The caller owns the session: it reads until an
// error and decides whether to dial again. Reconnection policy lives in the
// feed supervisor, which must resynchronize the book on every new session.
func (d *StreamDialer) Dial(ctx context.Context, streams []string) (*StreamConn, error) {
	if len(streams) == 0 {
		return nil, fmt.Errorf("binance/ws: no streams requested")
	}

	wsURL := d.baseURL + "/stream?streams=" + strings.Join(streams, "/")

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("binance/ws: connect: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.PongMessage, []byte(appData))
	})

	return &StreamConn{conn: conn}, nil
}

// StreamConn is one live combined-stream session.
type StreamConn struct {
	conn *websocket.Conn
}

// Read blocks for the next raw frame. Any error ends the session; the caller
// must Close and re-Dial.
func (s *StreamConn) Read() ([]byte, error) {
	s.conn.SetReadDeadline(time.Now().Add(readWait))
	_, message, err := s.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("binance/ws: read: %w", err)
	}
	return message, nil
}

// Close sends a close frame and tears the connection down.
func (s *StreamConn) Close() error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	return s.conn.Close()
}

// StreamNames builds the combined stream list for one symbol: aggregate
// trades, incremental depth, and mark price (funding).
func StreamNames(symbol string) []string {
	s := strings.ToLower(symbol)
	return []string{
		s + "@aggTrade",
		s + "@depth@100ms",
		s + "@markPrice",
	}
}
