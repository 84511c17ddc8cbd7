package console

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Observer is one operator's WebSocket session. It receives every published
// event and may submit messages for broadcast.
type Observer struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	console *Console
	addr    string
	limiter *rateLimiter
	log     log.Logger
}

func newObserver(conn *websocket.Conn, c *Console, addr string) *Observer {
	id := uuid.New().String()
	conn.SetReadLimit(c.maxMessageSize)
	return &Observer{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, 256),
		hub:     c.hub,
		console: c,
		addr:    addr,
		limiter: newRateLimiter(c.rateLimit),
		log:     log.With(c.log, "observer", id),
	}
}

func (o *Observer) setupReadConnection() {
	if err := o.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		level.Debug(o.log).Log("event", "set read deadline", "err", err)
	}
	o.conn.SetPongHandler(func(string) error {
		return o.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// logReadError classifies why the read loop ended.
func (o *Observer) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		level.Warn(o.log).Log("event", "command too large", "limit", o.console.maxMessageSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		level.Info(o.log).Log("event", "observer left", "addr", o.addr)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		level.Info(o.log).Log("event", "observer connection closed", "addr", o.addr)
	default:
		level.Warn(o.log).Log("event", "read failed", "addr", o.addr, "err", err)
	}
}

func (o *Observer) processCommand(raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		level.Info(o.log).Log("event", "invalid command", "err", err)
		return
	}
	text, ok := singleLine(cmd.Content)
	if !ok {
		level.Info(o.log).Log("event", "rejected command", "reason", "not a single line")
		return
	}
	if !o.limiter.allow() {
		level.Info(o.log).Log("event", "rate limited", "burst", o.console.rateLimit.Burst)
		return
	}
	o.console.Submit(text)
}

func (o *Observer) readPump() {
	defer func() {
		select {
		case o.hub.unregister <- o:
		case <-o.hub.ctx.Done():
		}
		if err := o.conn.Close(); err != nil && !isExpectedCloseError(err) {
			level.Debug(o.log).Log("event", "close failed", "err", err)
		}
	}()

	o.setupReadConnection()

	for {
		_, raw, err := o.conn.ReadMessage()
		if err != nil {
			o.logReadError(err)
			return
		}
		o.processCommand(raw)
	}
}

func (o *Observer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := o.conn.Close(); err != nil && !isExpectedCloseError(err) {
			level.Debug(o.log).Log("event", "close failed", "err", err)
		}
	}()

	for {
		select {
		case payload, ok := <-o.send:
			if !o.writeEvents(payload, ok) {
				return
			}
		case <-ticker.C:
			if !o.ping() {
				return
			}
		case <-o.hub.ctx.Done():
			return
		}
	}
}

// writeEvents writes payload and anything already queued behind it in one
// frame, newline separated. It returns false when the pump should stop.
func (o *Observer) writeEvents(payload []byte, ok bool) bool {
	if err := o.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if !ok {
		_ = o.conn.WriteMessage(websocket.CloseMessage, []byte{})
		return false
	}

	w, err := o.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		level.Debug(o.log).Log("event", "next writer", "err", err)
		return false
	}
	if _, err := w.Write(payload); err != nil {
		return false
	}

	n := len(o.send)
	for i := 0; i < n; i++ {
		next, ok := <-o.send
		if !ok {
			break
		}
		if _, err := w.Write([]byte{'\n'}); err != nil {
			return false
		}
		if _, err := w.Write(next); err != nil {
			return false
		}
	}

	if err := w.Close(); err != nil {
		level.Debug(o.log).Log("event", "flush failed", "err", err)
		return false
	}
	return true
}

func (o *Observer) ping() bool {
	if err := o.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if err := o.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		level.Debug(o.log).Log("event", "ping failed", "err", err)
		return false
	}
	return true
}
