package main

import (
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/Tyrowin/linecast/internal/broadcast"
)

// hostListener logs every lifecycle event and passes it on to the console
// when one is running. also is set before the manager starts.
type hostListener struct {
	log  log.Logger
	also broadcast.Listener
}

func (h *hostListener) OnConnection(c *broadcast.Connection) {
	level.Info(h.log).Log("event", "client connected", "id", c.ID(), "host", c.HostName())
	if h.also != nil {
		h.also.OnConnection(c)
	}
}

func (h *hostListener) OnDisconnection(c *broadcast.Connection) {
	level.Info(h.log).Log("event", "client disconnected", "id", c.ID(), "host", c.HostName())
	if h.also != nil {
		h.also.OnDisconnection(c)
	}
}

func (h *hostListener) OnError(msg string) {
	level.Error(h.log).Log("event", "error", "msg", msg)
	if h.also != nil {
		h.also.OnError(msg)
	}
}
