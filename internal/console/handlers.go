package console

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-kit/kit/log/level"
)

// WebSocketHandler upgrades GET requests to an observer session.
func (c *Console) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		level.Info(c.log).Log("event", "upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	o := newObserver(conn, c, r.RemoteAddr)
	select {
	case c.hub.register <- o:
	case <-c.hub.ctx.Done():
		_ = conn.Close()
	}
}

// HealthHandler reports that the service is up and how many clients are
// connected.
func (c *Console) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "linecast is running: %d clients, %d observers\n", c.backend.Len(), c.hub.Count())
}

// SendHandler accepts a message to broadcast, either as the "message" form
// field or as the raw request body.
func (c *Console) SendHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed. Use POST.", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, c.maxMessageSize)

	var text string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form body.", http.StatusBadRequest)
			return
		}
		text = r.PostForm.Get("message")
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Message too large or unreadable.", http.StatusRequestEntityTooLarge)
			return
		}
		text = string(body)
	}

	text, ok := singleLine(text)
	if !ok {
		http.Error(w, "Message must be a single non-empty line.", http.StatusBadRequest)
		return
	}

	c.Submit(text)
	w.WriteHeader(http.StatusAccepted)
}

// PageHandler serves the operator page: a message box and a live event log.
func (c *Console) PageHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	if _, err := io.WriteString(w, consolePage); err != nil {
		level.Debug(c.log).Log("event", "page write failed", "err", err)
	}
}

const consolePage = `<!DOCTYPE html>
<html>
<head>
    <title>linecast console</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #events {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
        }
        input[type="text"] { width: 400px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>linecast console</h1>
    <div id="status" class="status disconnected">Disconnected</div>
    <div>
        <input type="text" id="url" placeholder="http://example.com">
        <button onclick="send()">Send</button>
    </div>
    <div id="events"></div>
    <script>
        const events = document.getElementById('events');
        const status = document.getElementById('status');
        const input = document.getElementById('url');
        let ws = null;

        function show(line) {
            const el = document.createElement('div');
            el.textContent = line;
            events.appendChild(el);
            events.scrollTop = events.scrollHeight;
        }

        function connect() {
            const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(proto + location.host + '/ws');
            ws.onopen = () => { status.textContent = 'Connected'; status.className = 'status connected'; };
            ws.onclose = () => { status.textContent = 'Disconnected'; status.className = 'status disconnected'; setTimeout(connect, 2000); };
            ws.onmessage = (msg) => {
                msg.data.split('\n').forEach((raw) => {
                    const ev = JSON.parse(raw);
                    const who = ev.id ? ' #' + ev.id + ' ' + (ev.host || '') : '';
                    show(ev.time + ' ' + ev.type + who + (ev.message ? ' ' + ev.message : ''));
                });
            };
        }

        function send() {
            const text = input.value.trim();
            if (text && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({content: text}));
                input.value = '';
            }
        }

        input.addEventListener('keypress', (e) => { if (e.key === 'Enter') send(); });
        connect();
    </script>
</body>
</html>`
