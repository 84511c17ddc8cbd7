package console

import "net/http"

// Routes returns the console's ServeMux.
func (c *Console) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", c.PageHandler)
	mux.HandleFunc("/healthz", c.HealthHandler)
	mux.HandleFunc("/send", c.SendHandler)
	mux.HandleFunc("/ws", c.WebSocketHandler)
	if c.metrics != nil {
		mux.Handle("/metrics", c.metrics)
	}
	return mux
}
