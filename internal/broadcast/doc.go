// Package broadcast implements a TCP broadcast hub: a listening socket admits
// clients into a shared registry, and a single dispatcher writes every
// operator-submitted message, newline terminated, to every live connection.
//
// Dead peers are discovered by write failures. When no message arrives within
// the poll interval the dispatcher writes an empty line (a heartbeat) so that
// closed sockets surface even when the operator is idle. Connect, disconnect
// and error events are relayed to the host's Listener asynchronously.
package broadcast
