// Package hub implements a concurrent TCP connection hub.
//
// A Hub listens on one port and tracks every accepted client. A single event
// loop goroutine multiplexes readiness for the listener and all clients,
// accepts new sockets and hands each inbound chunk to the registered message
// handler. A sweeper goroutine evicts clients that stay idle past the client
// timeout. Any goroutine may Broadcast, SendTo or query the hub.
//
// The hub imposes no framing: handlers see whatever chunk one read returned.
//
//	h := hub.New(hub.WithLogger(logger.NewLogger("app")))
//	_ = h.OnMessage(func(id uint64, data []byte) { h.SendTo(id, data) })
//	if err := h.Start(9000); err != nil {
//		return err
//	}
//	defer h.Stop()
package hub
