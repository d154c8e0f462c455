package ws

// BroadcastToClients sends a packet to the connections with the given ids.
// Ids that are no longer connected are skipped silently. Receivers whose send
// channel is blocked are disconnected after the fan-out completes, so one
// slow conn can never stall delivery to the rest.
func (hub *ConnHub) BroadcastToClients(p *OutPacket, ids ...string) {
	var slow []Conn
	hub.mu.RLock()
	for _, id := range ids {
		c, ok := hub.conns[id]
		if !ok {
			continue
		}
		select {
		case c.pass() <- p:
		default:
			slow = append(slow, c)
		}
	}
	hub.mu.RUnlock()

	// disconnect takes the write lock, so it must happen after the fan-out
	// released the read lock
	for _, c := range slow {
		hub.disconnect(c)
	}
}
