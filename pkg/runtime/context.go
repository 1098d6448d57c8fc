package runtime

import "github.com/ethan/acip-discovery/pkg/wire"

// connContext implements dispatch.Context for exactly one connection,
// bridging pkg/dispatch's handler-facing interface to this connection's
// Send/Enqueue and the shared Registry (spec.md §4.3, §4.9).
type connContext struct {
	conn *Connection
	reg  *Registry
}

func newConnContext(conn *Connection, reg *Registry) *connContext {
	return &connContext{conn: conn, reg: reg}
}

func (c *connContext) RemoteAddr() string { return c.conn.RemoteAddr() }

func (c *connContext) Send(packetType uint16, payload []byte) error {
	return c.conn.Send(packetType, payload)
}

func (c *connContext) Broadcast(sessionID wire.ID, exclude wire.ID, packetType uint16, payload []byte) {
	c.reg.Broadcast(sessionID, exclude, packetType, payload)
}

func (c *connContext) SendToParticipant(sessionID wire.ID, participantID wire.ID, packetType uint16, payload []byte) error {
	return c.reg.SendToParticipant(sessionID, participantID, packetType, payload)
}
