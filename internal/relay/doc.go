// Package relay owns group membership and fan-out for the robot websocket.
//
// Registry is an actor: one goroutine owns the group map and processes join, leave and
// snapshot commands in arrival order. Router encodes an event once, takes a membership
// snapshot and hands the frame to every subscriber without blocking. Client is the
// websocket-backed Subscriber with a bounded outbox drained by its own writer goroutine.
package relay
