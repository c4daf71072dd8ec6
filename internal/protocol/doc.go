// Package protocol implements the JSON wire format spoken on the robot websocket.
//
// Inbound frames decode into an Intent, a closed set of DirectionIntent, MissionIntent
// and UnknownIntent. Outbound frames are built from an Event and encoded once per
// broadcast, then shared by every recipient.
package protocol
