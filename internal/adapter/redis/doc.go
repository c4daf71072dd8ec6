// Package redis fans relay events out across instances through Redis pub/sub.
//
// Every instance publishes encoded events on "missioncontrol:<group>" and pattern
// subscribes to all robot groups, handing received frames to its local router. The
// client carries a metrics hook and a circuit breaker hook; when the breaker is open or
// a publish fails the bridge delivers locally so a single instance keeps working.
package redis
