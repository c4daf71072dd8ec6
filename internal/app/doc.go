// Package app provides the application service layer.
//
// Orchestrates use cases: robot moves and mission patches coming from the relay, and the
// CRUD operations behind the REST API. Sits between transports and the entity store.
// Depends on domain interfaces, not concrete implementations.
package app
