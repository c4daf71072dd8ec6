// Package domain defines the core domain types and interfaces.
//
// Robots, missions and relay groups live here together with the store contracts the
// adapters implement. Interfaces are kept on the consumer side wherever a package needs
// only a narrow slice of them.
package domain
