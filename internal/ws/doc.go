// Package ws provides WebSocket connection handling and message routing
// for the document relay.
//
// The package implements:
//   - Client and Hub: per-connection send queues indexed by connection id
//   - Handler: upgrades requests and runs the read and write pumps
//   - Router: classifies frames and applies register, create_session, page,
//     page_request and diagnostic messages
//   - Broadcaster: fans artifacts and positions out to a session's guests
//   - Heartbeat: periodic ping probes that close dead connections
//   - Service: wires the pieces over a registry and session manager
//
// Roles and session bindings are kept in the registry, never on the Client.
// Sessions outlive their host's connection and are only removed by the
// session reaper.
package ws
