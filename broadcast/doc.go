// Package broadcast provides the cross-tab channel used to keep several
// session stores that share one cookie profile consistent.
//
// A [Channel] has BroadcastChannel semantics: a message posted on one endpoint
// is delivered to every other open endpoint with the same name, never back to
// the poster, and in post order for each receiver.
//
// # Transports
//
//   - [Hub]: in-process fan-out; one Hub per browser profile.
//   - [RedisChannel]: Redis Pub/Sub, for stores living in different processes.
//   - [NATSChannel]: core NATS subjects, same envelope as Redis.
//
// # What this package must NOT do
//
//   - Interpret message payloads. Handlers decide what "signOut" means.
//   - Persist messages. A store that is not subscribed when a message is
//     posted never sees it.
package broadcast
