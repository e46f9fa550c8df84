// Package chat coordinates live sessions, room membership and message
// fan-out.
//
// A Session is one authenticated connection. The Engine runs join and send
// against the durable stores and publishes the results through the Registry,
// the in-memory index of which sessions listen to which rooms. Per-room
// ordering holds because a room's sends are sequenced across
// persist → snapshot → enqueue, and each session drains a single FIFO queue.
package chat
