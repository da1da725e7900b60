// Package events implements a small topic-based publish/subscribe bus.
//
// Components that mutate shared state (the token manager, the job queue,
// the action log) publish change notifications on well-known topics, and
// consumers subscribe only to the topics they depend on. This replaces
// ad hoc cross-component broadcasts with an explicit contract: a
// subscriber declares its topic, receives events on its own channel, and
// unsubscribes when done.
//
// Publishing never blocks. A subscriber that falls behind loses events
// rather than stalling the publisher; notifications carry current state,
// so consumers can always re-read the source of truth.
package events
