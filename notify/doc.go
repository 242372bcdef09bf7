// Package notify keeps the live notification list of the logged in
// principal. A Channel combines a bulk fetch (repeated on every identity
// change) with one push subscription, and funnels both into a Feed whose
// single reducer goroutine merges by id. Subscribers for STOMP over
// WebSocket and Redis pub/sub live in the subpackages.
package notify
