package chathub

import "peerline/backend/internal/models"

// Connection is one live client session. The bus only ever pushes events to
// it; reading frames is the transport's job.
type Connection interface {
	// ID is unique per connection, not per participant.
	ID() string
	// ParticipantID returns the authenticated identity behind the connection.
	ParticipantID() string
	// Send queues evt without blocking. An error means the connection can
	// no longer keep up and will be dropped from its rooms.
	Send(evt models.Event) error
	// Close terminates the connection. It must be safe to call twice.
	Close()
}
