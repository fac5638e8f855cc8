package chathub

import (
	"context"
	"log/slog"

	"peerline/backend/internal/analysis"
	"peerline/backend/internal/storage"
)

// Options wires a Hub. Publisher and Classifier are optional.
type Options struct {
	Store      storage.Storage
	Publisher  storage.EventPublisher
	Classifier analysis.Classifier
	Logger     *slog.Logger
}

// Hub holds the messaging services of one process. It starts with no
// subscriptions and nothing is shared between two Hubs in the same process.
type Hub struct {
	Directory *Directory
	Messages  *MessageLog
	Bus       *Bus
	Lifecycle *Lifecycle
	Gateway   *Gateway

	log *slog.Logger
}

func NewHub(opts Options) *Hub {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "chathub")

	// join, send and end of one room all serialize on this guard
	rooms := newKeyedMutex()

	dir := NewDirectory(opts.Store, opts.Publisher, log)
	msgs := NewMessageLog(opts.Store, rooms, opts.Classifier)
	bus := NewBus(dir, msgs, rooms, log)
	lifecycle := NewLifecycle(dir, msgs, bus, rooms, log)

	return &Hub{
		Directory: dir,
		Messages:  msgs,
		Bus:       bus,
		Lifecycle: lifecycle,
		Gateway: &Gateway{
			store:     opts.Store,
			dir:       dir,
			msgs:      msgs,
			bus:       bus,
			lifecycle: lifecycle,
			log:       log,
		},
		log: log,
	}
}

// Shutdown rejects new joins, tells every connection the server is going
// away and closes them.
func (h *Hub) Shutdown(ctx context.Context) error {
	done := make(chan int, 1)
	go func() { done <- h.Bus.Close() }()
	select {
	case n := <-done:
		h.log.Info("hub stopped", "connections_closed", n)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
