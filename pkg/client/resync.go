package client

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/statuspage/pkg/events"
	"github.com/agentstation/statuspage/pkg/status"
)

// Reader fetches the authoritative public status of an organization.
type Reader interface {
	PublicStatus(ctx context.Context, slug string) (*status.PublicStatus, error)
}

// Resyncer re-reads an organization's public status whenever the
// controller delivers an event, reconnects or switches organization. It
// follows the controller's organization and falls back to its own slug
// while the controller has none. Event payloads are never applied; bursts
// of events coalesce into one read.
type Resyncer struct {
	controller *Controller
	reader     Reader
	slug       string
	onSnapshot func(*status.PublicStatus)
	logger     *zerolog.Logger
	trigger    chan struct{}
}

// NewResyncer creates a Resyncer. Run starts it.
func NewResyncer(c *Controller, reader Reader, slug string, onSnapshot func(*status.PublicStatus)) *Resyncer {
	return &Resyncer{
		controller: c,
		reader:     reader,
		slug:       slug,
		onSnapshot: onSnapshot,
		logger:     c.logger,
		trigger:    make(chan struct{}, 1),
	}
}

// Trigger schedules a resync. It never blocks.
func (r *Resyncer) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run reads once, then again after every event and reconnect, until ctx
// is done. Failed reads are logged and retried on the next trigger.
func (r *Resyncer) Run(ctx context.Context) {
	unsubscribe := r.controller.Subscribe(Handlers{
		OnEvent: func(events.Message) { r.Trigger() },
	})
	defer unsubscribe()
	remove := r.controller.OnStateChange(func(s State) {
		if s == Connected {
			r.Trigger()
		}
	})
	defer remove()
	removeOrg := r.controller.OnOrganizationChange(func(string) { r.Trigger() })
	defer removeOrg()

	r.Trigger()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.trigger:
			r.resync(ctx)
		}
	}
}

// Organization returns the slug the next read targets.
func (r *Resyncer) Organization() string {
	if slug := r.controller.Organization(); slug != "" {
		return slug
	}
	return r.slug
}

func (r *Resyncer) resync(ctx context.Context) {
	slug := r.Organization()
	ps, err := r.reader.PublicStatus(ctx, slug)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn().Err(err).Str("org", slug).Msg("Resync failed")
		}
		return
	}
	if r.onSnapshot != nil {
		r.onSnapshot(ps)
	}
}
