// Package natsx adapts NATS to the storefront's side channels: JetStream
// key-value buckets back the cart cache and monitor snapshots, core
// publish carries notifications and catalog cache invalidations.
package natsx

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Connect dials NATS with reconnect handling that logs through zerolog.
func Connect(url, name string, logger zerolog.Logger) (*nats.Conn, error) {
	log := logger.With().Str("component", "nats").Logger()
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info().Msg("nats connection closed")
		}),
	)
}

// Publisher is the subset of *nats.Conn used for fire-and-forget messages.
type Publisher interface {
	Publish(subject string, data []byte) error
}
