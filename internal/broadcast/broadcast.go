// Package broadcast carries best-effort change signals between sessions:
// server replicas, the override layer and browser tabs listening on the
// event stream.  Delivery is lossy by design of the callers, who always
// reload state on receipt instead of trusting the payload.
package broadcast

import (
	"context"
	"encoding/json"
)

// Signal kinds.
const (
	KindSync       = "sync"        // overrides changed, reload them
	KindLotUpdated = "lot.updated" // a canonical lot was saved
	KindReload     = "reload"      // the canonical dataset changed outside the API
)

// Signal is the message exchanged on the channel.  A sync signal carries
// no payload.
type Signal struct {
	Kind   string `json:"kind"`
	LotID  string `json:"lotId,omitempty"`
	Origin string `json:"origin,omitempty"`
}

// Sync returns the zero-payload override signal.
func Sync() Signal { return Signal{Kind: KindSync} }

// Broadcaster publishes signals to every current subscriber.
type Broadcaster interface {
	Publish(ctx context.Context, s Signal) error
	// Subscribe returns a channel that receives signals until ctx is
	// cancelled, after which the channel is closed.
	Subscribe(ctx context.Context) (<-chan Signal, error)
}

func encode(s Signal) ([]byte, error) { return json.Marshal(s) }

func decode(b []byte) (Signal, error) {
	var s Signal
	err := json.Unmarshal(b, &s)
	return s, err
}
