// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into the local change log.
package queue

// LotUpdatedQueue is the durable queue carrying LotUpdatedEvent messages.
const LotUpdatedQueue = "lot.updated"

// LotUpdatedEvent is published after a lot was saved through the API.  It
// carries enough of the record for downstream consumers to log or notify
// without reading the canonical store.
type LotUpdatedEvent struct {
	LotID              string   `json:"lot_id"`
	Mz                 string   `json:"mz"`
	Lote               int      `json:"lote"`
	Condicion          string   `json:"condicion"`
	Price              *float64 `json:"price"`
	Asesor             string   `json:"asesor"`
	Cliente            string   `json:"cliente"`
	Fields             []string `json:"fields"` // columns touched by the update
	UltimaModificacion string   `json:"ultima_modificacion"`
	SavedAt            string   `json:"saved_at"`
}
