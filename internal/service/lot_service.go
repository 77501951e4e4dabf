package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/lot-map/internal/broadcast"
	"github.com/iliyamo/lot-map/internal/model"
	"github.com/iliyamo/lot-map/internal/normalize"
	"github.com/iliyamo/lot-map/internal/queue"
	"github.com/iliyamo/lot-map/internal/repository"
)

// ISOLayout renders updatedAt/savedAt the way browsers print Date values.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// ListResult is the payload of a list call.
type ListResult struct {
	Items     []model.Lot `json:"items"`
	UpdatedAt string      `json:"updatedAt"`
}

// UpdateResult is the payload of a successful update.
type UpdateResult struct {
	Item    model.Lot `json:"item"`
	SavedAt string    `json:"savedAt"`
}

// ChangeHook runs after the canonical dataset changed.
type ChangeHook func(ctx context.Context)

// LotService wraps the configured LotStore and fans successful writes out
// to the broadcaster, the event publisher and the change hooks.  Every
// side effect after a write is best-effort.
type LotService struct {
	store  repository.LotStore
	bus    broadcast.Broadcaster
	events EventPublisher
	hooks  []ChangeHook
	log    *zap.Logger
	now    func() time.Time
}

// NewLotService constructs a service.  bus and events may be nil.
func NewLotService(store repository.LotStore, bus broadcast.Broadcaster, events EventPublisher, log *zap.Logger) *LotService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LotService{store: store, bus: bus, events: events, log: log, now: time.Now}
}

// OnChange registers a hook that runs after every successful update and
// every external change.
func (s *LotService) OnChange(h ChangeHook) {
	s.hooks = append(s.hooks, h)
}

// List returns every lot with the time the list was produced.
func (s *LotService) List(ctx context.Context) (ListResult, error) {
	lots, err := s.store.List(ctx)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: lots, UpdatedAt: s.stamp()}, nil
}

// Get returns one lot by id, or repository.ErrLotNotFound.
func (s *LotService) Get(ctx context.Context, id string) (*model.Lot, error) {
	lots, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	key := normalize.NormalizeID(id)
	for i := range lots {
		if lots[i].ID == key {
			return &lots[i], nil
		}
	}
	return nil, repository.ErrLotNotFound
}

// Update patches one lot and announces the change.
func (s *LotService) Update(ctx context.Context, id string, patch model.LotPatch) (UpdateResult, error) {
	lot, err := s.store.UpdateByID(ctx, id, patch)
	if err != nil {
		return UpdateResult{}, err
	}
	res := UpdateResult{Item: *lot, SavedAt: s.stamp()}

	s.log.Info("lot updated",
		zap.String("lot_id", lot.ID),
		zap.String("condicion", string(lot.Condicion)),
		zap.Strings("fields", patchFields(patch)),
	)
	s.publish(ctx, broadcast.Signal{Kind: broadcast.KindLotUpdated, LotID: lot.ID})
	if s.events != nil {
		ev := queue.LotUpdatedEvent{
			LotID:              lot.ID,
			Mz:                 lot.Mz,
			Lote:               lot.Lote,
			Condicion:          string(lot.Condicion),
			Price:              lot.Price,
			Asesor:             lot.Asesor,
			Cliente:            lot.Cliente,
			Fields:             patchFields(patch),
			UltimaModificacion: lot.UltimaModificacion,
			SavedAt:            res.SavedAt,
		}
		if err := s.events.PublishLotUpdated(ctx, ev); err != nil {
			s.log.Warn("lot event not published", zap.String("lot_id", lot.ID), zap.Error(err))
		}
	}
	s.runHooks(ctx)
	return res, nil
}

// NotifyExternalChange is called when the canonical dataset changed
// outside the API, e.g. the CSV file was edited by hand.
func (s *LotService) NotifyExternalChange(ctx context.Context) {
	s.log.Info("canonical dataset changed externally")
	s.runHooks(ctx)
	s.publish(ctx, broadcast.Signal{Kind: broadcast.KindReload})
}

func (s *LotService) publish(ctx context.Context, sig broadcast.Signal) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, sig); err != nil {
		s.log.Warn("broadcast failed", zap.String("kind", sig.Kind), zap.Error(err))
	}
}

func (s *LotService) runHooks(ctx context.Context) {
	for _, h := range s.hooks {
		h(ctx)
	}
}

func (s *LotService) stamp() string {
	return s.now().UTC().Format(ISOLayout)
}

func patchFields(p model.LotPatch) []string {
	var out []string
	if p.PriceSet {
		out = append(out, "price")
	}
	if p.Condicion != nil {
		out = append(out, "condicion")
	}
	if p.Asesor != nil {
		out = append(out, "asesor")
	}
	if p.Cliente != nil {
		out = append(out, "cliente")
	}
	if p.Comentario != nil {
		out = append(out, "comentario")
	}
	return out
}
