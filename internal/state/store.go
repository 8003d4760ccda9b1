package state

import (
	"encoding/json"
	"errors"
	"time"

	"Canada28Bot/internal/logger"
	"Canada28Bot/internal/model"
)

var log = logger.For("state")

// Store persists the engine snapshot as one durable key-value record.
// Load never fails on missing or corrupt data: it returns a fresh state instead.
type Store interface {
	Load() (*model.EngineState, error)
	Save(s *model.EngineState) error
	Clear() error
	Close() error
}

// errInvalid marks a snapshot that decoded but is structurally unusable.
var errInvalid = errors.New("snapshot has no strategies")

// encode stamps UpdatedAt and marshals the snapshot.
func encode(s *model.EngineState) ([]byte, error) {
	s.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	return json.MarshalIndent(s, "", "  ")
}

// decode parses a snapshot and repairs a half-set last-draw triplet.
func decode(data []byte) (*model.EngineState, error) {
	var s model.EngineState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Strategies == nil {
		return nil, errInvalid
	}
	for name, st := range s.Strategies {
		if st == nil {
			delete(s.Strategies, name)
		}
	}
	if s.LastPeriodIssue == "" || s.LastPeriodSum == nil || s.LastAwardTime == "" {
		s.ClearLastDraw()
	}
	return &s, nil
}

// decodeOrFresh falls back to a fresh state when a stored snapshot is unusable.
func decodeOrFresh(data []byte, where string) *model.EngineState {
	s, err := decode(data)
	if err != nil {
		log.Warnf("snapshot at %s is unusable, starting fresh: %v", where, err)
		return model.NewEngineState()
	}
	return s
}
