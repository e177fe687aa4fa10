package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/soilcn-simulator/model"
)

var (
	// ErrExists indicates a parameter set with the same name is already stored.
	ErrExists = errors.New("parameter set already exists")
	// ErrCropNotFound indicates a crop name has no parameter set.
	ErrCropNotFound = errors.New("crop not found")
	// ErrWasteNotFound indicates an organic waste type has no parameter set.
	ErrWasteNotFound = errors.New("organic waste type not found")
	// ErrFertiliserNotFound indicates a fertiliser type has no parameter set.
	ErrFertiliserNotFound = errors.New("fertiliser type not found")
	// ErrInvalidName is returned for empty names.
	ErrInvalidName = errors.New("parameter set name is required")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventCropAdded EventType = iota
	EventWasteAdded
	EventFertiliserAdded
)

func (t EventType) String() string {
	switch t {
	case EventCropAdded:
		return "crop"
	case EventWasteAdded:
		return "organic_waste"
	case EventFertiliserAdded:
		return "fertiliser"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is emitted to subscribers when a parameter set is registered.
type Event struct {
	Type EventType
	Name string
}

// KnowledgeBase is an in-memory, thread-safe store of crop, organic waste and
// fertiliser parameter tables keyed by name.
type KnowledgeBase struct {
	mu sync.RWMutex

	crops       map[string]model.CropParameters
	wastes      map[string]model.OrganicWasteParameters
	fertilisers map[string]model.FertiliserParameters

	subs []func(Event)
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		crops:       make(map[string]model.CropParameters),
		wastes:      make(map[string]model.OrganicWasteParameters),
		fertilisers: make(map[string]model.FertiliserParameters),
	}
}

// AddCrop registers a crop. It returns an error if the name already exists.
func (kb *KnowledgeBase) AddCrop(c model.CropParameters) error {
	if c.Name == "" {
		return fmt.Errorf("crop: %w", ErrInvalidName)
	}
	kb.mu.Lock()
	if _, exists := kb.crops[c.Name]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("crop %q: %w", c.Name, ErrExists)
	}
	c.PlantInputs = append([]float64(nil), c.PlantInputs...)
	kb.crops[c.Name] = c
	subs := append([]func(Event){}, kb.subs...)
	kb.mu.Unlock()

	notify(subs, Event{Type: EventCropAdded, Name: c.Name})
	return nil
}

// AddWaste registers an organic waste type.
func (kb *KnowledgeBase) AddWaste(w model.OrganicWasteParameters) error {
	if w.Name == "" {
		return fmt.Errorf("organic waste: %w", ErrInvalidName)
	}
	kb.mu.Lock()
	if _, exists := kb.wastes[w.Name]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("organic waste %q: %w", w.Name, ErrExists)
	}
	kb.wastes[w.Name] = w
	subs := append([]func(Event){}, kb.subs...)
	kb.mu.Unlock()

	notify(subs, Event{Type: EventWasteAdded, Name: w.Name})
	return nil
}

// AddFertiliser registers a fertiliser type.
func (kb *KnowledgeBase) AddFertiliser(f model.FertiliserParameters) error {
	if f.Name == "" {
		return fmt.Errorf("fertiliser: %w", ErrInvalidName)
	}
	kb.mu.Lock()
	if _, exists := kb.fertilisers[f.Name]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("fertiliser %q: %w", f.Name, ErrExists)
	}
	kb.fertilisers[f.Name] = f
	subs := append([]func(Event){}, kb.subs...)
	kb.mu.Unlock()

	notify(subs, Event{Type: EventFertiliserAdded, Name: f.Name})
	return nil
}

// GetCrop returns the crop with the given name or ErrCropNotFound.
func (kb *KnowledgeBase) GetCrop(name string) (model.CropParameters, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	c, ok := kb.crops[name]
	if !ok {
		return model.CropParameters{}, fmt.Errorf("%w: %q", ErrCropNotFound, name)
	}
	c.PlantInputs = append([]float64(nil), c.PlantInputs...)
	return c, nil
}

// GetWaste returns the organic waste type with the given name or ErrWasteNotFound.
func (kb *KnowledgeBase) GetWaste(name string) (model.OrganicWasteParameters, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	w, ok := kb.wastes[name]
	if !ok {
		return model.OrganicWasteParameters{}, fmt.Errorf("%w: %q", ErrWasteNotFound, name)
	}
	return w, nil
}

// GetFertiliser returns the fertiliser type with the given name or ErrFertiliserNotFound.
func (kb *KnowledgeBase) GetFertiliser(name string) (model.FertiliserParameters, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	f, ok := kb.fertilisers[name]
	if !ok {
		return model.FertiliserParameters{}, fmt.Errorf("%w: %q", ErrFertiliserNotFound, name)
	}
	return f, nil
}

// ListCrops returns the registered crop names in sorted order.
func (kb *KnowledgeBase) ListCrops() []string {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]string, 0, len(kb.crops))
	for name := range kb.crops {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// ListWastes returns the registered organic waste names in sorted order.
func (kb *KnowledgeBase) ListWastes() []string {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]string, 0, len(kb.wastes))
	for name := range kb.wastes {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.subs = append(kb.subs, fn)
	idx := len(kb.subs) - 1

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		if idx < 0 || idx >= len(kb.subs) {
			return
		}
		kb.subs = append(kb.subs[:idx], kb.subs[idx+1:]...)
		idx = -1
	}
}

// Notify subscribers outside the lock to avoid deadlocks.
func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}
