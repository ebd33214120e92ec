package storage

import (
	"context"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const updateBufferSize = 255

type InmemoryStore struct {
	mu     sync.RWMutex
	values []byte

	updateChans []chan *Update

	// stop will be closed when Close() is called
	stop chan struct{}
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values:      []byte("{}"),
		stop:        make(chan struct{}),
		updateChans: make([]chan *Update, 0),
	}
}

func (i *InmemoryStore) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.isRunning() {
		close(i.stop)

		for _, updateChan := range i.updateChans {
			close(updateChan)
		}
	}

	return nil
}

func (i *InmemoryStore) Set(ctx context.Context, path string, value interface{}) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	values, err := sjson.SetBytes(i.values, path, value)
	if err != nil {
		return err
	}
	i.values = values

	if !i.isRunning() {
		return nil
	}

	raw := []byte(gjson.GetBytes(i.values, path).Raw)

	for _, updateChan := range i.updateChans {
		// Never let a slow listener stall the event path; drop the
		// update for that listener instead.
		select {
		case updateChan <- &Update{Path: path, Value: raw}:
		default:
		}
	}

	return nil
}

func (i *InmemoryStore) Get(ctx context.Context, path string) ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	result := gjson.GetBytes(i.values, path)

	return []byte(result.Raw), nil
}

func (i *InmemoryStore) Document() []byte {
	i.mu.RLock()
	defer i.mu.RUnlock()

	doc := make([]byte, len(i.values))
	copy(doc, i.values)

	return doc
}

func (i *InmemoryStore) ListenToUpdates() <-chan *Update {
	i.mu.Lock()
	defer i.mu.Unlock()

	updateChan := make(chan *Update, updateBufferSize)
	i.updateChans = append(i.updateChans, updateChan)

	return updateChan
}

// isRunning returns true if Close has not been called. Callers must hold
// the mutex.
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

var _ Store = (*InmemoryStore)(nil)
