package storage

import "sync"

type pendingWrite struct {
	value []byte
	del   bool
}

// Overlay buffers writes on top of a base Database. Reads observe the buffered
// writes first. Commit flushes them to the base as one atomic batch and Discard
// drops them, which gives every ledger instruction all-or-nothing semantics.
type Overlay struct {
	mu      sync.RWMutex
	base    Database
	pending map[string]pendingWrite
	order   []string
}

// NewOverlay opens an empty write buffer over base.
func NewOverlay(base Database) *Overlay {
	return &Overlay{base: base, pending: make(map[string]pendingWrite)}
}

func (o *Overlay) record(key []byte, w pendingWrite) {
	k := string(key)
	if _, seen := o.pending[k]; !seen {
		o.order = append(o.order, k)
	}
	o.pending[k] = w
}

func (o *Overlay) Put(key []byte, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.record(key, pendingWrite{value: append([]byte(nil), value...)})
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	o.mu.RLock()
	w, ok := o.pending[string(key)]
	o.mu.RUnlock()
	if ok {
		if w.del {
			return nil, ErrNotFound
		}
		return append([]byte(nil), w.value...), nil
	}
	return o.base.Get(key)
}

func (o *Overlay) Has(key []byte) (bool, error) {
	o.mu.RLock()
	w, ok := o.pending[string(key)]
	o.mu.RUnlock()
	if ok {
		return !w.del, nil
	}
	return o.base.Has(key)
}

func (o *Overlay) Delete(key []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.record(key, pendingWrite{del: true})
	return nil
}

// Write merges batch into the buffer; nothing reaches the base until Commit.
func (o *Overlay) Write(batch *Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, op := range batch.ops {
		o.record(op.key, pendingWrite{value: append([]byte(nil), op.value...), del: op.del})
	}
	return nil
}

// Dirty returns the number of buffered keys.
func (o *Overlay) Dirty() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.order)
}

// Commit writes the buffered changes to the base database and resets the
// overlay.
func (o *Overlay) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.order) == 0 {
		return nil
	}
	batch := &Batch{ops: make([]batchOp, 0, len(o.order))}
	for _, k := range o.order {
		w := o.pending[k]
		batch.ops = append(batch.ops, batchOp{key: []byte(k), value: w.value, del: w.del})
	}
	if err := o.base.Write(batch); err != nil {
		return err
	}
	o.reset()
	return nil
}

// Discard drops every buffered change.
func (o *Overlay) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reset()
}

func (o *Overlay) reset() {
	o.pending = make(map[string]pendingWrite)
	o.order = nil
}

// Close is a no-op; the base database is owned by the caller.
func (o *Overlay) Close() {}
