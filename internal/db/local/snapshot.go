package local

import (
	"context"
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
)

// OpenSnapshot registers a scan handle. The index is live, so ordering by
// document id keeps batches free of skips and duplicates only while no
// documents are added ahead of the cursor.
func (e *Engine) OpenSnapshot(_ context.Context, index string, keepAlive time.Duration) (string, error) {
	if err := e.checkIndex(index); err != nil {
		return "", &db.Error{Op: db.OpOpenSnapshot, Err: err}
	}
	if keepAlive <= 0 {
		return "", &db.Error{Op: db.OpOpenSnapshot, Err: fmt.Errorf("keep-alive must be positive")}
	}
	id := uuid.NewString()

	e.mu.Lock()
	e.expireLocked()
	e.snapshots[id] = e.now().Add(keepAlive)
	e.mu.Unlock()

	return id, nil
}

// SearchSnapshot fetches the batch after q.After and extends the handle by q.KeepAlive.
func (e *Engine) SearchSnapshot(ctx context.Context, q *db.SnapshotQuery) (*db.SnapshotPage, error) {
	if err := e.touch(q.Snapshot, q.KeepAlive); err != nil {
		return nil, &db.Error{Op: db.OpSearchAfter, Err: err}
	}

	bq, err := e.buildQuery(q.Filter)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearchAfter, Err: err}
	}

	req := bleve.NewSearchRequestOptions(bq, q.Size, 0, false)
	req.Fields = fieldsOrAll(q.Fields)
	req.SortBy([]string{db.IDField})
	if len(q.After) > 0 {
		after := make([]string, len(q.After))
		for i, v := range q.After {
			after[i] = fmt.Sprint(v)
		}
		req.SetSearchAfter(after)
	}

	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearchAfter, Err: err}
	}
	return &db.SnapshotPage{Snapshot: q.Snapshot, Hits: toHits(res.Hits)}, nil
}

// CloseSnapshot releases a handle.
func (e *Engine) CloseSnapshot(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.snapshots[id]; !ok {
		return &db.Error{Op: db.OpCloseSnapshot, Err: db.ErrSnapshotNotFound}
	}
	delete(e.snapshots, id)
	return nil
}

// OpenSnapshots returns the number of live handles.
func (e *Engine) OpenSnapshots() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expireLocked()
	return len(e.snapshots)
}

func (e *Engine) touch(id string, keepAlive time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expireLocked()
	deadline, ok := e.snapshots[id]
	if !ok {
		return db.ErrSnapshotNotFound
	}
	if keepAlive > 0 {
		if next := e.now().Add(keepAlive); next.After(deadline) {
			e.snapshots[id] = next
		}
	}
	return nil
}

func (e *Engine) expireLocked() {
	now := e.now()
	for id, deadline := range e.snapshots {
		if now.After(deadline) {
			delete(e.snapshots, id)
		}
	}
}
