package elastic

import (
	"context"
	"fmt"
	"time"

	"github.com/USCbiostats/annoq-api-v2/internal/db"
)

// OpenSnapshot opens a point in time on index.
func (s *Store) OpenSnapshot(ctx context.Context, index string, ttl time.Duration) (string, error) {
	res, err := s.client.OpenPointInTime(
		[]string{index},
		keepAlive(ttl),
		s.client.OpenPointInTime.WithContext(ctx),
	)
	if err != nil {
		return "", &db.Error{Op: db.OpOpenSnapshot, Err: err}
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := decode(res, db.OpOpenSnapshot, &out); err != nil {
		return "", &db.Error{Op: db.OpOpenSnapshot, Err: err}
	}
	if out.ID == "" {
		return "", &db.Error{Op: db.OpOpenSnapshot, Err: fmt.Errorf("empty point in time id")}
	}
	return out.ID, nil
}

// SearchSnapshot fetches one batch in shard-doc order after q.After.
// The returned Snapshot is the refreshed point in time id.
func (s *Store) SearchSnapshot(ctx context.Context, q *db.SnapshotQuery) (*db.SnapshotPage, error) {
	query, err := buildQuery(q.Filter)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearchAfter, Err: err}
	}
	pit := M{"id": q.Snapshot}
	if q.KeepAlive > 0 {
		pit["keep_alive"] = keepAlive(q.KeepAlive)
	}
	body := M{
		"query":            query,
		"size":             q.Size,
		"pit":              pit,
		"sort":             []M{{"_shard_doc": "asc"}},
		"track_total_hits": false,
	}
	if len(q.Fields) > 0 {
		body["_source"] = q.Fields
	}
	if len(q.After) > 0 {
		body["search_after"] = q.After
	}

	r, err := encode(body)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearchAfter, Err: err}
	}
	// A point in time search must not name an index.
	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithBody(r),
	)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearchAfter, Err: err}
	}

	var out searchResponse
	if err := decode(res, db.OpSearchAfter, &out); err != nil {
		return nil, &db.Error{Op: db.OpSearchAfter, Err: err}
	}
	snapshot := out.PitID
	if snapshot == "" {
		snapshot = q.Snapshot
	}
	return &db.SnapshotPage{Snapshot: snapshot, Hits: out.hits()}, nil
}

// CloseSnapshot releases a point in time.
func (s *Store) CloseSnapshot(ctx context.Context, id string) error {
	r, err := encode(M{"id": id})
	if err != nil {
		return &db.Error{Op: db.OpCloseSnapshot, Err: err}
	}
	res, err := s.client.ClosePointInTime(
		s.client.ClosePointInTime.WithContext(ctx),
		s.client.ClosePointInTime.WithBody(r),
	)
	if err != nil {
		return &db.Error{Op: db.OpCloseSnapshot, Err: err}
	}
	if err := decode(res, db.OpCloseSnapshot, nil); err != nil {
		return &db.Error{Op: db.OpCloseSnapshot, Err: err}
	}
	return nil
}
