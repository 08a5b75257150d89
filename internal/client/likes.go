package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
)

// ErrAlreadyLiked is returned when this client already liked a review.
var ErrAlreadyLiked = errors.New("review already liked by this client")

// LikeRecord remembers which reviews this client liked. The server does not
// track likers, so this only keeps one client from liking twice.
type LikeRecord struct {
	path string

	mu    sync.Mutex
	liked map[string]struct{}
}

// LoadLikeRecord reads the record at path. A missing file is an empty record;
// an empty path keeps the record in memory.
func LoadLikeRecord(path string) (*LikeRecord, error) {
	record := &LikeRecord{path: path, liked: make(map[string]struct{})}
	if path == "" {
		return record, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return record, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read like record: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode like record: %w", err)
	}
	for _, id := range ids {
		record.liked[id] = struct{}{}
	}
	return record, nil
}

// Liked reports whether id is in the record.
func (r *LikeRecord) Liked(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.liked[id]
	return ok
}

// Like likes id unless this client already did.
func (r *LikeRecord) Like(ctx context.Context, c *Client, id string) (int, error) {
	if r.Liked(id) {
		return 0, ErrAlreadyLiked
	}
	likes, err := c.Like(ctx, id)
	if err != nil {
		return 0, err
	}
	return likes, r.set(id, true)
}

// ToggleLike unlikes id if this client liked it and likes it otherwise. It
// returns whether the review is now liked and the server's new count.
func (r *LikeRecord) ToggleLike(ctx context.Context, c *Client, id string) (bool, int, error) {
	if !r.Liked(id) {
		likes, err := r.Like(ctx, c, id)
		if err != nil {
			return false, 0, err
		}
		return true, likes, nil
	}

	likes, err := c.Unlike(ctx, id)
	if err != nil {
		return true, 0, err
	}
	return false, likes, r.set(id, false)
}

func (r *LikeRecord) set(id string, liked bool) error {
	r.mu.Lock()
	if liked {
		r.liked[id] = struct{}{}
	} else {
		delete(r.liked, id)
	}
	ids := make([]string, 0, len(r.liked))
	for k := range r.liked {
		ids = append(ids, k)
	}
	r.mu.Unlock()

	if r.path == "" {
		return nil
	}
	sort.Strings(ids)
	return writeJSONFile(r.path, ids)
}
