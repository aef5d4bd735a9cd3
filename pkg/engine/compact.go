package engine

import (
	"github.com/baobab-engine/baobab/pkg/content"
	"github.com/baobab-engine/baobab/pkg/lipmaa"
	"github.com/baobab-engine/baobab/pkg/statushash"
)

// CompactedSeqnum records one entry Compact removed.
type CompactedSeqnum struct {
	Seqnum uint64
}

// Compact drops every stored entry of (author, log_id, clump) outside
// the tip's certificate pool, returning the seqnums removed. Safe to
// re-run: once only the pool survives, a second call finds nothing
// left to delete.
func (e *Engine) Compact(authorB62 string, logID uint64, clumpID string) ([]CompactedSeqnum, error) {
	c, err := e.clump(clumpID)
	if err != nil {
		return nil, err
	}

	lock := c.appendLock(authorB62, logID)
	lock.Lock()
	defer lock.Unlock()

	all, err := e.AllSeqnum(authorB62, logID, clumpID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	tip := all[len(all)-1]

	keep := map[uint64]bool{tip: true}
	for _, s := range lipmaa.CertPool(tip) {
		keep[s] = true
	}

	var removed []CompactedSeqnum
	for _, s := range all {
		if keep[s] {
			continue
		}
		if err := c.content.Delete(content.Key{AuthorB62: authorB62, LogID: logID, Seqnum: s}); err != nil {
			return nil, err
		}
		removed = append(removed, CompactedSeqnum{Seqnum: s})
	}
	if len(removed) > 0 {
		c.status.Invalidate(statushash.Content)
	}
	return removed, nil
}

// PurgeSpec selects what Purge removes: Author and/or LogID nil means
// "all authors" / "all log_ids" respectively.
type PurgeSpec struct {
	AuthorB62 *string
	LogID     *uint64
	ClumpID   string
}

// Purge removes content per spec §4.5's four combinations and returns
// the clump's stored_info afterward.
func (e *Engine) Purge(spec PurgeSpec) ([]content.StoredInfo, error) {
	c, err := e.clump(spec.ClumpID)
	if err != nil {
		return nil, err
	}

	switch {
	case spec.AuthorB62 == nil && spec.LogID == nil:
		if err := c.content.Truncate(); err != nil {
			return nil, err
		}
	default:
		if err := c.content.MatchDelete(content.Pattern{AuthorB62: spec.AuthorB62, LogID: spec.LogID}); err != nil {
			return nil, err
		}
	}
	c.status.Invalidate(statushash.Content)
	return c.content.StoredInfo()
}
