package engine

import (
	"github.com/baobab-engine/baobab/pkg/bamboo"
	"github.com/baobab-engine/baobab/pkg/bambooerr"
	"github.com/baobab-engine/baobab/pkg/base62"
	"github.com/baobab-engine/baobab/pkg/codec"
	"github.com/baobab-engine/baobab/pkg/content"
	"github.com/baobab-engine/baobab/pkg/metadata"
	"github.com/baobab-engine/baobab/pkg/statushash"
	"github.com/baobab-engine/baobab/pkg/validate"
)

// StoreEntry is the `store` primitive spec §4.8 builds import_binaries
// on: it rejects blocked coordinates, is a no-op returning the
// existing record when replace is false and the key is already taken,
// and otherwise validates entry before committing it. Unlike Append,
// the caller supplies the fully-formed entry (foreign authorship), so
// there is no signing step.
func (e *Engine) StoreEntry(entry *bamboo.Entry, clumpID string, replace bool) (*bamboo.Entry, error) {
	authorB62 := base62.Encode(entry.Author[:])

	c, err := e.clump(clumpID)
	if err != nil {
		return nil, err
	}

	lock := c.appendLock(authorB62, entry.LogID)
	lock.Lock()
	defer lock.Unlock()

	blocked, err := c.metadata.Blocked(metadata.Triple{AuthorB62: authorB62, LogID: entry.LogID})
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, bambooerr.New(bambooerr.KindRefusedBlocked, "engine: %s/%d is blocked in this clump", authorB62, entry.LogID)
	}

	key := content.Key{AuthorB62: authorB62, LogID: entry.LogID, Seqnum: entry.Seqnum}
	if !replace {
		existing, err := c.content.Get(key)
		if err != nil && !bambooerr.Is(err, bambooerr.KindMissing) {
			return nil, err
		}
		if existing.Entry != nil {
			decoded, _, err := codec.Decode(existing.Entry)
			if err != nil {
				return nil, err
			}
			if existing.Payload != nil {
				decoded.Payload = existing.Payload
			}
			return decoded, nil
		}
	}

	if _, err := validate.Validate(c.content, clumpID, entry); err != nil {
		return nil, err
	}

	preamble, err := codec.EncodePreamble(entry)
	if err != nil {
		return nil, err
	}
	header := append(preamble, entry.Sig...)
	if err := c.content.Put(key, content.Value{Entry: header, Payload: entry.Payload}); err != nil {
		return nil, err
	}
	c.status.Invalidate(statushash.Content)
	return entry, nil
}
