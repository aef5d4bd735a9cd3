package engine

import (
	"github.com/baobab-engine/baobab/pkg/bamboo"
	"github.com/baobab-engine/baobab/pkg/bambooerr"
	"github.com/baobab-engine/baobab/pkg/base62"
	"github.com/baobab-engine/baobab/pkg/codec"
	"github.com/baobab-engine/baobab/pkg/content"
	"github.com/baobab-engine/baobab/pkg/identity"
	"github.com/baobab-engine/baobab/pkg/lipmaa"
	"github.com/baobab-engine/baobab/pkg/metadata"
	"github.com/baobab-engine/baobab/pkg/signing"
	"github.com/baobab-engine/baobab/pkg/statushash"
	"github.com/baobab-engine/baobab/pkg/yamfhash"
)

// AppendOpts configures Append; the zero value appends to log_id 0 in
// the default clump.
type AppendOpts struct {
	LogID   uint64
	ClumpID string
}

// Append writes a new entry as alias's next seqnum in (log_id, clump)
// and returns the fully-formed, signed, decoded Entry (spec §4.5).
func (e *Engine) Append(payload []byte, alias string, opts AppendOpts) (*bamboo.Entry, error) {
	signingKey, err := e.identity.Key(alias, identity.Signing)
	if err != nil {
		return nil, err
	}
	public, err := e.identity.Key(alias, identity.Public)
	if err != nil {
		return nil, err
	}
	authorB62 := base62.Encode(public)

	c, err := e.clump(opts.ClumpID)
	if err != nil {
		return nil, err
	}

	lock := c.appendLock(authorB62, opts.LogID)
	lock.Lock()
	defer lock.Unlock()

	blocked, err := c.metadata.Blocked(metadata.Triple{AuthorB62: authorB62, LogID: opts.LogID})
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, bambooerr.New(bambooerr.KindRefusedBlocked, "engine: %s/%d is blocked in this clump", authorB62, opts.LogID)
	}

	prevMax, err := maxSeqnumLocked(c, authorB62, opts.LogID)
	if err != nil {
		return nil, err
	}
	seq := prevMax + 1

	backlink, err := linkTo(c, authorB62, opts.LogID, prevMax, seq > 1)
	if err != nil {
		return nil, err
	}

	var lipmaalink bamboo.Link
	if seq > 1 {
		n := lipmaa.Linkseq(seq)
		if n != seq-1 {
			lipmaalink, err = linkTo(c, authorB62, opts.LogID, n, true)
			if err != nil {
				return nil, err
			}
		}
	}

	entry := &bamboo.Entry{
		Tag:        0,
		LogID:      opts.LogID,
		Seqnum:     seq,
		Backlink:   backlink,
		Lipmaalink: lipmaalink,
		Size:       uint64(len(payload)),
		Payload:    payload,
	}
	copy(entry.Author[:], public)

	payloadHash, err := yamfhash.Create(payload)
	if err != nil {
		return nil, err
	}
	entry.PayloadHash = payloadHash

	preamble, err := codec.EncodePreamble(entry)
	if err != nil {
		return nil, err
	}
	sig, err := signing.Sign(preamble, signingKey)
	if err != nil {
		return nil, err
	}
	entry.Sig = sig

	header := append(append([]byte(nil), preamble...), sig...)
	key := content.Key{AuthorB62: authorB62, LogID: opts.LogID, Seqnum: seq}
	if err := c.content.Put(key, content.Value{Entry: header, Payload: payload}); err != nil {
		return nil, err
	}
	c.status.Invalidate(statushash.Content)

	return entry, nil
}

// linkTo builds the yamf-hash link pointing at (authorB62, logID,
// seqnum)'s stored header bytes. required controls whether an absent
// target is an error (it should never happen for a position this
// process itself just wrote) or simply yields an absent link (the
// seq == 0 "no previous entry" case).
func linkTo(c *clumpHandle, authorB62 string, logID, seqnum uint64, required bool) (bamboo.Link, error) {
	if seqnum == 0 {
		return bamboo.AbsentLink(), nil
	}
	v, err := c.content.Get(content.Key{AuthorB62: authorB62, LogID: logID, Seqnum: seqnum})
	if err != nil {
		return bamboo.Link{}, err
	}
	if v.Entry == nil {
		if !required {
			return bamboo.AbsentLink(), nil
		}
		return bamboo.Link{}, errMissingLinkTarget(authorB62, logID, seqnum)
	}
	digest, err := yamfhash.Create(v.Entry)
	if err != nil {
		return bamboo.Link{}, err
	}
	return bamboo.NewLink(digest)
}
