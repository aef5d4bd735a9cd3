package engine

import (
	"sort"

	"github.com/baobab-engine/baobab/pkg/bamboo"
	"github.com/baobab-engine/baobab/pkg/bambooerr"
	"github.com/baobab-engine/baobab/pkg/codec"
	"github.com/baobab-engine/baobab/pkg/content"
	"github.com/baobab-engine/baobab/pkg/lipmaa"
	"github.com/baobab-engine/baobab/pkg/validate"
)

// Format selects how LogEntry renders its result.
type Format int

const (
	FormatEntry Format = iota
	FormatBinary
)

// LogEntryOpts configures LogEntry and the other read paths.
type LogEntryOpts struct {
	LogID      uint64
	ClumpID    string
	Format     Format
	Revalidate bool
}

// MaxSeqnum reports the largest seqnum stored for (author, log_id,
// clump), or 0 if the log has no entries.
func (e *Engine) MaxSeqnum(authorB62 string, logID uint64, clumpID string) (uint64, error) {
	c, err := e.clump(clumpID)
	if err != nil {
		return 0, err
	}
	return maxSeqnumLocked(c, authorB62, logID)
}

func maxSeqnumLocked(c *clumpHandle, authorB62 string, logID uint64) (uint64, error) {
	keys, err := c.content.Match(content.Pattern{AuthorB62: &authorB62, LogID: &logID})
	if err != nil {
		return 0, err
	}
	var max uint64
	for _, k := range keys {
		if k.Seqnum > max {
			max = k.Seqnum
		}
	}
	return max, nil
}

// AllSeqnum returns every stored seqnum for (author, log_id, clump),
// ascending.
func (e *Engine) AllSeqnum(authorB62 string, logID uint64, clumpID string) ([]uint64, error) {
	c, err := e.clump(clumpID)
	if err != nil {
		return nil, err
	}
	keys, err := c.content.Match(content.Pattern{AuthorB62: &authorB62, LogID: &logID})
	if err != nil {
		return nil, err
	}
	seqs := make([]uint64, len(keys))
	for i, k := range keys {
		seqs[i] = k.Seqnum
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs, nil
}

// LogEntry fetches a single entry by seqnum (0 means "the current
// max"), optionally revalidating it before returning.
func (e *Engine) LogEntry(authorB62 string, seqnum uint64, opts LogEntryOpts) (*bamboo.Entry, []byte, error) {
	c, err := e.clump(opts.ClumpID)
	if err != nil {
		return nil, nil, err
	}
	if seqnum == 0 {
		seqnum, err = maxSeqnumLocked(c, authorB62, opts.LogID)
		if err != nil {
			return nil, nil, err
		}
		if seqnum == 0 {
			return nil, nil, bambooerr.New(bambooerr.KindMissing, "engine: %s has no entries", authorB62)
		}
	}

	entry, header, err := fetchEntry(c, authorB62, opts.LogID, seqnum)
	if err != nil {
		return nil, nil, err
	}
	if opts.Revalidate {
		if _, err := validate.Validate(c.content, opts.ClumpID, entry); err != nil {
			return nil, nil, err
		}
	}
	if opts.Format == FormatBinary {
		return entry, append(append([]byte(nil), header...), entry.Payload...), nil
	}
	return entry, nil, nil
}

// fetchEntry retrieves and decodes the stored record at (author,
// log_id, seqnum), attaching its payload half if present.
func fetchEntry(c *clumpHandle, authorB62 string, logID, seqnum uint64) (*bamboo.Entry, []byte, error) {
	v, err := c.content.Get(content.Key{AuthorB62: authorB62, LogID: logID, Seqnum: seqnum})
	if err != nil {
		return nil, nil, err
	}
	if v.Entry == nil {
		return nil, nil, bambooerr.New(bambooerr.KindMissing, "engine: %s/%d/%d not found", authorB62, logID, seqnum)
	}
	entry, _, err := codec.Decode(v.Entry)
	if err != nil {
		return nil, nil, err
	}
	if v.Payload != nil {
		entry.Payload = v.Payload
	}
	return entry, v.Entry, nil
}

// LogAt returns the certificate-pool path from seqnum 1 up through
// seq (ascending), filtered to entries present in the store.
func (e *Engine) LogAt(authorB62 string, seqnum uint64, opts LogEntryOpts) ([]*bamboo.Entry, error) {
	c, err := e.clump(opts.ClumpID)
	if err != nil {
		return nil, err
	}
	if seqnum == 0 {
		seqnum, err = maxSeqnumLocked(c, authorB62, opts.LogID)
		if err != nil {
			return nil, err
		}
	}
	max, err := maxSeqnumLocked(c, authorB62, opts.LogID)
	if err != nil {
		return nil, err
	}

	descending := lipmaa.CertPool(seqnum)
	ascending := make([]uint64, len(descending))
	for i, s := range descending {
		ascending[len(descending)-1-i] = s
	}
	ascending = append(ascending, seqnum)

	var out []*bamboo.Entry
	for _, s := range ascending {
		if s == 0 || s > max {
			continue
		}
		entry, _, err := fetchEntry(c, authorB62, opts.LogID, s)
		if err != nil {
			if bambooerr.Is(err, bambooerr.KindMissing) {
				continue
			}
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// LogRange returns every present entry of (author, log_id, clump)
// with first <= seqnum <= last, first >= 2.
func (e *Engine) LogRange(authorB62 string, first, last uint64, opts LogEntryOpts) ([]*bamboo.Entry, error) {
	if first < 2 || last < first {
		return nil, bambooerr.New(bambooerr.KindBadRange, "engine: log_range requires first >= 2 and last >= first, got [%d, %d]", first, last)
	}
	c, err := e.clump(opts.ClumpID)
	if err != nil {
		return nil, err
	}
	var out []*bamboo.Entry
	for s := first; s <= last; s++ {
		entry, _, err := fetchEntry(c, authorB62, opts.LogID, s)
		if err != nil {
			if bambooerr.Is(err, bambooerr.KindMissing) {
				continue
			}
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// FullLog returns every present entry of (author, log_id, clump),
// ascending from 1 to max_seqnum.
func (e *Engine) FullLog(authorB62 string, opts LogEntryOpts) ([]*bamboo.Entry, error) {
	c, err := e.clump(opts.ClumpID)
	if err != nil {
		return nil, err
	}
	max, err := maxSeqnumLocked(c, authorB62, opts.LogID)
	if err != nil {
		return nil, err
	}
	var out []*bamboo.Entry
	for s := uint64(1); s <= max; s++ {
		entry, _, err := fetchEntry(c, authorB62, opts.LogID, s)
		if err != nil {
			if bambooerr.Is(err, bambooerr.KindMissing) {
				continue
			}
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// CertificatePool returns lipmaa's certificate pool for seqnum,
// restricted to entries present in the store at or below max_seqnum.
func (e *Engine) CertificatePool(authorB62 string, seqnum, logID uint64, clumpID string) ([]uint64, error) {
	c, err := e.clump(clumpID)
	if err != nil {
		return nil, err
	}
	max, err := maxSeqnumLocked(c, authorB62, logID)
	if err != nil {
		return nil, err
	}
	var out []uint64
	for _, s := range lipmaa.CertPool(seqnum) {
		if s > max {
			continue
		}
		has, err := c.content.ExistsPart(content.Key{AuthorB62: authorB62, LogID: logID, Seqnum: s}, content.PartEntry)
		if err != nil {
			return nil, err
		}
		if has {
			out = append(out, s)
		}
	}
	return out, nil
}

// StoredInfo returns a sorted (author_b62, log_id, max_seq) summary
// of every log in clump.
func (e *Engine) StoredInfo(clumpID string) ([]content.StoredInfo, error) {
	c, err := e.clump(clumpID)
	if err != nil {
		return nil, err
	}
	return c.content.StoredInfo()
}

// AllEntries returns every stored key in clump.
func (e *Engine) AllEntries(clumpID string) ([]content.Key, error) {
	c, err := e.clump(clumpID)
	if err != nil {
		return nil, err
	}
	return c.content.Match(content.Pattern{})
}

func errMissingLinkTarget(authorB62 string, logID, seqnum uint64) error {
	return bambooerr.New(bambooerr.KindMissing, "engine: expected link target %s/%d/%d to already be in the store", authorB62, logID, seqnum)
}
