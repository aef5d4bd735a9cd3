package engine

import (
	"github.com/baobab-engine/baobab/pkg/bambooerr"
	"github.com/baobab-engine/baobab/pkg/content"
	"github.com/baobab-engine/baobab/pkg/metadata"
	"github.com/baobab-engine/baobab/pkg/statushash"
)

// Block adds spec to clumpID's block set, rejecting any spec whose
// author half names an identity this engine holds the secret for
// (BlockedLocalIdentity), then purges every already-stored entry spec
// now matches.
func (e *Engine) Block(spec metadata.Spec, clumpID string) ([]metadata.Spec, error) {
	c, err := e.requireClump(clumpID)
	if err != nil {
		return nil, err
	}

	if spec.AuthorB62 != nil {
		locals, err := e.localAuthors()
		if err != nil {
			return nil, err
		}
		for _, a := range locals {
			if a == *spec.AuthorB62 {
				return nil, bambooerr.New(bambooerr.KindBlockedLocalIdentity, "engine: refusing to block locally-owned author %s", a)
			}
		}
	}

	specs, err := c.metadata.Block(spec)
	if err != nil {
		return nil, err
	}

	author, logID := metadata.PatternFor(spec)
	if err := c.content.MatchDelete(content.Pattern{AuthorB62: author, LogID: logID}); err != nil {
		return nil, err
	}
	c.status.Invalidate(statushash.Content)

	return specs, nil
}

// Unblock removes spec from clumpID's block set.
func (e *Engine) Unblock(spec metadata.Spec, clumpID string) ([]metadata.Spec, error) {
	c, err := e.requireClump(clumpID)
	if err != nil {
		return nil, err
	}
	return c.metadata.Unblock(spec)
}

// BlocksList returns clumpID's active block specifiers.
func (e *Engine) BlocksList(clumpID string) ([]metadata.Spec, error) {
	c, err := e.requireClump(clumpID)
	if err != nil {
		return nil, err
	}
	return c.metadata.BlocksList()
}

// Blocked reports whether triple is blocked in clumpID.
func (e *Engine) Blocked(triple metadata.Triple, clumpID string) (bool, error) {
	c, err := e.requireClump(clumpID)
	if err != nil {
		return false, err
	}
	return c.metadata.Blocked(triple)
}

// FilterBlocked returns the not-blocked subsequence of triples.
func (e *Engine) FilterBlocked(triples []metadata.Triple, clumpID string) ([]metadata.Triple, error) {
	c, err := e.requireClump(clumpID)
	if err != nil {
		return nil, err
	}
	return c.metadata.FilterBlocked(triples)
}
