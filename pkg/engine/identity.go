package engine

import (
	"github.com/baobab-engine/baobab/pkg/identity"
	"github.com/baobab-engine/baobab/pkg/statushash"
)

// IdentityRef mirrors identity.Ref; re-exported so callers don't need
// to import pkg/identity directly for the common case.
type IdentityRef = identity.Ref

// CreateIdentity assigns alias a keypair (spec §4.2).
func (e *Engine) CreateIdentity(alias, secretSpec string) (string, error) {
	public, err := e.identity.Create(alias, secretSpec)
	if err != nil {
		return "", err
	}
	e.invalidateIdentityHash()
	return public, nil
}

// RenameIdentity renames an alias, preserving its keys.
func (e *Engine) RenameIdentity(oldAlias, newAlias string) (string, error) {
	public, err := e.identity.Rename(oldAlias, newAlias)
	if err != nil {
		return "", err
	}
	e.invalidateIdentityHash()
	return public, nil
}

// DropIdentity destroys alias's secret key.
func (e *Engine) DropIdentity(alias string) error {
	if err := e.identity.Drop(alias); err != nil {
		return err
	}
	e.invalidateIdentityHash()
	return nil
}

// invalidateIdentityHash marks every clump's Identity status token
// stale; identities are process-global (spec §4.7) but each clump
// records its own copy of the token.
func (e *Engine) invalidateIdentityHash() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.clumps {
		c.status.Invalidate(statushash.Identity)
	}
}

// ListIdentities returns every identity, ordered by alias.
func (e *Engine) ListIdentities() ([]IdentityRef, error) {
	return e.identity.List()
}

// IdentityKey returns one half of alias's keypair.
func (e *Engine) IdentityKey(alias string, which identity.KeyKind) ([]byte, error) {
	return e.identity.Key(alias, which)
}

// AsBase62 resolves ref to a base62 public key within clumpID, per
// spec §4.2's resolution order (the "~prefix" form searches authors
// present in that clump's Content Store).
func (e *Engine) AsBase62(ref, clumpID string) (string, error) {
	c, err := e.clump(clumpID)
	if err != nil {
		return "", err
	}
	known, err := authorsInClump(c)
	if err != nil {
		return "", err
	}
	return e.identity.AsBase62(ref, known)
}

// localAuthors lists the base62 public keys of every identity this
// engine holds the secret for, used by Block to reject attempts to
// block a self-owned author.
func (e *Engine) localAuthors() ([]string, error) {
	refs, err := e.identity.List()
	if err != nil {
		return nil, err
	}
	authors := make([]string, len(refs))
	for i, r := range refs {
		authors[i] = r.PublicB62
	}
	return authors, nil
}
