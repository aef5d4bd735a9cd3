// Package engine ties together the identity, content, validation,
// metadata, and status-hash components into the single object spec
// §9's design notes call for: a target-language implementation should
// hold per-clump store handles behind an explicit engine value passed
// into every operation, rather than the reference source's pattern of
// opening per-call keyed files. All of spec §5's serialization lives
// on this value.
package engine

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/baobab-engine/baobab/pkg/bambooerr"
	"github.com/baobab-engine/baobab/pkg/content"
	"github.com/baobab-engine/baobab/pkg/identity"
	"github.com/baobab-engine/baobab/pkg/metadata"
	"github.com/baobab-engine/baobab/pkg/statushash"
	"github.com/baobab-engine/baobab/pkg/util"
)

// DefaultClumpID is the clump every operation uses when its options
// don't name one, and the one auto-created on first Open of a fresh
// spool directory.
const DefaultClumpID = "default"

// Config is the engine's one mandatory parameter (spec §6).
type Config struct {
	SpoolDir string
}

// Engine is the open, live handle to one spool directory.
type Engine struct {
	cfg Config
	log *zap.Logger

	identity *identity.Store

	mu     sync.Mutex
	clumps map[string]*clumpHandle
}

// clumpHandle bundles one clump's three per-clump stores plus the
// per-(author,log_id) append locks spec §5 requires.
type clumpHandle struct {
	content  *content.Store
	status   *statushash.Store
	metadata *metadata.Store

	appendLocksMu sync.Mutex
	appendLocks   map[string]*sync.Mutex
}

// Open opens (creating if absent) the engine at cfg.SpoolDir,
// discovering existing clumps via the */content.dets glob (spec §6)
// and ensuring the default clump exists.
func Open(cfg Config, log *zap.Logger) (*Engine, error) {
	if cfg.SpoolDir == "" {
		return nil, bambooerr.New(bambooerr.KindBadArgs, "engine: spool_dir is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.SpoolDir, 0700); err != nil {
		return nil, bambooerr.New(bambooerr.KindBadArgs, "engine: create spool dir: %v", err)
	}

	idStore, err := identity.Open(filepath.Join(cfg.SpoolDir, "identity.dets"), log)
	if err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, log: log, identity: idStore, clumps: map[string]*clumpHandle{}}

	existing, err := discoverClumpIDs(cfg.SpoolDir)
	if err != nil {
		idStore.Close()
		return nil, err
	}
	for _, id := range existing {
		if _, err := e.openClump(id); err != nil {
			idStore.Close()
			return nil, err
		}
	}
	if _, err := e.openClump(DefaultClumpID); err != nil {
		idStore.Close()
		return nil, err
	}

	return e, nil
}

// Close releases every open store handle.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for _, c := range e.clumps {
		if err := c.content.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := c.status.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := c.metadata.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := e.identity.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Clumps returns every known clump_id, sorted.
func (e *Engine) Clumps() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.clumps))
	for id := range e.clumps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) openClump(id string) (*clumpHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.clumps[id]; ok {
		return c, nil
	}

	dir := filepath.Join(e.cfg.SpoolDir, id)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, bambooerr.New(bambooerr.KindBadArgs, "engine: create clump dir %s: %v", id, err)
	}
	contentStore, err := content.Open(filepath.Join(dir, "content.dets"), e.log)
	if err != nil {
		return nil, util.StatusWrapf(err, "engine: open clump %s content store", id)
	}
	statusStore, err := statushash.Open(filepath.Join(dir, "status.dets"))
	if err != nil {
		contentStore.Close()
		return nil, util.StatusWrapf(err, "engine: open clump %s status store", id)
	}
	metadataStore, err := metadata.Open(filepath.Join(dir, "metadata.dets"), e.log)
	if err != nil {
		contentStore.Close()
		statusStore.Close()
		return nil, util.StatusWrapf(err, "engine: open clump %s metadata store", id)
	}

	c := &clumpHandle{
		content:     contentStore,
		status:      statusStore,
		metadata:    metadataStore,
		appendLocks: map[string]*sync.Mutex{},
	}
	e.clumps[id] = c
	return c, nil
}

// clump resolves clumpID (defaulting to DefaultClumpID), auto-creating
// its stores on first use.
func (e *Engine) clump(clumpID string) (*clumpHandle, error) {
	if clumpID == "" {
		clumpID = DefaultClumpID
	}
	return e.openClump(clumpID)
}

// requireClump is like clump but fails with UnknownClumpId instead of
// auto-creating, for operations (like Block) that must only ever
// touch clumps that already exist.
func (e *Engine) requireClump(clumpID string) (*clumpHandle, error) {
	if clumpID == "" {
		clumpID = DefaultClumpID
	}
	e.mu.Lock()
	c, ok := e.clumps[clumpID]
	e.mu.Unlock()
	if !ok {
		return nil, bambooerr.New(bambooerr.KindUnknownClumpID, "engine: unknown clump %q", clumpID)
	}
	return c, nil
}

func (c *clumpHandle) appendLock(authorB62 string, logID uint64) *sync.Mutex {
	key := authorB62 + "/" + strconv.FormatUint(logID, 10)
	c.appendLocksMu.Lock()
	defer c.appendLocksMu.Unlock()
	m, ok := c.appendLocks[key]
	if !ok {
		m = &sync.Mutex{}
		c.appendLocks[key] = m
	}
	return m
}

func discoverClumpIDs(spoolDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(spoolDir, "*", "content.dets"))
	if err != nil {
		return nil, bambooerr.New(bambooerr.KindBadArgs, "engine: glob clumps: %v", err)
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, filepath.Base(filepath.Dir(m)))
	}
	return ids, nil
}

// authorsInClump lists every distinct base62 author with at least one
// stored entry in c, for the Identity Store's "~prefix" resolution.
func authorsInClump(c *clumpHandle) ([]string, error) {
	infos, err := c.content.StoredInfo()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var authors []string
	for _, info := range infos {
		if !seen[info.AuthorB62] {
			seen[info.AuthorB62] = true
			authors = append(authors, info.AuthorB62)
		}
	}
	return authors, nil
}

