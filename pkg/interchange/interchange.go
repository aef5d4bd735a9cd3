// Package interchange implements Import/Export (spec §4.8): the only
// on-disk format the engine exposes besides its own bbolt stores. An
// export is a directory of per-identity keyfile JSON plus per-log
// concatenated binary files; import is the mirror operation, tolerant
// of logs that only partially decode (spec §9's partial-replication
// ethos extends to interchange, not just live validation).
package interchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/baobab-engine/baobab/pkg/bamboo"
	"github.com/baobab-engine/baobab/pkg/bambooerr"
	"github.com/baobab-engine/baobab/pkg/base62"
	"github.com/baobab-engine/baobab/pkg/codec"
	"github.com/baobab-engine/baobab/pkg/content"
	"github.com/baobab-engine/baobab/pkg/engine"
	"github.com/baobab-engine/baobab/pkg/identity"
	"github.com/baobab-engine/baobab/pkg/util"
)

const (
	identitiesDirName = "identities"
	contentDirName    = "content"
	keyfileSuffix     = ".keyfile.json"
	logSuffix         = ".bamboo.log"
)

// keyfile mirrors spec §4.8's JSON shape exactly; json.Marshal writes
// the fields in the order declared here, and the field set and names
// are the wire contract any baobab-family tool reading these files
// depends on.
type keyfile struct {
	Source      string `json:"source"`
	KeyEncoding string `json:"key_encoding"`
	KeyType     string `json:"key_type"`
	Identity    string `json:"identity"`
	PublicKey   string `json:"public_key"`
	SecretKey   string `json:"secret_key"`
}

// Export lays out dir per spec §4.8: every identity as a 0600
// keyfile under identities/, and every (clump, author, log_id) as a
// concatenated `encode_full` binary log under content/<clump_id>/,
// 0700 directories throughout.
func Export(eng *engine.Engine, dir string) error {
	idDir := filepath.Join(dir, identitiesDirName)
	if err := os.MkdirAll(idDir, 0700); err != nil {
		return bambooerr.New(bambooerr.KindBadArgs, "interchange: create %s: %v", idDir, err)
	}
	refs, err := eng.ListIdentities()
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if err := exportKeyfile(eng, idDir, ref); err != nil {
			return err
		}
	}

	for _, clumpID := range eng.Clumps() {
		if err := exportClumpContent(eng, dir, clumpID); err != nil {
			return err
		}
	}
	return nil
}

func exportKeyfile(eng *engine.Engine, idDir string, ref engine.IdentityRef) error {
	secret, err := eng.IdentityKey(ref.Alias, identity.Secret)
	if err != nil {
		return err
	}
	kf := keyfile{
		Source:      "baobab",
		KeyEncoding: "base62",
		KeyType:     "ed25519",
		Identity:    ref.Alias,
		PublicKey:   ref.PublicB62,
		SecretKey:   base62.Encode(secret),
	}
	body, err := json.Marshal(kf)
	if err != nil {
		return bambooerr.New(bambooerr.KindBadArgs, "interchange: marshal keyfile for %s: %v", ref.Alias, err)
	}
	path := filepath.Join(idDir, ref.Alias+keyfileSuffix)
	if err := os.WriteFile(path, body, 0600); err != nil {
		return bambooerr.New(bambooerr.KindBadArgs, "interchange: write %s: %v", path, err)
	}
	return nil
}

func exportClumpContent(eng *engine.Engine, dir, clumpID string) error {
	infos, err := eng.StoredInfo(clumpID)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		return nil
	}
	clumpDir := filepath.Join(dir, contentDirName, clumpID)
	if err := os.MkdirAll(clumpDir, 0700); err != nil {
		return bambooerr.New(bambooerr.KindBadArgs, "interchange: create %s: %v", clumpDir, err)
	}
	for _, info := range infos {
		if err := exportOneLog(eng, clumpDir, clumpID, info); err != nil {
			return err
		}
	}
	return nil
}

func exportOneLog(eng *engine.Engine, clumpDir, clumpID string, info content.StoredInfo) error {
	entries, err := eng.FullLog(info.AuthorB62, engine.LogEntryOpts{LogID: info.LogID, ClumpID: clumpID})
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, e := range entries {
		full, err := codec.EncodeFull(e)
		if err != nil {
			return err
		}
		buf.Write(full)
	}
	name := fmt.Sprintf("%s_%d%s", info.AuthorB62, info.LogID, logSuffix)
	path := filepath.Join(clumpDir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return bambooerr.New(bambooerr.KindBadArgs, "interchange: write %s: %v", path, err)
	}
	return nil
}

// ImportOpts configures Import and ImportBinaries.
type ImportOpts struct {
	Replace bool
}

// Summary reports what Import did, for callers (and tests) that want
// to confirm counts without re-deriving them from the store.
type Summary struct {
	IdentitiesCreated int
	EntriesStored     int
}

// Import mirrors Export: every identities/*.keyfile.json is loaded
// first, then every content/<clump_id>/
// *.bamboo.log is decoded and ingested via ImportBinaries, with
// clump_id inferred from the file's parent directory name.
func Import(eng *engine.Engine, dir string, opts ImportOpts) (Summary, error) {
	var sum Summary

	idDir := filepath.Join(dir, identitiesDirName)
	keyfiles, err := filepath.Glob(filepath.Join(idDir, "*"+keyfileSuffix))
	if err != nil {
		return sum, bambooerr.New(bambooerr.KindBadArgs, "interchange: glob %s: %v", idDir, err)
	}
	for _, path := range keyfiles {
		if err := importKeyfile(eng, path); err != nil {
			return sum, util.StatusWrapf(err, "interchange: import identity %s", path)
		}
		sum.IdentitiesCreated++
	}

	logFiles, err := filepath.Glob(filepath.Join(dir, contentDirName, "*", "*"+logSuffix))
	if err != nil {
		return sum, bambooerr.New(bambooerr.KindBadArgs, "interchange: glob %s: %v", dir, err)
	}
	for _, path := range logFiles {
		clumpID := filepath.Base(filepath.Dir(path))
		raw, err := os.ReadFile(path)
		if err != nil {
			return sum, bambooerr.New(bambooerr.KindBadBinary, "interchange: read %s: %v", path, err)
		}
		stored, err := ImportBinaries(eng, raw, clumpID, opts.Replace)
		sum.EntriesStored += len(stored)
		if err != nil {
			return sum, util.StatusWrapf(err, "interchange: import %s", path)
		}
	}
	return sum, nil
}

func importKeyfile(eng *engine.Engine, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return bambooerr.New(bambooerr.KindBadArgs, "interchange: read %s: %v", path, err)
	}
	var kf keyfile
	if err := json.Unmarshal(raw, &kf); err != nil {
		return bambooerr.New(bambooerr.KindBadArgs, "interchange: parse %s: %v", path, err)
	}
	derived, err := eng.CreateIdentity(kf.Identity, kf.SecretKey)
	if err != nil {
		return err
	}
	if derived != kf.PublicKey {
		return bambooerr.New(bambooerr.KindBadArgs,
			"interchange: %s: derived public key %s does not match recorded %s", path, derived, kf.PublicKey)
	}
	return nil
}

// ImportBinaries decodes raw as a stream of entries and runs each
// through the engine's store primitive (spec §4.8). A malformed tail
// doesn't discard the entries that decoded cleanly before it: they
// are still stored, and the decode failure (if any) is returned
// alongside them, matching decode_stream's own "accumulated entries
// plus typed error" contract. The first entry that fails to store
// (blocked, or invalid) aborts the remainder of this call, returning
// whatever was successfully stored before it.
func ImportBinaries(eng *engine.Engine, raw []byte, clumpID string, replace bool) ([]*bamboo.Entry, error) {
	entries, decodeErr := codec.DecodeStream(raw)
	if decodeErr != nil {
		if se, ok := decodeErr.(*codec.StreamError); ok {
			entries = se.Entries
		} else {
			return nil, decodeErr
		}
	}

	var stored []*bamboo.Entry
	for _, e := range entries {
		got, err := eng.StoreEntry(e, clumpID, replace)
		if err != nil {
			return stored, err
		}
		stored = append(stored, got)
	}
	if decodeErr != nil {
		return stored, decodeErr
	}
	return stored, nil
}
