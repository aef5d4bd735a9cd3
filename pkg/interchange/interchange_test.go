package interchange_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baobab-engine/baobab/pkg/bambooerr"
	"github.com/baobab-engine/baobab/pkg/engine"
	"github.com/baobab-engine/baobab/pkg/interchange"
	"github.com/baobab-engine/baobab/pkg/metadata"
)

func openEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.Open(engine.Config{SpoolDir: t.TempDir()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func TestExportImportRoundTrip(t *testing.T) {
	eng1 := openEngine(t)
	author, err := eng1.CreateIdentity("testy", "")
	require.NoError(t, err)

	for i := 0; i < 14; i++ {
		_, err := eng1.Append([]byte("msg"), "testy", engine.AppendOpts{})
		require.NoError(t, err)
	}

	exportDir := filepath.Join(t.TempDir(), "export")
	require.NoError(t, interchange.Export(eng1, exportDir))

	_, err = os.Stat(filepath.Join(exportDir, "identities", "testy.keyfile.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(exportDir, "content", "default", author+"_0.bamboo.log"))
	require.NoError(t, err)

	eng2 := openEngine(t)
	sum, err := interchange.Import(eng2, exportDir, interchange.ImportOpts{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.IdentitiesCreated)
	assert.Equal(t, 14, sum.EntriesStored)

	max, err := eng2.MaxSeqnum(author, 0, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(14), max)

	full, err := eng2.FullLog(author, engine.LogEntryOpts{})
	require.NoError(t, err)
	require.Len(t, full, 14)
	for _, e := range full {
		_, _, err := eng2.LogEntry(author, e.Seqnum, engine.LogEntryOpts{Revalidate: true})
		require.NoError(t, err)
	}
}

func TestImportPartialReplicationAfterWipe(t *testing.T) {
	eng1 := openEngine(t)
	author, err := eng1.CreateIdentity("testy", "")
	require.NoError(t, err)
	for i := 0; i < 14; i++ {
		_, err := eng1.Append([]byte("msg"), "testy", engine.AppendOpts{})
		require.NoError(t, err)
	}

	exportDir := filepath.Join(t.TempDir(), "export")
	require.NoError(t, interchange.Export(eng1, exportDir))
	preWipeHash, err := eng1.CurrentHash("content", "")
	require.NoError(t, err)

	_, err = eng1.Purge(engine.PurgeSpec{ClumpID: ""})
	require.NoError(t, err)
	max, err := eng1.MaxSeqnum(author, 0, "")
	require.NoError(t, err)
	require.Equal(t, uint64(0), max)

	sum, err := interchange.Import(eng1, exportDir, interchange.ImportOpts{})
	require.NoError(t, err)
	assert.Equal(t, 14, sum.EntriesStored)

	max, err = eng1.MaxSeqnum(author, 0, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(14), max)

	postImportHash, err := eng1.CurrentHash("content", "")
	require.NoError(t, err)
	assert.Equal(t, preWipeHash, postImportHash)
}

func TestImportRefusesBlockedAuthor(t *testing.T) {
	eng1 := openEngine(t)
	author, err := eng1.CreateIdentity("testy", "")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := eng1.Append([]byte("msg"), "testy", engine.AppendOpts{})
		require.NoError(t, err)
	}
	exportDir := filepath.Join(t.TempDir(), "export")
	require.NoError(t, interchange.Export(eng1, exportDir))

	eng2 := openEngine(t)
	_, err = eng2.Block(metadata.Spec{AuthorB62: &author}, "")
	require.NoError(t, err)

	_, err = interchange.Import(eng2, exportDir, interchange.ImportOpts{})
	require.Error(t, err)
	assert.True(t, bambooerr.Is(err, bambooerr.KindRefusedBlocked))
}
