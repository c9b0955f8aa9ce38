package contracts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admi-n/auditbot/src/config"
	"github.com/admi-n/auditbot/src/internal"
	"github.com/admi-n/auditbot/src/internal/storage"
)

func sampleRecord(platform, addr string) internal.ContractRecord {
	return internal.ContractRecord{
		Address:       addr,
		SourceCode:    "contract Token {}",
		Platform:      platform,
		TwitterHandle: "pepecoin",
		Coin: internal.CoinDetails{
			ID:        "pepe",
			Name:      "Pepe",
			Platforms: map[string]string{"ethereum": addr},
		},
	}
}

func TestFileStoreSaveAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "data"))

	records, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, store.Save(ctx, sampleRecord(internal.PlatformEtherscan, "0x2222222222222222222222222222222222222222")))
	require.NoError(t, store.Save(ctx, sampleRecord(internal.PlatformBasescan, "0x1111111111111111111111111111111111111111")))

	records, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, internal.PlatformBasescan, records[0].Platform)
	assert.Equal(t, "Pepe", records[1].Coin.Name)
	assert.FileExists(t, filepath.Join(store.Dir(), internal.PlatformEtherscan, "0x2222222222222222222222222222222222222222.json"))
}

func TestFileStoreSaveDoesNotOverwrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewFileStore(t.TempDir())
	addr := "0x3333333333333333333333333333333333333333"

	require.NoError(t, store.Save(ctx, sampleRecord(internal.PlatformBscscan, addr)))

	changed := sampleRecord(internal.PlatformBscscan, addr)
	changed.SourceCode = "contract Changed {}"
	require.NoError(t, store.Save(ctx, changed))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "contract Token {}", records[0].SourceCode)
}

func TestFileStoreSkipsCorruptFiles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, internal.PlatformEtherscan), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, internal.PlatformEtherscan, "broken.json"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, internal.PlatformEtherscan, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, store.Save(ctx, sampleRecord(internal.PlatformEtherscan, "0x4444444444444444444444444444444444444444")))

	records, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFileStoreFillsPlatformFromDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, internal.PlatformPolygonscan), 0o755))
	legacy := `{"contractAddress":"0x5555555555555555555555555555555555555555","contractSourceCode":"x","twitterHandle":"h","coinDetails":{"id":"c","name":"C"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, internal.PlatformPolygonscan, "0x5555555555555555555555555555555555555555.json"), []byte(legacy), 0o644))

	records, err := NewFileStore(dir).List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, internal.PlatformPolygonscan, records[0].Platform)
	assert.True(t, records[0].Auditable())
}

func TestFileStoreFallsBackToFileNameForAddress(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, internal.PlatformEtherscan), 0o755))
	noAddress := `{"contractSourceCode":"x","twitterHandle":"h","coinDetails":{"id":"c","name":"C"}}`
	for _, addr := range []string{"0x6666666666666666666666666666666666666666", "0x7777777777777777777777777777777777777777"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, internal.PlatformEtherscan, addr+".json"), []byte(noAddress), 0o644))
	}

	records, err := NewFileStore(dir).List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "0x6666666666666666666666666666666666666666", records[0].Address)
	assert.Equal(t, "0x7777777777777777777777777777777777777777", records[1].Address)
	assert.NotEqual(t, internal.ContractKey(records[0].Address), internal.ContractKey(records[1].Address))
}

func TestSQLStoreSQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := config.InitDB(ctx, config.DriverSQLite, filepath.Join(t.TempDir(), "contracts.db"))
	require.NoError(t, err)
	defer db.Close()

	store, err := NewSQLStore(db, storage.DialectSQLite)
	require.NoError(t, err)

	addr := "0x6666666666666666666666666666666666666666"
	require.NoError(t, store.Save(ctx, sampleRecord(internal.PlatformEtherscan, addr)))

	changed := sampleRecord(internal.PlatformEtherscan, addr)
	changed.TwitterHandle = "other"
	require.NoError(t, store.Save(ctx, changed))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "pepecoin", records[0].TwitterHandle)
	assert.Equal(t, addr, records[0].Coin.Platforms["ethereum"])
}

func TestSaveRejectsIncompleteRecord(t *testing.T) {
	t.Parallel()

	err := NewFileStore(t.TempDir()).Save(context.Background(), internal.ContractRecord{Address: "0x1"})
	require.Error(t, err)
}
