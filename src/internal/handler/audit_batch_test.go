package handler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admi-n/auditbot/src/internal"
	"github.com/admi-n/auditbot/src/internal/ai/parser"
	"github.com/admi-n/auditbot/src/internal/contracts"
	"github.com/admi-n/auditbot/src/internal/ledger"
	"github.com/admi-n/auditbot/src/internal/metrics"
)

const (
	addrA = "0x1111111111111111111111111111111111111111"
	addrB = "0x2222222222222222222222222222222222222222"
)

type batchFixture struct {
	store     *contracts.FileStore
	ledger    *ledger.FileLedger
	generator *fakeGenerator
	reporter  *fakeReporter
	publisher *fakePublisher
	mirror    *fakePublisher
	clock     *fakeClock
	metrics   *metrics.BotMetrics
	batch     *AuditBatch
}

func newBatchFixture(t *testing.T) *batchFixture {
	t.Helper()

	dir := t.TempDir()
	f := &batchFixture{
		store:     contracts.NewFileStore(filepath.Join(dir, "data")),
		ledger:    ledger.NewFileLedger(filepath.Join(dir, ledger.FileName(ledger.NamespaceContracts))),
		generator: &fakeGenerator{body: findingsReport},
		reporter:  &fakeReporter{},
		publisher: &fakePublisher{},
		mirror:    &fakePublisher{},
		clock:     newFakeClock(),
		metrics:   metrics.NewBotMetrics(prometheus.NewRegistry()),
	}

	batch, err := NewAuditBatch(AuditBatchConfig{
		Store:      f.store,
		Ledger:     f.ledger,
		Generator:  f.generator,
		Summarizer: parser.NewSummarizer(parser.DialectATX),
		Reporter:   f.reporter,
		Publisher:  f.publisher,
		Mirror:     f.mirror,
		Clock:      f.clock,
		Delay:      2 * time.Second,
		Metrics:    f.metrics,
	})
	require.NoError(t, err)
	f.batch = batch
	return f
}

func (f *batchFixture) save(t *testing.T, rec internal.ContractRecord) {
	t.Helper()
	require.NoError(t, f.store.Save(context.Background(), rec))
}

func trendingRecord(addr string) internal.ContractRecord {
	return internal.ContractRecord{
		Address:       addr,
		SourceCode:    "contract Pepe {}",
		Platform:      internal.PlatformEtherscan,
		TwitterHandle: "pepecoineth",
		Coin:          internal.CoinDetails{ID: "pepe", Name: "Pepe Coin"},
	}
}

func TestAuditBatchPublishesAndRecords(t *testing.T) {
	t.Parallel()

	f := newBatchFixture(t)
	f.save(t, trendingRecord(addrA))

	stats, err := f.batch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Published)

	require.Len(t, f.publisher.sent, 1)
	post := f.publisher.sent[0].Text
	assert.Contains(t, post, "Hi @pepecoineth!")
	assert.Contains(t, post, "🔴 Critical Severity Issues: 2")
	assert.Contains(t, post, "🟢 Low Severity Issues: 1")
	assert.Contains(t, post, "Full Report: https://pastebin.com/raw/")
	assert.Contains(t, post, "#PepeCoin #Crypto #CertaiK #Audit")
	assert.Equal(t, f.publisher.sent, f.mirror.sent)

	require.Len(t, f.reporter.reports, 1)
	rep := f.reporter.reports[0]
	assert.Equal(t, internal.ContractKey(addrA), rep.Address)
	assert.Equal(t, 2, rep.Summary.Critical)

	assert.True(t, f.ledger.Has(internal.ContractKey(addrA)))
	assert.Equal(t, 1, f.clock.sleepCount())

	reloaded := ledger.NewFileLedger(f.ledger.Path())
	require.NoError(t, reloaded.Load(context.Background()))
	assert.True(t, reloaded.Has(internal.ContractKey(addrA)), "recorded keys survive a restart")
}

func TestAuditBatchSkipsRecordedKeys(t *testing.T) {
	t.Parallel()

	f := newBatchFixture(t)
	f.save(t, trendingRecord(addrA))

	_, err := f.batch.Run(context.Background())
	require.NoError(t, err)

	stats, err := f.batch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Published)
	assert.Len(t, f.publisher.sent, 1, "second run publishes nothing")
	assert.Len(t, f.generator.sources, 1)
}

func TestAuditBatchSkipsIncompleteRecords(t *testing.T) {
	t.Parallel()

	f := newBatchFixture(t)
	rec := trendingRecord(addrA)
	rec.TwitterHandle = ""
	f.save(t, rec)

	stats, err := f.batch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, f.generator.sources)
	assert.False(t, f.ledger.Has(internal.ContractKey(addrA)))
}

func TestAuditBatchNoFindingsIsNotPublished(t *testing.T) {
	t.Parallel()

	f := newBatchFixture(t)
	f.generator.body = "The contract looks fine."
	f.save(t, trendingRecord(addrA))

	stats, err := f.batch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NoFindings)
	assert.Empty(t, f.publisher.sent)
	assert.Empty(t, f.reporter.reports)
	assert.False(t, f.ledger.Has(internal.ContractKey(addrA)))
	assert.Equal(t, 0, f.clock.sleepCount())
}

func TestAuditBatchItemFailureDoesNotAbortRun(t *testing.T) {
	t.Parallel()

	f := newBatchFixture(t)
	f.publisher.err = errBoom
	f.save(t, trendingRecord(addrA))
	f.save(t, trendingRecord(addrB))

	stats, err := f.batch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Failed)
	assert.Len(t, f.generator.sources, 2, "both records were attempted")
	assert.False(t, f.ledger.Has(internal.ContractKey(addrA)))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ItemsProcessed.WithLabelValues(JobAudit, metrics.OutcomeFailed)))
}

func TestAuditBatchMirrorFailureIsIgnored(t *testing.T) {
	t.Parallel()

	f := newBatchFixture(t)
	f.mirror.err = errBoom
	f.save(t, trendingRecord(addrA))

	stats, err := f.batch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Published)
	assert.True(t, f.ledger.Has(internal.ContractKey(addrA)))
}

func TestAuditBatchLedgerWriteFailureEndsRun(t *testing.T) {
	t.Parallel()

	f := newBatchFixture(t)
	f.save(t, trendingRecord(addrA))
	f.save(t, trendingRecord(addrB))

	batch, err := NewAuditBatch(AuditBatchConfig{
		Store:      f.store,
		Ledger:     &failingLedger{},
		Generator:  f.generator,
		Summarizer: parser.NewSummarizer(parser.DialectATX),
		Reporter:   f.reporter,
		Publisher:  f.publisher,
		Clock:      f.clock,
	})
	require.NoError(t, err)

	_, err = batch.Run(context.Background())
	require.ErrorIs(t, err, errLedgerWrite)
	assert.Len(t, f.generator.sources, 1, "run stopped after the first ledger failure")
}

func TestNewAuditBatchRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewAuditBatch(AuditBatchConfig{})
	require.Error(t, err)
}
