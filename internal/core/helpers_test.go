package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/kobosync/internal/lock"
	"github.com/JonMunkholm/kobosync/internal/record"
	"github.com/JonMunkholm/kobosync/internal/store"
	"github.com/JonMunkholm/kobosync/internal/store/memory"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var errBoom = errors.New("boom")

// submission builds a complete, valid raw record.
func submission(id int64, manifest, phone, submitted string) record.Record {
	return record.Record{
		string(record.KeyID):                id,
		string(record.KeyFormhubUUID):       "7f0c7b2e-1d4a-4c55-9f0e-2b8d1f7c9a10",
		string(record.KeyStartTime):         "2024-01-10T09:00:00.000+03:00",
		string(record.KeyEndTime):           "2024-01-10T09:30:00.000+03:00",
		string(record.KeySurveyDate):        "2024-01-10",
		string(record.KeySubmissionTime):    submitted,
		string(record.KeyUniqueID):          "U-" + manifest,
		string(record.KeyCountry):           "Kenya",
		string(record.KeyRegion):            "Nairobi",
		string(record.KeyLocation):          "Kibera",
		string(record.KeySurveyorName):      "Jane Doe",
		string(record.KeyCohort):            "C1",
		string(record.KeyProgram):           "Retail",
		string(record.KeyClientManifestID):  manifest,
		string(record.KeyClientName):        "Client " + manifest,
		string(record.KeyPhone):             phone,
		string(record.KeyPhoneType):         "smart",
		string(record.KeyGender):            "female",
		string(record.KeyAge):               "34",
		string(record.KeyNationality):       "Kenyan",
		string(record.KeyDependents):        "2",
		string(record.KeyBusinessStatus):    "existing",
		string(record.KeyBusinessOperating): "yes",
	}
}

type fakeFetcher struct {
	mu    sync.Mutex
	recs  []record.Record
	err   error
	calls int
}

func (f *fakeFetcher) FetchAllWithRetry(ctx context.Context) ([]record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]record.Record(nil), f.recs...), nil
}

func (f *fakeFetcher) set(recs ...record.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = recs
}

func newTestService(t *testing.T, gw store.Gateway, f Fetcher, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithLocker(lock.NewLocal(20 * time.Millisecond)),
	}, opts...)
	s, err := NewService(gw, f, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s
}

// failingGateway fails every Upsert into one table.
type failingGateway struct {
	*memory.Gateway
	failOn *store.Table
}

func (g failingGateway) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := g.Gateway.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return failingTx{Tx: tx, failOn: g.failOn}, nil
}

type failingTx struct {
	store.Tx
	failOn *store.Table
}

func (x failingTx) Upsert(ctx context.Context, t *store.Table, row []any) error {
	if t == x.failOn {
		return errBoom
	}
	return x.Tx.Upsert(ctx, t, row)
}

func column(t *testing.T, table *store.Table, row []any, name string) any {
	t.Helper()
	i := table.ColumnIndex(name)
	if i < 0 {
		t.Fatalf("no column %s in %s", name, table.Name)
	}
	return row[i]
}
