package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/JonMunkholm/kobosync/internal/mapping"
	"github.com/JonMunkholm/kobosync/internal/quality"
	"github.com/JonMunkholm/kobosync/internal/record"
	"github.com/JonMunkholm/kobosync/internal/store/memory"
)

// ============================================================================
// Normalization Benchmarks
// ============================================================================

// BenchmarkFoldToken benchmarks enum token folding.
// Every enum field of every submission passes through it.
func BenchmarkFoldToken(b *testing.B) {
	testCases := []string{
		"Smart Phone",
		"  FEMALE ",
		"Féminin",
		"new / business",
		"don't know",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			mapping.FoldToken(tc)
		}
	}
}

// BenchmarkParseTimestamp benchmarks the accepted timestamp layouts.
func BenchmarkParseTimestamp(b *testing.B) {
	testCases := []string{
		"2024-02-10T09:00:00.000+03:00", // device time with offset
		"2024-02-10T07:00:00",           // server submission time
		"2024-02-10 07:00:00.75",        // space separated
		"2024-02-10T07:00:00Z",          // UTC
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			mapping.ParseTimestamp(tc)
		}
	}
}

// ============================================================================
// Batch Benchmarks
// ============================================================================

// benchSubmissions builds n valid submissions spread over 50 clients, so
// entity dedup does real work.
func benchSubmissions(n int) []record.Record {
	recs := make([]record.Record, n)
	for i := range recs {
		manifest := fmt.Sprintf("M-%d", i%50)
		recs[i] = submission(int64(i+1), manifest, "+254700000001", "2024-01-10T10:00:00")
	}
	return recs
}

// BenchmarkMapBatch benchmarks mapping a page-sized batch.
func BenchmarkMapBatch(b *testing.B) {
	recs := benchSubmissions(1000)
	m := mapping.New(testNow)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.MapBatch(ctx, recs); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCheckBatch benchmarks the concurrent validator.
func BenchmarkCheckBatch(b *testing.B) {
	recs := benchSubmissions(1000)
	v := quality.NewValidator(testNow)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := v.CheckBatch(ctx, recs); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSyncRecords benchmarks a whole pass against the memory store.
// The first iteration inserts; later ones take the update path.
func BenchmarkSyncRecords(b *testing.B) {
	recs := benchSubmissions(1000)
	s, err := NewService(memory.New(), nil, WithClock(func() time.Time { return testNow }))
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.SyncRecords(ctx, ModeFull, recs); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMapBatchParallel benchmarks mapping under concurrent passes.
func BenchmarkMapBatchParallel(b *testing.B) {
	recs := benchSubmissions(200)
	m := mapping.New(testNow)
	ctx := context.Background()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.MapBatch(ctx, recs)
		}
	})
}
