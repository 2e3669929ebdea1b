// Package benchmark contains Go benchmarks for the access-log decoder,
// document identity and bulk payload encoding, measuring throughput and
// allocation behaviour.
package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/batcher"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/enrich"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/identity"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/pipeline"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/internal/ingestion/w3c"
	"github.com/Adithya-Monish-Kumar-K/accesslog-loader/pkg/metrics"
)

const fieldsLine = "#Fields: date time s-ip cs-method cs-uri-stem cs-uri-query s-port cs-username c-ip cs(User-Agent) cs(Referer) sc-status sc-substatus sc-win32-status time-taken"

func sampleLine(i int) string {
	return fmt.Sprintf("2020-01-01\t00:%02d:%02d\t10.0.0.1\tGET\t/page/%d\ta=1&pk_campaign=c%d\t443\t-\t192.168.1.%d\tMozilla/5.0\t-\t200\t0\t0\t%d",
		(i/60)%60, i%60, i, i%7, i%255, i%1000)
}

func sampleLog(n int) string {
	var sb strings.Builder
	sb.WriteString(fieldsLine + "\n")
	for i := 0; i < n; i++ {
		sb.WriteString(sampleLine(i))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func BenchmarkDecode(b *testing.B) {
	tracker := w3c.NewHeaderTracker()
	tracker.Observe(fieldsLine)
	dec := w3c.NewDecoder(tracker)
	line := sampleLine(42)
	b.ReportAllocs()
	b.SetBytes(int64(len(line)))
	for i := 0; i < b.N; i++ {
		_, rec, err := dec.Decode(i, line)
		if err != nil {
			b.Fatal(err)
		}
		_ = rec
	}
}

func BenchmarkDocumentID(b *testing.B) {
	line := []byte(sampleLine(42))
	b.ReportAllocs()
	b.SetBytes(int64(len(line)))
	for i := 0; i < b.N; i++ {
		_ = identity.DocumentID(line)
	}
}

func BenchmarkDocumentIDParallel(b *testing.B) {
	line := []byte(sampleLine(42))
	b.ReportAllocs()
	b.SetBytes(int64(len(line)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = identity.DocumentID(line)
		}
	})
}

func BenchmarkEnrich(b *testing.B) {
	e := enrich.NewCampaignEnricher("cs-uri-query", "campaign", []string{"pk_campaign"})
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rec := ingestion.Record{"cs-uri-query": "a=1&b=2&pk_campaign=summer&utm_source=mail"}
		if err := e.Enrich(rec); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPayload(b *testing.B) {
	for _, size := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("chunk_%d", size), func(b *testing.B) {
			bt := batcher.New("access-logs", "accesslog-campaign", size)
			var chunk *batcher.Chunk
			for i := 0; chunk == nil; i++ {
				chunk = bt.Add(ingestion.Document{
					ID:     identity.DocumentID([]byte(sampleLine(i))),
					Record: ingestion.Record{"date": "2020-01-01", "cs-uri-stem": fmt.Sprintf("/page/%d", i)},
				})
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := chunk.Payload(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

type discardSubmitter struct{}

func (discardSubmitter) Submit(ctx context.Context, chunk *batcher.Chunk) error {
	_, err := chunk.Payload()
	return err
}

func BenchmarkPipelineRun(b *testing.B) {
	input := sampleLog(10000)
	m := metrics.New(prometheus.NewRegistry())
	p := pipeline.New(pipeline.Options{
		Index:     "access-logs",
		ChunkSize: 100,
		Enricher:  enrich.NewCampaignEnricher("cs-uri-query", "campaign", []string{"pk_campaign"}),
	}, discardSubmitter{}, m)
	b.ReportAllocs()
	b.SetBytes(int64(len(input)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Run(context.Background(), strings.NewReader(input)); err != nil {
			b.Fatal(err)
		}
	}
}
