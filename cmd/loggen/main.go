// Command loggen writes a synthetic W3C extended access log for exercising
// the loader: periodic header blocks, blank lines, and query strings that
// sometimes carry a campaign tag.
//
// Usage:
//
//	go run ./cmd/loggen -lines 10000 -out access.log
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"
)

type Config struct {
	Lines        int
	HeaderEvery  int
	CampaignRate float64
	Campaigns    []string
	Start        time.Time
	Seed         int64
}

type Stats struct {
	Lines     int
	Headers   int
	Data      int
	Campaigns int
}

var fields = []string{
	"date", "time", "s-ip", "cs-method", "cs-uri-stem", "cs-uri-query",
	"s-port", "cs-username", "c-ip", "cs(User-Agent)", "cs(Referer)",
	"sc-status", "sc-substatus", "sc-win32-status", "time-taken",
}

var (
	methods = []string{"GET", "GET", "GET", "POST", "HEAD"}
	stems   = []string{"/", "/index.html", "/products", "/products/42", "/cart", "/api/v1/items", "/static/app.js"}
	agents  = []string{"Mozilla/5.0+(Windows+NT+10.0)", "Mozilla/5.0+(Macintosh)", "curl/8.4.0", "Googlebot/2.1"}
	codes   = []int{200, 200, 200, 200, 304, 404, 500}
)

func main() {
	lines := flag.Int("lines", 1000, "number of data lines to write")
	headerEvery := flag.Int("header-every", 0, "repeat the header block every N data lines (0 = once)")
	campaignRate := flag.Float64("campaign-rate", 0.3, "fraction of requests carrying pk_campaign")
	out := flag.String("out", "", "output file (stdout when empty)")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	cfg := Config{
		Lines:        *lines,
		HeaderEvery:  *headerEvery,
		CampaignRate: *campaignRate,
		Campaigns:    []string{"summer", "winter", "newsletter", "launch"},
		Start:        time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Seed:         *seed,
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	stats, err := generate(w, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to write log: %v\n", err)
		os.Exit(1)
	}
	printReport(os.Stderr, stats)
}

func generate(w io.Writer, cfg Config) (Stats, error) {
	var stats Stats
	bw := bufio.NewWriter(w)
	rng := rand.New(rand.NewSource(cfg.Seed))
	ts := cfg.Start

	writeHeader := func() {
		fmt.Fprintf(bw, "#Software: loggen\n#Version: 1.0\n#Date: %s\n#Fields:", ts.Format("2006-01-02 15:04:05"))
		for _, f := range fields {
			bw.WriteString(" " + f)
		}
		bw.WriteByte('\n')
		stats.Lines += 4
		stats.Headers++
	}

	writeHeader()
	for i := 0; i < cfg.Lines; i++ {
		if cfg.HeaderEvery > 0 && i > 0 && i%cfg.HeaderEvery == 0 {
			bw.WriteByte('\n')
			stats.Lines++
			writeHeader()
		}
		ts = ts.Add(time.Duration(rng.Intn(2000)) * time.Millisecond)

		query := "-"
		if rng.Float64() < cfg.CampaignRate {
			query = fmt.Sprintf("ref=home&pk_campaign=%s", cfg.Campaigns[rng.Intn(len(cfg.Campaigns))])
			stats.Campaigns++
		} else if rng.Intn(2) == 0 {
			query = fmt.Sprintf("page=%d", rng.Intn(20))
		}

		fmt.Fprintf(bw, "%s\t%s\t10.0.0.1\t%s\t%s\t%s\t443\t-\t192.168.%d.%d\t%s\t-\t%d\t0\t0\t%d\n",
			ts.Format("2006-01-02"),
			ts.Format("15:04:05"),
			methods[rng.Intn(len(methods))],
			stems[rng.Intn(len(stems))],
			query,
			rng.Intn(256), rng.Intn(256),
			agents[rng.Intn(len(agents))],
			codes[rng.Intn(len(codes))],
			rng.Intn(900)+10,
		)
		stats.Lines++
		stats.Data++
	}
	return stats, bw.Flush()
}

func printReport(w io.Writer, s Stats) {
	fmt.Fprintln(w, "=== Access Log Generated ===")
	fmt.Fprintf(w, "Lines:     %d\n", s.Lines)
	fmt.Fprintf(w, "Headers:   %d\n", s.Headers)
	fmt.Fprintf(w, "Data:      %d\n", s.Data)
	fmt.Fprintf(w, "Campaigns: %d\n", s.Campaigns)
}
