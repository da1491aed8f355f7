// Command genmock generates mock raw-report fixtures for local runs of the
// hazard engine: a JSON-lines file of ground-sensor and satellite hazard
// reports plus resource position updates, ready to pipe into the ingest
// topic with a console producer.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/reports.jsonl -hazards 20 -resources 5 -seed 42
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

// seedSites anchor generated hazards around plausible California locations,
// matching the dashboard's demo dataset.
var seedSites = []struct {
	name string
	lat  float64
	lon  float64
}{
	{"Los Angeles", 34.0522, -118.2437},
	{"Fresno", 36.7783, -119.4179},
	{"San Francisco", 37.7749, -122.4194},
}

var resourceTypes = []string{"fire-truck", "medical-supply", "water-tanker"}

func main() {
	out := flag.String("out", "reports.jsonl", "output file path")
	hazards := flag.Int("hazards", 20, "number of hazard reports")
	resources := flag.Int("resources", 5, "number of resource reports")
	satFraction := flag.Float64("sat-fraction", 0.3, "fraction of hazard reports in satellite format")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output directory: %v\n", err)
		os.Exit(1)
	}
	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create output file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	lines := 0

	for i := 0; i < *hazards; i++ {
		site := seedSites[rng.Intn(len(seedSites))]
		lat := site.lat + (rng.Float64()-0.5)*0.5
		lon := site.lon + (rng.Float64()-0.5)*0.5
		intensity := float64(rng.Intn(101))
		seq := int64(i + 1)

		var report any
		if rng.Float64() < *satFraction {
			report = map[string]any{
				"source":       "satellite",
				"detection_id": fmt.Sprintf("goes-17-%05d", i),
				"lat_e6":       int64(lat * 1e6),
				"lon_e6":       int64(lon * 1e6),
				"confidence":   intensity / 100,
				"seq":          seq,
			}
		} else {
			report = map[string]any{
				"kind":      "hazard",
				"id":        fmt.Sprintf("fire-%03d", i),
				"lat":       lat,
				"lon":       lon,
				"intensity": intensity,
				"seq":       seq,
				"location":  site.name,
			}
		}
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
			os.Exit(1)
		}
		lines++
	}

	for i := 0; i < *resources; i++ {
		site := seedSites[rng.Intn(len(seedSites))]
		rtype := resourceTypes[rng.Intn(len(resourceTypes))]
		report := map[string]any{
			"kind":  "resource",
			"id":    fmt.Sprintf("%s-%02d", rtype, i),
			"lat":   site.lat + (rng.Float64()-0.5)*0.2,
			"lon":   site.lon + (rng.Float64()-0.5)*0.2,
			"type":  rtype,
			"label": fmt.Sprintf("Unit %c", 'A'+i%26),
			"seq":   int64(i + 1),
		}
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
			os.Exit(1)
		}
		lines++
	}

	fmt.Printf("wrote %d reports to %s (seed %d)\n", lines, *out, *seed)
}
