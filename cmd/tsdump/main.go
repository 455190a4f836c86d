// Command tsdump prints the entries of the telemetry time-series store.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"trafficserver/internal/config"
	"trafficserver/internal/repository/timeseries"
)

func main() {
	dir := flag.String("dir", "", "Time-series directory (defaults to TIMESERIES_DIR)")
	topic := flag.String("topic", "", "Topic or path to dump, e.g. iot/backend/traffic")
	limit := flag.Int("limit", 0, "Print only the last N entries (0 for all)")
	flag.Parse()

	if *dir == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		*dir = cfg.TimeSeriesDir
	}

	store, err := timeseries.New(*dir)
	if err != nil {
		log.Fatalf("Failed to open time-series store: %v", err)
	}

	if *topic == "" {
		paths, err := store.Paths()
		if err != nil {
			log.Fatalf("Failed to list paths: %v", err)
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return
	}

	entries, err := store.Read(*topic, *limit)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *topic, err)
	}

	enc := json.NewEncoder(os.Stdout)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			log.Fatalf("Failed to encode entry: %v", err)
		}
	}
}
