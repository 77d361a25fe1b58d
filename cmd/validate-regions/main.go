// Package main provides a validator for region YAML definition files.
// It loads a regions directory and cross-checks coin keys and exchange
// rates the same way the daemon does at startup.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/tmarsden/coffers/internal/ledger"
)

func main() {
	regionsDir := flag.String("regions", "content/regions", "path to region YAML files directory")
	flag.Parse()

	start := time.Now()

	logger := zap.NewNop()
	registry, err := ledger.NewRegistryFromDir(*regionsDir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	regions := registry.Regions()
	for _, region := range regions {
		fmt.Printf("%s (%s): %d coins, %d exchange rates\n",
			region.Key, region.Name, len(region.Coins), len(region.ExchangeRates))
		for _, coin := range region.Coins {
			fmt.Printf("  %s (%s) = %d\n", coin.Key, coin.Name, coin.UnitValue)
		}
	}
	fmt.Printf("%d regions valid in %s\n", len(regions), time.Since(start).Round(time.Millisecond))
}
