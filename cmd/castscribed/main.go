// Command castscribed runs the castscribe daemon without the CLI command tree.
// The configuration file is taken from CASTSCRIBE_CONFIG when set.
package main

import (
	"context"
	"errors"
	"log"
	"os"

	"castscribe/internal/config"
	"castscribe/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load(os.Getenv("CASTSCRIBE_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("castscribed: %v", err)
	}
}
