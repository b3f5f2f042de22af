package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/aletheia-ai/aegis/pkg/config"
	"github.com/aletheia-ai/aegis/pkg/ledger"
)

// runVerifyCmd checks a run's audit chain in the configured store.
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	runID := fs.String("run", "", "assessment run ID")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *runID == "" {
		fmt.Fprintln(stderr, "verify: -run is required")
		return 2
	}

	store, err := openStore(config.Load())
	if err != nil {
		fmt.Fprintf(stderr, "verify: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	led := ledger.New(store)
	ctx := context.Background()

	head, err := led.Head(ctx, *runID)
	if err != nil {
		fmt.Fprintf(stderr, "verify: %v\n", err)
		return 1
	}
	if head == nil {
		fmt.Fprintf(stderr, "verify: run %s has no events\n", *runID)
		return 1
	}

	if err := led.Verify(ctx, *runID, 0, 0); err != nil {
		var chainErr *ledger.ChainIntegrityError
		if errors.As(err, &chainErr) {
			fmt.Fprintf(stdout, "FAIL run %s: chain broken at sequence %d (%s)\n",
				*runID, chainErr.Sequence, chainErr.Reason)
		} else {
			fmt.Fprintf(stderr, "verify: %v\n", err)
		}
		return 1
	}

	stats, err := led.Stats(ctx, *runID)
	if err != nil {
		fmt.Fprintf(stderr, "verify: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "OK run %s: %d events (%d redacted), head %s\n",
		*runID, stats.EventCount, stats.RedactedCount, head.Hash)
	return 0
}
