package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/aletheia-ai/aegis/pkg/config"
	"github.com/aletheia-ai/aegis/pkg/ledger"
)

// runExportCmd writes a signed evidence pack for a run to disk.
func runExportCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	runID := fs.String("run", "", "assessment run ID")
	outPath := fs.String("out", "", "output zip path (default evidence-<run>.zip)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *runID == "" {
		fmt.Fprintln(stderr, "export: -run is required")
		return 2
	}

	cfg := config.Load()
	if cfg.ExportSecret == "" {
		fmt.Fprintln(stderr, "export: EXPORT_SECRET must be set")
		return 2
	}

	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "export: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	signer, err := ledger.NewSigner([]byte(cfg.ExportSecret))
	if err != nil {
		fmt.Fprintf(stderr, "export: %v\n", err)
		return 1
	}
	exporter := ledger.NewExporter(ledger.New(store), signer)

	bundle, err := exporter.Export(context.Background(), *runID)
	if err != nil {
		fmt.Fprintf(stderr, "export: %v\n", err)
		return 1
	}

	path := *outPath
	if path == "" {
		path = "evidence-" + *runID + ".zip"
	}
	if err := os.WriteFile(path, bundle.Archive, 0o600); err != nil {
		fmt.Fprintf(stderr, "export: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "wrote %s (%d events)\n", path, bundle.EventCount)
	fmt.Fprintf(stdout, "checksum  %s\n", bundle.Checksum)
	fmt.Fprintf(stdout, "signature %s\n", bundle.Signature)
	return 0
}
