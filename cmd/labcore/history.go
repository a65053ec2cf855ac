package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"labcore/internal/blob"
	"labcore/internal/provenance"
)

func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("history", stderr)
	barcode := fs.String("barcode", "", "labware barcode (required)")
	format := fs.String("format", string(provenance.FormatJSON), "output format: json or csv")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	f, err := requireBarcodeAndFormat(*barcode, *format)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	h, err := provenance.Load(ctx, a.store, *barcode)
	if err != nil {
		return err
	}
	return provenance.Write(stdout, h, f)
}

func runExport(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("export", stderr)
	barcode := fs.String("barcode", "", "labware barcode (required)")
	format := fs.String("format", string(provenance.FormatJSON), "export format: json or csv")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	f, err := requireBarcodeAndFormat(*barcode, *format)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	blobs, err := blob.Open(ctx, a.cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	if c, ok := blobs.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}
	info, err := provenance.NewExporter(a.store, blobs).Export(ctx, *barcode, f)
	if err != nil {
		return err
	}
	a.logger.Info("provenance exported", "barcode", strings.TrimSpace(*barcode), "key", info.Key, "driver", string(blobs.Driver()))
	return writeJSON(stdout, info)
}

func requireBarcodeAndFormat(barcode, format string) (provenance.Format, error) {
	if strings.TrimSpace(barcode) == "" {
		return "", fmt.Errorf("%w: -barcode is required", errUsage)
	}
	f, err := provenance.ParseFormat(format)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errUsage, err)
	}
	return f, nil
}
