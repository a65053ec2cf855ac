package provenance

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Format selects an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts json or csv in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the media type of the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Write encodes h in the given format.
func Write(w io.Writer, h History, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(h)
	case FormatCSV:
		return writeCSV(w, h)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

var csvHeader = []string{
	"operation_id", "operation_type", "user", "performed",
	"source_barcode", "source_address", "destination_barcode", "destination_address",
	"source_sample_id", "sample_id", "tissue", "section", "comments",
}

func writeCSV(w io.Writer, h History) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range h.Entries {
		section := ""
		if e.Section != nil {
			section = strconv.Itoa(*e.Section)
		}
		if err := cw.Write([]string{
			strconv.Itoa(e.OperationID),
			e.OperationType,
			e.User,
			e.PerformedAt.UTC().Format(time.RFC3339),
			e.SourceBarcode,
			e.SourceAddress,
			e.DestinationBarcode,
			e.DestinationAddress,
			strconv.Itoa(e.SourceSampleID),
			strconv.Itoa(e.SampleID),
			e.Tissue,
			section,
			strings.Join(e.Comments, "; "),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
