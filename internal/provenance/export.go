package provenance

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"

	"github.com/oklog/ulid/v2"

	"labcore/internal/blob"
	"labcore/pkg/domain"
)

// KeyPrefix is the blob key prefix under which exports are written.
const KeyPrefix = "provenance"

// Exporter writes labware histories to a blob store.
type Exporter struct {
	store domain.PersistentStore
	blobs blob.Store
	newID func() ulid.ULID
}

// NewExporter returns an exporter reading from store and writing to blobs.
func NewExporter(store domain.PersistentStore, blobs blob.Store) *Exporter {
	return &Exporter{store: store, blobs: blobs, newID: ulid.Make}
}

// Export renders the history of barcode and stores it at
// provenance/<barcode>/<ulid>.<format>. Keys sort by creation time.
func (e *Exporter) Export(ctx context.Context, barcode string, format Format) (blob.Info, error) {
	h, err := Load(ctx, e.store, barcode)
	if err != nil {
		return blob.Info{}, err
	}
	var buf bytes.Buffer
	if err := Write(&buf, h, format); err != nil {
		return blob.Info{}, fmt.Errorf("encode %s: %w", format, err)
	}
	key := path.Join(KeyPrefix, h.Barcode, e.newID().String()+"."+string(format))
	info, err := e.blobs.Put(ctx, key, &buf, blob.PutOptions{
		ContentType: format.ContentType(),
		Metadata: map[string]string{
			"barcode": h.Barcode,
			"entries": strconv.Itoa(len(h.Entries)),
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store export: %w", err)
	}
	return info, nil
}

// List returns the stored exports for barcode, oldest first.
func (e *Exporter) List(ctx context.Context, barcode string) ([]blob.Info, error) {
	return e.blobs.List(ctx, path.Join(KeyPrefix, barcode)+"/")
}
