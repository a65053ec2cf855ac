// Package provenance reads the recorded history of a labware and exports it
// as JSON or CSV to the blob store.
package provenance

import (
	"context"
	"sort"
	"strings"
	"time"

	"labcore/pkg/domain"
)

// Entry is one action of an operation that touched the labware.
type Entry struct {
	OperationID        int       `json:"operation_id"`
	OperationType      string    `json:"operation_type"`
	User               string    `json:"user"`
	PerformedAt        time.Time `json:"performed"`
	SourceBarcode      string    `json:"source_barcode"`
	SourceAddress      string    `json:"source_address"`
	DestinationBarcode string    `json:"destination_barcode"`
	DestinationAddress string    `json:"destination_address"`
	SourceSampleID     int       `json:"source_sample_id"`
	SampleID           int       `json:"sample_id"`
	Tissue             string    `json:"tissue"`
	Section            *int      `json:"section,omitempty"`
	Comments           []string  `json:"comments,omitempty"`
}

// History is the ordered provenance of one labware.
type History struct {
	Barcode string  `json:"barcode"`
	Entries []Entry `json:"entries"`
}

// Load builds the history of the labware with the given barcode, ordered by
// performed time, then operation id, then action order.
func Load(ctx context.Context, store domain.PersistentStore, barcode string) (History, error) {
	var h History
	err := store.View(ctx, func(v domain.TransactionView) error {
		lw, ok := v.FindLabwareByBarcode(barcode)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityLabware, Key: strings.TrimSpace(barcode)}
		}
		h = build(v, lw)
		return nil
	})
	return h, err
}

type slotRef struct {
	barcode string
	address string
}

func build(v domain.TransactionView, lw domain.Labware) History {
	h := History{Barcode: lw.Barcode, Entries: []Entry{}}
	slots := make(map[int]slotRef)
	resolve := func(slotID int) slotRef {
		if ref, ok := slots[slotID]; ok {
			return ref
		}
		var ref slotRef
		if slot, ok := v.FindSlot(slotID); ok {
			ref.address = slot.Address.String()
			if owner, ok := v.FindLabware(slot.LabwareID); ok {
				ref.barcode = owner.Barcode
			}
		}
		slots[slotID] = ref
		return ref
	}
	comments := make(map[int]string)
	commentText := func(id int) string {
		if text, ok := comments[id]; ok {
			return text
		}
		c, _ := v.FindComment(id)
		comments[id] = c.Text
		return c.Text
	}

	ops := v.ListOperationsForLabware(lw.ID)
	sort.SliceStable(ops, func(i, j int) bool {
		if !ops[i].PerformedAt.Equal(ops[j].PerformedAt) {
			return ops[i].PerformedAt.Before(ops[j].PerformedAt)
		}
		return ops[i].ID < ops[j].ID
	})
	for _, op := range ops {
		opComments := v.ListOperationComments(op.ID)
		for _, a := range op.Actions {
			src, dst := resolve(a.SourceSlotID), resolve(a.DestinationSlotID)
			if src.barcode != lw.Barcode && dst.barcode != lw.Barcode {
				continue
			}
			e := Entry{
				OperationID:        op.ID,
				OperationType:      op.OperationType.Name,
				User:               op.User.Username,
				PerformedAt:        op.PerformedAt,
				SourceBarcode:      src.barcode,
				SourceAddress:      src.address,
				DestinationBarcode: dst.barcode,
				DestinationAddress: dst.address,
				SourceSampleID:     a.SourceSampleID,
				SampleID:           a.SampleID,
			}
			if sample, ok := v.FindSample(a.SampleID); ok {
				e.Tissue = sample.Tissue
				e.Section = sample.Section
			}
			for _, oc := range opComments {
				if oc.SampleID != nil && *oc.SampleID != a.SampleID {
					continue
				}
				if oc.SlotID != nil && *oc.SlotID != a.DestinationSlotID {
					continue
				}
				e.Comments = append(e.Comments, commentText(oc.CommentID))
			}
			h.Entries = append(h.Entries, e)
		}
	}
	return h
}
