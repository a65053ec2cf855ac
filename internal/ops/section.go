package ops

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"labcore/internal/core"
	"labcore/internal/validation"
	"labcore/pkg/domain"
)

// SectionItem cuts (or plans) one section from a block into a destination slot.
type SectionItem struct {
	SourceBarcode      string `json:"sourceBarcode"`
	DestinationBarcode string `json:"destinationBarcode"`
	DestinationAddress string `json:"destinationAddress"`
	// SectionNumber is allocated from the block when nil.
	SectionNumber *int `json:"sectionNumber,omitempty"`
}

// SectionRequest cuts sections from blocks.
type SectionRequest struct {
	Items      []SectionItem `json:"items"`
	WorkNumber string        `json:"workNumber"`
}

// PlanRequest records sections planned ahead of cutting.
type PlanRequest struct {
	Items []SectionItem `json:"items"`
}

type sectionCut struct {
	block       domain.Labware
	blockSlot   domain.Slot
	blockSample domain.Sample
	destination domain.Labware
	destSlot    domain.Slot
	number      *int
}

type sectionInput struct {
	opType domain.OperationType
	work   domain.Work
	cuts   []sectionCut
}

// Section creates a new sample per cut, places it in the destination slot,
// records one operation per destination labware and raises each block's
// highest section to the highest number used.
func (r *Runner) Section(ctx context.Context, user *domain.User, req *SectionRequest) (core.OperationResult, error) {
	return run(ctx, r, LabelSection, user, req, validateSection, r.recordSection)
}

// Plan stores planned sections so later cuts number past them.
func (r *Runner) Plan(ctx context.Context, user *domain.User, req *PlanRequest) (domain.Plan, error) {
	return run(ctx, r, LabelPlan, user, req, validatePlan, r.recordPlan)
}

// NextSection returns the number the next automatically numbered section from
// the block slot receives: one above both its counter and any planned number.
func NextSection(view domain.TransactionView, blockSlot domain.Slot) int {
	return max(blockSlot.HighestSection(), plannedMax(view, blockSlot.ID)) + 1
}

func plannedMax(view domain.TransactionView, slotID int) int {
	highest := 0
	for _, pa := range view.ListPlannedActionsFromSlot(slotID) {
		if pa.NewSection != nil && *pa.NewSection > highest {
			highest = *pa.NewSection
		}
	}
	return highest
}

func validateSection(view domain.TransactionView, _ domain.User, req SectionRequest) (sectionInput, domain.Problems) {
	var p domain.Problems
	var in sectionInput
	in.opType = requireOperationType(view, domain.OpTypeSection, domain.FlagSourceIsBlock, &p)
	if w, ok := validation.LoadWork(view, req.WorkNumber, &p); ok {
		in.work = w
	}
	cuts, ok := resolveCuts(view, req.Items, &p)
	if !ok {
		return in, p
	}
	in.cuts = numberSections(view, cuts, &p)
	return in, p
}

func validatePlan(view domain.TransactionView, _ domain.User, req PlanRequest) (sectionInput, domain.Problems) {
	var p domain.Problems
	var in sectionInput
	in.opType = requireOperationType(view, domain.OpTypeSection, domain.FlagSourceIsBlock, &p)
	cuts, _ := resolveCuts(view, req.Items, &p)
	var negative []int
	for _, c := range cuts {
		if c.number != nil && *c.number < 0 {
			negative = append(negative, *c.number)
		}
	}
	if len(negative) > 0 {
		p.Addf("Planned section numbers cannot be negative: %s.", domain.DescribeList(negative))
	}
	in.cuts = cuts
	return in, p
}

// resolveCuts loads the source blocks and destination slots of every item.
func resolveCuts(view domain.TransactionView, items []SectionItem, p *domain.Problems) ([]sectionCut, bool) {
	if len(items) == 0 {
		p.Add("No sections specified.")
		return nil, false
	}
	var sourceCodes, destCodes []string
	for _, item := range items {
		sourceCodes = appendOnce(sourceCodes, item.SourceBarcode)
		destCodes = appendOnce(destCodes, item.DestinationBarcode)
	}

	sv := validation.NewLabwareValidator()
	sources := sv.Load(view, sourceCodes)
	sv.ValidateNonEmpty()
	sv.ValidateStates()
	sv.MergeInto(p)

	dv := validation.NewLabwareValidator()
	destinations := dv.Load(view, destCodes)
	dv.ValidateStates()
	dv.MergeInto(p)

	blocks := make(map[string]sectionCut, len(sources))
	var notBlocks []string
	for _, lw := range sources {
		idx := slices.IndexFunc(lw.Slots, domain.Slot.IsBlock)
		if idx < 0 {
			notBlocks = append(notBlocks, lw.Barcode)
			continue
		}
		slot := lw.Slots[idx]
		sample, ok := view.FindSample(*slot.BlockSampleID)
		if !ok {
			notBlocks = append(notBlocks, lw.Barcode)
			continue
		}
		blocks[strings.ToUpper(lw.Barcode)] = sectionCut{block: lw, blockSlot: slot, blockSample: sample}
	}
	if len(notBlocks) > 0 {
		p.Addf("%s not a block: %s.", domain.Pluralise(len(notBlocks), "Labware is", "Labware are"), domain.DescribeList(notBlocks))
	}
	dests := make(map[string]domain.Labware, len(destinations))
	for _, lw := range destinations {
		dests[strings.ToUpper(lw.Barcode)] = lw
	}

	before := p.Len()
	cuts := make([]sectionCut, 0, len(items))
	for _, item := range items {
		cut, okBlock := blocks[strings.ToUpper(strings.TrimSpace(item.SourceBarcode))]
		dest, okDest := dests[strings.ToUpper(strings.TrimSpace(item.DestinationBarcode))]
		if !okDest {
			continue
		}
		slots := validation.CheckSlots(dest, []string{item.DestinationAddress}, validation.SlotCheck{}, p)
		if !okBlock || len(slots) == 0 {
			continue
		}
		cut.destination = dest
		cut.destSlot = slots[0]
		if item.SectionNumber != nil {
			n := *item.SectionNumber
			cut.number = &n
		}
		cuts = append(cuts, cut)
	}
	return cuts, p.Len() == before && len(cuts) == len(items)
}

// numberSections checks explicit section numbers and allocates the rest in
// item order above the block counter, its planned sections and every explicit number.
func numberSections(view domain.TransactionView, cuts []sectionCut, p *domain.Problems) []sectionCut {
	next := make(map[int]int)
	used := make(map[int][]int)
	for _, c := range cuts {
		if _, ok := next[c.blockSlot.ID]; !ok {
			next[c.blockSlot.ID] = NextSection(view, c.blockSlot) - 1
		}
		if c.number == nil {
			continue
		}
		n := *c.number
		switch {
		case n < 1:
			p.Addf("Section numbers must be positive: %d.", n)
		case n <= c.blockSlot.HighestSection():
			p.Addf("Section number %d is not above the highest section %d of block %s.", n, c.blockSlot.HighestSection(), c.block.Barcode)
		case slices.Contains(used[c.blockSlot.ID], n):
			p.AddUnique(fmt.Sprintf("Repeated section number %d for block %s.", n, c.block.Barcode))
		}
		used[c.blockSlot.ID] = append(used[c.blockSlot.ID], n)
		next[c.blockSlot.ID] = max(next[c.blockSlot.ID], n)
	}
	out := make([]sectionCut, len(cuts))
	for i, c := range cuts {
		if c.number == nil {
			next[c.blockSlot.ID]++
			n := next[c.blockSlot.ID]
			c.number = &n
		}
		out[i] = c
	}
	return out
}

func (r *Runner) recordSection(tx domain.Transaction, user domain.User, in sectionInput) (core.OperationResult, error) {
	type destGroup struct {
		labwareID int
		actions   []domain.Action
		added     map[int][]int // slot id -> new sample ids
	}
	var groups []*destGroup
	byDest := make(map[int]*destGroup)
	highest := make(map[int]int) // block labware id -> highest number cut
	blockSlots := make(map[int]int)
	var blockOrder []int

	for _, cut := range in.cuts {
		n := *cut.number
		sample, err := tx.CreateSample(domain.Sample{Tissue: cut.blockSample.Tissue, Section: &n, BioState: cut.blockSample.BioState})
		if err != nil {
			return core.OperationResult{}, err
		}
		g, ok := byDest[cut.destination.ID]
		if !ok {
			g = &destGroup{labwareID: cut.destination.ID, added: make(map[int][]int)}
			byDest[cut.destination.ID] = g
			groups = append(groups, g)
		}
		g.added[cut.destSlot.ID] = append(g.added[cut.destSlot.ID], sample.ID)
		g.actions = append(g.actions, domain.Action{
			SourceSlotID:      cut.blockSlot.ID,
			DestinationSlotID: cut.destSlot.ID,
			SourceSampleID:    cut.blockSample.ID,
			SampleID:          sample.ID,
		})
		if _, ok := highest[cut.block.ID]; !ok {
			blockOrder = append(blockOrder, cut.block.ID)
			blockSlots[cut.block.ID] = cut.blockSlot.ID
		}
		highest[cut.block.ID] = max(highest[cut.block.ID], n)
	}

	var result core.OperationResult
	var touched []int
	for _, g := range groups {
		if _, err := tx.UpdateLabware(g.labwareID, func(l *domain.Labware) error {
			for i := range l.Slots {
				l.Slots[i].SampleIDs = append(l.Slots[i].SampleIDs, g.added[l.Slots[i].ID]...)
			}
			return nil
		}); err != nil {
			return core.OperationResult{}, err
		}
		op, err := r.recorder.CreateOperation(tx, in.opType, user, g.actions)
		if err != nil {
			return core.OperationResult{}, err
		}
		result.Operations = append(result.Operations, op)
		touched = append(touched, g.labwareID)
	}
	for _, blockID := range blockOrder {
		top := highest[blockID]
		slotID := blockSlots[blockID]
		if _, err := tx.UpdateLabware(blockID, func(l *domain.Labware) error {
			for i := range l.Slots {
				if l.Slots[i].ID == slotID && top > l.Slots[i].HighestSection() {
					l.Slots[i].BlockHighestSection = &top
				}
			}
			return nil
		}); err != nil {
			return core.OperationResult{}, err
		}
		touched = append(touched, blockID)
	}
	if err := r.link(tx, &in.work, result.Operations); err != nil {
		return core.OperationResult{}, err
	}
	labware, err := reload(tx, touched...)
	if err != nil {
		return core.OperationResult{}, err
	}
	result.Labware = labware
	return result, nil
}

func (r *Runner) recordPlan(tx domain.Transaction, user domain.User, in sectionInput) (domain.Plan, error) {
	actions := make([]domain.PlannedAction, 0, len(in.cuts))
	for _, cut := range in.cuts {
		actions = append(actions, domain.PlannedAction{
			SourceSlotID:      cut.blockSlot.ID,
			DestinationSlotID: cut.destSlot.ID,
			SampleID:          cut.blockSample.ID,
			NewSection:        cut.number,
		})
	}
	return tx.CreatePlan(domain.Plan{OperationType: in.opType, User: user, Actions: actions})
}
