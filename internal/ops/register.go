package ops

import (
	"context"
	"strings"

	"labcore/internal/core"
	"labcore/pkg/domain"
)

// RegisterItem describes one new block to register.
type RegisterItem struct {
	Barcode     string `json:"barcode"`
	LabwareType string `json:"labwareType"`
	Tissue      string `json:"tissue"`
	BioState    string `json:"bioState,omitempty"`
}

// RegisterRequest registers new tissue blocks.
type RegisterRequest struct {
	Blocks     []RegisterItem `json:"blocks"`
	WorkNumber string         `json:"workNumber,omitempty"`
}

type registerInput struct {
	opType domain.OperationType
	work   *domain.Work
	blocks []RegisterItem
	types  map[string]domain.LabwareType
}

// DefaultBioState is used for registered samples without an explicit state.
const DefaultBioState = "Tissue"

// Register creates a block labware with a new sample for each item and records
// an in-place register operation on it.
func (r *Runner) Register(ctx context.Context, user *domain.User, req *RegisterRequest) (core.OperationResult, error) {
	return run(ctx, r, LabelRegister, user, req, validateRegister, r.recordRegister)
}

func validateRegister(view domain.TransactionView, _ domain.User, req RegisterRequest) (registerInput, domain.Problems) {
	var p domain.Problems
	in := registerInput{types: make(map[string]domain.LabwareType)}
	in.opType = requireOperationType(view, domain.OpTypeRegister, domain.FlagInPlace, &p)
	in.work = loadOptionalWork(view, req.WorkNumber, &p)
	if len(req.Blocks) == 0 {
		p.Add("No blocks specified.")
		return in, p
	}
	var (
		missingBarcode, missingTissue bool
		inUse, repeated, unknownTypes []string
		seen                          = make(map[string]bool)
	)
	for _, item := range req.Blocks {
		bc := strings.TrimSpace(item.Barcode)
		switch {
		case bc == "":
			missingBarcode = true
		case seen[strings.ToUpper(bc)]:
			repeated = appendOnce(repeated, bc)
		default:
			seen[strings.ToUpper(bc)] = true
			if _, ok := view.FindLabwareByBarcode(bc); ok {
				inUse = append(inUse, bc)
			}
		}
		if strings.TrimSpace(item.Tissue) == "" {
			missingTissue = true
		}
		lt, ok := view.FindLabwareType(item.LabwareType)
		if !ok {
			unknownTypes = appendOnce(unknownTypes, item.LabwareType)
			continue
		}
		in.types[item.LabwareType] = lt
	}
	if missingBarcode {
		p.Add("Missing labware barcode.")
	}
	if len(repeated) > 0 {
		p.Addf("Repeated %s: %s.", domain.Pluralise(len(repeated), "barcode", "barcodes"), domain.DescribeList(repeated))
	}
	if len(inUse) > 0 {
		p.Addf("%s already in use: %s.", domain.Pluralise(len(inUse), "Barcode", "Barcodes"), domain.DescribeList(inUse))
	}
	if len(unknownTypes) > 0 {
		p.Addf("Unknown labware %s: %s.", domain.Pluralise(len(unknownTypes), "type", "types"), domain.DescribeList(unknownTypes))
	}
	if missingTissue {
		p.Add("Missing tissue name.")
	}
	in.blocks = req.Blocks
	return in, p
}

func (r *Runner) recordRegister(tx domain.Transaction, user domain.User, in registerInput) (core.OperationResult, error) {
	var result core.OperationResult
	for _, item := range in.blocks {
		bioState := item.BioState
		if bioState == "" {
			bioState = DefaultBioState
		}
		sample, err := tx.CreateSample(domain.Sample{Tissue: strings.TrimSpace(item.Tissue), BioState: bioState})
		if err != nil {
			return core.OperationResult{}, err
		}
		lt := in.types[item.LabwareType]
		sampleID := sample.ID
		first := lt.Addresses()[0]
		lw, err := tx.CreateLabware(domain.Labware{
			Barcode: strings.TrimSpace(item.Barcode),
			Type:    lt,
			Slots: []domain.Slot{{
				Address:       first,
				SampleIDs:     []int{sample.ID},
				BlockSampleID: &sampleID,
			}},
		})
		if err != nil {
			return core.OperationResult{}, err
		}
		op, err := r.recorder.CreateOperationInPlace(tx, in.opType, user, lw, nil)
		if err != nil {
			return core.OperationResult{}, err
		}
		result.Operations = append(result.Operations, op)
		result.Labware = append(result.Labware, lw)
	}
	if err := r.link(tx, in.work, result.Operations); err != nil {
		return core.OperationResult{}, err
	}
	return result, nil
}

func appendOnce(list []string, value string) []string {
	for _, v := range list {
		if strings.EqualFold(v, value) {
			return list
		}
	}
	return append(list, value)
}
