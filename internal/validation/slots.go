package validation

import (
	"slices"

	"labcore/pkg/domain"
)

// SlotCheck configures CheckSlots.
type SlotCheck struct {
	// RequireOccupied rejects addresses whose slot holds no samples.
	RequireOccupied bool
}

// CheckSlots parses the addresses and resolves them against the labware. It
// reports unparseable, repeated, missing and (optionally) empty addresses, one
// problem per category, and returns the resolved slots in request order.
func CheckSlots(lw domain.Labware, addresses []string, check SlotCheck, p *domain.Problems) []domain.Slot {
	if len(addresses) == 0 {
		p.Add("No slots specified.")
		return nil
	}
	var (
		slots    []domain.Slot
		invalid  []string
		repeated []string
		missing  []string
		empty    []string
		seen     []domain.Address
	)
	for _, raw := range addresses {
		addr, err := domain.ParseAddress(raw)
		if err != nil {
			invalid = append(invalid, raw)
			continue
		}
		if slices.Contains(seen, addr) {
			if !slices.Contains(repeated, addr.String()) {
				repeated = append(repeated, addr.String())
			}
			continue
		}
		seen = append(seen, addr)
		slot, ok := lw.Slot(addr)
		if !ok {
			missing = append(missing, addr.String())
			continue
		}
		if check.RequireOccupied && slot.Empty() {
			empty = append(empty, addr.String())
			continue
		}
		slots = append(slots, slot)
	}
	if len(invalid) > 0 {
		p.Addf("Invalid slot %s: %s.", domain.Pluralise(len(invalid), "address", "addresses"), domain.DescribeList(invalid))
	}
	if len(repeated) > 0 {
		p.Addf("Repeated slot %s: %s.", domain.Pluralise(len(repeated), "address", "addresses"), domain.DescribeList(repeated))
	}
	if len(missing) > 0 {
		p.Addf("No such slot in labware %s: %s.", lw.Barcode, domain.DescribeList(missing))
	}
	if len(empty) > 0 {
		p.Addf("%s empty in labware %s: %s.", domain.Pluralise(len(empty), "Slot is", "Slots are"), lw.Barcode, domain.DescribeList(empty))
	}
	return slots
}
