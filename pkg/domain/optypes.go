package domain

// Canonical operation type names recognised by the orchestrators.
const (
	OpTypeRegister   = "Register"
	OpTypeCleanOut   = "Clean out"
	OpTypeDestroy    = "Destroy"
	OpTypeReactivate = "Reactivate"
	OpTypeSection    = "Section"
	OpTypeStain      = "Stain"
	OpTypeImage      = "Image"
	OpTypeResetBlock = "Reset block"
)

// DefaultOperationTypes returns the operation types a fresh store is seeded with.
func DefaultOperationTypes() []OperationType {
	return []OperationType{
		{Name: OpTypeRegister, Flags: FlagInPlace},
		{Name: OpTypeCleanOut, Flags: FlagInPlace},
		{Name: OpTypeDestroy, Flags: FlagInPlace},
		{Name: OpTypeReactivate, Flags: FlagInPlace},
		{Name: OpTypeSection, Flags: FlagSourceIsBlock},
		{Name: OpTypeStain, Flags: FlagInPlace},
		{Name: OpTypeImage, Flags: FlagInPlace | FlagResult},
		{Name: OpTypeResetBlock, Flags: FlagInPlace},
	}
}
