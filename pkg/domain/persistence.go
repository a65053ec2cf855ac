package domain

import "context"

// TransactionView provides read-only access to the provenance graph. Every
// Find method distinguishes absence (false) from failure; views never error.
type TransactionView interface {
	FindLabware(id int) (Labware, bool)
	FindLabwareByBarcode(barcode string) (Labware, bool)
	// FindLabwareByBarcodes returns the labware matching any of the barcodes
	// (case-insensitive), once each, in order of first matching input.
	FindLabwareByBarcodes(barcodes []string) []Labware
	FindLabwareType(name string) (LabwareType, bool)
	FindSlot(id int) (Slot, bool)
	FindSample(id int) (Sample, bool)
	FindOperation(id int) (Operation, bool)
	FindOperationType(name string) (OperationType, bool)
	FindWork(workNumber string) (Work, bool)
	FindComment(id int) (Comment, bool)
	FindEquipment(id int) (Equipment, bool)
	FindUser(username string) (User, bool)
	ListLabware() []Labware
	ListComments() []Comment
	ListEquipment() []Equipment
	// ListOperationsForLabware returns operations with an action whose source or
	// destination slot belongs to the labware, ordered by id.
	ListOperationsForLabware(labwareID int) []Operation
	ListOperationComments(operationID int) []OperationComment
	ListOperationEquipment(operationID int) []OperationEquipment
	// ListPlannedActionsFromSlot returns planned actions whose source is the slot.
	ListPlannedActionsFromSlot(slotID int) []PlannedAction
}

// Transaction exposes the persistence operations available within an atomic
// scope. Every create returns the persisted value with generated ids populated;
// the caller's argument is never mutated.
type Transaction interface {
	TransactionView

	CreateLabwareType(LabwareType) (LabwareType, error)
	// CreateLabware persists a labware and one slot per address of its type.
	// Slots supplied on the input are matched by address to seed contents.
	CreateLabware(Labware) (Labware, error)
	UpdateLabware(id int, mutator func(*Labware) error) (Labware, error)
	// ResetBlockHighestSection is the administrative path that may lower a block counter.
	ResetBlockHighestSection(slotID int, highest *int) (Slot, error)

	CreateSample(Sample) (Sample, error)

	// CreateOperation persists the operation header only; Actions on the input are ignored.
	CreateOperation(Operation) (Operation, error)
	// CreateActions persists a batch of actions, all of which must reference existing operations.
	CreateActions([]Action) ([]Action, error)
	CreateOperationComments([]OperationComment) ([]OperationComment, error)
	CreateOperationEquipment(OperationEquipment) (OperationEquipment, error)
	CreatePlan(Plan) (Plan, error)

	CreateOperationType(OperationType) (OperationType, error)
	CreateWork(Work) (Work, error)
	// LinkWorkOperations appends operation ids to a work's operation list.
	LinkWorkOperations(workID int, operationIDs []int) (Work, error)
	CreateComment(Comment) (Comment, error)
	CreateEquipment(Equipment) (Equipment, error)
	CreateUser(User) (User, error)
}

// PersistentStore is the minimal abstraction over durable backends.
// RunInTransaction applies fn atomically: any error returned by fn, a
// cancelled context, or a blocking rule violation discards every write.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}
