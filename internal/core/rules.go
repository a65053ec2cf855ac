package core

import "labcore/pkg/domain"

// Rule names registered by NewDefaultRulesEngine.
const (
	RuleOperationHasActions   = "operation_has_actions"
	RuleBlockSectionMonotonic = "block_section_monotonic"
	RuleActionReferences      = "action_references"
)

// NewDefaultRulesEngine returns an engine with the integrity rules every store
// commit must satisfy.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(OperationHasActionsRule())
	engine.Register(BlockSectionMonotonicRule())
	engine.Register(ActionReferencesRule())
	return engine
}
