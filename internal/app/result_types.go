package app

import "stockdesk/internal/core"

// AssistantResult is returned by InterpretRequest: either a proposal awaiting
// confirmation or a clarification question for the user.
type AssistantResult struct {
	Proposal             *core.ActionProposal `json:"proposal,omitempty"`
	ClarificationMessage string               `json:"clarification_message,omitempty"`
	IsClarification      bool                 `json:"is_clarification"`
}

// ExecutionResult is returned by ExecuteProposal with whichever entity the
// confirmed action produced.
type ExecutionResult struct {
	Action    core.ActionKind       `json:"action"`
	Order     *core.Order           `json:"order,omitempty"`
	Import    *core.Import          `json:"import,omitempty"`
	Receipt   *core.PaymentReceipt  `json:"receipt,omitempty"`
	Reconcile *core.ReconcileReport `json:"reconcile,omitempty"`
}
