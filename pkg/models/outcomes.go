package models

// Outcome codes set by subgraphs and consumed by the fiscal consolidator.
// Every turn ends with exactly one of these.
const (
	// escala (attendance confirmation)
	OutcomeEscalaStaged       = "escala_staged"
	OutcomeEscalaConfirmed    = "escala_confirmed"
	OutcomeEscalaCancelled    = "escala_cancelled"
	OutcomeEscalaCommitFailed = "escala_commit_failed"
	OutcomeEscalaInfo         = "escala_info"

	// clinico (vitals and clinical notes)
	OutcomeClinicalMissing                 = "clinical_missing"
	OutcomeClinicalStaged                  = "clinical_staged"
	OutcomeClinicalCommitted               = "clinical_committed"
	OutcomeClinicalNoteOnlyCommitted       = "clinical_note_only_committed"
	OutcomeClinicalRejectedIncompleteFirst = "clinical_rejected_incomplete_first"
	OutcomeClinicalCommitFailed            = "clinical_commit_failed"

	// operacional (operational notes)
	OutcomeOperationalDelivered      = "operational_delivered"
	OutcomeOperationalDeliveryFailed = "operational_delivery_failed"

	// finalizar (shift closing report)
	OutcomeFinalizeTopicCollected = "finalize_topic_collected"
	OutcomeFinalizeStaged         = "finalize_staged"
	OutcomeFinalizeCommitted      = "finalize_committed"
	OutcomeFinalizeCommitFailed   = "finalize_commit_failed"

	// auxiliar (help)
	OutcomeHelpGeneric = "help_generic"
	OutcomeHelpContext = "help_context"

	// pending-action ladder outcomes
	OutcomePendingExpired   = "pending_expired"
	OutcomePendingCancelled = "pending_cancelled"
)
