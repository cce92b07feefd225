package contracts

// RuntimeModeConfig is the engine's current governance mode setting.
type RuntimeModeConfig struct {
	Mode          GovernanceMode `json:"mode"`
	UpdatedAt     string         `json:"updated_at,omitempty"`
	UpdatedByRole string         `json:"updated_by_role,omitempty"`
	Source        string         `json:"source"`
}

// GovernanceAuditEvent is a server-side record of an acknowledged override.
type GovernanceAuditEvent struct {
	EventID     int64          `json:"event_id"`
	CreatedAt   string         `json:"created_at"`
	Operation   string         `json:"operation"`
	Mode        GovernanceMode `json:"mode"`
	ActorRole   string         `json:"actor_role"`
	ActorName   string         `json:"actor_name,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Warnings    []string       `json:"warnings"`
	SectorID    string         `json:"sector_id,omitempty"`
	PeriodStart string         `json:"period_start,omitempty"`
	PeriodEnd   string         `json:"period_end,omitempty"`
}

// ChecklistItem is one release checklist entry of the governance config.
type ChecklistItem struct {
	ItemID string `json:"item_id"`
	Title  string `json:"title"`
	Done   bool   `json:"done"`
	Detail string `json:"detail,omitempty"`
}

// GovernanceConfig is the legal/compliance configuration held by the engine.
type GovernanceConfig struct {
	AcceptedDomFolgasMarkers    []string          `json:"accepted_dom_folgas_markers"`
	MarkerSemantics             map[string]string `json:"marker_semantics"`
	CollectiveAgreementID       string            `json:"collective_agreement_id"`
	SundayHolidayLegalValidated bool              `json:"sunday_holiday_legal_validated"`
	LegalValidationNote         string            `json:"legal_validation_note,omitempty"`
	PendingItems                []string          `json:"pending_items"`
	ReleaseChecklist            []ChecklistItem   `json:"release_checklist"`
}
