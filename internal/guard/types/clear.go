package types

type ClearRequestView struct {
	ID                      string `json:"id"`
	InitiatorID             string `json:"initiator_id"`
	Status                  string `json:"status"`
	InitiatorConfirmations  int    `json:"initiator_confirmations"`
	AuthorizerConfirmations int    `json:"authorizer_confirmations"`
	SnapshotRef             string `json:"snapshot_ref"`
	ReportRef               string `json:"report_ref"`
	CreatedAt               string `json:"created_at"`
	UpdatedAt               string `json:"updated_at"`
	CompletedAt             string `json:"completed_at,omitempty"`
}

type ConfirmRequest struct {
	// Password is mandatory only on the fifth confirmation of a sequence,
	// where the caller's own credential is re-verified.
	Password string `json:"password,omitempty"`
}

type ConfirmResponse struct {
	OK      bool             `json:"ok"`
	Request ClearRequestView `json:"request"`
	// Executed is true once the fifth authorizer confirmation has run the
	// erasure to completion.
	Executed bool `json:"executed,omitempty"`
}
