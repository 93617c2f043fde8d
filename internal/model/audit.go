package model

type AuditActor struct {
	UserID string `json:"user_id,omitempty"`
	Role   string `json:"role,omitempty"`
	IP     string `json:"ip,omitempty"`
}

type AuditEntry struct {
	Action     string     `json:"action"`
	OccurredAt string     `json:"occurred_at"`
	Actor      AuditActor `json:"actor"`
	Status     string     `json:"status"`
	Resource   string     `json:"resource,omitempty"`
	Before     any        `json:"before,omitempty"`
	After      any        `json:"after,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type AuditQuery struct {
	Action   string
	Status   string
	Resource string
	From     string
	To       string
	Page     int
	Limit    int
}

type AuditListData struct {
	Items []AuditEntry `json:"items"`
}
