package types

type RestoreRequest struct {
	SnapshotID string `json:"snapshot_id"`
}

type RestoreResponse struct {
	OK         bool   `json:"ok"`
	SnapshotID string `json:"snapshot_id"`
	SafetyCopy string `json:"safety_copy"`
	ServerTime string `json:"server_time"`
}

type SnapshotInfo struct {
	ID        string `json:"id"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
}

type SnapshotListResponse struct {
	Snapshots []SnapshotInfo `json:"snapshots"`
}
