package models

import "time"

type BucketInfo struct {
	BucketName       string    `json:"bucket_name"`
	Region           string    `json:"region"`
	Versioning       string    `json:"versioning"`
	ObjectCount      int64     `json:"object_count"`
	PrefixCount      int       `json:"prefix_count"`
	TotalSizeBytes   int64     `json:"total_size_bytes"`
	TotalSizeHuman   string    `json:"total_size_human"`
	LastModified     time.Time `json:"last_modified"`
	APIEndpoint      string    `json:"api_endpoint,omitempty"`
	InspectedAt      string    `json:"inspected_at"`
	ObjectCountHuman string    `json:"object_count_human"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	Command   string `json:"command"`
	Step      string `json:"step,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	ExitCode  int    `json:"exit_code,omitempty"`
}

// BucketResult records what happened to one bucket during a run.
type BucketResult struct {
	BucketName      string   `json:"bucket_name"`
	State           string   `json:"state"`
	Reason          string   `json:"reason,omitempty"`
	PrefixesDeleted []string `json:"prefixes_deleted,omitempty"`
	ObjectsDeleted  int      `json:"objects_deleted"`
	VersionsDeleted int      `json:"versions_deleted"`
	MarkersDeleted  int      `json:"delete_markers_deleted"`
	BucketDeleted   bool     `json:"bucket_deleted"`
}

type RunReport struct {
	SessionName string         `json:"session_name,omitempty"`
	Provider    string         `json:"provider"`
	StartedAt   string         `json:"started_at"`
	FinishedAt  string         `json:"finished_at,omitempty"`
	Buckets     []BucketResult `json:"buckets"`
	Relaunched  bool           `json:"relaunched,omitempty"`
}
