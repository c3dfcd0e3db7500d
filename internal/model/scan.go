package model

import "time"

// ScanStatus is the lifecycle state of an on-demand scan. Transitions are
// monotonic: SUBMITTED -> RUNNING -> DONE, and DONE is sticky.
type ScanStatus string

const (
	ScanSubmitted ScanStatus = "SUBMITTED"
	ScanRunning   ScanStatus = "RUNNING"
	ScanDone      ScanStatus = "DONE"
)

// Terminal reports whether the status can no longer change.
func (s ScanStatus) Terminal() bool {
	return s == ScanDone
}

// ScanJob is a server-side asynchronous scan task tracked by id.
type ScanJob struct {
	ID          string     `json:"id"`
	Netblocks   []string   `json:"netblocks"`
	Status      ScanStatus `json:"status"`
	CreditsLeft int        `json:"credits_left"`
	Created     time.Time  `json:"created"`
}

// Alert is a temporary server-side subscription used to receive push
// notifications for specific netblocks.
type Alert struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Netblocks []string `json:"netblocks"`
	Expired   bool     `json:"expired"`
}

// ScanRecord is the locally persisted history entry for a submitted scan.
type ScanRecord struct {
	ID          int64      `json:"id"`
	ScanID      string     `json:"scan_id"`
	Netblocks   []string   `json:"netblocks"`
	Status      ScanStatus `json:"status"`
	CreditsLeft int        `json:"credits_left"`
	Results     int        `json:"results"`
	Created     time.Time  `json:"created"`
	Updated     time.Time  `json:"updated"`
}
