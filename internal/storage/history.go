package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/user/netlens/internal/model"
)

// ScanHistory records submitted scan jobs locally so past submissions can
// be listed without a round-trip to the service.
type ScanHistory struct {
	db *DB
}

// NewScanHistory creates a new scan history handler.
func NewScanHistory(db *DB) *ScanHistory {
	return &ScanHistory{db: db}
}

// SaveScan stores a freshly submitted scan job.
func (s *ScanHistory) SaveScan(job *model.ScanJob) error {
	query := `INSERT INTO scans (scan_id, netblocks, status, credits_left, created, updated)
			  VALUES (?, ?, ?, ?, ?, ?)
			  ON CONFLICT(scan_id) DO UPDATE SET
			  status = excluded.status,
			  updated = excluded.updated`

	now := time.Now()
	_, err := s.db.Exec(query,
		job.ID, strings.Join(job.Netblocks, ","), string(job.Status),
		job.CreditsLeft, job.Created, now)
	if err != nil {
		return fmt.Errorf("failed to save scan: %w", err)
	}

	return nil
}

// UpdateScan records the latest known status and result count for a scan.
func (s *ScanHistory) UpdateScan(scanID string, status model.ScanStatus, results int) error {
	query := `UPDATE scans SET status = ?, results = ?, updated = ? WHERE scan_id = ?`

	_, err := s.db.Exec(query, string(status), results, time.Now(), scanID)
	if err != nil {
		return fmt.Errorf("failed to update scan: %w", err)
	}
	return nil
}

// ListScans returns the most recent scans, newest first.
func (s *ScanHistory) ListScans(limit int) ([]model.ScanRecord, error) {
	query := `SELECT id, scan_id, netblocks, status, credits_left, results, created, updated
			  FROM scans ORDER BY created DESC LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	var records []model.ScanRecord
	for rows.Next() {
		var r model.ScanRecord
		var netblocks, status string

		if err := rows.Scan(&r.ID, &r.ScanID, &netblocks, &status,
			&r.CreditsLeft, &r.Results, &r.Created, &r.Updated); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if netblocks != "" {
			r.Netblocks = strings.Split(netblocks, ",")
		}
		r.Status = model.ScanStatus(status)
		records = append(records, r)
	}

	return records, rows.Err()
}
