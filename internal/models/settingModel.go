package models

import "time"

// SystemSetting stores job markers and the worker heartbeat.
type SystemSetting struct {
	Key       string    `gorm:"primaryKey;type:varchar(64)"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

const (
	SettingSnapshotLastRun  = "snapshot_last_run_date"
	SettingTransfersLastRun = "transfers_last_run_date"
	SettingInvoiceQuarter   = "invoice_last_quarter"
	SettingWorkerHeartbeat  = "worker_heartbeat"
)
