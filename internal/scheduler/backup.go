package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/abidamassi/frontier/internal/reliability"
)

// BackupJob uploads a fresh database backup to R2.
type BackupJob struct {
	service *reliability.BackupService
	timeout time.Duration
	log     zerolog.Logger
}

// NewBackupJob creates a backup job.
func NewBackupJob(service *reliability.BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service: service,
		timeout: 15 * time.Minute,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string { return "backup" }

// Run creates and uploads a backup, then rotates old archives
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	return j.service.CreateAndUploadBackup(ctx)
}
