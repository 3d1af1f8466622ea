package jobs

import (
	"context"

	"github.com/cricmirror/core/pkg/services"
)

type CommentarySyncJob struct {
	service services.CommentarySyncer
}

func NewCommentarySyncJob(service services.CommentarySyncer) Job {
	return &CommentarySyncJob{service: service}
}

func (j *CommentarySyncJob) Name() string {
	return CommentaryJobKey
}

func (j *CommentarySyncJob) Schedule() string {
	return "@every 30s"
}

func (j *CommentarySyncJob) Execute(ctx context.Context) error {
	result, err := j.service.SyncCommentary(ctx)
	if err != nil {
		return err
	}
	reportSync(ctx, j.Name(), result)
	return nil
}
