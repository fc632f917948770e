package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"altotrafico-web/internal/hubspot"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	TaskBlogSync = "blog:sync"

	// Repeated sync clicks inside this window collapse into one task.
	blogSyncUniqueFor = time.Minute
)

type BlogSyncPayload struct {
	RequestedBy string `json:"requested_by"`
	RequestID   string `json:"request_id,omitempty"`
}

// BlogSyncer refreshes the cached blog pages.
type BlogSyncer interface {
	Sync(ctx context.Context) (int, error)
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func NewBlogSyncTask(requestedBy, requestID string) (*asynq.Task, error) {
	payload, err := json.Marshal(BlogSyncPayload{RequestedBy: requestedBy, RequestID: requestID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskBlogSync,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
		asynq.Queue("default"),
		asynq.Unique(blogSyncUniqueFor),
	), nil
}

// EnqueueBlogSync queues a sync. It reports false without error when an
// identical sync is already pending.
func EnqueueBlogSync(ctx context.Context, enq Enqueuer, requestedBy, requestID string) (bool, error) {
	task, err := NewBlogSyncTask(requestedBy, requestID)
	if err != nil {
		return false, err
	}
	if _, err := enq.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return false, nil
		}
		return false, fmt.Errorf("enqueue blog sync: %w", err)
	}
	return true, nil
}

// Task handlers
type TaskProcessor struct {
	blog BlogSyncer
	log  *slog.Logger
}

func NewTaskProcessor(blog BlogSyncer) *TaskProcessor {
	return &TaskProcessor{
		blog: blog,
		log:  slog.Default().With("component", "worker"),
	}
}

func (p *TaskProcessor) HandleBlogSync(ctx context.Context, t *asynq.Task) error {
	var payload BlogSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	total, err := p.blog.Sync(ctx)
	if errors.Is(err, hubspot.ErrNotConfigured) {
		return fmt.Errorf("blog sync: %v: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("blog sync: %w", err)
	}

	p.log.Info("blog sync finished", "total", total, "requested_by", payload.RequestedBy, "request_id", payload.RequestID)
	return nil
}

// NewServeMux registers every task handler.
func NewServeMux(p *TaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskBlogSync, p.HandleBlogSync)
	return mux
}

// RedisConnOpt converts go-redis options so the queue shares the app's Redis settings.
func RedisConnOpt(opt *redis.Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}
}
