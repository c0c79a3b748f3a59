// Package queue starts campaign executions from requests pushed on a Redis list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/chutney-testing/chutney-suite/pkg/models"
)

const (
	DefaultQueue   = "chutney:campaign-requests"
	DefaultUser    = "queue"
	popTimeout     = time.Second
	errorBackoff   = time.Second
	connectTimeout = 5 * time.Second
)

var (
	ErrInvalidRequest = errors.New("invalid campaign request")
	ErrAlreadyStarted = errors.New("queue trigger already started")
)

// Request is the JSON document consumers push on the queue.
type Request struct {
	CampaignID   string `json:"campaignId,omitempty"`
	CampaignName string `json:"campaignName,omitempty"`
	Environment  string `json:"environment,omitempty"`
	UserID       string `json:"userId,omitempty"`
}

func (r Request) Validate() error {
	if r.CampaignID == "" && r.CampaignName == "" {
		return fmt.Errorf("%w: campaignId or campaignName is required", ErrInvalidRequest)
	}

	if r.CampaignID != "" && r.CampaignName != "" {
		return fmt.Errorf("%w: campaignId and campaignName are exclusive", ErrInvalidRequest)
	}

	return nil
}

// Launcher is implemented by campaign.Engine.
type Launcher interface {
	ExecuteByID(ctx context.Context, campaignID, environment, userID string) (*models.CampaignExecution, error)
	ExecuteByName(ctx context.Context, pattern, environment, userID string) ([]*models.CampaignExecution, error)
}

type Config struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

type Trigger struct {
	client   redis.UniversalClient
	queue    string
	launcher Launcher
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTrigger connects to Redis. The connection is checked on Start.
func NewTrigger(config Config, launcher Launcher, logger *slog.Logger) *Trigger {
	addr := config.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return NewTriggerWithClient(client, config.Queue, launcher, logger)
}

func NewTriggerWithClient(client redis.UniversalClient, queue string, launcher Launcher, logger *slog.Logger) *Trigger {
	if queue == "" {
		queue = DefaultQueue
	}

	return &Trigger{
		client:   client,
		queue:    queue,
		launcher: launcher,
		logger: logger.With(
			slog.String("module", "queue_trigger"),
			slog.String("queue", queue),
		),
	}
}

func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return ErrAlreadyStarted
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, connectTimeout)
	defer cancelPing()

	if err := t.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)

	go t.consume(runCtx)

	t.logger.InfoContext(ctx, "Queue trigger started")

	return nil
}

// Stop ends consumption, waits for the launched executions and closes the client.
func (t *Trigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})

	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := t.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	t.logger.InfoContext(ctx, "Queue trigger stopped")

	return nil
}

// Push enqueues request. Producers in other processes push the same JSON.
func (t *Trigger) Push(ctx context.Context, request Request) error {
	if err := request.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return err
	}

	return t.client.RPush(ctx, t.queue, payload).Err()
}

func (t *Trigger) consume(ctx context.Context) {
	defer t.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		if err := t.pop(ctx); err != nil && ctx.Err() == nil {
			t.logger.ErrorContext(ctx, "Error consuming queue", slog.Any("error", err))

			select {
			case <-time.After(errorBackoff):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (t *Trigger) pop(ctx context.Context) error {
	result, err := t.client.BLPop(ctx, popTimeout, t.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	request, err := Decode([]byte(result[1]))
	if err != nil {
		t.logger.WarnContext(ctx, "Dropping malformed request", slog.String("message", result[1]), slog.Any("error", err))

		return nil
	}

	t.wg.Add(1)

	go func() {
		defer t.wg.Done()

		t.Handle(ctx, request)
	}()

	return nil
}

// Decode parses and validates one queued message.
func Decode(message []byte) (Request, error) {
	var request Request

	if err := json.Unmarshal(message, &request); err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	return request, request.Validate()
}

// Handle runs the campaigns a request designates and returns their executions.
func (t *Trigger) Handle(ctx context.Context, request Request) []*models.CampaignExecution {
	return Dispatch(ctx, t.launcher, request, t.logger)
}

// Dispatch runs a campaign request against launcher. Failures are logged, not returned:
// a request source has nobody to report them to.
func Dispatch(ctx context.Context, launcher Launcher, request Request, logger *slog.Logger) []*models.CampaignExecution {
	user := request.UserID
	if user == "" {
		user = DefaultUser
	}

	logger = logger.With(
		slog.String("campaign_id", request.CampaignID),
		slog.String("campaign_name", request.CampaignName),
		slog.String("user_id", user),
	)

	if request.CampaignID != "" {
		report, err := launcher.ExecuteByID(ctx, request.CampaignID, request.Environment, user)
		if err != nil {
			logger.ErrorContext(ctx, "Queued campaign execution failed", slog.Any("error", err))

			return nil
		}

		logger.InfoContext(ctx, "Queued campaign executed", slog.String("status", string(report.Status)))

		return []*models.CampaignExecution{report}
	}

	reports, err := launcher.ExecuteByName(ctx, request.CampaignName, request.Environment, user)
	if err != nil {
		logger.ErrorContext(ctx, "Queued campaign execution failed", slog.Any("error", err))

		return nil
	}

	logger.InfoContext(ctx, "Queued campaigns executed", slog.Int("count", len(reports)))

	return reports
}
