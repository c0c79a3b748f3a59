package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/chutney-testing/chutney-suite/pkg/models"
)

type launch struct {
	by          string
	campaign    string
	environment string
	user        string
}

type fakeLauncher struct {
	mu       sync.Mutex
	launches []launch
	err      error
}

func (l *fakeLauncher) record(entry launch) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.launches = append(l.launches, entry)
}

func (l *fakeLauncher) recorded() []launch {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]launch(nil), l.launches...)
}

func (l *fakeLauncher) ExecuteByID(_ context.Context, campaignID, environment, userID string) (*models.CampaignExecution, error) {
	l.record(launch{"id", campaignID, environment, userID})

	if l.err != nil {
		return nil, l.err
	}

	return &models.CampaignExecution{ID: "ce-1", CampaignID: campaignID, Status: models.StatusSuccess}, nil
}

func (l *fakeLauncher) ExecuteByName(_ context.Context, pattern, environment, userID string) ([]*models.CampaignExecution, error) {
	l.record(launch{"name", pattern, environment, userID})

	if l.err != nil {
		return nil, l.err
	}

	return []*models.CampaignExecution{{ID: "ce-2", Status: models.StatusFailure}}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message string
		want    Request
		wantErr bool
	}{
		{
			name:    "by id",
			message: `{"campaignId": "c-1", "environment": "staging", "userId": "alice"}`,
			want:    Request{CampaignID: "c-1", Environment: "staging", UserID: "alice"},
		},
		{
			name:    "by name",
			message: `{"campaignName": "smoke*"}`,
			want:    Request{CampaignName: "smoke*"},
		},
		{name: "neither", message: `{"userId": "alice"}`, wantErr: true},
		{name: "both", message: `{"campaignId": "c-1", "campaignName": "smoke"}`, wantErr: true},
		{name: "not json", message: `run smoke please`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			request, err := Decode([]byte(tt.message))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidRequest)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, request)
		})
	}
}

func TestTrigger_Handle(t *testing.T) {
	t.Parallel()

	launcher := &fakeLauncher{}
	trigger := NewTriggerWithClient(redis.NewClient(&redis.Options{}), "", launcher, discardLogger())

	reports := trigger.Handle(t.Context(), Request{CampaignID: "c-1", Environment: "staging", UserID: "alice"})
	require.Len(t, reports, 1)
	assert.Equal(t, "c-1", reports[0].CampaignID)

	reports = trigger.Handle(t.Context(), Request{CampaignName: "smoke*"})
	require.Len(t, reports, 1)

	assert.Equal(t, []launch{
		{"id", "c-1", "staging", "alice"},
		{"name", "smoke*", "", DefaultUser},
	}, launcher.recorded())

	launcher.err = errors.New("unknown campaign")
	assert.Nil(t, trigger.Handle(t.Context(), Request{CampaignID: "c-2"}))

	require.NoError(t, trigger.client.Close())
}

func TestTrigger_Redis(t *testing.T) {
	if testing.Short() {
		t.Skip("redis container tests skipped in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	launcher := &fakeLauncher{}
	trigger := NewTrigger(Config{Addr: endpoint, Queue: "test:requests"}, launcher, discardLogger())

	require.NoError(t, trigger.Start(ctx))
	require.ErrorIs(t, trigger.Start(ctx), ErrAlreadyStarted)

	require.NoError(t, trigger.client.RPush(ctx, "test:requests", "garbage").Err())
	require.NoError(t, trigger.Push(ctx, Request{CampaignID: "c-1", UserID: "bob"}))
	require.ErrorIs(t, trigger.Push(ctx, Request{}), ErrInvalidRequest)

	assert.Eventually(t, func() bool { return len(launcher.recorded()) == 1 }, 10*time.Second, 50*time.Millisecond)
	assert.Equal(t, launch{"id", "c-1", "", "bob"}, launcher.recorded()[0])

	require.NoError(t, trigger.Stop(ctx))
}
