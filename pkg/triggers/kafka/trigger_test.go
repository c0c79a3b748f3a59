package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chutney-testing/chutney-suite/pkg/models"
)

type launch struct {
	campaign string
	user     string
}

type fakeLauncher struct {
	mu       sync.Mutex
	launched []launch
}

func (l *fakeLauncher) ExecuteByID(_ context.Context, campaignID, _, userID string) (*models.CampaignExecution, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.launched = append(l.launched, launch{campaignID, userID})

	return &models.CampaignExecution{CampaignID: campaignID, Status: models.StatusSuccess}, nil
}

func (l *fakeLauncher) ExecuteByName(_ context.Context, pattern, _, userID string) ([]*models.CampaignExecution, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.launched = append(l.launched, launch{pattern, userID})

	return nil, nil
}

func (l *fakeLauncher) recorded() []launch {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]launch(nil), l.launched...)
}

type fakeSession struct {
	sarama.ConsumerGroupSession

	ctx    context.Context //nolint:containedctx // test double
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(message *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.marked = append(s.marked, message.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim

	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

type fakeGroup struct {
	sarama.ConsumerGroup

	session *fakeSession
	claim   *fakeClaim
	errs    chan error
	once    sync.Once
	closed  chan struct{}
}

func (g *fakeGroup) Consume(ctx context.Context, _ []string, handler sarama.ConsumerGroupHandler) error {
	select {
	case <-g.closed:
		return sarama.ErrClosedConsumerGroup
	default:
	}

	g.session.ctx = ctx

	if err := handler.Setup(g.session); err != nil {
		return err
	}

	err := handler.ConsumeClaim(g.session, g.claim)

	<-ctx.Done()

	return errors.Join(err, handler.Cleanup(g.session))
}

func (g *fakeGroup) Errors() <-chan error { return g.errs }

func (g *fakeGroup) Close() error {
	g.once.Do(func() { close(g.closed) })

	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewTrigger_Config(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "valid", config: Config{Brokers: []string{"localhost:9092"}, Topic: "campaigns"}},
		{name: "missing topic", config: Config{Brokers: []string{"localhost:9092"}}, wantErr: true},
		{name: "missing brokers", config: Config{Topic: "campaigns"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			trigger, err := NewTrigger(tt.config, &fakeLauncher{}, discard())
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, DefaultConsumerGroup, trigger.config.ConsumerGroup)
		})
	}
}

func TestTrigger_ConsumesRequests(t *testing.T) {
	t.Parallel()

	group := &fakeGroup{
		session: &fakeSession{},
		claim:   &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 3)},
		errs:    make(chan error),
		closed:  make(chan struct{}),
	}

	launcher := &fakeLauncher{}

	trigger, err := NewTriggerWithGroup(
		Config{Brokers: []string{"broker:9092"}, Topic: "campaigns", ConsumerGroup: "tests"},
		launcher,
		func(brokers []string, groupID string, config *sarama.Config) (sarama.ConsumerGroup, error) {
			assert.Equal(t, []string{"broker:9092"}, brokers)
			assert.Equal(t, "tests", groupID)
			assert.Equal(t, sarama.OffsetNewest, config.Consumer.Offsets.Initial)

			return group, nil
		},
		discard(),
	)
	require.NoError(t, err)

	group.claim.messages <- &sarama.ConsumerMessage{Offset: 1, Value: []byte(`{"campaignId":"c-1","userId":"alice"}`)}
	group.claim.messages <- &sarama.ConsumerMessage{Offset: 2, Value: []byte(`not json`)}
	group.claim.messages <- &sarama.ConsumerMessage{
		Offset:  3,
		Value:   []byte(`{"campaignName":"smoke*"}`),
		Headers: []*sarama.RecordHeader{{Key: []byte("user"), Value: []byte("bob")}},
	}

	require.NoError(t, trigger.Start(t.Context()))
	require.ErrorIs(t, trigger.Start(t.Context()), ErrAlreadyStarted)

	assert.Eventually(t, func() bool { return len(launcher.recorded()) == 2 }, 5*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, trigger.Stop(stopCtx))
	require.NoError(t, trigger.Stop(stopCtx))

	assert.ElementsMatch(t, []launch{{"c-1", "alice"}, {"smoke*", "bob"}}, launcher.recorded())

	group.session.mu.Lock()
	defer group.session.mu.Unlock()

	assert.Equal(t, []int64{1, 2, 3}, group.session.marked, "malformed requests are committed too")
}

func TestTrigger_StartFailure(t *testing.T) {
	t.Parallel()

	trigger, err := NewTriggerWithGroup(
		Config{Brokers: []string{"broker:9092"}, Topic: "campaigns"},
		&fakeLauncher{},
		func([]string, string, *sarama.Config) (sarama.ConsumerGroup, error) {
			return nil, sarama.ErrOutOfBrokers
		},
		discard(),
	)
	require.NoError(t, err)

	require.ErrorIs(t, trigger.Start(t.Context()), sarama.ErrOutOfBrokers)
	require.NoError(t, trigger.Stop(t.Context()))
}
