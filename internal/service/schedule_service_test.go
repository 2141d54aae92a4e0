package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/navikt/zagenda/internal/models"
	"github.com/navikt/zagenda/internal/repository/memory"
	"github.com/navikt/zagenda/internal/service"
)

// MockLoader is a testify mock of service.Loader
type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) Load(ctx context.Context) (*models.Snapshot, error) {
	args := m.Called(ctx)
	snapshot, _ := args.Get(0).(*models.Snapshot)
	return snapshot, args.Error(1)
}

func testSnapshot(fingerprint string) *models.Snapshot {
	return &models.Snapshot{
		Schedule: models.Schedule{
			Rooms: map[string]models.Room{"1": {Name: "Main Hall", Capacity: "500"}},
			Agenda: map[string]models.AgendaItem{
				"1": {RoomID: "1", Title: "Keynote", Start: 1000, End: 2000, MainFocus: "AI"},
				"2": {RoomID: "1", Title: " ", Start: 2000, End: 3000},
			},
			MainFocuses: map[string]string{"AI": "Artificial Intelligence"},
		},
		Mixin: models.Mixin{
			Streams: map[string]models.StreamMixin{"AI": {Icon: "🤖"}},
		},
		FetchedAt:   time.Now(),
		Fingerprint: fingerprint,
	}
}

func TestRefreshNotifiesOnChange(t *testing.T) {
	loader := new(MockLoader)
	loader.On("Load", mock.Anything).Return(testSnapshot("v1"), nil).Twice()
	loader.On("Load", mock.Anything).Return(testSnapshot("v2"), nil).Once()

	svc := service.NewScheduleService(loader, memory.NewRepository(), zaptest.NewLogger(t))

	var notified []string
	svc.RegisterUpdateCallback(func(s *models.Snapshot) {
		notified = append(notified, s.Fingerprint)
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.Refresh(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"v1", "v2"}, notified)
	loader.AssertExpectations(t)
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	loader := new(MockLoader)
	loader.On("Load", mock.Anything).Return(testSnapshot("v1"), nil).Once()
	loader.On("Load", mock.Anything).Return(nil, errors.New("mixin unreachable")).Once()

	repo := memory.NewRepository()
	svc := service.NewScheduleService(loader, repo, zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := svc.Refresh(ctx)
	require.NoError(t, err)

	snapshot, err := svc.Refresh(ctx)
	assert.Nil(t, snapshot)
	assert.ErrorContains(t, err, "mixin unreachable")

	stored, err := repo.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", stored.Fingerprint)
	assert.True(t, svc.Ready(ctx))
}

func TestTimelineLoadsOnDemand(t *testing.T) {
	loader := new(MockLoader)
	loader.On("Load", mock.Anything).Return(testSnapshot("v1"), nil).Once()

	svc := service.NewScheduleService(loader, memory.NewRepository(), zaptest.NewLogger(t))
	ctx := context.Background()
	assert.False(t, svc.Ready(ctx))

	tl, err := svc.Timeline(ctx)
	require.NoError(t, err)
	require.Len(t, tl.Groups, 1)
	require.Len(t, tl.Items, 1)
	assert.Equal(t, 1, tl.Dropped)
	assert.Contains(t, string(tl.Items[0].Content), "🤖 Artificial Intelligence")

	// The second call is served from the repository
	_, err = svc.Timeline(ctx)
	require.NoError(t, err)
	loader.AssertNumberOfCalls(t, "Load", 1)
}

func TestTimelineUnavailable(t *testing.T) {
	loader := new(MockLoader)
	loader.On("Load", mock.Anything).Return(nil, errors.New("connection refused"))

	svc := service.NewScheduleService(loader, memory.NewRepository(), zaptest.NewLogger(t))

	_, err := svc.Timeline(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrUnavailable)
	assert.ErrorContains(t, err, "connection refused")
}

func TestRunRefreshesUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	loader := new(MockLoader)
	loader.On("Load", mock.Anything).Return(testSnapshot("v1"), nil).Run(func(mock.Arguments) {
		calls.Add(1)
	})

	svc := service.NewScheduleService(loader, memory.NewRepository(), zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRunDisabledWithZeroInterval(t *testing.T) {
	loader := new(MockLoader)
	svc := service.NewScheduleService(loader, memory.NewRepository(), zaptest.NewLogger(t))

	svc.Run(context.Background(), 0)

	loader.AssertNotCalled(t, "Load", mock.Anything)
}

// gatedLoader blocks every load until release is closed and counts calls
type gatedLoader struct {
	calls   atomic.Int32
	release chan struct{}
}

func (l *gatedLoader) Load(ctx context.Context) (*models.Snapshot, error) {
	l.calls.Add(1)
	<-l.release
	return testSnapshot("v1"), nil
}

func TestConcurrentReadsShareOneLoad(t *testing.T) {
	loader := &gatedLoader{release: make(chan struct{})}
	svc := service.NewScheduleService(loader, memory.NewRepository(), zaptest.NewLogger(t))

	const readers = 8
	var wg sync.WaitGroup
	errs := make(chan error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Timeline(context.Background())
			errs <- err
		}()
	}

	assert.Eventually(t, func() bool { return loader.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(loader.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestResetForcesReload(t *testing.T) {
	loader := new(MockLoader)
	loader.On("Load", mock.Anything).Return(testSnapshot("v1"), nil).Once()
	loader.On("Load", mock.Anything).Return(testSnapshot("v2"), nil).Once()

	repo := memory.NewRepository()
	svc := service.NewScheduleService(loader, repo, zaptest.NewLogger(t))
	ctx := context.Background()

	// Resetting an empty store is not an error
	require.NoError(t, svc.Reset(ctx))

	_, err := svc.Timeline(ctx)
	require.NoError(t, err)
	assert.True(t, svc.Ready(ctx))

	require.NoError(t, svc.Reset(ctx))
	assert.False(t, svc.Ready(ctx))

	snapshot, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", snapshot.Fingerprint)
	loader.AssertExpectations(t)
}
