package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1234567890-0")
	}
	return cmd
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestPublisher_PublishJobFinished(t *testing.T) {
	ctx := context.Background()

	t.Run("appends event to stream", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		p := NewPublisher(mockRedis, "", nil)

		var captured *redis.XAddArgs
		mockRedis.On("XAdd", ctx, mock.AnythingOfType("*redis.XAddArgs")).
			Run(func(args mock.Arguments) { captured = args.Get(1).(*redis.XAddArgs) }).
			Return(nil)

		payload := &JobFinishedPayload{
			JobID:     "job-1",
			Platform:  "amazon",
			Flow:      "search",
			Status:    "Done!",
			Succeeded: true,
			Filename:  "amazon_search_shoes.csv",
		}
		require.NoError(t, p.PublishJobFinished(ctx, payload))

		require.NotNil(t, captured)
		assert.Equal(t, DefaultStream, captured.Stream)

		values := captured.Values.(map[string]interface{})
		assert.Equal(t, "SCRAPE_JOB_FINISHED", values["event_type"])
		assert.Equal(t, "job-1", values["job_id"])

		var decoded JobFinishedPayload
		require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &decoded))
		assert.Equal(t, "amazon_search_shoes.csv", decoded.Filename)
		assert.NotEmpty(t, decoded.EventID)
		assert.False(t, decoded.Timestamp.IsZero())

		mockRedis.AssertExpectations(t)
	})

	t.Run("returns redis errors", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		p := NewPublisher(mockRedis, "custom", nil)

		mockRedis.On("XAdd", ctx, mock.Anything).Return(errors.New("redis down"))

		err := p.PublishJobFinished(ctx, &JobFinishedPayload{JobID: "job-2"})
		assert.ErrorContains(t, err, "failed to publish to redis")
	})
}

func TestPublisher_Close(t *testing.T) {
	mockRedis := new(MockRedisClient)
	mockRedis.On("Close").Return(nil)

	require.NoError(t, NewPublisher(mockRedis, "", nil).Close())
	mockRedis.AssertExpectations(t)
}
