//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"presente/pkg/platform/audit"
	"presente/pkg/testutil/containers"
)

func TestKafkaPublisherRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	redpanda := containers.GetManager().GetRedpanda(t)
	topic := "presente.attendance.events." + uuid.NewString()

	publisher, err := audit.NewKafkaPublisher(ctx, redpanda.Brokers, topic, nil)
	require.NoError(t, err)

	groupID := uuid.NewString()
	event := audit.Event{
		Action:  audit.ActionSessionClosed,
		GroupID: groupID,
		Period:  "2025-1",
		Present: 1,
		Absent:  1,
	}
	require.NoError(t, publisher.Emit(ctx, event))
	require.NoError(t, publisher.Close(ctx))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(redpanda.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, groupID, string(records[0].Key))

	var got audit.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, audit.ActionSessionClosed, got.Action)
	require.Equal(t, 1, got.Present)
	require.Equal(t, 1, got.Absent)
	require.False(t, got.Timestamp.IsZero())
}
