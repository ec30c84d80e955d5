package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRelay_PublishReachesAllSubscribers(t *testing.T) {
	r := NewMemoryRelay()

	var a, b [][]byte
	r.Subscribe("bus_location_updates", func(_ string, payload []byte) {
		a = append(a, payload)
	})
	r.Subscribe("bus_location_updates", func(_ string, payload []byte) {
		b = append(b, payload)
	})

	require.NoError(t, r.Publish(context.Background(), "bus_location_updates", []byte("m1")))
	require.NoError(t, r.Publish(context.Background(), "bus_location_updates", []byte("m2")))

	assert.Equal(t, [][]byte{[]byte("m1"), []byte("m2")}, a)
	assert.Equal(t, [][]byte{[]byte("m1"), []byte("m2")}, b)
}

func TestMemoryRelay_ChannelsAreIsolated(t *testing.T) {
	r := NewMemoryRelay()

	var got []string
	r.Subscribe("user_notification_events", func(channel string, payload []byte) {
		got = append(got, channel+":"+string(payload))
	})

	require.NoError(t, r.Publish(context.Background(), "bus_location_updates", []byte("loc")))
	require.NoError(t, r.Publish(context.Background(), "user_notification_events", []byte("note")))

	assert.Equal(t, []string{"user_notification_events:note"}, got)
}

func TestMemoryRelay_PublishWithoutSubscribers(t *testing.T) {
	r := NewMemoryRelay()
	assert.NoError(t, r.Publish(context.Background(), "bus_location_updates", []byte("dropped")))
}
