package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/resto-pricing/internal/events"
)

type stubStore struct {
	events []events.Event
	err    error
}

func (s *stubStore) InsertEvent(_ context.Context, event events.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type capturePublisher struct {
	events []events.Event
	err    error
}

func (c *capturePublisher) Publish(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitPersistsAndFansOut(t *testing.T) {
	store := &stubStore{}
	publisher := &capturePublisher{}
	notifier := &captureNotifier{}
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	bus := events.Bus{
		Store:     store,
		Publisher: publisher,
		Notifiers: []events.Notifier{notifier},
		Now:       func() time.Time { return fixed },
	}

	aggregate := uuid.New()
	event, err := bus.Emit(context.Background(), events.TopicOrderSubmitted, aggregate, map[string]any{"orderId": "123"})
	require.NoError(t, err)
	require.Len(t, store.events, 1)
	require.JSONEq(t, `{"orderId":"123"}`, string(store.events[0].Payload))
	require.Len(t, publisher.events, 1)
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, publisher.events[0].ID)
	require.Equal(t, aggregate, event.AggregateID)
	require.Equal(t, fixed, event.OccurredAt)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	require.Equal(t, "123", decoded["orderId"])
}

func TestEmitKeepsNotifyingWhenPublishFails(t *testing.T) {
	publisher := &capturePublisher{err: errors.New("broker down")}
	notifier := &captureNotifier{}
	bus := events.Bus{Publisher: publisher, Notifiers: []events.Notifier{notifier, nil}}

	_, err := bus.Emit(context.Background(), events.TopicOrderSubmitted, uuid.New(), nil)
	require.ErrorContains(t, err, "broker down")
	require.Len(t, notifier.events, 1)
	require.JSONEq(t, `{}`, string(notifier.events[0].Payload))
}

func TestEmitValidatesInput(t *testing.T) {
	bus := events.Bus{}
	_, err := bus.Emit(context.Background(), " ", uuid.New(), nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderSubmitted, uuid.Nil, nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderSubmitted, uuid.New(), "{not json")
	require.Error(t, err)

	store := &stubStore{err: errors.New("db down")}
	publisher := &capturePublisher{}
	bus = events.Bus{Store: store, Publisher: publisher}
	_, err = bus.Emit(context.Background(), events.TopicOrderSubmitted, uuid.New(), nil)
	require.ErrorContains(t, err, "persist event")
	require.Empty(t, publisher.events)
}

func TestLogNotifierWritesEnvelope(t *testing.T) {
	buf := &bytes.Buffer{}
	n := events.LogNotifier{Logger: zerolog.New(buf)}
	ev := events.Event{ID: uuid.New(), Topic: events.TopicOrderSubmitted, AggregateID: uuid.New(), Payload: json.RawMessage(`{"total":"1.00"}`)}
	require.NoError(t, n.Notify(context.Background(), ev))
	require.Contains(t, buf.String(), `"topic":"order.submitted"`)
	require.Contains(t, buf.String(), `"payload":{"total":"1.00"}`)
}
