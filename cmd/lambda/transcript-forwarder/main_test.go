package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	published map[string][]string
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, channel string, items []string) error {
	if m.published == nil {
		m.published = make(map[string][]string)
	}
	m.published[channel] = append(m.published[channel], items...)
	return m.err
}

func testDeps(pub publisher) *deps {
	return &deps{
		pub: pub,
		channels: map[string]string{
			"SonicNovaTranscripts":  "nova",
			"SonicDailyTranscripts": "daily",
		},
	}
}

func makeRecord(table, sessionID, conversationID, message, eventName string) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventName:      eventName,
		EventSourceArn: fmt.Sprintf("arn:aws:dynamodb:us-east-1:123456789012:table/%s/stream/2026-01-01T00:00:00.000", table),
		Change: events.DynamoDBStreamRecord{
			NewImage: map[string]events.DynamoDBAttributeValue{
				"session_id":      events.NewStringAttribute(sessionID),
				"conversation_id": events.NewStringAttribute(conversationID),
				"conversation":    events.NewStringAttribute(message),
			},
		},
	}
}

func TestHandleStreamEvent_PublishesInserts(t *testing.T) {
	mock := &mockPublisher{}
	event := events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{
			makeRecord("SonicNovaTranscripts", "sess-42", "2026-01-01T10:00:00", "user: hello", "INSERT"),
			makeRecord("SonicDailyTranscripts", "sess-43", "2026-01-01T10:00:01", "assistant: hi", "INSERT"),
		},
	}

	require.NoError(t, handleStreamEvent(context.Background(), testDeps(mock), event))

	require.Len(t, mock.published["/nova/sess-42"], 1)
	require.Len(t, mock.published["/daily/sess-43"], 1)

	var evt transcriptEvent
	require.NoError(t, json.Unmarshal([]byte(mock.published["/nova/sess-42"][0]), &evt))
	assert.Equal(t, "2026-01-01T10:00:00", evt.ConversationID)
	assert.Equal(t, "sess-42", evt.SessionID)
	assert.Equal(t, "user: hello", evt.Message)
	assert.Equal(t, "SonicNovaTranscripts", evt.Table)
}

func TestHandleStreamEvent_RoutesPerSession(t *testing.T) {
	mock := &mockPublisher{}
	event := events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{
			makeRecord("SonicNovaTranscripts", "sess-a", "c1", "m1", "INSERT"),
			makeRecord("SonicNovaTranscripts", "sess-b", "c2", "m2", "INSERT"),
			makeRecord("SonicNovaTranscripts", "sess-a", "c3", "m3", "INSERT"),
		},
	}

	require.NoError(t, handleStreamEvent(context.Background(), testDeps(mock), event))

	assert.Len(t, mock.published["/nova/sess-a"], 2)
	assert.Len(t, mock.published["/nova/sess-b"], 1)
}

func TestHandleStreamEvent_SkipsRecordsWithoutSession(t *testing.T) {
	mock := &mockPublisher{}
	record := makeRecord("SonicNovaTranscripts", "sess-1", "c1", "m1", "INSERT")
	delete(record.Change.NewImage, "session_id")

	require.NoError(t, handleStreamEvent(context.Background(), testDeps(mock), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{record},
	}))
	assert.Empty(t, mock.published)
}

func TestHandleStreamEvent_SkipsNonStringAttributes(t *testing.T) {
	mock := &mockPublisher{}
	record := makeRecord("SonicNovaTranscripts", "sess-1", "c1", "m1", "INSERT")
	record.Change.NewImage["conversation_id"] = events.NewNumberAttribute("7")
	malformed := makeRecord("SonicNovaTranscripts", "sess-2", "c2", "m2", "INSERT")
	malformed.Change.NewImage["conversation"] = events.NewBooleanAttribute(true)

	require.NotPanics(t, func() {
		require.NoError(t, handleStreamEvent(context.Background(), testDeps(mock), events.DynamoDBEvent{
			Records: []events.DynamoDBEventRecord{record, malformed},
		}))
	})

	// A non-string id drops the record; a non-string message only empties
	// the payload's message field.
	assert.Empty(t, mock.published["/nova/sess-1"])
	require.Len(t, mock.published["/nova/sess-2"], 1)
	var evt transcriptEvent
	require.NoError(t, json.Unmarshal([]byte(mock.published["/nova/sess-2"][0]), &evt))
	assert.Equal(t, "", evt.Message)
}

func TestHandleStreamEvent_SkipsNonInsert(t *testing.T) {
	mock := &mockPublisher{}
	event := events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{
			makeRecord("SonicNovaTranscripts", "sess-1", "c1", "m1", "MODIFY"),
			makeRecord("SonicNovaTranscripts", "sess-1", "c2", "m2", "REMOVE"),
		},
	}

	require.NoError(t, handleStreamEvent(context.Background(), testDeps(mock), event))
	assert.Empty(t, mock.published)
}

func TestHandleStreamEvent_SkipsUnmappedTable(t *testing.T) {
	mock := &mockPublisher{}
	event := events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{
			makeRecord("SomeOtherTable", "sess-1", "c1", "m1", "INSERT"),
		},
	}

	require.NoError(t, handleStreamEvent(context.Background(), testDeps(mock), event))
	assert.Empty(t, mock.published)
}

func TestHandleStreamEvent_ChunksLargeBatches(t *testing.T) {
	calls := 0
	pub := &countingPublisher{calls: &calls}
	d := testDeps(pub)

	var records []events.DynamoDBEventRecord
	for i := 0; i < 12; i++ {
		records = append(records, makeRecord("SonicNovaTranscripts", "sess-1", fmt.Sprintf("c%d", i), "m", "INSERT"))
	}

	require.NoError(t, handleStreamEvent(context.Background(), d, events.DynamoDBEvent{Records: records}))
	assert.Equal(t, 3, calls) // 5 + 5 + 2
}

type countingPublisher struct{ calls *int }

func (p *countingPublisher) Publish(_ context.Context, _ string, items []string) error {
	*p.calls++
	if len(items) > maxEventsPerPublish {
		return fmt.Errorf("batch too large: %d", len(items))
	}
	return nil
}

func TestHandleStreamEvent_PropagatesPublishError(t *testing.T) {
	mock := &mockPublisher{err: fmt.Errorf("throttled")}
	event := events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{
			makeRecord("SonicNovaTranscripts", "sess-1", "c1", "m1", "INSERT"),
		},
	}

	err := handleStreamEvent(context.Background(), testDeps(mock), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestParseChannelMap(t *testing.T) {
	m := parseChannelMap("A=nova, B=daily")
	assert.Equal(t, map[string]string{"A": "nova", "B": "daily"}, m)
	assert.Nil(t, parseChannelMap(""))
}

func TestTableFromStreamARN(t *testing.T) {
	arn := "arn:aws:dynamodb:us-east-1:123456789012:table/Foo/stream/2025-06-07T12:39:44.826"
	assert.Equal(t, "Foo", tableFromStreamARN(arn))
	assert.Equal(t, "", tableFromStreamARN("not-an-arn"))
}

func TestEventsPublisher(t *testing.T) {
	var got publishRequest
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("x-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := &eventsPublisher{endpoint: srv.URL, apiKey: "secret", client: srv.Client()}
	err := p.Publish(context.Background(), "/nova/sess-1", []string{`{"a":1}`})
	require.NoError(t, err)

	assert.Equal(t, "secret", apiKey)
	assert.Equal(t, "/nova/sess-1", got.Channel)
	assert.Equal(t, []string{`{"a":1}`}, got.Events)
}

func TestInitDepsRequiresEnv(t *testing.T) {
	t.Setenv("EVENTS_HTTP_ENDPOINT", "")
	t.Setenv("EVENTS_API_KEY", "k")
	t.Setenv("SONIC_CHANNEL_MAP", "A=nova")

	_, err := initDeps()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVENTS_HTTP_ENDPOINT")
}
