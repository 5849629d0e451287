// transcript-forwarder Lambda receives DynamoDB Stream events from the
// transcript tables and publishes them to the AppSync Events API so
// connected web clients see transcript updates live.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/carlmjohnson/requests"
	"github.com/samber/lo"
)

// AppSync Events caps a single publish at five events.
const maxEventsPerPublish = 5

// publisher posts a batch of serialized events to one channel.
type publisher interface {
	Publish(ctx context.Context, channel string, items []string) error
}

// eventsPublisher publishes to the AppSync Events HTTP endpoint with
// API-key auth.
type eventsPublisher struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

type publishRequest struct {
	Channel string   `json:"channel"`
	Events  []string `json:"events"`
}

func (p *eventsPublisher) Publish(ctx context.Context, channel string, items []string) error {
	body := publishRequest{Channel: channel, Events: items}
	err := requests.
		URL(p.endpoint).
		Client(p.client).
		Header("x-api-key", p.apiKey).
		BodyJSON(&body).
		Fetch(ctx)
	if err != nil {
		return fmt.Errorf("publishing %d events to %s: %w", len(items), channel, err)
	}
	return nil
}

// transcriptEvent is the payload web clients receive per stream record.
type transcriptEvent struct {
	ConversationID string `json:"conversationId"`
	SessionID      string `json:"sessionId"`
	Message        string `json:"message"`
	Table          string `json:"table"`
}

// deps holds handler dependencies resolved once per container.
type deps struct {
	pub      publisher
	channels map[string]string // table name -> channel namespace
}

var (
	sharedDeps *deps
	depsOnce   sync.Once
	depsErr    error
)

func getDeps() (*deps, error) {
	depsOnce.Do(func() {
		sharedDeps, depsErr = initDeps()
	})
	return sharedDeps, depsErr
}

// initDeps reads EVENTS_HTTP_ENDPOINT, EVENTS_API_KEY and SONIC_CHANNEL_MAP.
func initDeps() (*deps, error) {
	endpoint := os.Getenv("EVENTS_HTTP_ENDPOINT")
	apiKey := os.Getenv("EVENTS_API_KEY")
	if endpoint == "" {
		return nil, fmt.Errorf("EVENTS_HTTP_ENDPOINT environment variable required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("EVENTS_API_KEY environment variable required")
	}

	channels := parseChannelMap(os.Getenv("SONIC_CHANNEL_MAP"))
	if len(channels) == 0 {
		return nil, fmt.Errorf("SONIC_CHANNEL_MAP environment variable required")
	}

	return &deps{
		pub:      &eventsPublisher{endpoint: endpoint, apiKey: apiKey},
		channels: channels,
	}, nil
}

// parseChannelMap parses "TableA=nova,TableB=daily" into a lookup map.
func parseChannelMap(s string) map[string]string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return lo.Associate(strings.Split(s, ","), func(pair string) (string, string) {
		name, ns, _ := strings.Cut(pair, "=")
		return strings.TrimSpace(name), strings.TrimSpace(ns)
	})
}

// handleStreamEvent groups INSERT records by channel and publishes them in
// batches. Records from tables outside the channel map are skipped.
func handleStreamEvent(ctx context.Context, d *deps, event events.DynamoDBEvent) error {
	logger := slog.Default()

	batches := make(map[string][]string)
	for _, record := range event.Records {
		if record.EventName != "INSERT" {
			continue
		}

		table := tableFromStreamARN(record.EventSourceArn)
		namespace, ok := d.channels[table]
		if !ok {
			logger.Warn("record from unmapped table", "table", table, "eventID", record.EventID)
			continue
		}

		newImage := record.Change.NewImage
		if newImage == nil {
			continue
		}
		conversationID, ok := stringAttr(newImage, "conversation_id")
		if !ok {
			logger.Warn("record missing conversation_id", "table", table, "eventID", record.EventID)
			continue
		}
		sessionID, ok := stringAttr(newImage, "session_id")
		if !ok {
			logger.Warn("record missing session_id", "table", table, "eventID", record.EventID)
			continue
		}
		message, _ := stringAttr(newImage, "conversation")

		payload, err := json.Marshal(transcriptEvent{
			ConversationID: conversationID,
			SessionID:      sessionID,
			Message:        message,
			Table:          table,
		})
		if err != nil {
			logger.Error("failed to marshal transcript event", "table", table, "error", err)
			continue
		}

		// Each browser session subscribes to its own channel under the
		// table's namespace.
		channel := "/" + namespace + "/" + sessionID
		batches[channel] = append(batches[channel], string(payload))
	}

	for channel, items := range batches {
		for _, chunk := range lo.Chunk(items, maxEventsPerPublish) {
			if err := d.pub.Publish(ctx, channel, chunk); err != nil {
				logger.Error("failed to publish transcript events", "channel", channel, "error", err)
				return err
			}
		}
		logger.Info("published transcript events", "channel", channel, "count", len(items))
	}

	return nil
}

// stringAttr reads a string attribute from a stream image. It reports false
// when the attribute is absent or not of string type; DynamoDBAttributeValue
// accessors panic on a type mismatch, so the type is checked first.
func stringAttr(image map[string]events.DynamoDBAttributeValue, key string) (string, bool) {
	attr, ok := image[key]
	if !ok || attr.DataType() != events.DataTypeString {
		return "", false
	}
	return attr.String(), true
}

// tableFromStreamARN extracts the table name from a stream ARN of the form
// arn:aws:dynamodb:<region>:<account>:table/<name>/stream/<timestamp>.
func tableFromStreamARN(arn string) string {
	parts := strings.Split(arn, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func handler(ctx context.Context, event events.DynamoDBEvent) error {
	d, err := getDeps()
	if err != nil {
		return err
	}
	return handleStreamEvent(ctx, d, event)
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	awslambda.Start(handler)
}
