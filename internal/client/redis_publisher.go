package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"daylight-matching-api/internal/metrics"
)

const (
	sinkRedis = "redis"

	// MessageTypeGroupAssigned is published once per committed group
	MessageTypeGroupAssigned = "MATCHING_GROUP_ASSIGNED"
)

// EventChannel returns the pub/sub channel for an event's matching updates
func EventChannel(eventID uuid.UUID) string {
	return "matching:event:" + eventID.String()
}

// AssignmentMessage is the payload published on the event channel
type AssignmentMessage struct {
	Type  string          `json:"type"`
	Group GroupAssignment `json:"group"`
}

// RedisPublisher publishes assignments on redis pub/sub for the chat layer
type RedisPublisher struct {
	client  *redis.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewRedisPublisher creates a new RedisPublisher
func NewRedisPublisher(client *redis.Client, logger *zap.Logger, m *metrics.Metrics) *RedisPublisher {
	return &RedisPublisher{client: client, logger: logger, metrics: m}
}

// PublishAssignments publishes one message per group. A nil client is a no-op.
func (p *RedisPublisher) PublishAssignments(ctx context.Context, eventID uuid.UUID, assignments []GroupAssignment) error {
	if p.client == nil {
		return nil
	}

	channel := EventChannel(eventID)
	for _, a := range assignments {
		data, err := json.Marshal(AssignmentMessage{Type: MessageTypeGroupAssigned, Group: a})
		if err != nil {
			return fmt.Errorf("failed to marshal assignment: %w", err)
		}
		if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
			p.metrics.RecordAssignmentPublished(sinkRedis, err)
			p.logger.Warn("Failed to publish assignment",
				zap.String("channel", channel),
				zap.Int("group_number", a.GroupNumber),
				zap.Error(err),
			)
			return fmt.Errorf("failed to publish to %s: %w", channel, err)
		}
	}

	p.metrics.RecordAssignmentPublished(sinkRedis, nil)
	p.logger.Debug("Assignments published",
		zap.String("channel", channel),
		zap.Int("groups", len(assignments)),
	)
	return nil
}
