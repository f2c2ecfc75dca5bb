package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"daylight-matching-api/internal/metrics"
)

const sinkNotification = "notification"

// NotificationType represents the type of notification
type NotificationType string

const (
	NotificationGroupAssigned  NotificationType = MessageTypeGroupAssigned
	NotificationGroupCancelled NotificationType = "MATCHING_GROUP_CANCELLED"
)

// NotificationEvent represents a notification to be sent
type NotificationEvent struct {
	Type         NotificationType       `json:"type"`
	ActorID      uuid.UUID              `json:"actorId"`
	TargetUserID uuid.UUID              `json:"targetUserId"`
	EventID      uuid.UUID              `json:"eventId"`
	ResourceType string                 `json:"resourceType"`
	ResourceID   uuid.UUID              `json:"resourceId"`
	ResourceName string                 `json:"resourceName,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt   string                 `json:"occurredAt,omitempty"`
}

// BulkNotificationRequest represents a bulk notification request
type BulkNotificationRequest struct {
	Notifications []NotificationEvent `json:"notifications"`
}

// NotificationClient defines the interface for notification service communication
type NotificationClient interface {
	AssignmentPublisher
	// SendNotification sends a single notification
	SendNotification(ctx context.Context, event NotificationEvent) error
	// SendBulkNotifications sends multiple notifications at once
	SendBulkNotifications(ctx context.Context, events []NotificationEvent) error
}

// notificationClient implements NotificationClient interface
type notificationClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewNotificationClient creates a new Notification API client
func NewNotificationClient(baseURL string, apiKey string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) NotificationClient {
	return &notificationClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: m,
	}
}

// SendNotification sends a single notification to the notification service
func (c *notificationClient) SendNotification(ctx context.Context, event NotificationEvent) error {
	if event.OccurredAt == "" {
		event.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := c.post(ctx, "/api/internal/notifications", event, zap.String("type", string(event.Type)))
	return err
}

// SendBulkNotifications sends multiple notifications at once
func (c *notificationClient) SendBulkNotifications(ctx context.Context, events []NotificationEvent) error {
	if len(events) == 0 {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i := range events {
		if events[i].OccurredAt == "" {
			events[i].OccurredAt = now
		}
	}

	_, err := c.post(ctx, "/api/internal/notifications/bulk", BulkNotificationRequest{Notifications: events}, zap.Int("count", len(events)))
	return err
}

// PublishAssignments notifies every member of every group in one bulk request
func (c *notificationClient) PublishAssignments(ctx context.Context, eventID uuid.UUID, assignments []GroupAssignment) error {
	events := AssignmentNotifications(eventID, assignments)
	if len(events) == 0 {
		return nil
	}

	delivered, err := c.post(ctx, "/api/internal/notifications/bulk", BulkNotificationRequest{Notifications: events}, zap.Int("count", len(events)))
	if err != nil {
		c.metrics.RecordAssignmentPublished(sinkNotification, err)
		return err
	}
	if !delivered {
		c.metrics.RecordAssignmentPublished(sinkNotification, fmt.Errorf("notification service unavailable"))
		return nil
	}
	c.metrics.RecordAssignmentPublished(sinkNotification, nil)
	return nil
}

// post returns delivered=false without an error when the notification service is unreachable
// or answers with a non-success status; the caller's operation must not fail on that.
func (c *notificationClient) post(ctx context.Context, path string, body interface{}, fields ...zap.Field) (bool, error) {
	url := c.baseURL + path

	jsonBody, err := json.Marshal(body)
	if err != nil {
		c.logger.Error("Failed to marshal notification payload", append(fields, zap.Error(err))...)
		return false, fmt.Errorf("failed to marshal notification: %w", err)
	}

	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		c.logger.Error("Failed to create notification request", zap.Error(err))
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	c.metrics.RecordExternalAPICall(url, http.MethodPost, statusCode, duration, err)

	if err != nil {
		c.logger.Error("Failed to send notification",
			append(fields, zap.Error(err), zap.Duration("duration", duration))...,
		)
		return false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Info("Notification sent successfully",
			append(fields, zap.String("path", path), zap.Duration("duration", duration))...,
		)
		return true, nil
	}

	c.logger.Warn("Notification service returned non-success status",
		append(fields, zap.Int("status_code", resp.StatusCode), zap.Duration("duration", duration))...,
	)
	return false, nil
}

// AssignmentNotifications builds one MATCHING_GROUP_ASSIGNED event per member
func AssignmentNotifications(eventID uuid.UUID, assignments []GroupAssignment) []NotificationEvent {
	var events []NotificationEvent
	for _, a := range assignments {
		var actor uuid.UUID
		if a.AssignedBy != nil {
			actor = *a.AssignedBy
		}
		occurred := ""
		if !a.OccurredAt.IsZero() {
			occurred = a.OccurredAt.UTC().Format(time.RFC3339)
		}
		for _, member := range a.MemberIDs {
			metadata := map[string]interface{}{
				"groupNumber":   a.GroupNumber,
				"attemptNumber": a.AttemptNumber,
				"memberCount":   len(a.MemberIDs),
			}
			if a.TableNumber != nil {
				metadata["tableNumber"] = *a.TableNumber
			}
			if a.VenueName != "" {
				metadata["venueName"] = a.VenueName
			}
			events = append(events, NotificationEvent{
				Type:         NotificationGroupAssigned,
				ActorID:      actor,
				TargetUserID: member,
				EventID:      eventID,
				ResourceType: "matching_group",
				ResourceID:   a.GroupID,
				ResourceName: fmt.Sprintf("Table %d", a.GroupNumber),
				Metadata:     metadata,
				OccurredAt:   occurred,
			})
		}
	}
	return events
}

// NoOpNotificationClient is a no-op implementation for when notifications are disabled
type NoOpNotificationClient struct{}

func NewNoOpNotificationClient() NotificationClient {
	return &NoOpNotificationClient{}
}

func (c *NoOpNotificationClient) SendNotification(ctx context.Context, event NotificationEvent) error {
	return nil
}

func (c *NoOpNotificationClient) SendBulkNotifications(ctx context.Context, events []NotificationEvent) error {
	return nil
}

func (c *NoOpNotificationClient) PublishAssignments(ctx context.Context, eventID uuid.UUID, assignments []GroupAssignment) error {
	return nil
}
