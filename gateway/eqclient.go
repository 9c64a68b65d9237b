package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/linesmerrill/region-chat-api/models"
	"github.com/linesmerrill/region-chat-api/wire"
)

const maxResponseSize = 64 * 1024

// EventQueueClient posts events into another shard's delivery queue
type EventQueueClient struct {
	HTTP *http.Client
}

// NewEventQueueClient returns a client whose requests time out after timeout
func NewEventQueueClient(timeout time.Duration) *EventQueueClient {
	return &EventQueueClient{HTTP: &http.Client{Timeout: timeout}}
}

// Enqueue delivers ev to agentID's queue on the shard at url, authenticating
// with pass. It reports the remote shard's result.
func (c *EventQueueClient) Enqueue(ctx context.Context, url string, agentID, pass uuid.UUID, regionHandle uint64, ev models.Event) (bool, error) {
	payload, err := wire.EncodeLLSDXML(map[string]interface{}{
		"message": ev.Message,
		"body":    ev.Body,
	})
	if err != nil {
		return false, fmt.Errorf("failed to encode event: %w", err)
	}
	body := wire.EncodeForwardAuthRequest(models.ForwardAuthRequest{
		AgentID:      agentID,
		RegionHandle: regionHandle,
		Credential:   pass,
		Payload:      string(payload),
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to post event: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return false, err
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if len(raw) == 0 {
		return false, wire.ErrMalformedBody
	}
	fields, err := wire.ParseRequestBody(string(raw))
	if err != nil {
		return false, err
	}
	return fields[wire.FieldResult] == "true", nil
}
