// Package notifier publishes record-change events to downstream
// collaborators. Emission is fire-and-forget: a publish failure is
// reported to the caller for logging but never rolls back the record
// write that triggered it.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/dmphub/dmpsync/pkg/plan"
)

// Logical event kinds emitted when state changes persist.
const (
	DetailTypeRegistrationUpdate = "external-identifier-registration-update"
	DetailTypeCitationFetch      = "citation-fetch-requested"

	eventSource = "dmpsync"
)

// Publisher is the outbound event contract.
type Publisher interface {
	Publish(ctx context.Context, detailType string, detail any) error
}

// EventBridgeClient publishes to an AWS EventBridge bus.
type EventBridgeClient struct {
	Client *eventbridge.Client
	Bus    string
}

// NewEventBridgeClient initializes the EventBridge integration.
func NewEventBridgeClient(cfg aws.Config, bus string) *EventBridgeClient {
	return &EventBridgeClient{
		Client: eventbridge.NewFromConfig(cfg),
		Bus:    bus,
	}
}

func (c *EventBridgeClient) Publish(ctx context.Context, detailType string, detail any) error {
	if c.Bus == "" {
		return nil
	}

	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to marshal event detail: %w", err)
	}

	out, err := c.Client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{
			{
				EventBusName: aws.String(c.Bus),
				Source:       aws.String(eventSource),
				DetailType:   aws.String(detailType),
				Detail:       aws.String(string(payload)),
				Time:         aws.Time(time.Now().UTC()),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", detailType, err)
	}
	if out.FailedEntryCount > 0 {
		return fmt.Errorf("event bus rejected %s entry", detailType)
	}
	return nil
}

// RegistrationDetail is the payload of a registration-update event.
type RegistrationDetail struct {
	DMPID      string `json:"dmp_id"`
	Provenance string `json:"provenance"`
}

// CitationDetail is the payload of a citation-fetch event.
type CitationDetail struct {
	DMPID       string   `json:"dmp_id"`
	Identifiers []string `json:"identifiers"`
}

// CitationCandidates returns the record's related identifiers eligible for
// citation enrichment: everything except the metadata self-link carried by
// management-plan entries.
func CitationCandidates(rec *plan.Record) []string {
	var ids []string
	for _, rel := range rec.RelatedIdentifiers {
		if rel.Descriptor == "is_metadata_for" && rel.WorkType == "output_management_plan" {
			continue
		}
		ids = append(ids, rel.Identifier)
	}
	return ids
}
