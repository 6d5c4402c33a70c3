package localserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/invopop/jsonschema"
	"github.com/tsubakihara/companion-core/core/chat"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// nextSpeakerDecision is the structured output the gateway must return
// when asked to route a multi-party turn.
type nextSpeakerDecision struct {
	NextSpeaker string `json:"next_speaker" jsonschema:"title=next_speaker,description=Participant ID of the character that should speak next"`
	Reason      string `json:"reason,omitempty" jsonschema:"title=reason,description=Short rationale for the routing decision"`
}

type nextSpeakerRequest struct {
	Participants   []participant  `json:"participants"`
	History        []historyEntry `json:"history"`
	ResponseFormat struct {
		Type       string `json:"type"`
		JSONSchema struct {
			Name   string            `json:"name"`
			Schema jsonschema.Schema `json:"schema"`
			Strict bool              `json:"strict"`
		} `json:"json_schema"`
	} `json:"response_format"`
}

// ResolveNextSpeaker asks the gateway which AI participant should take
// the floor next. The returned ID is validated against the request's
// participant roster.
func (c *Client) ResolveNextSpeaker(ctx context.Context, req chat.Request) (chat.ParticipantID, error) {
	ctx, span := tracer.Start(ctx, "resolve next speaker")
	defer span.End()

	wire := toConversationRequest(req)

	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&nextSpeakerDecision{})

	body := nextSpeakerRequest{
		Participants: wire.Participants,
		History:      wire.History,
	}
	body.ResponseFormat.Type = "json_schema"
	body.ResponseFormat.JSONSchema.Name = "nextSpeakerDecision"
	body.ResponseFormat.JSONSchema.Schema = *schema
	body.ResponseFormat.JSONSchema.Strict = true

	schemaString, _ := schema.MarshalJSON()
	span.SetAttributes(attribute.String("request.schema", string(schemaString)))

	requestBodyBytes, err := json.Marshal(body)
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		return chat.NoSpeaker, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+nextSpeakerPath, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		return chat.NoSpeaker, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return chat.NoSpeaker, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, readErr := io.ReadAll(resp.Body); readErr == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return chat.NoSpeaker, err
	}

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("error reading response body: %w", err)
		span.RecordError(err)
		return chat.NoSpeaker, err
	}

	var decision nextSpeakerDecision
	if err := json.Unmarshal(respBodyBytes, &decision); err != nil {
		err = fmt.Errorf("error unmarshalling response: %w", err)
		span.RecordError(err)
		return chat.NoSpeaker, err
	}

	next := chat.ParticipantID(decision.NextSpeaker)
	span.SetAttributes(attribute.String("response.next_speaker", string(next)))

	for _, p := range req.Participants {
		if p.ID == next && p.Kind == chat.ParticipantKindAI {
			return next, nil
		}
	}

	err = fmt.Errorf("next speaker %q is not an AI participant", decision.NextSpeaker)
	span.RecordError(err)
	return chat.NoSpeaker, err
}
