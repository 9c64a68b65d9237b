// Package docs Region Chat API.
//
// Documentation of the Region Chat API: group chat sessions spanning
// region shards.
//
//	 Schemes: https
//	 BasePath: /
//	 Version: 1.0.0
//
//	 Consumes:
//	 - application/json
//
//	 Produces:
//	 - application/json
//
//	 Security:
//	 - bearer
//
//	SecurityDefinitions:
//	bearer:
//	  type: apiKey
//	  name: Authorization
//	  in: header
//
// swagger:meta
package docs

import (
	"github.com/google/uuid"

	"github.com/linesmerrill/region-chat-api/models"
)

// swagger:route GET /health health healthEndpointID
// Lists the healthchex of the web service api.
// responses:
//   200: healthResponse

// Shows the current health of the api. true means it is alive, false means it is not.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route GET /api/v1/chat/sessions/{session_id} chat sessionRoster
// Gets the membership of a group chat session.
// responses:
//   200: sessionRosterResponse

// The session and every member record, pending invitees included
// swagger:response sessionRosterResponse
type sessionRosterResponseWrapper struct {
	// in:body
	Body models.ChatSession
}

// swagger:parameters sessionRoster chatRequest
type sessionIDParam struct {
	// in:path
	SessionID uuid.UUID `json:"session_id"`
}

// swagger:route POST /api/v1/chat/sessions/{session_id}/request chat chatRequest
// Answers a chat session request such as "accept invitation".
// responses:
//   200: chatRequestResponse

// An empty result means the request was not acted on
// swagger:response chatRequestResponse
type chatRequestResponseWrapper struct {
	// in:body
	Body models.ChatRequestResponse
}

// swagger:route POST /CAPS/EQMPOSTER eventqueue enqueue
// Queues an event for an agent connected to this shard. Always answers
// 200 with an XML result document, or an empty body when the request
// could not be decoded.
// responses:
//   200: enqueueResponse

// swagger:response enqueueResponse
type enqueueResponseWrapper struct {
	// in:body
	Body models.EnqueueResponse
}
