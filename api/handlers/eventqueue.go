package handlers

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/linesmerrill/region-chat-api/eventqueue"
	"github.com/linesmerrill/region-chat-api/metrics"
	"github.com/linesmerrill/region-chat-api/wire"
)

const defaultEnqueueMaxBody = 64 * 1024

// EventQueue accepts events posted by other shards for agents connected here
type EventQueue struct {
	Queue       *eventqueue.Queue
	Credentials *eventqueue.Credentials
	MaxBody     int64
}

// EnqueueHandler authenticates a forwarded event and queues it for the
// agent. The reply is always 200: a result document when the envelope
// decodes, an empty body when it does not.
func (e EventQueue) EnqueueHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/xml")

	maxBody := e.MaxBody
	if maxBody <= 0 {
		maxBody = defaultEnqueueMaxBody
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		e.malformed(w, err)
		return
	}

	fields, err := wire.ParseRequestBody(string(raw))
	if err != nil {
		e.malformed(w, err)
		return
	}
	req, err := wire.DecodeForwardAuthRequest(fields)
	if err != nil {
		e.malformed(w, err)
		return
	}

	if !e.Credentials.AuthenticateRequest(req.AgentID, req.Credential, req.RegionHandle) {
		zap.S().Warnw("enqueue rejected, bad credential",
			"agentID", req.AgentID,
			"region", req.RegionHandle,
			"remote", r.RemoteAddr)
		metrics.EnqueueRequests.WithLabelValues("unauthorized").Inc()
		e.reply(w, false)
		return
	}

	doc, err := wire.ParseLLSDMap([]byte(req.Payload))
	if err != nil {
		zap.S().Warnw("enqueue payload is not an llsd map", "agentID", req.AgentID, "error", err)
		metrics.EnqueueRequests.WithLabelValues("rejected").Inc()
		e.reply(w, false)
		return
	}

	ok := e.Queue.EnqueueDocument(doc, req.AgentID, req.RegionHandle)
	if ok {
		metrics.EnqueueRequests.WithLabelValues("ok").Inc()
	} else {
		metrics.EnqueueRequests.WithLabelValues("rejected").Inc()
	}
	e.reply(w, ok)
}

func (e EventQueue) reply(w http.ResponseWriter, result bool) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wire.ResultResponse(result))
}

func (e EventQueue) malformed(w http.ResponseWriter, err error) {
	zap.S().Debugw("malformed enqueue request", "error", err)
	metrics.EnqueueRequests.WithLabelValues("malformed").Inc()
	w.WriteHeader(http.StatusOK)
}

// eventQueueTimeout answers a timed out enqueue with a false result
func eventQueueTimeout(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wire.ResultResponse(false))
}
