package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/linesmerrill/region-chat-api/api"
	"github.com/linesmerrill/region-chat-api/api/scheduler"
	"github.com/linesmerrill/region-chat-api/config"
	"github.com/linesmerrill/region-chat-api/databases"
	"github.com/linesmerrill/region-chat-api/eventqueue"
	"github.com/linesmerrill/region-chat-api/gateway"
	"github.com/linesmerrill/region-chat-api/groupchat"
	"github.com/linesmerrill/region-chat-api/models"
	"github.com/linesmerrill/region-chat-api/presence"
)

const (
	amqpDialAttempts = 5
	amqpDialDelay    = time.Second
)

// App stores the router and the shard's session state, so it can be reused
type App struct {
	Router      *mux.Router
	Config      config.Config
	Sessions    databases.ChatSessionDatabase
	Queue       *eventqueue.Queue
	Credentials *eventqueue.Credentials
	Hub         *presence.Hub
	Coordinator *groupchat.Coordinator

	dbHelper  databases.DatabaseHelper
	client    databases.ClientHelper
	amqpConn  *amqp.Connection
	forwarder *gateway.Forwarder
	consumer  *gateway.AMQPConsumer
	scheduler *scheduler.Scheduler
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	m := api.MiddlewareJWT{Secret: []byte(a.Config.JWTSecret)}

	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware)

	eq := EventQueue{Queue: a.Queue, Credentials: a.Credentials, MaxBody: a.Config.EnqueueMaxBody}
	chat := Chat{Coordinator: a.Coordinator, Queue: a.Queue}
	p := Presence{Hub: a.Hub, Upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}}
	mh := MetricsHandler{}

	// healthchex
	r.HandleFunc("/health", a.healthCheckHandler).Methods("GET")

	// other shards expect a result document even when we give up waiting
	enqueueTimeout := api.TimeoutMiddlewareWithResponse(a.Config.EnqueueTimeout, eventQueueTimeout)
	r.Handle("/CAPS/EQMPOSTER", enqueueTimeout(http.HandlerFunc(eq.EnqueueHandler))).Methods("POST")

	r.Handle("/ws/agent", m.Middleware(http.HandlerFunc(p.ConnectHandler))).Methods("GET")

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(api.QueryTimeout))
	apiCreate.Use(m.Middleware)
	apiCreate.HandleFunc("/chat/sessions", chat.StartSessionHandler).Methods("POST")
	apiCreate.HandleFunc("/chat/sessions/{session_id}", chat.RosterHandler).Methods("GET")
	apiCreate.HandleFunc("/chat/sessions/{session_id}/request", chat.ChatRequestHandler).Methods("POST")
	apiCreate.HandleFunc("/chat/sessions/{session_id}/messages", chat.SendMessageHandler).Methods("POST")
	apiCreate.HandleFunc("/chat/sessions/{session_id}/members/me", chat.DropHandler).Methods("DELETE")
	apiCreate.HandleFunc("/events", chat.EventsHandler).Methods("GET")

	r.HandleFunc("/api/v2/metrics", mh.GetMetricsDashboard).Methods("GET")
	r.HandleFunc("/api/v2/metrics/summary", mh.GetMetricsSummary).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}

// Initialize is invoked by main to connect with the database and the
// broker, build the shard's session state and create a router
func (a *App) Initialize(ctx context.Context) error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect(ctx)
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	a.client = client
	zap.S().Info("region-chat-api has connected to the database")

	a.Sessions = databases.NewChatSessionDatabase()
	a.Queue = eventqueue.NewQueue(eventqueue.DefaultMaxPerAgent)
	a.Credentials = eventqueue.NewCredentials(a.Config.CredentialTTL)
	a.Hub = presence.NewHub(a.Queue, a.Credentials)

	if err := a.initializeMessaging(ctx); err != nil {
		return err
	}

	a.scheduler = scheduler.NewScheduler(a.Queue, a.Sessions, a.Config.EventTTL, a.Config.DropTombstoneTTL)
	a.scheduler.Start()

	a.initializeRoutes()
	return nil
}

// initializeMessaging builds the coordinator and, when a broker is
// configured, the transfer between shards. Without a broker the
// coordinator comes up disabled.
func (a *App) initializeMessaging(ctx context.Context) error {
	var forwarder groupchat.Forwarder
	if a.Config.AMQPURL != "" {
		conn, err := gateway.DialWithRetry(ctx, a.Config.AMQPURL, amqpDialAttempts, amqpDialDelay)
		if err != nil {
			zap.S().With(err).Error("failed to connect to broker")
			return err
		}
		a.amqpConn = conn

		transfer, err := gateway.NewAMQPTransfer(conn, a.Config.AMQPExchange, a.Config.RegionHandle)
		if err != nil {
			zap.S().With(err).Error("failed to set up transfer")
			return err
		}
		a.forwarder = gateway.NewForwarder(transfer, a.Config.ForwardQueueSize, a.Config.ForwardWorkers)
		a.forwarder.Start()
		forwarder = a.forwarder
	}

	a.Coordinator = groupchat.New(groupchat.Options{
		Store:     a.Sessions,
		Directory: groupchat.NewMongoDirectory(databases.NewGroupDatabase(a.dbHelper)),
		Presence:  a.Hub,
		Queue:     a.Queue,
		Forwarder: forwarder,
		Enabled:   a.Config.MessagingEnabled,
		Debug:     a.Config.IsDevelopment(),
	})
	a.Coordinator.Attach(a.Hub)

	if a.amqpConn == nil || !a.Coordinator.Enabled() {
		return nil
	}
	consumer, err := gateway.NewAMQPConsumer(a.amqpConn, a.Config.AMQPExchange, a.Config.RegionHandle, a.Coordinator, a.Config.ForwardWorkers)
	if err != nil {
		zap.S().With(err).Error("failed to set up consumer")
		return err
	}
	if err := consumer.Start(); err != nil {
		zap.S().With(err).Error("failed to start consumer")
		return err
	}
	a.consumer = consumer
	return nil
}

// Close stops background work and releases the database and broker
// connections
func (a *App) Close(ctx context.Context) {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			zap.S().Warnw("failed to close consumer", "error", err)
		}
	}
	if a.Coordinator != nil {
		a.Coordinator.Close()
	}
	if a.forwarder != nil {
		a.forwarder.Close()
	}
	if a.amqpConn != nil {
		if err := a.amqpConn.Close(); err != nil {
			zap.S().Warnw("failed to close broker connection", "error", err)
		}
	}
	if a.client != nil {
		if err := a.client.Disconnect(ctx); err != nil {
			zap.S().Warnw("failed to disconnect database", "error", err)
		}
	}
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func (a *App) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive:  true,
		Region: a.Config.RegionHandle,
	})
	_, _ = io.WriteString(w, string(b))
}
