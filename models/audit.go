package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuditEvent represents an immutable audit log entry
type AuditEvent struct {
	ID           string                 `bson:"_id,omitempty" json:"id"`
	Timestamp    time.Time              `bson:"timestamp" json:"timestamp"`
	UserID       string                 `bson:"user_id" json:"user_id"`
	Username     string                 `bson:"username" json:"username"`
	Action       string                 `bson:"action" json:"action"`     // CREATE, UPDATE, DELETE, LOGIN, LOGOUT
	Resource     string                 `bson:"resource" json:"resource"` // settings, footer-links, cases, blog, hubspot-config, users, chat, auth
	IPAddress    string                 `bson:"ip_address" json:"ip_address"`
	UserAgent    string                 `bson:"user_agent" json:"user_agent"`
	RequestID    string                 `bson:"request_id" json:"request_id"`
	Status       int                    `bson:"status" json:"status"`
	Success      bool                   `bson:"success" json:"success"`
	ErrorMessage string                 `bson:"error_message,omitempty" json:"error_message,omitempty"`
	Changes      map[string]interface{} `bson:"changes,omitempty" json:"changes,omitempty"`
	PreviousHash string                 `bson:"previous_hash" json:"previous_hash"`
	CurrentHash  string                 `bson:"current_hash" json:"current_hash"`
}

// ComputeHash computes the hash of this audit event
func (e *AuditEvent) ComputeHash() string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%t|%s",
		e.Timestamp.Format(time.RFC3339Nano),
		e.UserID,
		e.Username,
		e.Action,
		e.Resource,
		e.Status,
		e.Success,
		e.PreviousHash,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// AuditSink persists audit events. Implementations must be insert-only.
type AuditSink interface {
	Insert(ctx context.Context, event *AuditEvent) error
}

// AuditReader is implemented by sinks that can replay the chain.
type AuditReader interface {
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]AuditEvent, error)
	// Chain returns every event, oldest first.
	Chain(ctx context.Context) ([]AuditEvent, error)
}

// MongoAuditSink stores events in the audit_logs collection.
type MongoAuditSink struct {
	col *mongo.Collection
}

func NewMongoAuditSink(db *mongo.Database) *MongoAuditSink {
	return &MongoAuditSink{col: db.Collection("audit_logs")}
}

func (s *MongoAuditSink) Insert(ctx context.Context, event *AuditEvent) error {
	_, err := s.col.InsertOne(ctx, event)
	return err
}

func (s *MongoAuditSink) Recent(ctx context.Context, limit int) ([]AuditEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))
	return s.find(ctx, opts)
}

func (s *MongoAuditSink) Chain(ctx context.Context) ([]AuditEvent, error) {
	return s.find(ctx, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
}

func (s *MongoAuditSink) find(ctx context.Context, opts *options.FindOptions) ([]AuditEvent, error) {
	cursor, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	events := []AuditEvent{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// LogAuditSink writes events to the structured log. Used when MongoDB is not configured.
type LogAuditSink struct {
	Logger *slog.Logger
}

func (s LogAuditSink) Insert(ctx context.Context, e *AuditEvent) error {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "audit",
		"action", e.Action,
		"resource", e.Resource,
		"user", e.Username,
		"status", e.Status,
		"request_id", e.RequestID,
		"hash", e.CurrentHash,
	)
	return nil
}

// AuditLogger handles immutable audit logging
type AuditLogger struct {
	sink AuditSink
	now  func() time.Time
	log  *slog.Logger

	mu       sync.Mutex
	lastHash string
	seq      int64
	wg       sync.WaitGroup
}

func NewAuditLogger(sink AuditSink) *AuditLogger {
	return &AuditLogger{
		sink: sink,
		now:  func() time.Time { return time.Now().UTC() },
		log:  slog.Default().With("component", "audit"),
	}
}

// Log chains and stores one event. The chain only advances when the insert succeeds.
func (al *AuditLogger) Log(ctx context.Context, event *AuditEvent) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	event.Timestamp = al.now()
	event.PreviousHash = al.lastHash
	al.seq++
	event.ID = fmt.Sprintf("%d_%d", event.Timestamp.UnixNano(), al.seq)
	event.CurrentHash = event.ComputeHash()

	if err := al.sink.Insert(ctx, event); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	al.lastHash = event.CurrentHash
	return nil
}

// LogAsync logs an audit event asynchronously
func (al *AuditLogger) LogAsync(event *AuditEvent) {
	al.wg.Add(1)
	go func() {
		defer al.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := al.Log(ctx, event); err != nil {
			al.log.Error("async audit logging failed", "error", err, "action", event.Action, "resource", event.Resource)
		}
	}()
}

// Wait blocks until every LogAsync call has finished.
func (al *AuditLogger) Wait() {
	al.wg.Wait()
}

// Reader returns the sink as an AuditReader when it supports queries.
func (al *AuditLogger) Reader() (AuditReader, bool) {
	r, ok := al.sink.(AuditReader)
	return r, ok
}

// VerifyChain reports the index of the first event that breaks the chain, or -1.
func VerifyChain(events []AuditEvent) int {
	previousHash := ""
	for i := range events {
		e := &events[i]
		if i > 0 && e.PreviousHash != previousHash {
			return i
		}
		if e.CurrentHash != e.ComputeHash() {
			return i
		}
		previousHash = e.CurrentHash
	}
	return -1
}
