// Package wire defines the goal store protocol shared by the client
// transports and the goal store server: method names, the goal document,
// and their encoding as protobuf Struct messages.
//
// The service has no generated stubs. Requests and responses are
// *structpb.Struct values carried by the default gRPC proto codec.
package wire

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "goalkeeper.v1.GoalStore"

	MethodPing      = "/" + ServiceName + "/Ping"
	MethodPush      = "/" + ServiceName + "/Push"
	MethodPushBatch = "/" + ServiceName + "/PushBatch"
)

// Document is the remote representation of one goal record. The owner id
// travels in plaintext inside the authenticated channel; only local storage
// encrypts it.
type Document struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Steps        int       `json:"steps"`
	Calories     int       `json:"calories"`
	HeartPoints  int       `json:"heart_points"`
	CalculatedAt time.Time `json:"calculated_at"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate applies the checks the goal store server performs on every
// document.
func (d Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: missing id", common.ErrValidation)
	}
	if d.OwnerID == "" {
		return fmt.Errorf("%w: missing owner", common.ErrValidation)
	}
	if d.Source == "" {
		return fmt.Errorf("%w: missing calculation source", common.ErrValidation)
	}
	if d.CalculatedAt.IsZero() || d.UpdatedAt.IsZero() {
		return fmt.Errorf("%w: missing timestamps", common.ErrValidation)
	}
	return common.ValidateGoalValues(d.Steps, d.Calories, d.HeartPoints)
}

func (d Document) toMap() map[string]any {
	return map[string]any{
		"id":            d.ID,
		"owner_id":      d.OwnerID,
		"steps":         d.Steps,
		"calories":      d.Calories,
		"heart_points":  d.HeartPoints,
		"calculated_at": d.CalculatedAt.UTC().Format(time.RFC3339Nano),
		"source":        d.Source,
		"created_at":    d.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":    d.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ToStruct encodes the document as a protobuf Struct.
func (d Document) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(d.toMap())
}

// DocumentFromStruct decodes a document produced by ToStruct.
func DocumentFromStruct(s *structpb.Struct) (Document, error) {
	if s == nil {
		return Document{}, errors.New("empty document")
	}
	return documentFromMap(s.AsMap())
}

func documentFromMap(m map[string]any) (Document, error) {
	var (
		d   Document
		err error
	)
	r := reader{m: m}
	d.ID = r.str("id")
	d.OwnerID = r.str("owner_id")
	d.Source = r.str("source")
	d.Steps = r.integer("steps")
	d.Calories = r.integer("calories")
	d.HeartPoints = r.integer("heart_points")
	d.CalculatedAt = r.timestamp("calculated_at")
	d.CreatedAt = r.timestamp("created_at")
	d.UpdatedAt = r.timestamp("updated_at")
	if r.err != nil {
		err = fmt.Errorf("decode document: %w", r.err)
	}
	return d, err
}

// EncodeBatch wraps documents as {"records": [...]}.
func EncodeBatch(docs []Document) (*structpb.Struct, error) {
	records := make([]any, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.toMap())
	}
	return structpb.NewStruct(map[string]any{"records": records})
}

// DecodeBatch is the inverse of EncodeBatch.
func DecodeBatch(s *structpb.Struct) ([]Document, error) {
	if s == nil {
		return nil, errors.New("empty batch")
	}
	raw, ok := s.AsMap()["records"].([]any)
	if !ok {
		return nil, errors.New("decode batch: records field missing")
	}

	docs := make([]Document, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("decode batch: record %d is not an object", i)
		}
		d, err := documentFromMap(m)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}

// BatchAck is the server's answer to PushBatch: ids durably accepted and
// ids rejected with a reason. Rejected documents are permanent failures.
type BatchAck struct {
	Accepted []string
	Rejected map[string]string
}

// ToStruct encodes the ack as {"accepted": [...], "rejected": {id: reason}}.
func (a BatchAck) ToStruct() (*structpb.Struct, error) {
	accepted := make([]any, 0, len(a.Accepted))
	for _, id := range a.Accepted {
		accepted = append(accepted, id)
	}
	rejected := make(map[string]any, len(a.Rejected))
	for id, reason := range a.Rejected {
		rejected[id] = reason
	}
	return structpb.NewStruct(map[string]any{"accepted": accepted, "rejected": rejected})
}

// AckFromStruct decodes a BatchAck.
func AckFromStruct(s *structpb.Struct) (BatchAck, error) {
	ack := BatchAck{Rejected: map[string]string{}}
	if s == nil {
		return ack, errors.New("empty ack")
	}
	m := s.AsMap()

	if raw, ok := m["accepted"].([]any); ok {
		for _, v := range raw {
			id, ok := v.(string)
			if !ok {
				return ack, errors.New("decode ack: accepted id is not a string")
			}
			ack.Accepted = append(ack.Accepted, id)
		}
	}
	if raw, ok := m["rejected"].(map[string]any); ok {
		for id, v := range raw {
			reason, _ := v.(string)
			ack.Rejected[id] = reason
		}
	}
	return ack, nil
}

// Status builds the {"status": s} message used by Ping.
func Status(s string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{"status": structpb.NewStringValue(s)}}
}

// StatusOf reads the status field.
func StatusOf(s *structpb.Struct) string {
	if s == nil {
		return ""
	}
	return s.GetFields()["status"].GetStringValue()
}

type reader struct {
	m   map[string]any
	err error
}

func (r *reader) str(key string) string {
	v, ok := r.m[key].(string)
	if !ok && r.err == nil {
		r.err = fmt.Errorf("field %q: expected string", key)
	}
	return v
}

func (r *reader) integer(key string) int {
	v, ok := r.m[key].(float64)
	if !ok && r.err == nil {
		r.err = fmt.Errorf("field %q: expected number", key)
	}
	return int(v)
}

func (r *reader) timestamp(key string) time.Time {
	s := r.str(key)
	if r.err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		r.err = fmt.Errorf("field %q: %w", key, err)
	}
	return t
}
