package client

import (
	"context"

	"github.com/dmitrijs2005/goalkeeper/internal/wire"
)

// Client writes goal documents to the remote store. Every call writes on
// behalf of one owner, identified by token.
type Client interface {
	Close() error
	Ping(ctx context.Context) error

	// PushBatch writes docs, which must all belong to the token's owner.
	// Documents the remote refused are listed in BatchAck.Rejected. When the
	// error is non-nil the ack may still list documents that were durably
	// written before the failure.
	PushBatch(ctx context.Context, token string, docs []wire.Document) (wire.BatchAck, error)

	Push(ctx context.Context, token string, doc wire.Document) error
}
