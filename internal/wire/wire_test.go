package wire

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func sampleDocument() Document {
	at := time.Date(2026, 3, 1, 8, 30, 0, 123456789, time.UTC)
	return Document{
		ID:           "g-1",
		OwnerID:      "alice",
		Steps:        8000,
		Calories:     2100,
		HeartPoints:  30,
		CalculatedAt: at,
		Source:       "personalized",
		CreatedAt:    at,
		UpdatedAt:    at.Add(time.Minute),
	}
}

func TestDocumentStructKeepsNanoseconds(t *testing.T) {
	d := sampleDocument()

	s, err := d.ToStruct()
	require.NoError(t, err)

	got, err := DocumentFromStruct(s)
	require.NoError(t, err)
	assert.True(t, d.CalculatedAt.Equal(got.CalculatedAt))
	assert.True(t, d.UpdatedAt.Equal(got.UpdatedAt))
	assert.Equal(t, d.Steps, got.Steps)
	assert.Equal(t, d.OwnerID, got.OwnerID)
}

func TestDocumentFromStructMissingField(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"id": "g-1"})
	require.NoError(t, err)

	_, err = DocumentFromStruct(s)
	assert.ErrorContains(t, err, "owner_id")
}

func TestBatchEncoding(t *testing.T) {
	a := sampleDocument()
	b := sampleDocument()
	b.ID = "g-2"

	s, err := EncodeBatch([]Document{a, b})
	require.NoError(t, err)

	docs, err := DecodeBatch(s)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "g-1", docs[0].ID)
	assert.Equal(t, "g-2", docs[1].ID)
}

func TestDecodeBatchRejectsMalformed(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"records": []any{"nope"}})
	require.NoError(t, err)

	_, err = DecodeBatch(s)
	assert.Error(t, err)

	_, err = DecodeBatch(&structpb.Struct{})
	assert.Error(t, err)
}

func TestBatchAckEncoding(t *testing.T) {
	ack := BatchAck{
		Accepted: []string{"g-1", "g-2"},
		Rejected: map[string]string{"g-3": "steps out of range"},
	}

	s, err := ack.ToStruct()
	require.NoError(t, err)

	got, err := AckFromStruct(s)
	require.NoError(t, err)
	assert.Equal(t, ack, got)
}

func TestDocumentValidate(t *testing.T) {
	assert.NoError(t, sampleDocument().Validate())

	d := sampleDocument()
	d.OwnerID = ""
	assert.ErrorIs(t, d.Validate(), common.ErrValidation)

	d = sampleDocument()
	d.Steps = common.MaxSteps + 1
	assert.ErrorIs(t, d.Validate(), common.ErrValidation)

	d = sampleDocument()
	d.UpdatedAt = time.Time{}
	assert.ErrorIs(t, d.Validate(), common.ErrValidation)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "OK", StatusOf(Status("OK")))
	assert.Empty(t, StatusOf(nil))
}
