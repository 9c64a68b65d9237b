package groupchat

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	dbmocks "github.com/linesmerrill/region-chat-api/databases/mocks"
	"github.com/linesmerrill/region-chat-api/models"
)

func TestMongoDirectory_GetGroupMembers(t *testing.T) {
	db := &dbmocks.GroupDatabase{}
	group := uuid.New()
	a, b := uuid.New(), uuid.New()
	db.On("FindOne", mock.Anything, bson.M{"_id": group.String()}).Return(&models.GroupRecord{
		ID:      group.String(),
		Name:    "Builders",
		Members: []string{a.String(), "not-a-uuid", b.String()},
	}, nil)

	d := NewMongoDirectory(db)

	rec, err := d.GetGroupRecord(context.Background(), group)
	require.NoError(t, err)
	assert.Equal(t, "Builders", rec.Name)

	members, err := d.GetGroupMembers(context.Background(), group)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, members)
}

func TestMongoDirectory_NotFound(t *testing.T) {
	db := &dbmocks.GroupDatabase{}
	notFound := errors.New("mongo: no documents in result")
	db.On("FindOne", mock.Anything, mock.Anything).Return(nil, notFound)

	d := NewMongoDirectory(db)
	_, err := d.GetGroupMembers(context.Background(), uuid.New())
	assert.ErrorIs(t, err, notFound)
}
