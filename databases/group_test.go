package databases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/linesmerrill/region-chat-api/databases"
	"github.com/linesmerrill/region-chat-api/databases/mocks"
	"github.com/linesmerrill/region-chat-api/models"
)

func TestGroupDatabase_FindOne(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperErr databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperErr = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	srHelperErr.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(errors.New("mocked-error"))

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.GroupRecord)
		(*arg).ID = "mocked-group"
		(*arg).Name = "Builders"
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": true}).
		Return(srHelperErr)

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": false}).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "groups").Return(collectionHelper)

	groupDba := databases.NewGroupDatabase(dbHelper)

	group, err := groupDba.FindOne(context.Background(), bson.M{"error": true})

	assert.Empty(t, group)
	assert.EqualError(t, err, "mocked-error")

	group, err = groupDba.FindOne(context.Background(), bson.M{"error": false})

	assert.Equal(t, &models.GroupRecord{ID: "mocked-group", Name: "Builders"}, group)
	assert.NoError(t, err)
}
