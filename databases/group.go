package databases

// go generate: mockery --name GroupDatabase

import (
	"context"

	"github.com/linesmerrill/region-chat-api/models"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const groupName = "groups"

// GroupDatabase contains the methods to use with the group directory database
type GroupDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.GroupRecord, error)
}

type groupDatabase struct {
	db DatabaseHelper
}

// NewGroupDatabase initializes a new instance of group database with the provided db connection
func NewGroupDatabase(db DatabaseHelper) GroupDatabase {
	return &groupDatabase{
		db: db,
	}
}

func (g *groupDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.GroupRecord, error) {
	group := &models.GroupRecord{}
	err := g.db.Collection(groupName).FindOne(ctx, filter, opts...).Decode(&group)
	if err != nil {
		return nil, err
	}
	return group, nil
}
