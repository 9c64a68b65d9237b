package groupchat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/linesmerrill/region-chat-api/api"
	"github.com/linesmerrill/region-chat-api/databases"
	"github.com/linesmerrill/region-chat-api/models"
)

// MongoDirectory reads groups from the groups collection
type MongoDirectory struct {
	DB databases.GroupDatabase
}

// NewMongoDirectory returns a directory backed by db
func NewMongoDirectory(db databases.GroupDatabase) *MongoDirectory {
	return &MongoDirectory{DB: db}
}

// GetGroupRecord returns the group with the given id
func (d *MongoDirectory) GetGroupRecord(ctx context.Context, groupID uuid.UUID) (*models.GroupRecord, error) {
	ctx, cancel := api.WithQueryTimeout(ctx)
	defer cancel()

	start := time.Now()
	rec, err := d.DB.FindOne(ctx, bson.M{"_id": groupID.String()})
	api.RecordDBQueryFromContext(ctx, "findOne", "groups", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to get group %s: %w", groupID, err)
	}
	return rec, nil
}

// GetGroupMembers returns the agent ids of the group's members
func (d *MongoDirectory) GetGroupMembers(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	rec, err := d.GetGroupRecord(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return memberIDs(groupID, rec), nil
}

// memberIDs parses the member ids of rec, skipping malformed entries
func memberIDs(groupID uuid.UUID, rec *models.GroupRecord) []uuid.UUID {
	members := make([]uuid.UUID, 0, len(rec.Members))
	for _, m := range rec.Members {
		id, err := uuid.Parse(m)
		if err != nil {
			zap.S().Warnw("skipping malformed group member", "group", groupID, "member", m)
			continue
		}
		members = append(members, id)
	}
	return members
}
