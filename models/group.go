package models

// GroupRecord holds the structure for the groups collection in mongo
type GroupRecord struct {
	ID      string   `json:"_id" bson:"_id"`
	Name    string   `json:"name" bson:"name"`
	Members []string `json:"members" bson:"members"`
}
