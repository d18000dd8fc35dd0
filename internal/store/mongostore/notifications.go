package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/adi-253/duochat/internal/models"
)

func (s *MongoStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	n.ID = newID()
	ts := now()
	n.CreatedAt, n.UpdatedAt = ts, ts
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	_, err := s.notifications().InsertOne(ctx, n)
	return wrapErr(err, "insert notification")
}

func (s *MongoStore) ListNotifications(ctx context.Context, owner string, limit int) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.notifications().Find(ctx, bson.M{"owner": owner}, opts)
	if err != nil {
		return nil, wrapErr(err, "list notifications")
	}
	out := []models.Notification{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, wrapErr(err, "list notifications")
	}
	for i := range out {
		out[i].Data = plainMap(out[i].Data)
	}
	return out, nil
}

func (s *MongoStore) CountUnread(ctx context.Context, owner string) (int64, error) {
	n, err := s.notifications().CountDocuments(ctx, bson.M{"owner": owner, "read": false})
	return n, wrapErr(err, "count unread")
}

func (s *MongoStore) MarkNotificationsRead(ctx context.Context, owner string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.notifications().UpdateMany(ctx,
		bson.M{"owner": owner, "_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"read": true, "updatedAt": now()}},
	)
	if err != nil {
		return 0, wrapErr(err, "mark notifications read")
	}
	return res.MatchedCount, nil
}

func (s *MongoStore) InsertNote(ctx context.Context, n *models.PersonalNote) error {
	n.ID = newID()
	ts := now()
	n.CreatedAt, n.UpdatedAt = ts, ts
	_, err := s.notes().InsertOne(ctx, n)
	return wrapErr(err, "insert note")
}

func (s *MongoStore) ListNotes(ctx context.Context, username string) ([]models.PersonalNote, error) {
	cursor, err := s.notes().Find(ctx, bson.M{"username": username},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, wrapErr(err, "list notes")
	}
	out := []models.PersonalNote{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, wrapErr(err, "list notes")
	}
	return out, nil
}

func (s *MongoStore) GetTaskDraft(ctx context.Context, owner string) (*models.TaskDraft, error) {
	var d models.TaskDraft
	if err := s.taskDrafts().FindOne(ctx, bson.M{"owner": owner}).Decode(&d); err != nil {
		return nil, wrapErr(err, "get task draft")
	}
	d.Task = plainMap(d.Task)
	return &d, nil
}

func (s *MongoStore) UpsertTaskDraft(ctx context.Context, owner string, task models.Task) (*models.TaskDraft, error) {
	ts := now()
	update := bson.M{
		"$set":         bson.M{"task": task, "updatedAt": ts},
		"$setOnInsert": bson.M{"_id": newID(), "createdAt": ts},
	}
	var d models.TaskDraft
	err := s.taskDrafts().FindOneAndUpdate(ctx, bson.M{"owner": owner}, update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)).Decode(&d)
	if err != nil {
		return nil, wrapErr(err, "upsert task draft")
	}
	d.Task = plainMap(d.Task)
	return &d, nil
}
