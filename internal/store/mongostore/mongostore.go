// Package mongostore implements store.Store on MongoDB. Documents mirror the
// JSON wire shape of the models, so a stored message is exactly what clients
// receive.
package mongostore

import (
	"context"
	"slices"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/adi-253/duochat/internal/apperr"
	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/store"
)

const (
	colMessages      = "messages"
	colNotifications = "notifications"
	colNotes         = "personal_notes"
	colTaskDrafts    = "task_drafts"
)

// MongoStore implements store.Store using MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Store = (*MongoStore)(nil)

// New connects to uri, verifies the connection and creates the indexes the
// read paths rely on.
func New(ctx context.Context, uri, database string) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, errors.Wrap(err, "connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "ping MongoDB")
	}

	s := &MongoStore{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	collections := map[string][]mongo.IndexModel{
		colMessages: {
			{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "recipient", Value: 1}, {Key: "status", Value: 1}}},
		},
		colNotifications: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "read", Value: 1}}},
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		colNotes: {
			{Keys: bson.D{{Key: "username", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		colTaskDrafts: {
			{
				Keys:    bson.D{{Key: "owner", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
	for name, indexes := range collections {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return errors.Wrapf(err, "create indexes for %s", name)
		}
	}
	return nil
}

func (s *MongoStore) messages() *mongo.Collection      { return s.db.Collection(colMessages) }
func (s *MongoStore) notifications() *mongo.Collection { return s.db.Collection(colNotifications) }
func (s *MongoStore) notes() *mongo.Collection         { return s.db.Collection(colNotes) }
func (s *MongoStore) taskDrafts() *mongo.Collection    { return s.db.Collection(colTaskDrafts) }

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func newID() string {
	return bson.NewObjectID().Hex()
}

// now is truncated to the millisecond precision of BSON dates.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func wrapErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return apperr.Store("store unavailable", errors.Wrap(err, op))
}

// plain converts the bson.M / bson.A / bson.D values produced by decoding
// into plain maps and slices, so opaque payloads look the same as after a
// JSON decode.
func plain(v any) any {
	switch t := v.(type) {
	case bson.M:
		return plainMap(t)
	case map[string]any:
		return plainMap(t)
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.A:
		return plainSlice(t)
	case []any:
		return plainSlice(t)
	default:
		return v
	}
}

func plainMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plain(v)
	}
	return out
}

func plainSlice(l []any) []any {
	out := make([]any, len(l))
	for i, v := range l {
		out[i] = plain(v)
	}
	return out
}

func decodeMessage(res interface{ Decode(any) error }) (*models.Message, error) {
	var m models.Message
	if err := res.Decode(&m); err != nil {
		return nil, err
	}
	fixMessage(&m)
	return &m, nil
}

func fixMessage(m *models.Message) {
	if m.Task != nil {
		m.Task = plainMap(m.Task)
	}
	if m.Attachments == nil {
		m.Attachments = []models.Attachment{}
	}
	if m.DeletedFor == nil {
		m.DeletedFor = []string{}
	}
}

func (s *MongoStore) findMessages(ctx context.Context, op string, filter bson.M, opts *options.FindOptionsBuilder) ([]models.Message, error) {
	cursor, err := s.messages().Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapErr(err, op)
	}
	out := []models.Message{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, wrapErr(err, op)
	}
	for i := range out {
		fixMessage(&out[i])
	}
	return out, nil
}

func statusIn(target models.DeliveryStatus) bson.M {
	below := target.Below()
	values := make(bson.A, len(below))
	for i, st := range below {
		values[i] = st
	}
	return bson.M{"$in": values}
}

func (s *MongoStore) InsertMessage(ctx context.Context, m *models.Message) error {
	m.Normalize()
	m.ID = newID()
	ts := now()
	m.CreatedAt, m.UpdatedAt = ts, ts
	if m.EditedAt != nil {
		t := m.EditedAt.UTC().Truncate(time.Millisecond)
		m.EditedAt = &t
	}
	_, err := s.messages().InsertOne(ctx, m)
	return wrapErr(err, "insert message")
}

func (s *MongoStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	m, err := decodeMessage(s.messages().FindOne(ctx, bson.M{"_id": id}))
	if err != nil {
		return nil, wrapErr(err, "get message")
	}
	return m, nil
}

func (s *MongoStore) ListMessages(ctx context.Context, conversationID string, opts store.ListOptions) ([]models.Message, error) {
	filter := bson.M{"conversationId": conversationID}
	if !opts.Before.IsZero() {
		filter["createdAt"] = bson.M{"$lt": opts.Before}
	}
	if opts.Limit <= 0 {
		return s.findMessages(ctx, "list messages", filter,
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	}

	msgs, err := s.findMessages(ctx, "list messages", filter,
		options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
			SetLimit(int64(opts.Limit)))
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

func (s *MongoStore) ListAwaitingStatus(ctx context.Context, conversationID, recipient string, target models.DeliveryStatus) ([]models.Message, error) {
	if len(target.Below()) == 0 {
		return []models.Message{}, nil
	}
	filter := bson.M{
		"conversationId": conversationID,
		"recipient":      recipient,
		"status":         statusIn(target),
	}
	return s.findMessages(ctx, "list awaiting status", filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
}

func (s *MongoStore) AdvanceStatus(ctx context.Context, id string, target models.DeliveryStatus) (bool, error) {
	if len(target.Below()) == 0 {
		return false, nil
	}
	res, err := s.messages().UpdateOne(ctx,
		bson.M{"_id": id, "status": statusIn(target)},
		bson.M{"$set": bson.M{"status": target, "updatedAt": now()}},
	)
	if err != nil {
		return false, wrapErr(err, "advance status")
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	n, err := s.messages().CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, wrapErr(err, "advance status")
	}
	if n == 0 {
		return false, store.ErrNotFound
	}
	return false, nil
}

// updateMessage applies update to one message. With liveOnly the document
// must not be tombstoned; the filter makes check and write atomic.
func (s *MongoStore) updateMessage(ctx context.Context, op, id string, liveOnly bool, update bson.M) (*models.Message, error) {
	set, _ := update["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
		update["$set"] = set
	}
	set["updatedAt"] = now()

	filter := bson.M{"_id": id}
	if liveOnly {
		filter["isDeletedEveryone"] = bson.M{"$ne": true}
	}
	res := s.messages().FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	m, err := decodeMessage(res)
	if err == nil {
		return m, nil
	}
	if !liveOnly || !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, wrapErr(err, op)
	}

	n, err := s.messages().CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, wrapErr(err, op)
	}
	if n == 0 {
		return nil, store.ErrNotFound
	}
	return nil, store.ErrTombstoned
}

func (s *MongoStore) UpdateContent(ctx context.Context, id, content string, editedAt time.Time) (*models.Message, error) {
	return s.updateMessage(ctx, "update content", id, true, bson.M{"$set": bson.M{
		"content":  content,
		"editedAt": editedAt.UTC().Truncate(time.Millisecond),
	}})
}

func (s *MongoStore) AddDeletedFor(ctx context.Context, id, username string) (*models.Message, error) {
	return s.updateMessage(ctx, "delete for user", id, false, bson.M{
		"$addToSet": bson.M{"deletedFor": username},
	})
}

func (s *MongoStore) MarkDeletedForEveryone(ctx context.Context, id string) (*models.Message, error) {
	return s.updateMessage(ctx, "delete for everyone", id, false, bson.M{"$set": bson.M{
		"isDeletedEveryone": true,
		"content":           "",
		"task":              nil,
		"attachments":       bson.A{},
	}})
}
