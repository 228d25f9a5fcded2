package chat

import (
	"context"
	"sort"
	"time"

	"callbridge/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is the production Store. One document per message in the
// chat_messages collection; single-document inserts give the per-message
// atomicity Append promises.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(CollectionName)}
}

// EnsureIndexes creates the two query paths: pair history and unread
// aggregation. Call once at startup.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "read_at", Value: 1}}},
	})
	return err
}

func (s *MongoStore) Append(ctx context.Context, msg *Message) error {
	if _, err := s.coll.InsertOne(ctx, msg); err != nil {
		return errs.ErrStorageUnavailable.WrapMsg(err.Error())
	}
	return nil
}

func (s *MongoStore) History(ctx context.Context, a, b int64, limit int, beforeID int64) ([]Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender_id": a, "receiver_id": b},
			bson.M{"sender_id": b, "receiver_id": a},
		},
	}
	if beforeID > 0 {
		filter["_id"] = bson.M{"$lt": beforeID}
	}

	// newest page first, then flip to oldest-to-newest for the caller
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}).SetLimit(int64(limit))
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errs.ErrStorageUnavailable.WrapMsg(err.Error())
	}
	var msgs []Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, errs.ErrStorageUnavailable.WrapMsg(err.Error())
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return msgs, nil
}

func (s *MongoStore) UnreadCounts(ctx context.Context, viewer int64) (map[int64]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"receiver_id": viewer, "read_at": nil}}},
		{{Key: "$group", Value: bson.M{"_id": "$sender_id", "count": bson.M{"$sum": 1}}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errs.ErrStorageUnavailable.WrapMsg(err.Error())
	}
	var rows []struct {
		Peer  int64 `bson:"_id"`
		Count int64 `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.ErrStorageUnavailable.WrapMsg(err.Error())
	}
	out := make(map[int64]int64, len(rows))
	for _, r := range rows {
		out[r.Peer] = r.Count
	}
	return out, nil
}

func (s *MongoStore) MarkRead(ctx context.Context, viewer, peer int64, at time.Time) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"sender_id": peer, "receiver_id": viewer, "read_at": nil},
		bson.M{"$set": bson.M{"read_at": at}},
	)
	if err != nil {
		return 0, errs.ErrStorageUnavailable.WrapMsg(err.Error())
	}
	return res.ModifiedCount, nil
}
