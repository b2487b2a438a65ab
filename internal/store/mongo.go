package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is the document-oriented backend: a thin pass-through to
// MongoDB collections. The internal _id is never exposed; documents are
// addressed by their own "id" field.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// OpenMongo connects to MongoDB and verifies the connection.
func OpenMongo(ctx context.Context, url, name string) (*MongoStore, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(pingCtx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, err
	}
	return &MongoStore{client: client, db: client.Database(name)}, nil
}

func toFilter(query Query) bson.M {
	filter := bson.M{}
	for k, v := range query {
		filter[k] = v
	}
	return filter
}

var hideObjectID = options.FindOne().SetProjection(bson.M{"_id": 0})

func (s *MongoStore) InsertOne(ctx context.Context, collection string, doc Document) (string, error) {
	id, _ := doc["id"].(string)
	if id == "" {
		id = uuid.NewString()
		doc["id"] = id
	}
	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MongoStore) FindOne(ctx context.Context, collection string, query Query) (Document, error) {
	var doc Document
	err := s.db.Collection(collection).FindOne(ctx, toFilter(query), hideObjectID).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *MongoStore) FindMany(ctx context.Context, collection string, query Query, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().SetProjection(bson.M{"_id": 0}).SetLimit(int64(limit))
	cur, err := s.db.Collection(collection).Find(ctx, toFilter(query), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	docs := make([]Document, 0)
	for cur.Next(ctx) {
		var doc Document
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, cur.Err()
}

func (s *MongoStore) UpdateOne(ctx context.Context, collection string, query Query, update Document) (bool, error) {
	res, err := s.db.Collection(collection).UpdateOne(ctx, toFilter(query), bson.M{"$set": update})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoStore) DeleteOne(ctx context.Context, collection string, query Query) (bool, error) {
	res, err := s.db.Collection(collection).DeleteOne(ctx, toFilter(query))
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}

func (s *MongoStore) AdjustOne(ctx context.Context, collection string, query Query, field string, delta int64, boundField string) (bool, error) {
	filter := toFilter(query)
	if delta > 0 {
		// Guard and increment in one server-side operation.
		filter["$expr"] = bson.M{"$lt": bson.A{"$" + field, "$" + boundField}}
	} else {
		filter["$expr"] = bson.M{"$gte": bson.A{
			bson.M{"$add": bson.A{"$" + field, delta}}, 0,
		}}
	}
	res, err := s.db.Collection(collection).UpdateOne(ctx, filter, bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
