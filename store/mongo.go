package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/thatrasunil/code-connect/types"
)

const mongoConnectTimeout = 10 * time.Second

// MongoStore is the second document-store backend, keeping rooms and
// messages in two mongo collections.
type MongoStore struct {
	client          *mongo.Client
	rooms           *mongo.Collection
	messages        *mongo.Collection
	defaultLanguage string
}

func NewMongoStore(uri, database, defaultLanguage string) (*MongoStore, error) {
	if database == "" {
		database = "codeconnect"
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	db := client.Database(database)
	s := &MongoStore{
		client:          client,
		rooms:           db.Collection("rooms"),
		messages:        db.Collection("messages"),
		defaultLanguage: defaultLanguage,
	}
	idx := mongo.IndexModel{Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "timestamp", Value: 1}}}
	if _, err := s.messages.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) GetOrCreateRoom(ctx context.Context, roomId string) (*types.Room, error) {
	now := time.Now()
	filter := bson.M{"room_id": roomId}
	update := bson.M{
		"$setOnInsert": bson.M{
			"room_id":    roomId,
			"code":       "",
			"language":   s.defaultLanguage,
			"is_public":  true,
			"created_at": now,
			"updated_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	room := &types.Room{}
	err := s.rooms.FindOneAndUpdate(ctx, filter, update, opts).Decode(room)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (s *MongoStore) SaveRoom(ctx context.Context, room *types.Room) error {
	cp := *room
	cp.UpdatedAt = time.Now()
	opts := options.Replace().SetUpsert(true)
	_, err := s.rooms.ReplaceOne(ctx, bson.M{"room_id": room.RoomId}, &cp, opts)
	return err
}

func (s *MongoStore) ReadDocument(ctx context.Context, roomId string) (string, string, error) {
	room := &types.Room{}
	err := s.rooms.FindOne(ctx, bson.M{"room_id": roomId}).Decode(room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", "", ErrRoomNotFound
	}
	if err != nil {
		return "", "", err
	}
	return room.Code, room.Language, nil
}

func (s *MongoStore) WriteDocument(ctx context.Context, roomId, code, language string) error {
	update := bson.M{"$set": bson.M{"code": code, "language": language, "updated_at": time.Now()}}
	res, err := s.rooms.UpdateOne(ctx, bson.M{"room_id": roomId}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *MongoStore) ListMessages(ctx context.Context, roomId string) ([]types.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cur, err := s.messages.Find(ctx, bson.M{"room_id": roomId}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	messages := make([]types.Message, 0)
	if err := cur.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *MongoStore) AppendMessage(ctx context.Context, roomId string, msg types.Message) (*types.Message, error) {
	count, err := s.rooms.CountDocuments(ctx, bson.M{"room_id": roomId})
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrRoomNotFound
	}
	msg.RoomId = roomId
	msg.Id = primitive.NewObjectID().Hex()
	msg.Timestamp = time.Now()
	if _, err := s.messages.InsertOne(ctx, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *MongoStore) PurgeMessages(ctx context.Context, roomId string) error {
	_, err := s.messages.DeleteMany(ctx, bson.M{"room_id": roomId})
	return err
}

func (s *MongoStore) Rooms(ctx context.Context) ([]*types.Room, error) {
	opts := options.Find().SetSort(bson.D{{Key: "room_id", Value: 1}})
	cur, err := s.rooms.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	rooms := make([]*types.Room, 0)
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}
