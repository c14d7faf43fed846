// Package mongostore keeps meetings as single documents with embedded
// participants, chat messages and users in their own collections.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	roomsCollection    = "meetings"
	messagesCollection = "chat_messages"
	usersCollection    = "users"
)

type Store struct {
	client   *mongo.Client
	rooms    *mongo.Collection
	messages *mongo.Collection
	users    *mongo.Collection
}

type Config struct {
	URI      string
	Database string
}

func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Database == "" {
		cfg.Database = "huddle"
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(cfg.Database)
	s := &Store{
		client:   client,
		rooms:    db.Collection(roomsCollection),
		messages: db.Collection(messagesCollection),
		users:    db.Collection(usersCollection),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Info().Str("module", "store.mongo").Str("database", cfg.Database).Msg("connected")
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "roomId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create message index: %w", err)
	}
	_, err = s.rooms.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "hostId", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create meeting index: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) CreateRoom(ctx context.Context, room *domain.Room) error {
	if _, err := s.rooms.InsertOne(ctx, toRoomDoc(room)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrRoomExists
		}
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

func (s *Store) FindRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	var doc roomDoc
	if err := s.rooms.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, fmt.Errorf("find meeting: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *Store) SaveRoom(ctx context.Context, room *domain.Room) error {
	_, err := s.rooms.ReplaceOne(ctx, bson.M{"_id": string(room.ID)}, toRoomDoc(room), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace meeting: %w", err)
	}
	return nil
}

func (s *Store) CreateMessage(ctx context.Context, msg domain.ChatMessage) error {
	if _, err := s.messages.InsertOne(ctx, toMessageDoc(msg)); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *Store) FindMessage(ctx context.Context, id domain.MessageID) (domain.ChatMessage, error) {
	var doc messageDoc
	if err := s.messages.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ChatMessage{}, domain.ErrMessageNotFound
		}
		return domain.ChatMessage{}, fmt.Errorf("find message: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *Store) ListMessages(ctx context.Context, room domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.messages.Find(ctx, bson.M{"roomId": string(room)}, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	out := make([]domain.ChatMessage, len(docs))
	for i, d := range docs {
		out[len(docs)-1-i] = d.toDomain()
	}
	return out, nil
}

func (s *Store) FindIdentity(ctx context.Context, id domain.IdentityID) (domain.Identity, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Identity{}, domain.ErrIdentityNotFound
		}
		return domain.Identity{}, fmt.Errorf("find user: %w", err)
	}
	return domain.Identity{ID: domain.IdentityID(doc.ID), DisplayName: doc.Name, IsActive: doc.IsActive}, nil
}

// PutIdentity upserts a user document; used by tooling and tests.
func (s *Store) PutIdentity(ctx context.Context, id domain.Identity) error {
	doc := userDoc{ID: string(id.ID), Name: id.DisplayName, IsActive: id.IsActive}
	_, err := s.users.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
