// Package sqlstore is the relational alternative to the document store,
// built on gorm with the postgres driver.
package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&roomRecord{}, &participantRecord{}, &messageRecord{}, &userRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("module", "store.sql").Msg("schema migrated")
	return &Store{db: db}, nil
}

func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) CreateRoom(ctx context.Context, room *domain.Room) error {
	rec := toRoomRecord(room)
	err := s.db.WithContext(ctx).Create(&rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrRoomExists
	}
	if err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

func (s *Store) FindRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	var rec roomRecord
	err := s.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		First(&rec, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find meeting: %w", err)
	}
	return rec.toDomain(), nil
}

// SaveRoom writes the meeting row and upserts every participant row in one transaction.
func (s *Store) SaveRoom(ctx context.Context, room *domain.Room) error {
	rec := toRoomRecord(room)
	parts := rec.Participants
	rec.Participants = nil
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(&rec).Error; err != nil {
			return fmt.Errorf("save meeting: %w", err)
		}
		if len(parts) == 0 {
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&parts).Error; err != nil {
			return fmt.Errorf("save participants: %w", err)
		}
		return nil
	})
}

func (s *Store) CreateMessage(ctx context.Context, msg domain.ChatMessage) error {
	rec := toMessageRecord(msg)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *Store) FindMessage(ctx context.Context, id domain.MessageID) (domain.ChatMessage, error) {
	var rec messageRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ChatMessage{}, domain.ErrMessageNotFound
	}
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("find message: %w", err)
	}
	return rec.toDomain(), nil
}

func (s *Store) ListMessages(ctx context.Context, room domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	q := s.db.WithContext(ctx).Where("room_id = ?", string(room)).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []messageRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]domain.ChatMessage, len(recs))
	for i, rec := range recs {
		out[len(recs)-1-i] = rec.toDomain()
	}
	return out, nil
}

func (s *Store) FindIdentity(ctx context.Context, id domain.IdentityID) (domain.Identity, error) {
	var rec userRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Identity{}, domain.ErrIdentityNotFound
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("find user: %w", err)
	}
	return domain.Identity{ID: domain.IdentityID(rec.ID), DisplayName: rec.DisplayName, IsActive: rec.IsActive}, nil
}

func (s *Store) PutIdentity(ctx context.Context, id domain.Identity) error {
	rec := userRecord{ID: string(id.ID), DisplayName: id.DisplayName, IsActive: id.IsActive}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}
