package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/filmnt/chat/chat-service/internal/domain"
	"github.com/filmnt/chat/pkg/database"
	"github.com/filmnt/chat/pkg/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormStore struct {
	db *gorm.DB
}

// NewGormStore opens the configured SQL database and migrates the state
// tables.
func NewGormStore(cfg *database.Config) (StateStore, error) {
	db, err := database.New(cfg)
	if err != nil {
		return nil, err
	}
	return newGormStore(db)
}

func newGormStore(db *gorm.DB) (StateStore, error) {
	if err := database.AutoMigrate(db, &MessageModel{}, &BanModel{}, &RoomStateModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate state tables: %w", err)
	}
	return &gormStore{db: db}, nil
}

func (s *gormStore) Load(ctx context.Context, room string) (*Snapshot, error) {
	l := log.Ctx(ctx)
	snap := &Snapshot{}

	var msgs []MessageModel
	if err := s.db.WithContext(ctx).Where("room = ?", room).Order("timestamp DESC").Find(&msgs).Error; err != nil {
		l.Error().Err(err).Str(log.FieldRoom, room).Msg("failed to load messages")
		return nil, fmt.Errorf("load messages: %w", err)
	}
	for i := range msgs {
		snap.Messages = append(snap.Messages, msgs[i].ToDomain())
	}

	var bans []BanModel
	if err := s.db.WithContext(ctx).Where("room = ?", room).Order("user_id").Find(&bans).Error; err != nil {
		l.Error().Err(err).Str(log.FieldRoom, room).Msg("failed to load bans")
		return nil, fmt.Errorf("load bans: %w", err)
	}
	for i := range bans {
		snap.Bans = append(snap.Bans, bans[i].ToDomain())
	}

	var state RoomStateModel
	err := s.db.WithContext(ctx).Where("room = ?", room).First(&state).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		l.Error().Err(err).Str(log.FieldRoom, room).Msg("failed to load room state")
		return nil, fmt.Errorf("load room state: %w", err)
	default:
		snap.Flags = domain.Flags{Frozen: state.Frozen, AdminOnly: state.AdminOnly}
		snap.Admins = []string(state.Admins)
	}
	return snap, nil
}

// SaveMessages replaces the stored window of the room.
func (s *gormStore) SaveMessages(ctx context.Context, room string, msgs []domain.ChatMessage) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room = ?", room).Delete(&MessageModel{}).Error; err != nil {
			return fmt.Errorf("clear messages: %w", err)
		}
		if len(msgs) == 0 {
			return nil
		}
		models := make([]MessageModel, 0, len(msgs))
		for _, m := range msgs {
			models = append(models, MessageToModel(room, m))
		}
		if err := tx.CreateInBatches(models, 100).Error; err != nil {
			return fmt.Errorf("insert messages: %w", err)
		}
		return nil
	})
}

func (s *gormStore) SaveBans(ctx context.Context, room string, bans []domain.BannedUser) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room = ?", room).Delete(&BanModel{}).Error; err != nil {
			return fmt.Errorf("clear bans: %w", err)
		}
		if len(bans) == 0 {
			return nil
		}
		models := make([]BanModel, 0, len(bans))
		for _, b := range bans {
			models = append(models, BanModel{Room: room, UserID: b.UserID, Nickname: b.Nickname, Until: b.Until})
		}
		if err := tx.Create(&models).Error; err != nil {
			return fmt.Errorf("insert bans: %w", err)
		}
		return nil
	})
}

func (s *gormStore) SaveFlags(ctx context.Context, room string, flags domain.Flags) error {
	state := RoomStateModel{Room: room, Frozen: flags.Frozen, AdminOnly: flags.AdminOnly, Admins: database.StringArray{}}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room"}},
		DoUpdates: clause.AssignmentColumns([]string{"frozen", "admin_only", "updated_at"}),
	}).Create(&state).Error
	if err != nil {
		return fmt.Errorf("save flags: %w", err)
	}
	return nil
}

func (s *gormStore) SaveAdmins(ctx context.Context, room string, admins []string) error {
	state := RoomStateModel{Room: room, Admins: database.StringArray(admins)}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room"}},
		DoUpdates: clause.AssignmentColumns([]string{"admins", "updated_at"}),
	}).Create(&state).Error
	if err != nil {
		return fmt.Errorf("save admins: %w", err)
	}
	return nil
}

func (s *gormStore) Close() error {
	return database.Close(s.db)
}
