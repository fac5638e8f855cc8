package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"peerline/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Service stores rooms, members and messages in PostgreSQL and keeps the
// room counter and lifecycle channel in Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// OpenPostgres connects with duplicate-key translation enabled so unique
// violations surface as gorm.ErrDuplicatedKey.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table used by the service.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.Participant{},
		&models.Room{},
		&models.RoomMember{},
		&models.Message{},
	)
}

// Close releases the SQL pool and the Redis client.
func (s *Service) Close() error {
	var errs []error
	if sqlDB, err := s.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	} else {
		errs = append(errs, err)
	}
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	return errors.Join(errs...)
}

func (s *Service) SaveParticipant(ctx context.Context, p *models.Participant) error {
	return s.DB.WithContext(ctx).Save(p).Error
}

func (s *Service) GetParticipant(ctx context.Context, id string) (*models.Participant, error) {
	var p models.Participant
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get participant %s: %w", id, err)
	}
	return &p, nil
}

func (s *Service) ListParticipantsByRole(ctx context.Context, role models.Role) ([]models.Participant, error) {
	var out []models.Participant
	if err := s.DB.WithContext(ctx).Where("role = ?", role).Order("name asc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list %s participants: %w", role, err)
	}
	return out, nil
}

// CreateRoom inserts the room together with both membership rows.
func (s *Service) CreateRoom(ctx context.Context, room *models.Room) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		members := []models.RoomMember{
			{RoomID: room.RoomID, ParticipantID: room.SeekerID, Role: models.RoleSeeker},
			{RoomID: room.RoomID, ParticipantID: room.HelperID, Role: models.RoleHelper},
		}
		return tx.Create(&members).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrActivePairExists
	}
	if err != nil {
		return fmt.Errorf("create room %s: %w", room.RoomID, err)
	}
	return nil
}

func (s *Service) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	err := s.DB.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return &room, nil
}

func (s *Service) FindActiveRoom(ctx context.Context, seekerID, helperID string) (*models.Room, error) {
	var room models.Room
	err := s.DB.WithContext(ctx).
		Where("seeker_id = ? AND helper_id = ? AND status = ?", seekerID, helperID, models.RoomActive).
		First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find active room: %w", err)
	}
	return &room, nil
}

// ListActiveRoomsFor resolves membership through the room_members relation.
func (s *Service) ListActiveRoomsFor(ctx context.Context, participantID string) ([]models.Room, error) {
	var rooms []models.Room
	err := s.DB.WithContext(ctx).
		Joins("JOIN room_members ON room_members.room_id = rooms.room_id").
		Where("room_members.participant_id = ? AND rooms.status = ?", participantID, models.RoomActive).
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("list active rooms for %s: %w", participantID, err)
	}
	return rooms, nil
}

// EndRoom purges the history and flips the status inside one transaction.
// Messages have no soft-delete column, so the delete is irrecoverable.
func (s *Service) EndRoom(ctx context.Context, roomID string, endedAt time.Time) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("room_id = ?", roomID).
			First(&room).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock room %s: %w", roomID, err)
		}
		if room.Status == models.RoomEnded {
			return ErrRoomEnded
		}

		if err := tx.Where("room_id = ?", roomID).Delete(&models.Message{}).Error; err != nil {
			return fmt.Errorf("purge messages of %s: %w", roomID, err)
		}

		return tx.Model(&models.Room{}).
			Where("room_id = ?", roomID).
			Updates(map[string]interface{}{
				"status":   models.RoomEnded,
				"ended_at": endedAt,
			}).Error
	})
}

// AppendMessage is idempotent on msg.UID.
func (s *Service) AppendMessage(ctx context.Context, msg *models.Message) error {
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "uid"}}, DoNothing: true}).
		Create(msg).Error
	if err != nil {
		return fmt.Errorf("append message to %s: %w", msg.RoomID, err)
	}
	return nil
}

func (s *Service) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	var history []models.Message
	err := s.DB.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("sent_at asc, id asc").
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("list messages of %s: %w", roomID, err)
	}
	return history, nil
}

// MaxRoomSequence returns the largest sequence number stored so far.
func (s *Service) MaxRoomSequence(ctx context.Context) (int64, error) {
	var maxSeq int64
	err := s.DB.WithContext(ctx).Model(&models.Room{}).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&maxSeq).Error
	return maxSeq, err
}

// ListActiveRooms returns every active room ordered by sequence. Used by the
// admin CLI only.
func (s *Service) ListActiveRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := s.DB.WithContext(ctx).
		Where("status = ?", models.RoomActive).
		Order("sequence asc").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("list active rooms: %w", err)
	}
	return rooms, nil
}
