package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"huddle/internal/domain"
)

// SQLiteStore backs the Store with a local sqlite file via gorm.
type SQLiteStore struct {
	db *gorm.DB
}

type roomRecord struct {
	ID                 string `gorm:"primaryKey;size:16"`
	Title              string `gorm:"size:100;not null"`
	Description        string `gorm:"size:500"`
	PasswordHash       string
	MaxParticipants    int
	IsRecordingEnabled bool
	IsActive           bool
	CreatedAt          time.Time
}

func (roomRecord) TableName() string { return "rooms" }

type participantRecord struct {
	ID              string     `gorm:"primaryKey;size:36"`
	RoomID          string     `gorm:"size:16;index:idx_participants_room;index:idx_participants_room_left,priority:1"`
	Name            string     `gorm:"size:36;not null"`
	IsHost          bool
	IsAudioEnabled  bool
	IsVideoEnabled  bool
	IsScreenSharing bool
	JoinedAt        time.Time
	LeftAt          *time.Time `gorm:"index:idx_participants_room_left,priority:2"`
}

func (participantRecord) TableName() string { return "participants" }

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "./data/huddle.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(path+"?_journal_mode=WAL&_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&roomRecord{}, &participantRecord{}); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func toRoomRecord(r *domain.Room) *roomRecord {
	return &roomRecord{
		ID:                 string(r.ID),
		Title:              r.Title,
		Description:        r.Description,
		PasswordHash:       r.PasswordHash,
		MaxParticipants:    r.MaxParticipants,
		IsRecordingEnabled: r.IsRecordingEnabled,
		IsActive:           r.IsActive,
		CreatedAt:          r.CreatedAt,
	}
}

func (rec *roomRecord) toDomain() *domain.Room {
	return &domain.Room{
		ID:                 domain.RoomID(rec.ID),
		Title:              rec.Title,
		Description:        rec.Description,
		PasswordHash:       rec.PasswordHash,
		MaxParticipants:    rec.MaxParticipants,
		IsRecordingEnabled: rec.IsRecordingEnabled,
		IsActive:           rec.IsActive,
		CreatedAt:          rec.CreatedAt,
	}
}

func toParticipantRecord(p *domain.Participant) *participantRecord {
	return &participantRecord{
		ID:              string(p.ID),
		RoomID:          string(p.RoomID),
		Name:            p.Name,
		IsHost:          p.IsHost,
		IsAudioEnabled:  p.IsAudioEnabled,
		IsVideoEnabled:  p.IsVideoEnabled,
		IsScreenSharing: p.IsScreenSharing,
		JoinedAt:        p.JoinedAt,
		LeftAt:          p.LeftAt,
	}
}

func (rec *participantRecord) toDomain() *domain.Participant {
	return &domain.Participant{
		ID:              domain.ParticipantID(rec.ID),
		RoomID:          domain.RoomID(rec.RoomID),
		Name:            rec.Name,
		IsHost:          rec.IsHost,
		IsAudioEnabled:  rec.IsAudioEnabled,
		IsVideoEnabled:  rec.IsVideoEnabled,
		IsScreenSharing: rec.IsScreenSharing,
		JoinedAt:        rec.JoinedAt,
		LeftAt:          rec.LeftAt,
	}
}

func (s *SQLiteStore) CreateRoom(ctx context.Context, room *domain.Room, host *domain.Participant) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&roomRecord{}).Where("id = ?", string(room.ID)).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrConflict
		}
		if err := tx.Create(toRoomRecord(room)).Error; err != nil {
			return err
		}
		return tx.Create(toParticipantRecord(host)).Error
	})
}

func (s *SQLiteStore) GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	var rec roomRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

func (s *SQLiteStore) DeactivateRoom(ctx context.Context, id domain.RoomID, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&roomRecord{}).Where("id = ?", string(id)).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&participantRecord{}).
			Where("room_id = ? AND left_at IS NULL", string(id)).
			Update("left_at", at).Error
	})
}

func (s *SQLiteStore) CreateParticipant(ctx context.Context, p *domain.Participant) error {
	return s.db.WithContext(ctx).Create(toParticipantRecord(p)).Error
}

func (s *SQLiteStore) GetParticipant(ctx context.Context, id domain.ParticipantID) (*domain.Participant, error) {
	var rec participantRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

func (s *SQLiteStore) SaveParticipant(ctx context.Context, p *domain.Participant) error {
	res := s.db.WithContext(ctx).Model(&participantRecord{}).
		Where("id = ?", string(p.ID)).
		Updates(map[string]any{
			"is_audio_enabled":  p.IsAudioEnabled,
			"is_video_enabled":  p.IsVideoEnabled,
			"is_screen_sharing": p.IsScreenSharing,
			"is_host":           p.IsHost,
			"left_at":           p.LeftAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) MarkLeft(ctx context.Context, id domain.ParticipantID, at time.Time) error {
	return s.db.WithContext(ctx).Model(&participantRecord{}).
		Where("id = ? AND left_at IS NULL", string(id)).
		Update("left_at", at).Error
}

func (s *SQLiteStore) ListActiveParticipants(ctx context.Context, roomID domain.RoomID) ([]domain.Participant, error) {
	var recs []participantRecord
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND left_at IS NULL", string(roomID)).
		Order("joined_at asc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Participant, 0, len(recs))
	for i := range recs {
		out = append(out, *recs[i].toDomain())
	}
	return out, nil
}

func (s *SQLiteStore) CountActiveParticipants(ctx context.Context, roomID domain.RoomID) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&participantRecord{}).
		Where("room_id = ? AND left_at IS NULL", string(roomID)).
		Count(&n).Error
	return int(n), err
}

func (s *SQLiteStore) FindActiveParticipantByName(ctx context.Context, roomID domain.RoomID, name string) (*domain.Participant, error) {
	var rec participantRecord
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND left_at IS NULL AND name = ?", string(roomID), name).
		Order("joined_at asc").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

func (s *SQLiteStore) ActiveHost(ctx context.Context, roomID domain.RoomID) (*domain.Participant, error) {
	var rec participantRecord
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND left_at IS NULL AND is_host = ?", string(roomID), true).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
