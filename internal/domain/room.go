// Package domain contains entities without transport or lifecycle
// logic, just meta-data and construction-time validation.
package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 500
	MinPasswordLen    = 4
	MaxPasswordLen    = 50

	MinCapacity     = 2
	MaxCapacity     = 10
	DefaultCapacity = 10
)

type RoomID string

// Room is a bounded, time-limited meeting session. ID is assigned by
// the lifecycle service, which owns uniqueness against the store.
type Room struct {
	ID                 RoomID
	Title              string
	Description        string
	PasswordHash       string
	MaxParticipants    int
	IsRecordingEnabled bool
	IsActive           bool
	CreatedAt          time.Time
}

// NewRoom validates display metadata, hashes the optional password and
// clamps capacity into [MinCapacity, MaxCapacity].
func NewRoom(title, description, password string, recording bool, maxParticipants int, now time.Time) (*Room, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrBadRequest)
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return nil, fmt.Errorf("%w: title exceeds %d characters", ErrBadRequest, MaxTitleLen)
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLen {
		return nil, fmt.Errorf("%w: description exceeds %d characters", ErrBadRequest, MaxDescriptionLen)
	}

	var hash string
	if password != "" {
		if n := utf8.RuneCountInString(password); n < MinPasswordLen || n > MaxPasswordLen {
			return nil, fmt.Errorf("%w: password must be %d-%d characters", ErrBadRequest, MinPasswordLen, MaxPasswordLen)
		}
		// bcrypt rejects inputs beyond 72 bytes.
		if len(password) > 72 {
			return nil, fmt.Errorf("%w: password exceeds 72 bytes", ErrBadRequest)
		}
		b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		hash = string(b)
	}

	if maxParticipants == 0 {
		maxParticipants = DefaultCapacity
	}
	if maxParticipants < MinCapacity {
		maxParticipants = MinCapacity
	}
	if maxParticipants > MaxCapacity {
		maxParticipants = MaxCapacity
	}

	return &Room{
		Title:              title,
		Description:        description,
		PasswordHash:       hash,
		MaxParticipants:    maxParticipants,
		IsRecordingEnabled: recording,
		IsActive:           true,
		CreatedAt:          now,
	}, nil
}

func (r *Room) HasPassword() bool { return r.PasswordHash != "" }

// CheckPassword reports whether the supplied password matches exactly.
// Rooms without a password accept any input.
func (r *Room) CheckPassword(password string) bool {
	if r.PasswordHash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(r.PasswordHash), []byte(password)) == nil
}
