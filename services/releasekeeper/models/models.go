package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EscrowStatus is the keeper's view of an escrow.
type EscrowStatus string

const (
	StatusFunded   EscrowStatus = "funded"
	StatusReleased EscrowStatus = "released"
)

// Escrow is projected from escrow.funded and escrow.released events.
type Escrow struct {
	// Address is the hex escrow address as emitted by the ledger.
	Address     string       `gorm:"primaryKey;size:40"`
	Reservation string       `gorm:"size:40;index"`
	EscrowID    uint64       `gorm:"not null"`
	Guest       string       `gorm:"size:40"`
	Host        string       `gorm:"size:40;index"`
	Mint        string       `gorm:"size:40"`
	Amount      uint64       `gorm:"not null"`
	PlatformFee uint64       `gorm:"not null"`
	ReleaseDate int64        `gorm:"not null;index"`
	Status      EscrowStatus `gorm:"size:16;index"`
	FundedSeq   int64
	ReleasedSeq int64
	ReleaseTx   string `gorm:"size:66"`
	Attempts    int

	// NextAttemptAt holds a failed escrow back until this unix time.
	NextAttemptAt int64  `gorm:"not null;default:0;index"`
	LastError     string `gorm:"size:512"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Cursor stores the last event log sequence consumed by a projection.
type Cursor struct {
	Name      string `gorm:"primaryKey;size:64"`
	Seq       int64
	UpdatedAt time.Time
}

// Submission audits every ReleaseEscrow attempt.
type Submission struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Escrow    string    `gorm:"size:40;index"`
	Outcome   string    `gorm:"size:32;index"`
	TxHash    string    `gorm:"size:66"`
	Detail    string    `gorm:"size:512"`
	CreatedAt time.Time
}

// BeforeCreate assigns an id to new submissions.
func (s *Submission) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// AutoMigrate creates or updates the keeper's tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Escrow{}, &Cursor{}, &Submission{})
}
