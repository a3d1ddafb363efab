package tokens

import (
	"github.com/AhmadMHawwash/10xarch-sub002/app/models"
	"gorm.io/gorm"
)

// Repository provides DB operations used by the token store. The
// Transaction method hands callers a repository bound to one database
// transaction, so every balance mutation commits atomically with its
// ledger entries.
type Repository interface {
	GetBalance(ownerType, ownerID string) (*models.TokenBalance, error)
	CreateBalance(balance *models.TokenBalance) error
	SaveBalance(balance *models.TokenBalance) error
	CreateLedgerEntry(entry *models.TokenLedgerEntry) error
	Transaction(fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a token repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetBalance(ownerType, ownerID string) (*models.TokenBalance, error) {
	var balance models.TokenBalance
	err := r.db.Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).First(&balance).Error
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *gormRepository) CreateBalance(balance *models.TokenBalance) error {
	return r.db.Create(balance).Error
}

func (r *gormRepository) SaveBalance(balance *models.TokenBalance) error {
	return r.db.Save(balance).Error
}

func (r *gormRepository) CreateLedgerEntry(entry *models.TokenLedgerEntry) error {
	return r.db.Create(entry).Error
}

func (r *gormRepository) Transaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}
