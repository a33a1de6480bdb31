package repository

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
	"github.com/totegamma/factguard/internal/infra/database/models"
	"github.com/totegamma/factguard/internal/usecase"
)

const registryStateID = 1

// RegistryRepository stores the registry in postgres.
type RegistryRepository struct {
	db *gorm.DB
}

var _ usecase.RegistryStore = (*RegistryRepository)(nil)

func NewRegistryRepository(db *gorm.DB) *RegistryRepository {
	return &RegistryRepository{db: db}
}

func lockState(tx *gorm.DB) (models.RegistryState, error) {
	var state models.RegistryState
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", registryStateID).Take(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = models.RegistryState{ID: registryStateID}
		err = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&state).Error
		if err == nil {
			err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", registryStateID).Take(&state).Error
		}
	}
	return state, err
}

func (r *RegistryRepository) Insert(ctx context.Context, entry domain.RegistryEntry, prev *factguard.FactHash) (domain.RegistryEntry, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := lockState(tx)
		if err != nil {
			return err
		}

		var binding models.FactBinding
		err = tx.Where("fact_id = ?", entry.FactID).Take(&binding).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if prev != nil {
				return domain.NewError(domain.CodeIdentifierConflict, "binding for %s changed concurrently", entry.FactID)
			}
		case err != nil:
			return err
		default:
			if prev == nil || binding.FactHash != prev.Hex() {
				return domain.NewError(domain.CodeIdentifierConflict, "binding for %s changed concurrently", entry.FactID)
			}
		}

		entry.Sequence = uint64(state.Sequence + 1)
		row := toEntryModel(entry)
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.NewError(domain.CodeAlreadyExists, "%s is already registered", entry.FactHash.Hex())
		}

		err = tx.Model(&models.RegistryState{}).Where("id = ?", state.ID).Update("sequence", int64(entry.Sequence)).Error
		if err != nil {
			return err
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fact_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"fact_hash", "m_date"}),
		}).Create(&models.FactBinding{
			FactID:   entry.FactID,
			FactHash: entry.FactHash.Hex(),
		}).Error
	})
	if err != nil {
		return domain.RegistryEntry{}, err
	}
	return entry, nil
}

func (r *RegistryRepository) Get(ctx context.Context, hash factguard.FactHash) (domain.RegistryEntry, error) {
	var row models.RegistryEntry
	err := r.db.WithContext(ctx).Where("fact_hash = ?", hash.Hex()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.RegistryEntry{}, domain.NewError(domain.CodeNotFound, "fact %s", hash.Hex())
	}
	if err != nil {
		return domain.RegistryEntry{}, err
	}
	return fromEntryModel(row)
}

func (r *RegistryRepository) ResolveID(ctx context.Context, factID string) (factguard.FactHash, error) {
	var binding models.FactBinding
	err := r.db.WithContext(ctx).Where("fact_id = ?", factID).Take(&binding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return factguard.FactHash{}, domain.NewError(domain.CodeNotFound, "fact id %s", factID)
	}
	if err != nil {
		return factguard.FactHash{}, err
	}
	return factguard.ParseFactHash(binding.FactHash)
}

func (r *RegistryRepository) UpdateStatus(ctx context.Context, hash factguard.FactHash, from, to factguard.Status) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockState(tx); err != nil {
			return err
		}
		result := tx.Model(&models.RegistryEntry{}).
			Where("fact_hash = ? AND status = ?", hash.Hex(), uint8(from)).
			Update("status", uint8(to))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			return nil
		}

		var count int64
		if err := tx.Model(&models.RegistryEntry{}).Where("fact_hash = ?", hash.Hex()).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.NewError(domain.CodeNotFound, "fact %s", hash.Hex())
		}
		return domain.NewError(domain.CodeInvalidTransition, "%s is no longer %s", hash.Hex(), from)
	})
}

func (r *RegistryRepository) Writer(ctx context.Context) (factguard.Identity, error) {
	var state models.RegistryState
	err := r.db.WithContext(ctx).Where("id = ?", registryStateID).Take(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && state.Writer == "") {
		return factguard.Identity{}, nil
	}
	if err != nil {
		return factguard.Identity{}, err
	}
	return common.HexToAddress(state.Writer), nil
}

func (r *RegistryRepository) SetWriter(ctx context.Context, prev, next factguard.Identity) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := lockState(tx)
		if err != nil {
			return err
		}
		current := factguard.Identity{}
		if state.Writer != "" {
			current = common.HexToAddress(state.Writer)
		}
		if current != prev {
			return domain.NewError(domain.CodeUnauthorized, "writer changed concurrently")
		}
		return tx.Model(&models.RegistryState{}).Where("id = ?", state.ID).Update("writer", next.Hex()).Error
	})
}

func (r *RegistryRepository) Count(ctx context.Context) (uint64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RegistryEntry{}).Count(&count).Error
	return uint64(count), err
}

func toEntryModel(entry domain.RegistryEntry) models.RegistryEntry {
	return models.RegistryEntry{
		FactHash:       entry.FactHash.Hex(),
		FactID:         entry.FactID,
		Verdict:        uint8(entry.Verdict),
		Severity:       uint8(entry.Severity),
		IssuedAt:       entry.IssuedAt,
		LastReviewedAt: entry.LastReviewedAt,
		Version:        int64(entry.Version),
		Status:         uint8(entry.Status),
		Registrant:     entry.Registrant.Hex(),
		Sequence:       int64(entry.Sequence),
		CDate:          entry.RegisteredAt,
	}
}

func fromEntryModel(row models.RegistryEntry) (domain.RegistryEntry, error) {
	hash, err := factguard.ParseFactHash(row.FactHash)
	if err != nil {
		return domain.RegistryEntry{}, err
	}
	return domain.RegistryEntry{
		FactHash:       hash,
		FactID:         row.FactID,
		Verdict:        factguard.Verdict(row.Verdict),
		Severity:       factguard.Severity(row.Severity),
		IssuedAt:       row.IssuedAt.UTC(),
		LastReviewedAt: row.LastReviewedAt.UTC(),
		Version:        uint64(row.Version),
		Status:         factguard.Status(row.Status),
		Registrant:     common.HexToAddress(row.Registrant),
		Sequence:       uint64(row.Sequence),
		RegisteredAt:   row.CDate.UTC(),
	}, nil
}
