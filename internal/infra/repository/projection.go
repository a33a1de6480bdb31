package repository

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
	"github.com/totegamma/factguard/internal/infra/database/models"
	"github.com/totegamma/factguard/internal/usecase"
)

// ProjectionRepository stores published fact records in postgres, keyed by fact id.
type ProjectionRepository struct {
	db *gorm.DB
}

var _ usecase.ProjectionStore = (*ProjectionRepository)(nil)

func NewProjectionRepository(db *gorm.DB) *ProjectionRepository {
	return &ProjectionRepository{db: db}
}

// Save upserts fact. A newer version of a fact id replaces the previous row.
func (r *ProjectionRepository) Save(ctx context.Context, fact domain.PublishedFact) error {
	row, err := toProjectionModel(fact)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "fact_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"fact_hash", "claim_text", "verdict", "severity", "summary", "evidence", "topics",
			"issued_at", "last_reviewed_at", "version", "status", "tx_ref", "sequence", "block", "publisher",
		}),
	}).Create(&row).Error
}

func (r *ProjectionRepository) Get(ctx context.Context, factID string) (domain.PublishedFact, error) {
	var row models.PublishedFact
	err := r.db.WithContext(ctx).Where("fact_id = ?", factID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.PublishedFact{}, domain.NewError(domain.CodeNotFound, "published fact %s", factID)
	}
	if err != nil {
		return domain.PublishedFact{}, err
	}
	return fromProjectionModel(row)
}

func (r *ProjectionRepository) GetByHash(ctx context.Context, hash factguard.FactHash) (domain.PublishedFact, error) {
	var row models.PublishedFact
	err := r.db.WithContext(ctx).Where("fact_hash = ?", hash.Hex()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.PublishedFact{}, domain.NewError(domain.CodeNotFound, "published fact %s", hash.Hex())
	}
	if err != nil {
		return domain.PublishedFact{}, err
	}
	return fromProjectionModel(row)
}

func (r *ProjectionRepository) UpdateStatus(ctx context.Context, hash factguard.FactHash, status factguard.Status) error {
	result := r.db.WithContext(ctx).Model(&models.PublishedFact{}).
		Where("fact_hash = ?", hash.Hex()).
		Update("status", status.String())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewError(domain.CodeNotFound, "published fact %s", hash.Hex())
	}
	return nil
}

// List returns published facts, most recently issued first, with the total count.
func (r *ProjectionRepository) List(ctx context.Context, limit, offset int) ([]domain.PublishedFact, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.PublishedFact{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.PublishedFact
	err := r.db.WithContext(ctx).Order("issued_at DESC").Order("fact_id").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	facts := make([]domain.PublishedFact, 0, len(rows))
	for _, row := range rows {
		fact, err := fromProjectionModel(row)
		if err != nil {
			return nil, 0, err
		}
		facts = append(facts, fact)
	}
	return facts, total, nil
}

func toProjectionModel(fact domain.PublishedFact) (models.PublishedFact, error) {
	evidence := fact.Record.Evidence
	if evidence == nil {
		evidence = []factguard.Evidence{}
	}
	evidenceJSON, err := json.Marshal(evidence)
	if err != nil {
		return models.PublishedFact{}, err
	}
	topics := fact.Record.Topics
	if topics == nil {
		topics = []string{}
	}
	topicsJSON, err := json.Marshal(topics)
	if err != nil {
		return models.PublishedFact{}, err
	}

	return models.PublishedFact{
		FactID:         fact.Record.FactID,
		FactHash:       fact.FactHash.Hex(),
		ClaimText:      fact.Record.ClaimText,
		Verdict:        fact.Record.Verdict.String(),
		Severity:       fact.Record.Severity.String(),
		Summary:        fact.Record.Summary,
		Evidence:       string(evidenceJSON),
		Topics:         string(topicsJSON),
		IssuedAt:       fact.Record.IssuedAt,
		LastReviewedAt: fact.Record.LastReviewedAt,
		Version:        int64(fact.Record.Version),
		Status:         fact.Record.Status.String(),
		TxRef:          fact.TxRef,
		Sequence:       int64(fact.Sequence),
		Block:          int64(fact.Block),
		Publisher:      fact.Publisher,
		CDate:          fact.CreatedAt,
	}, nil
}

func fromProjectionModel(row models.PublishedFact) (domain.PublishedFact, error) {
	hash, err := factguard.ParseFactHash(row.FactHash)
	if err != nil {
		return domain.PublishedFact{}, err
	}
	verdict, err := factguard.ParseVerdict(row.Verdict)
	if err != nil {
		return domain.PublishedFact{}, err
	}
	severity, err := factguard.ParseSeverity(row.Severity)
	if err != nil {
		return domain.PublishedFact{}, err
	}
	status, err := factguard.ParseStatus(row.Status)
	if err != nil {
		return domain.PublishedFact{}, err
	}

	var evidence []factguard.Evidence
	if err := json.Unmarshal([]byte(row.Evidence), &evidence); err != nil {
		return domain.PublishedFact{}, err
	}
	var topics []string
	if err := json.Unmarshal([]byte(row.Topics), &topics); err != nil {
		return domain.PublishedFact{}, err
	}

	return domain.PublishedFact{
		Record: factguard.FactRecord{
			FactID:         row.FactID,
			ClaimText:      row.ClaimText,
			Verdict:        verdict,
			Severity:       severity,
			Summary:        row.Summary,
			Evidence:       evidence,
			Topics:         topics,
			IssuedAt:       row.IssuedAt.UTC(),
			LastReviewedAt: row.LastReviewedAt.UTC(),
			Version:        uint64(row.Version),
			Status:         status,
		},
		FactHash:  hash,
		TxRef:     row.TxRef,
		Sequence:  uint64(row.Sequence),
		Block:     uint64(row.Block),
		Publisher: row.Publisher,
		CreatedAt: row.CDate.UTC(),
	}, nil
}
