package repository

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
	"github.com/totegamma/factguard/internal/infra/database/models"
	"github.com/totegamma/factguard/internal/usecase"
)

type CommitLogRepository struct {
	db *gorm.DB
}

var _ usecase.CommitLog = (*CommitLogRepository)(nil)

func NewCommitLogRepository(db *gorm.DB) *CommitLogRepository {
	return &CommitLogRepository{db: db}
}

// Append stores sd keyed by the hash of its document. Replays of the same document are ignored.
func (r *CommitLogRepository) Append(ctx context.Context, sd factguard.SignedDocument, signer factguard.Identity, schema string, receipt domain.Receipt) error {
	proof, err := json.Marshal(sd.Proof)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&models.CommitLog{
		ID:       factguard.DocumentID([]byte(sd.Document)),
		Document: sd.Document,
		Proof:    string(proof),
		Signer:   signer.Hex(),
		Schema:   schema,
		TxRef:    receipt.TxRef,
	}).Error
}

