package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/domain"
	"github.com/viralforge/mesh/services/marketing/campaign-service/internal/ports"
	"gorm.io/gorm"
)

type documentRepository struct {
	db *gorm.DB
}

func (r *documentRepository) Create(ctx context.Context, params ports.CreateDocumentParams) (domain.Document, error) {
	rec := documentModel{
		UserID:    params.UserID,
		Filename:  params.Filename,
		Markdown:  params.Markdown,
		SourceLen: params.SourceLen,
		CreatedAt: params.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.Document{}, translateError(err)
	}
	return toDomainDocument(rec), nil
}

func (r *documentRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Document, error) {
	var rows []documentModel
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]domain.Document, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainDocument(row))
	}
	return out, nil
}
