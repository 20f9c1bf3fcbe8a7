package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StatusCount struct {
	Status domain.MessageStatus `gorm:"column:status"`
	Count  int                  `gorm:"column:count"`
}

type CampaignRepository interface {
	CreateWithMessages(ctx context.Context, c *domain.Campaign, messages []*domain.Message) ([]domain.Message, error)
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
	GetMessage(ctx context.Context, id string) (*domain.Message, error)
	ListMessagesByStatus(ctx context.Context, campaignID string, status domain.MessageStatus) ([]domain.Message, error)
	UpdateMessageStatus(ctx context.Context, id string, status domain.MessageStatus, errText *string, sentAt *time.Time) error
	GetStatusSummary(ctx context.Context, campaignID string) ([]StatusCount, error)
}

type GormCampaignRepo struct {
	db *gorm.DB
}

func NewGormCampaignRepo(db *gorm.DB) *GormCampaignRepo {
	return &GormCampaignRepo{db: db}
}

// CreateWithMessages inserts the campaign and its messages in one transaction.
// Messages colliding on (campaign_id, lead_id) are skipped. Each row stores its
// input position in seq. The returned slice holds only the rows actually
// inserted, in input order.
func (r *GormCampaignRepo) CreateWithMessages(ctx context.Context, c *domain.Campaign, messages []*domain.Message) ([]domain.Message, error) {
	campaign := campaignModelFromDomain(c)
	if campaign == nil {
		return nil, fmt.Errorf("%w: campaign is required", domain.ErrValidation)
	}

	persisted := make([]domain.Message, 0, len(messages))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(campaign).Error; err != nil {
			return mapDBError(err)
		}

		for i, msg := range messages {
			model := messageModelFromDomain(msg)
			if model == nil {
				continue
			}
			model.CampaignID = campaign.ID
			model.Seq = i

			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "lead_id"}},
				DoNothing: true,
			}).Create(model)
			if result.Error != nil {
				return mapDBError(result.Error)
			}
			if result.RowsAffected == 0 {
				continue
			}

			persisted = append(persisted, *messageModelToDomain(model))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	*c = *campaignModelToDomain(campaign)
	return persisted, nil
}

func (r *GormCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	var model CampaignModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, mapDBError(err)
	}
	return campaignModelToDomain(&model), nil
}

func (r *GormCampaignRepo) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	var model MessageModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, mapDBError(err)
	}
	return messageModelToDomain(&model), nil
}

// ListMessagesByStatus returns the campaign's messages in status, in the order
// they were submitted.
func (r *GormCampaignRepo) ListMessagesByStatus(ctx context.Context, campaignID string, status domain.MessageStatus) ([]domain.Message, error) {
	var models []MessageModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND status = ?", campaignID, status).
		Order("seq ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(models))
	for i := range models {
		messages = append(messages, *messageModelToDomain(&models[i]))
	}

	return messages, nil
}

// UpdateMessageStatus moves a PENDING message to status. A missing row is
// ErrNotFound and a row already in a terminal status is ErrConflict.
func (r *GormCampaignRepo) UpdateMessageStatus(ctx context.Context, id string, status domain.MessageStatus, errText *string, sentAt *time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("id = ? AND status = ?", id, domain.MessageStatusPending).
		Updates(map[string]any{
			"status":        status,
			"error_message": errText,
			"sent_at":       sentAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&MessageModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%w: message %s is already terminal", domain.ErrConflict, id)
}

func (r *GormCampaignRepo) GetStatusSummary(ctx context.Context, campaignID string) ([]StatusCount, error) {
	var summary []StatusCount
	err := r.db.WithContext(ctx).
		Model(&MessageModel{}).
		Select("status, COUNT(*) as count").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&summary).Error
	if err != nil {
		return nil, err
	}
	return summary, nil
}
