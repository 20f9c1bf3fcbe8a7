package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/campaign-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createMessagesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_messages",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.MessageModel{}); err != nil {
				return err
			}
			statements := []string{
				`ALTER TABLE messages ADD CONSTRAINT fk_messages_campaign FOREIGN KEY (campaign_id) REFERENCES campaigns (id)`,
				`ALTER TABLE messages ADD CONSTRAINT chk_messages_status CHECK (status IN ('PENDING', 'SENT', 'FAILED'))`,
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_campaign_lead ON messages (campaign_id, lead_id)`,
				`CREATE INDEX IF NOT EXISTS idx_messages_campaign_status ON messages (campaign_id, status, seq)`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.MessageModel{})
		},
	}
}
