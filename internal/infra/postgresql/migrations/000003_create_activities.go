package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/campaign-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createActivitiesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_activities",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ActivityModel{}); err != nil {
				return err
			}
			statements := []string{
				`CREATE INDEX IF NOT EXISTS idx_activities_lead_contacted ON activities (lead_id, contacted_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_activities_message_id ON activities (message_id)`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ActivityModel{})
		},
	}
}
