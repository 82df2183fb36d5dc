package repository

import (
	"fmt"

	"civic-polls/internal/domain/poll"
	"civic-polls/internal/domain/profile"
	"civic-polls/internal/domain/role"
	"civic-polls/internal/domain/session"
	"civic-polls/internal/domain/subscriber"

	"gorm.io/gorm"
)

// InitSchema creates the tables and the constraints AutoMigrate cannot
// express. IDs are generated in Go, so no extension is required.
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&profile.Profile{},
		&role.UserRole{},
		&session.Session{},
		&poll.Poll{},
		&poll.Option{},
		&poll.Vote{},
		&subscriber.EmailSubscriber{},
	); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	constraints := []string{
		`DO $$ BEGIN
			ALTER TABLE profiles ADD CONSTRAINT chk_profiles_verification_status
				CHECK (verification_status IN ('unverified', 'pending', 'verified', 'rejected'));
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE polls ADD CONSTRAINT chk_polls_category
				CHECK (category IN ('governance', 'economy', 'education', 'health', 'infrastructure', 'security', 'other'));
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE poll_options ADD CONSTRAINT chk_poll_options_votes_count
				CHECK (votes_count >= 0);
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE votes ADD CONSTRAINT fk_votes_option
				FOREIGN KEY (option_id) REFERENCES poll_options(id) ON DELETE CASCADE;
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE user_roles ADD CONSTRAINT fk_user_roles_profile
				FOREIGN KEY (user_id) REFERENCES profiles(id) ON DELETE CASCADE;
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
	}
	for _, stmt := range constraints {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to apply constraint: %w", err)
		}
	}

	return nil
}
