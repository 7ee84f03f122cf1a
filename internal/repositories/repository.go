package repositories

import (
	"context"
	"errors"
	"time"

	"camp-ops-backend/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ErrAlreadyCheckedOut is returned when a check-out hits a record that already has one.
var ErrAlreadyCheckedOut = errors.New("attendance already checked out")

type Repository struct {
	DB               *gorm.DB
	UserRepo         UserRepository
	RegistrationRepo RegistrationRepository
	AttendanceRepo   AttendanceRepository
	ActionItemRepo   ActionItemRepository
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		DB:               db,
		UserRepo:         NewUserRepository(db),
		RegistrationRepo: NewRegistrationRepository(db),
		AttendanceRepo:   NewAttendanceRepository(db),
		ActionItemRepo:   NewActionItemRepository(db),
	}
}

// DefaultNotifyChannel is the postgres channel registration changes are published on.
const DefaultNotifyChannel = "registration_changes"

// AutoMigrate creates the schema. On postgres it also installs the trigger that
// publishes registration updates on notifyChannel.
func AutoMigrate(db *gorm.DB, notifyChannel string) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Registration{},
		&models.AttendanceRecord{},
		&models.AccountsActionItem{},
	); err != nil {
		return err
	}

	// At most one open follow-up per (registration, child). Both postgres and sqlite
	// support partial indexes; GORM tags cannot express the WHERE clause.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uq_action_items_open
		ON accounts_action_items (registration_id, child_name) WHERE status = 'open'`).Error; err != nil {
		return err
	}

	if db.Dialector.Name() == "postgres" {
		if notifyChannel == "" {
			notifyChannel = DefaultNotifyChannel
		}
		return installChangeTrigger(db, notifyChannel)
	}
	return nil
}

// installChangeTrigger makes postgres publish every registration update on channel
// so other processes can patch their views.
func installChangeTrigger(db *gorm.DB, channel string) error {
	stmts := []string{
		`CREATE OR REPLACE FUNCTION notify_registration_change() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify(` + pq.QuoteLiteral(channel) + `, json_build_object(
				'entity', 'registration',
				'id', NEW.id,
				'payment_status', NEW.payment_status,
				'status', NEW.status
			)::text);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS registration_change ON registrations`,
		`CREATE TRIGGER registration_change AFTER UPDATE ON registrations
			FOR EACH ROW EXECUTE FUNCTION notify_registration_change()`,
	}
	for _, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			return err
		}
	}
	return nil
}

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	CountByRole(ctx context.Context, role string) (int64, error)
}

type PaymentUpdate struct {
	Status     string
	Method     string
	Reference  string
	AmountPaid float64
}

type RegistrationRepository interface {
	CreateRegistration(ctx context.Context, reg *models.Registration, nextNumber func() string) error
	GetRegistrationByID(ctx context.Context, id string) (*models.Registration, error)
	GetRegistrationByNumber(ctx context.Context, number string) (*models.Registration, error)
	ListActiveRegistrations(ctx context.Context, date string) ([]models.Registration, error)
	SearchRegistrations(ctx context.Context, term string) ([]models.Registration, error)
	UpdatePaymentStatus(ctx context.Context, id string, update PaymentUpdate) error
	UpdateLifecycleStatus(ctx context.Context, id, status string) error
	AppendAdminNote(ctx context.Context, id string, note models.AdminNote) (*models.Registration, error)
	DeleteRegistrations(ctx context.Context, ids []string) (int64, error)
}

type AttendanceRepository interface {
	CheckIn(ctx context.Context, registrationID uuid.UUID, childName, actorID, date string, at time.Time) (*models.AttendanceRecord, error)
	CheckOut(ctx context.Context, attendanceID, note string, at time.Time) (*models.AttendanceRecord, error)
	HasCheckedInOnDate(ctx context.Context, registrationID uuid.UUID, childName, date string) (*models.AttendanceRecord, error)
	LoadBatch(ctx context.Context, registrationIDs []uuid.UUID, date string) ([]models.AttendanceRecord, error)
}

type ActionItemRepository interface {
	FindOpen(ctx context.Context, registrationID uuid.UUID, childName string) (*models.AccountsActionItem, error)
	CreateActionItem(ctx context.Context, item *models.AccountsActionItem) error
	GetActionItemByID(ctx context.Context, id string) (*models.AccountsActionItem, error)
	ListActionItems(ctx context.Context, status string, registrationID string) ([]models.AccountsActionItem, error)
	CompleteActionItem(ctx context.Context, id, resolvedBy, note string, at time.Time) error
	CompleteOpenByRegistration(ctx context.Context, registrationID uuid.UUID, resolvedBy, note string, at time.Time) (int64, error)
}
