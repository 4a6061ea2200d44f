package matching

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"AOTF-backend/internal/database"
	"AOTF-backend/internal/model"
)

// postgres error codes the store classifies
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
)

// GormStore is the postgres Store. Atomic runs in one transaction and LockPosting takes a
// row lock (SELECT ... FOR UPDATE), so writers of the same posting queue up behind each other.
type GormStore struct {
	DB *database.DBinstanceStruct
}

// NewGormStore creates a GormStore on the given database instance
func NewGormStore(db *database.DBinstanceStruct) *GormStore {
	return &GormStore{
		DB: db,
	}
}

// Atomic runs fn inside a database transaction
func (s *GormStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
	return translateError(err)
}

// GetPosting returns the posting or ErrNotFound
func (s *GormStore) GetPosting(ctx context.Context, id uint) (*model.Posting, error) {
	var p model.Posting
	if err := s.DB.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &p, nil
}

// ListPostings returns matching postings, newest first
func (s *GormStore) ListPostings(ctx context.Context, filter model.PostingFilter) ([]model.Posting, error) {
	q := s.DB.WithContext(ctx).Model(&model.Posting{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if filter.OwnerID != nil {
		q = q.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Search != "" {
		q = q.Where("title ILIKE ?", "%"+filter.Search+"%")
	}

	postings := []model.Posting{}
	if err := q.Order("id DESC").Find(&postings).Error; err != nil {
		return nil, translateError(err)
	}
	return postings, nil
}

// GetApplication returns the record or ErrNotFound
func (s *GormStore) GetApplication(ctx context.Context, id uint) (*model.Application, error) {
	var a model.Application
	if err := s.DB.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &a, nil
}

// ListApplications returns the posting's records ordered by applied time
func (s *GormStore) ListApplications(ctx context.Context, postingID uint, filter model.ApplicationFilter) ([]model.Application, error) {
	return listApplications(s.DB.WithContext(ctx), postingID, filter)
}

// ListCandidateApplications returns the candidate's records, most recent first
func (s *GormStore) ListCandidateApplications(ctx context.Context, candidateID uuid.UUID) ([]model.Application, error) {
	apps := []model.Application{}
	if err := s.DB.WithContext(ctx).
		Where("candidate_id = ?", candidateID).
		Order("applied_at DESC, id DESC").
		Find(&apps).Error; err != nil {
		return nil, translateError(err)
	}
	return apps, nil
}

// ListArchive returns the posting's archive entries in archival order
func (s *GormStore) ListArchive(ctx context.Context, postingID uint) ([]model.ArchiveEntry, error) {
	entries := []model.ArchiveEntry{}
	if err := s.DB.WithContext(ctx).
		Where("posting_id = ?", postingID).
		Order("archived_at ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, translateError(err)
	}
	return entries, nil
}

// ListNotifications returns matching notifications, newest first
func (s *GormStore) ListNotifications(ctx context.Context, filter model.NotificationFilter) ([]model.Notification, error) {
	q := s.DB.WithContext(ctx).Model(&model.Notification{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.UnreadOnly {
		q = q.Where("read = ?", false)
	}

	notifications := []model.Notification{}
	if err := q.Order("id DESC").Find(&notifications).Error; err != nil {
		return nil, translateError(err)
	}
	return notifications, nil
}

type gormTx struct {
	db *gorm.DB
}

func (tx *gormTx) LockPosting(id uint) (*model.Posting, error) {
	var p model.Posting
	if err := tx.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &p, nil
}

func (tx *gormTx) CreatePosting(p *model.Posting) error {
	if p.Status == "" {
		p.Status = model.PostingStatusOpen
	}
	return translateError(tx.db.Omit(clause.Associations).Create(p).Error)
}

func (tx *gormTx) SavePosting(p *model.Posting) error {
	return translateError(tx.db.Omit(clause.Associations).Save(p).Error)
}

func (tx *gormTx) GetApplication(id uint) (*model.Application, error) {
	var a model.Application
	if err := tx.db.First(&a, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &a, nil
}

func (tx *gormTx) ListApplications(postingID uint, filter model.ApplicationFilter) ([]model.Application, error) {
	return listApplications(tx.db, postingID, filter)
}

func (tx *gormTx) CreateApplication(a *model.Application) error {
	return translateError(tx.db.Omit(clause.Associations).Create(a).Error)
}

func (tx *gormTx) SaveApplication(a *model.Application) error {
	return translateError(tx.db.Omit(clause.Associations).Save(a).Error)
}

func (tx *gormTx) CreateArchiveEntry(e *model.ArchiveEntry) error {
	return translateError(tx.db.Omit(clause.Associations).Create(e).Error)
}

func (tx *gormTx) GetNotification(id uint) (*model.Notification, error) {
	var n model.Notification
	if err := tx.db.First(&n, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &n, nil
}

func (tx *gormTx) PendingNotification(applicationID uint) (*model.Notification, error) {
	var n model.Notification
	if err := tx.db.
		Where("application_id = ? AND status = ?", applicationID, model.NotificationStatusPending).
		Order("id DESC").
		First(&n).Error; err != nil {
		return nil, translateError(err)
	}
	return &n, nil
}

func (tx *gormTx) CreateNotification(n *model.Notification) error {
	return translateError(tx.db.Omit(clause.Associations).Create(n).Error)
}

func (tx *gormTx) SaveNotification(n *model.Notification) error {
	return translateError(tx.db.Omit(clause.Associations).Save(n).Error)
}

func listApplications(db *gorm.DB, postingID uint, filter model.ApplicationFilter) ([]model.Application, error) {
	q := db.Where("posting_id = ?", postingID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CandidateID != nil {
		q = q.Where("candidate_id = ?", *filter.CandidateID)
	}
	if filter.AutoDeclined != nil {
		q = q.Where("auto_declined = ?", *filter.AutoDeclined)
	}

	apps := []model.Application{}
	if err := q.Order("applied_at ASC, id ASC").Find(&apps).Error; err != nil {
		return nil, translateError(err)
	}
	return apps, nil
}

// translateError maps gorm and postgres errors onto the store sentinels. Engine errors pass through.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var engineErr *Error
	if errors.As(err, &engineErr) {
		return err
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) || errors.Is(err, ErrConflict) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, err.Error())
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.Message)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.Message)
		}
	}
	return err
}
