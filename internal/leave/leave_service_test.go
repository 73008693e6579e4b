package leave_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"hr-admin/internal/leave"
	leaveerrors "hr-admin/internal/leave/errors"
	"hr-admin/internal/messaging/kafka"
	"hr-admin/internal/user"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type fakeLeaveRepository struct {
	withTxFn               func(tx *sql.Tx) leave.Repository
	createRequestFn        func(ctx context.Context, l *leave.LeaveRequest) error
	findRequestsByUserFn   func(ctx context.Context, userID, status string) ([]leave.LeaveRequest, error)
	findAllRequestsFn      func(ctx context.Context, status string) ([]leave.LeaveRequest, error)
	findRequestForUpdateFn func(ctx context.Context, id string) (*leave.LeaveRequest, error)
	updateRequestFn        func(ctx context.Context, l *leave.LeaveRequest) error
	findBalanceFn          func(ctx context.Context, userID string, year int) (*leave.LeaveBalance, error)
	createBalanceFn        func(ctx context.Context, b *leave.LeaveBalance) error
	deductBalanceFn        func(ctx context.Context, userID string, year int, column string, days int) error
}

func (f *fakeLeaveRepository) WithTx(tx *sql.Tx) leave.Repository {
	if f.withTxFn != nil {
		return f.withTxFn(tx)
	}
	return f
}

func (f *fakeLeaveRepository) CreateRequest(ctx context.Context, l *leave.LeaveRequest) error {
	if f.createRequestFn != nil {
		return f.createRequestFn(ctx, l)
	}
	return nil
}

func (f *fakeLeaveRepository) FindRequestsByUser(ctx context.Context, userID, status string) ([]leave.LeaveRequest, error) {
	if f.findRequestsByUserFn != nil {
		return f.findRequestsByUserFn(ctx, userID, status)
	}
	return nil, nil
}

func (f *fakeLeaveRepository) FindAllRequests(ctx context.Context, status string) ([]leave.LeaveRequest, error) {
	if f.findAllRequestsFn != nil {
		return f.findAllRequestsFn(ctx, status)
	}
	return nil, nil
}

func (f *fakeLeaveRepository) FindRequestForUpdate(ctx context.Context, id string) (*leave.LeaveRequest, error) {
	if f.findRequestForUpdateFn != nil {
		return f.findRequestForUpdateFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeLeaveRepository) UpdateRequest(ctx context.Context, l *leave.LeaveRequest) error {
	if f.updateRequestFn != nil {
		return f.updateRequestFn(ctx, l)
	}
	return nil
}

func (f *fakeLeaveRepository) FindBalance(ctx context.Context, userID string, year int) (*leave.LeaveBalance, error) {
	if f.findBalanceFn != nil {
		return f.findBalanceFn(ctx, userID, year)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeLeaveRepository) CreateBalance(ctx context.Context, b *leave.LeaveBalance) error {
	if f.createBalanceFn != nil {
		return f.createBalanceFn(ctx, b)
	}
	return nil
}

func (f *fakeLeaveRepository) DeductBalance(ctx context.Context, userID string, year int, column string, days int) error {
	if f.deductBalanceFn != nil {
		return f.deductBalanceFn(ctx, userID, year, column, days)
	}
	return nil
}

type fakeUserRepository struct {
	startDate    *time.Time
	startDateErr error
}

func (f *fakeUserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	return &user.User{StartDate: f.startDate}, nil
}

func (f *fakeUserRepository) GetStartDate(ctx context.Context, id string) (*time.Time, error) {
	return f.startDate, f.startDateErr
}

type fakeOutboxRepository struct {
	created []kafka.OutboxEvent
}

func (f *fakeOutboxRepository) WithTx(tx *sql.Tx) kafka.OutboxRepository { return f }

func (f *fakeOutboxRepository) Create(ctx context.Context, event kafka.OutboxEvent) error {
	f.created = append(f.created, event)
	return nil
}

func (f *fakeOutboxRepository) ListPending(ctx context.Context, limit int) ([]kafka.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutboxRepository) MarkSent(ctx context.Context, id string) error   { return nil }
func (f *fakeOutboxRepository) MarkFailed(ctx context.Context, id, r string) error { return nil }

type leaveServiceDeps struct {
	db      *sql.DB
	sqlMock sqlmock.Sqlmock
	service leave.Service
	repo    *fakeLeaveRepository
	users   *fakeUserRepository
	outbox  *fakeOutboxRepository
}

func setupLeaveServiceTest(t *testing.T) *leaveServiceDeps {
	t.Helper()

	db, sqlMock, err := sqlmock.New()
	assert.NoError(t, err)

	repo := &fakeLeaveRepository{}
	users := &fakeUserRepository{}
	outbox := &fakeOutboxRepository{}
	svc := leave.NewServiceWithOutbox(db, repo, users, outbox, nil)

	return &leaveServiceDeps{
		db:      db,
		sqlMock: sqlMock,
		service: svc,
		repo:    repo,
		users:   users,
		outbox:  outbox,
	}
}

func expectTx(t *testing.T, mock sqlmock.Sqlmock, commit bool) {
	t.Helper()
	mock.ExpectBegin()
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func pendingRequest(userID uuid.UUID, leaveType string, totalDays float64) *leave.LeaveRequest {
	return &leave.LeaveRequest{
		ID:        uuid.New(),
		UserID:    userID,
		LeaveType: leaveType,
		StartDate: time.Now(),
		EndDate:   time.Now().AddDate(0, 0, 1),
		TotalDays: totalDays,
		Status:    leave.StatusPending,
	}
}

func TestLeaveService_EnsureCurrentYearBalance(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New().String()

	t.Run("creates row for six year tenure", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		deps.users.startDate = timePtr(time.Now().AddDate(-6, 0, 0))

		var created *leave.LeaveBalance
		deps.repo.createBalanceFn = func(ctx context.Context, b *leave.LeaveBalance) error {
			created = b
			return nil
		}

		deps.service.EnsureCurrentYearBalance(ctx, userID)

		assert.NotNil(t, created)
		assert.Equal(t, time.Now().UTC().Year(), created.Year)
		assert.Equal(t, 20, created.AnnualLeave)
		assert.Equal(t, 5, created.SickLeave)
		assert.Equal(t, 3, created.PersonalLeave)
		assert.Equal(t, 5, created.PaternityLeave)
		assert.Equal(t, 112, created.MaternityLeave)
		assert.Equal(t, 3, created.MarriageLeave)
		assert.Equal(t, 3, created.DeathLeave)
	})

	t.Run("second call in the same year is a no-op", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		deps.users.startDate = timePtr(time.Now().AddDate(-6, 0, 0))
		deps.repo.findBalanceFn = func(ctx context.Context, uid string, year int) (*leave.LeaveBalance, error) {
			return &leave.LeaveBalance{Year: year, AnnualLeave: 20}, nil
		}

		createCalled := false
		deps.repo.createBalanceFn = func(ctx context.Context, b *leave.LeaveBalance) error {
			createCalled = true
			return nil
		}

		deps.service.EnsureCurrentYearBalance(ctx, userID)

		assert.False(t, createCalled)
	})

	t.Run("no-op without start date", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		deps.users.startDate = nil

		createCalled := false
		deps.repo.createBalanceFn = func(ctx context.Context, b *leave.LeaveBalance) error {
			createCalled = true
			return nil
		}

		deps.service.EnsureCurrentYearBalance(ctx, userID)

		assert.False(t, createCalled)
	})

	t.Run("no row under one year tenure", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		hiredThisYear := time.Date(time.Now().Year(), time.January, 2, 0, 0, 0, 0, time.UTC)
		deps.users.startDate = &hiredThisYear

		createCalled := false
		deps.repo.createBalanceFn = func(ctx context.Context, b *leave.LeaveBalance) error {
			createCalled = true
			return nil
		}

		deps.service.EnsureCurrentYearBalance(ctx, userID)

		assert.False(t, createCalled)
	})

	t.Run("lost insert race is benign", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		deps.users.startDate = timePtr(time.Now().AddDate(-2, 0, 0))
		deps.repo.createBalanceFn = func(ctx context.Context, b *leave.LeaveBalance) error {
			return &pgconn.PgError{Code: "23505"}
		}

		// Must not panic or surface an error to the caller.
		deps.service.EnsureCurrentYearBalance(ctx, userID)
	})
}

func TestLeaveService_GetBalance(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New().String()

	t.Run("maps existing row", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		deps.repo.findBalanceFn = func(ctx context.Context, uid string, year int) (*leave.LeaveBalance, error) {
			assert.Equal(t, userID, uid)
			assert.Equal(t, time.Now().UTC().Year(), year)
			return &leave.LeaveBalance{
				Year:           year,
				AnnualLeave:    14,
				SickLeave:      4,
				PersonalLeave:  3,
				PaternityLeave: 5,
				MaternityLeave: 112,
				MarriageLeave:  3,
				DeathLeave:     3,
			}, nil
		}

		resp, err := deps.service.GetBalance(ctx, userID)

		assert.NoError(t, err)
		assert.Equal(t, 14, resp.Annual)
		assert.Equal(t, 4, resp.Sick)
		assert.Equal(t, 3, resp.Personal)
	})

	t.Run("fallback defaults when nothing accrued", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		resp, err := deps.service.GetBalance(ctx, userID)

		assert.NoError(t, err)
		assert.Equal(t, leave.BalanceResponse{
			Annual:    0,
			Sick:      0,
			Personal:  0,
			Paternity: 5,
			Maternity: 112,
			Marriage:  3,
			Death:     3,
		}, resp)
	})

	t.Run("first read accrues the current year", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		deps.users.startDate = timePtr(time.Now().AddDate(-6, 0, 0))

		var stored *leave.LeaveBalance
		deps.repo.findBalanceFn = func(ctx context.Context, uid string, year int) (*leave.LeaveBalance, error) {
			if stored == nil {
				return nil, gorm.ErrRecordNotFound
			}
			return stored, nil
		}
		deps.repo.createBalanceFn = func(ctx context.Context, b *leave.LeaveBalance) error {
			stored = b
			return nil
		}

		resp, err := deps.service.GetBalance(ctx, userID)

		assert.NoError(t, err)
		assert.Equal(t, 20, resp.Annual)
		assert.Equal(t, 5, resp.Sick)
		assert.Equal(t, 3, resp.Personal)
		assert.Equal(t, 112, resp.Maternity)
	})
}

func TestLeaveService_CreateRequest(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New().String()

	t.Run("success starts pending and keeps fractional days", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		var created *leave.LeaveRequest
		deps.repo.createRequestFn = func(ctx context.Context, l *leave.LeaveRequest) error {
			created = l
			return nil
		}

		req := leave.CreateLeaveRequest{
			LeaveType: "personal",
			StartDate: "2026-03-10 09:00",
			EndDate:   "2026-03-11 12:00",
			TotalDays: 1.4,
			Reason:    "Family matters",
		}

		resp, err := deps.service.CreateRequest(ctx, userID, req)

		assert.NoError(t, err)
		assert.NotNil(t, created)
		assert.Equal(t, uuid.MustParse(userID), created.UserID)
		assert.Equal(t, leave.StatusPending, created.Status)
		assert.Equal(t, 1.4, created.TotalDays)
		assert.Equal(t, leave.StatusPending, resp.Status)
		assert.Equal(t, 1.4, resp.TotalDays)
	})

	t.Run("date only layout accepted", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		req := leave.CreateLeaveRequest{
			LeaveType: "annual",
			StartDate: "2026-03-10",
			EndDate:   "2026-03-12",
			TotalDays: 3,
		}

		_, err := deps.service.CreateRequest(ctx, userID, req)
		assert.NoError(t, err)
	})

	t.Run("invalid date format", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		req := leave.CreateLeaveRequest{
			LeaveType: "annual",
			StartDate: "10/03/2026",
			EndDate:   "2026-03-12",
			TotalDays: 3,
		}

		_, err := deps.service.CreateRequest(ctx, userID, req)
		assert.ErrorIs(t, err, leaveerrors.ErrInvalidDateFormat)
	})

	t.Run("start after end", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		req := leave.CreateLeaveRequest{
			LeaveType: "annual",
			StartDate: "2026-03-12",
			EndDate:   "2026-03-10",
			TotalDays: 3,
		}

		_, err := deps.service.CreateRequest(ctx, userID, req)
		assert.ErrorIs(t, err, leaveerrors.ErrInvalidDateRange)
	})
}

func TestLeaveService_DecideRequest(t *testing.T) {
	ctx := context.Background()
	adminID := uuid.New().String()
	approve := true
	reject := false

	t.Run("approval deducts rounded days from the mapped column", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()
		expectTx(t, deps.sqlMock, true)

		userID := uuid.New()
		req := pendingRequest(userID, "personal", 1.4)
		deps.repo.findRequestForUpdateFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			return req, nil
		}

		var deductedColumn string
		var deductedDays int
		deps.repo.deductBalanceFn = func(ctx context.Context, uid string, year int, column string, days int) error {
			assert.Equal(t, userID.String(), uid)
			assert.Equal(t, time.Now().UTC().Year(), year)
			deductedColumn = column
			deductedDays = days
			return nil
		}

		resp, err := deps.service.DecideRequest(ctx, req.ID.String(), adminID, leave.DecideLeaveRequest{Approved: &approve})

		assert.NoError(t, err)
		assert.Equal(t, leave.StatusApproved, resp.Status)
		assert.Equal(t, "personal_leave", deductedColumn)
		assert.Equal(t, 2, deductedDays)
		assert.NotNil(t, resp.ApprovedBy)
		assert.Equal(t, adminID, *resp.ApprovedBy)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("rejection never touches the balance", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()
		expectTx(t, deps.sqlMock, true)

		req := pendingRequest(uuid.New(), "annual", 2)
		deps.repo.findRequestForUpdateFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			return req, nil
		}

		deductCalled := false
		deps.repo.deductBalanceFn = func(ctx context.Context, uid string, year int, column string, days int) error {
			deductCalled = true
			return nil
		}

		resp, err := deps.service.DecideRequest(ctx, req.ID.String(), adminID, leave.DecideLeaveRequest{
			Approved: &reject,
			Reason:   "busy season",
		})

		assert.NoError(t, err)
		assert.Equal(t, leave.StatusRejected, resp.Status)
		assert.False(t, deductCalled)
		assert.NotNil(t, resp.RejectionReason)
		assert.Equal(t, "busy season", *resp.RejectionReason)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("unknown category transitions but deducts nothing", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()
		expectTx(t, deps.sqlMock, true)

		req := pendingRequest(uuid.New(), "bereavement_extra", 2)
		deps.repo.findRequestForUpdateFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			return req, nil
		}

		deductCalled := false
		deps.repo.deductBalanceFn = func(ctx context.Context, uid string, year int, column string, days int) error {
			deductCalled = true
			return nil
		}

		resp, err := deps.service.DecideRequest(ctx, req.ID.String(), adminID, leave.DecideLeaveRequest{Approved: &approve})

		assert.NoError(t, err)
		assert.Equal(t, leave.StatusApproved, resp.Status)
		assert.False(t, deductCalled)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("already processed request is left untouched", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()
		expectTx(t, deps.sqlMock, false)

		req := pendingRequest(uuid.New(), "annual", 2)
		req.Status = leave.StatusApproved
		deps.repo.findRequestForUpdateFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			return req, nil
		}

		updateCalled := false
		deps.repo.updateRequestFn = func(ctx context.Context, l *leave.LeaveRequest) error {
			updateCalled = true
			return nil
		}
		deductCalled := false
		deps.repo.deductBalanceFn = func(ctx context.Context, uid string, year int, column string, days int) error {
			deductCalled = true
			return nil
		}

		_, err := deps.service.DecideRequest(ctx, req.ID.String(), adminID, leave.DecideLeaveRequest{Approved: &approve})

		assert.ErrorIs(t, err, leaveerrors.ErrAlreadyProcessed)
		assert.False(t, updateCalled)
		assert.False(t, deductCalled)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("missing request", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()
		expectTx(t, deps.sqlMock, false)

		deps.repo.findRequestForUpdateFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			return nil, gorm.ErrRecordNotFound
		}

		_, err := deps.service.DecideRequest(ctx, uuid.New().String(), adminID, leave.DecideLeaveRequest{Approved: &approve})

		assert.ErrorIs(t, err, leaveerrors.ErrRequestNotFound)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("deduction failure rolls the decision back", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()
		expectTx(t, deps.sqlMock, false)

		req := pendingRequest(uuid.New(), "sick", 1)
		deps.repo.findRequestForUpdateFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			return req, nil
		}
		deps.repo.deductBalanceFn = func(ctx context.Context, uid string, year int, column string, days int) error {
			return errors.New("connection reset")
		}

		_, err := deps.service.DecideRequest(ctx, req.ID.String(), adminID, leave.DecideLeaveRequest{Approved: &approve})

		assert.Error(t, err)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("accrual and deduction target the same year row", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()
		expectTx(t, deps.sqlMock, true)

		deps.users.startDate = timePtr(time.Now().AddDate(-6, 0, 0))

		accruedYear := 0
		deps.repo.createBalanceFn = func(ctx context.Context, b *leave.LeaveBalance) error {
			accruedYear = b.Year
			return nil
		}
		deps.service.EnsureCurrentYearBalance(ctx, uuid.New().String())

		req := pendingRequest(uuid.New(), "annual", 2)
		deps.repo.findRequestForUpdateFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			return req, nil
		}

		deductedYear := 0
		deps.repo.deductBalanceFn = func(ctx context.Context, uid string, year int, column string, days int) error {
			deductedYear = year
			return nil
		}

		_, err := deps.service.DecideRequest(ctx, req.ID.String(), adminID, leave.DecideLeaveRequest{Approved: &approve})

		assert.NoError(t, err)
		assert.NotZero(t, accruedYear)
		assert.Equal(t, accruedYear, deductedYear)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("approval stages an outbox event in the same transaction", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()
		expectTx(t, deps.sqlMock, true)

		req := pendingRequest(uuid.New(), "annual", 3)
		deps.repo.findRequestForUpdateFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			return req, nil
		}

		_, err := deps.service.DecideRequest(ctx, req.ID.String(), adminID, leave.DecideLeaveRequest{Approved: &approve})

		assert.NoError(t, err)
		assert.Len(t, deps.outbox.created, 1)
		event := deps.outbox.created[0]
		assert.Equal(t, "leave_approved", event.EventType)
		assert.Equal(t, "leave_request", event.AggregateType)
		assert.Equal(t, req.ID.String(), event.AggregateID)
		assert.Equal(t, kafka.OutboxStatusPending, event.Status)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})
}
