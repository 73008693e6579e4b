package leave

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hr-admin/internal/events"
	leaveerrors "hr-admin/internal/leave/errors"
	"hr-admin/internal/messaging/kafka"
	"hr-admin/internal/shared/contextutil"
	"hr-admin/internal/user"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

const balanceCacheTTL = 10 * time.Minute

func balanceCacheKey(userID string, year int) string {
	return fmt.Sprintf("leave:balance:%s:%d", userID, year)
}

type Service interface {
	CreateRequest(ctx context.Context, userID string, req CreateLeaveRequest) (LeaveRequestResponse, error)
	GetRequests(ctx context.Context, userID, status string) ([]LeaveRequestResponse, error)
	GetAllRequests(ctx context.Context, status string) ([]AdminLeaveRequestResponse, error)
	GetBalance(ctx context.Context, userID string) (BalanceResponse, error)
	EnsureCurrentYearBalance(ctx context.Context, userID string)
	DecideRequest(ctx context.Context, requestID, adminID string, req DecideLeaveRequest) (LeaveRequestResponse, error)
}

type service struct {
	db     *sql.DB
	repo   Repository
	users  user.Repository
	outbox kafka.OutboxRepository
	rdb    *redis.Client
	sf     *singleflight.Group
	logger *zap.Logger
}

func NewService(db *sql.DB, repo Repository, users user.Repository, rdb *redis.Client, logger ...*zap.Logger) Service {
	return NewServiceWithOutbox(db, repo, users, nil, rdb, logger...)
}

func NewServiceWithOutbox(
	db *sql.DB,
	repo Repository,
	users user.Repository,
	outboxRepo kafka.OutboxRepository,
	rdb *redis.Client,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("leave.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.service")
	}
	return &service{
		db:     db,
		repo:   repo,
		users:  users,
		outbox: outboxRepo,
		rdb:    rdb,
		sf:     &singleflight.Group{},
		logger: l,
	}
}

func (s *service) CreateRequest(ctx context.Context, userID string, req CreateLeaveRequest) (LeaveRequestResponse, error) {
	s.logger.Debug("create leave request",
		zap.String("user_id", userID),
		zap.String("leave_type", req.LeaveType),
		zap.Float64("total_days", req.TotalDays),
	)

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return LeaveRequestResponse{}, leaveerrors.ErrInvalidUserID
	}
	startDate, err := parseLeaveDate(req.StartDate)
	if err != nil {
		return LeaveRequestResponse{}, err
	}
	endDate, err := parseLeaveDate(req.EndDate)
	if err != nil {
		return LeaveRequestResponse{}, err
	}
	if startDate.After(endDate) {
		return LeaveRequestResponse{}, leaveerrors.ErrInvalidDateRange
	}
	if req.TotalDays <= 0 {
		return LeaveRequestResponse{}, leaveerrors.ErrInvalidTotalDays
	}

	// No balance check here: over-requesting is allowed at submission,
	// the balance is only touched at approval.
	l := &LeaveRequest{
		ID:        uuid.New(),
		UserID:    userUUID,
		LeaveType: req.LeaveType,
		StartDate: startDate,
		EndDate:   endDate,
		TotalDays: req.TotalDays,
		Reason:    req.Reason,
		Status:    StatusPending,
	}

	if err := s.repo.CreateRequest(ctx, l); err != nil {
		s.logger.Error("create leave request persist failed", zap.Error(err))
		return LeaveRequestResponse{}, err
	}

	s.logger.Info("create leave request success",
		zap.String("leave_id", l.ID.String()),
		zap.String("user_id", userID),
	)

	return mapToResponse(*l), nil
}

func (s *service) GetRequests(ctx context.Context, userID, status string) ([]LeaveRequestResponse, error) {
	requests, err := s.repo.FindRequestsByUser(ctx, userID, status)
	if err != nil {
		s.logger.Error("get leave requests failed", zap.Error(err))
		return nil, err
	}
	return mapToListResponse(requests), nil
}

func (s *service) GetAllRequests(ctx context.Context, status string) ([]AdminLeaveRequestResponse, error) {
	requests, err := s.repo.FindAllRequests(ctx, status)
	if err != nil {
		s.logger.Error("get all leave requests failed", zap.Error(err))
		return nil, err
	}
	return mapToAdminListResponse(requests), nil
}

// GetBalance answers the per-category remaining days for the current
// year, running the accrual check first so a user whose year row has not
// been materialized yet sees their entitlement on first read.
func (s *service) GetBalance(ctx context.Context, userID string) (BalanceResponse, error) {
	year := time.Now().UTC().Year()
	cacheKey := balanceCacheKey(userID, year)

	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var resp BalanceResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return resp, nil
			}
		}
	}

	v, err, _ := s.sf.Do(cacheKey, func() (interface{}, error) {
		s.EnsureCurrentYearBalance(ctx, userID)

		b, err := s.repo.FindBalance(ctx, userID, year)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Valid state: nothing accrued yet (e.g. tenure < 1 year).
				return fallbackBalance(), nil
			}
			s.logger.Error("get balance failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			return BalanceResponse{}, err
		}

		resp := mapBalanceToResponse(*b)

		if s.rdb != nil {
			if jsonData, err := json.Marshal(resp); err == nil {
				s.rdb.Set(ctx, cacheKey, jsonData, balanceCacheTTL)
			}
		}

		return resp, nil
	})

	if err != nil {
		return BalanceResponse{}, err
	}

	return v.(BalanceResponse), nil
}

// EnsureCurrentYearBalance lazily materializes the (user, current year)
// balance row from tenure. It degrades to a no-op on any failure: callers
// must tolerate the row still being absent afterwards.
func (s *service) EnsureCurrentYearBalance(ctx context.Context, userID string) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		s.logger.Warn("accrual skipped, invalid user id", zap.String("user_id", userID))
		return
	}

	startDate, err := s.users.GetStartDate(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("accrual start date lookup failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
		return
	}
	if startDate == nil {
		s.logger.Debug("accrual skipped, no start date", zap.String("user_id", userID))
		return
	}

	// Same clock as DecideRequest so accrual and deduction target the
	// same year row around New Year.
	now := time.Now().UTC()
	entitlement := EntitlementForTenure(TenureYears(*startDate, now))
	if entitlement == 0 {
		return
	}

	_, err = s.repo.FindBalance(ctx, userID, now.Year())
	if err == nil {
		// Row already exists; no mid-year top-up.
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("accrual balance lookup failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return
	}

	b := newYearBalance(userUUID, now.Year(), entitlement)
	if err := s.repo.CreateBalance(ctx, b); err != nil {
		if isDuplicateBalance(err) {
			// Lost the insert race to a concurrent check; the row exists.
			return
		}
		s.logger.Error("accrual balance insert failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("leave balance accrued",
		zap.String("user_id", userID),
		zap.Int("year", now.Year()),
		zap.Int("annual_leave", entitlement),
	)
}

// DecideRequest transitions a pending request to approved or rejected.
// The pending check, the status write, the balance deduction and the
// outbox record run in one transaction with the request row locked, so
// two concurrent decisions cannot both pass the check.
func (s *service) DecideRequest(ctx context.Context, requestID, adminID string, req DecideLeaveRequest) (LeaveRequestResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	approved := req.Approved != nil && *req.Approved

	s.logger.Debug("decide leave request",
		zap.String("request_id", rid),
		zap.String("leave_id", requestID),
		zap.String("admin_id", adminID),
		zap.Bool("approved", approved),
	)

	if _, err := uuid.Parse(requestID); err != nil {
		return LeaveRequestResponse{}, leaveerrors.ErrInvalidRequestID
	}
	adminUUID, err := uuid.Parse(adminID)
	if err != nil {
		return LeaveRequestResponse{}, leaveerrors.ErrInvalidAdminID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("decide leave begin tx failed", zap.Error(err))
		return LeaveRequestResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	l, err := qtx.FindRequestForUpdate(ctx, requestID)
	if err != nil {
		return LeaveRequestResponse{}, mapRepositoryError(err)
	}
	if l.Status != StatusPending {
		s.logger.Warn("decide leave request already processed",
			zap.String("leave_id", requestID),
			zap.String("status", l.Status),
		)
		return LeaveRequestResponse{}, leaveerrors.ErrAlreadyProcessed
	}

	now := time.Now().UTC()
	if approved {
		l.Status = StatusApproved
	} else {
		l.Status = StatusRejected
	}
	l.ApprovedBy = &adminUUID
	l.ApprovedAt = &now
	if req.Reason != "" {
		reason := req.Reason
		l.RejectionReason = &reason
	}

	if err := qtx.UpdateRequest(ctx, l); err != nil {
		s.logger.Error("decide leave persist failed",
			zap.String("leave_id", requestID),
			zap.Error(err),
		)
		return LeaveRequestResponse{}, err
	}

	year := now.Year()
	if approved {
		if err := s.deductBalance(ctx, qtx, l, year); err != nil {
			return LeaveRequestResponse{}, err
		}
	}

	if s.outbox != nil {
		event := events.LeaveDecidedEvent{
			EventType:  "leave_" + l.Status,
			RequestID:  rid,
			LeaveID:    l.ID.String(),
			UserID:     l.UserID.String(),
			LeaveType:  l.LeaveType,
			TotalDays:  l.TotalDays,
			Status:     l.Status,
			DecidedBy:  adminID,
			OccurredAt: now,
		}
		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.Error("marshal leave decided event failed", zap.Error(err))
			return LeaveRequestResponse{}, err
		}

		outboxRepo := s.outbox.WithTx(tx)
		if err := outboxRepo.Create(ctx, kafka.OutboxEvent{
			ID:            uuid.NewString(),
			RequestID:     rid,
			AggregateType: "leave_request",
			AggregateID:   l.ID.String(),
			EventType:     event.EventType,
			Topic:         events.LeaveDecidedTopic,
			Payload:       payload,
			Status:        kafka.OutboxStatusPending,
		}); err != nil {
			s.logger.Error("decide leave outbox persist failed",
				zap.String("leave_id", requestID),
				zap.Error(err),
			)
			return LeaveRequestResponse{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("decide leave commit failed",
			zap.String("leave_id", requestID),
			zap.Error(err),
		)
		return LeaveRequestResponse{}, err
	}

	if approved && s.rdb != nil {
		cacheKey := balanceCacheKey(l.UserID.String(), year)
		if err := s.rdb.Del(ctx, cacheKey).Err(); err != nil {
			s.logger.Error("failed to invalidate balance cache",
				zap.String("key", cacheKey),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("decide leave request success",
		zap.String("request_id", rid),
		zap.String("leave_id", requestID),
		zap.String("status", l.Status),
	)

	return mapToResponse(*l), nil
}

func (s *service) deductBalance(ctx context.Context, qtx Repository, l *LeaveRequest, year int) error {
	column, ok := balanceColumns[l.LeaveType]
	if !ok {
		// Unknown category tag: the transition stands, no balance moves.
		s.logger.Warn("unknown leave category, balance untouched",
			zap.String("leave_id", l.ID.String()),
			zap.String("leave_type", l.LeaveType),
		)
		return nil
	}

	days := DeductionDays(l.TotalDays)
	if err := qtx.DeductBalance(ctx, l.UserID.String(), year, column, days); err != nil {
		s.logger.Error("balance deduction failed",
			zap.String("leave_id", l.ID.String()),
			zap.String("column", column),
			zap.Int("days", days),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("balance deducted",
		zap.String("user_id", l.UserID.String()),
		zap.String("column", column),
		zap.Int("days", days),
	)
	return nil
}

var leaveDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04",
}

func parseLeaveDate(v string) (time.Time, error) {
	for _, layout := range leaveDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, leaveerrors.ErrInvalidDateFormat
}

func mapToResponse(l LeaveRequest) LeaveRequestResponse {
	resp := LeaveRequestResponse{
		ID:        l.ID.String(),
		UserID:    l.UserID.String(),
		LeaveType: l.LeaveType,
		StartDate: l.StartDate.Format("2006-01-02 15:04"),
		EndDate:   l.EndDate.Format("2006-01-02 15:04"),
		TotalDays: l.TotalDays,
		Reason:    l.Reason,
		Status:    l.Status,
	}
	if l.ApprovedBy != nil {
		v := l.ApprovedBy.String()
		resp.ApprovedBy = &v
	}
	if l.ApprovedAt != nil {
		v := l.ApprovedAt.Format(time.RFC3339)
		resp.ApprovedAt = &v
	}
	resp.RejectionReason = l.RejectionReason
	return resp
}

func mapToListResponse(requests []LeaveRequest) []LeaveRequestResponse {
	resp := make([]LeaveRequestResponse, len(requests))
	for i, l := range requests {
		resp[i] = mapToResponse(l)
	}
	return resp
}

func mapToAdminResponse(l LeaveRequest) AdminLeaveRequestResponse {
	resp := AdminLeaveRequestResponse{
		LeaveRequestResponse: mapToResponse(l),
	}
	if l.User != nil {
		resp.FullName = l.User.FullName
		resp.Avatar = l.User.Avatar
		// The admin dashboard shows the requester inline with the reason.
		resp.Reason = l.User.FullName + " | " + l.Reason
	}
	return resp
}

func mapToAdminListResponse(requests []LeaveRequest) []AdminLeaveRequestResponse {
	resp := make([]AdminLeaveRequestResponse, len(requests))
	for i, l := range requests {
		resp[i] = mapToAdminResponse(l)
	}
	return resp
}

func mapBalanceToResponse(b LeaveBalance) BalanceResponse {
	return BalanceResponse{
		Annual:    b.AnnualLeave,
		Sick:      b.SickLeave,
		Personal:  b.PersonalLeave,
		Paternity: b.PaternityLeave,
		Maternity: b.MaternityLeave,
		Marriage:  b.MarriageLeave,
		Death:     b.DeathLeave,
	}
}
