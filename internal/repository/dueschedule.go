package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/billcycle/billcycle/internal/domain/dueschedule"
	"github.com/billcycle/billcycle/internal/postgres"
	"github.com/billcycle/billcycle/internal/types"
)

type dueScheduleRepository struct {
	db     postgres.IClient
	params Params
}

func NewDueScheduleRepository(params Params) dueschedule.Repository {
	return &dueScheduleRepository{
		db:     params.DB,
		params: params,
	}
}

const dueScheduleColumns = `id, schedule_number, subscription_id, period_start, period_end,
	due_date, schedule_status, processed, invoice_id,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

const dueScheduleInsert = `
	INSERT INTO due_schedules (` + dueScheduleColumns + `)
	VALUES (:id, :schedule_number, :subscription_id, :period_start, :period_end,
		:due_date, :schedule_status, :processed, :invoice_id,
		:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by)`

func (r *dueScheduleRepository) Create(ctx context.Context, schedule *dueschedule.DueSchedule) error {
	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, dueScheduleInsert, schedule); err != nil {
		return dbError(err, "Failed to create due schedule")
	}
	return nil
}

func (r *dueScheduleRepository) CreateBulk(ctx context.Context, schedules []*dueschedule.DueSchedule) error {
	for _, schedule := range schedules {
		if _, err := r.db.Querier(ctx).NamedExecContext(ctx, dueScheduleInsert, schedule); err != nil {
			return dbError(err, "Failed to create due schedules")
		}
	}
	return nil
}

func (r *dueScheduleRepository) Get(ctx context.Context, id string) (*dueschedule.DueSchedule, error) {
	var schedule dueschedule.DueSchedule
	query := `SELECT ` + dueScheduleColumns + ` FROM due_schedules WHERE id = $1 AND status != 'deleted'`
	if err := r.db.Querier(ctx).GetContext(ctx, &schedule, query, id); err != nil {
		return nil, notFound(err, "due schedule", id)
	}
	return &schedule, nil
}

func (r *dueScheduleRepository) Update(ctx context.Context, schedule *dueschedule.DueSchedule) error {
	query := `
		UPDATE due_schedules SET
			period_start = :period_start,
			period_end = :period_end,
			due_date = :due_date,
			schedule_status = :schedule_status,
			processed = :processed,
			invoice_id = :invoice_id,
			status = :status,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id`

	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, query, schedule); err != nil {
		return dbError(err, "Failed to update due schedule")
	}
	return nil
}

func (r *dueScheduleRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE due_schedules SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.Querier(ctx).ExecContext(ctx, query, types.StatusDeleted, time.Now().UTC(), id); err != nil {
		return dbError(err, "Failed to delete due schedule")
	}
	return nil
}

func (r *dueScheduleRepository) List(ctx context.Context, filter *types.DueScheduleFilter) ([]*dueschedule.DueSchedule, error) {
	conditions := []string{"status != 'deleted'"}
	args := make([]interface{}, 0)

	if filter != nil {
		if filter.SubscriptionID != "" {
			args = append(args, filter.SubscriptionID)
			conditions = append(conditions, fmt.Sprintf("subscription_id = $%d", len(args)))
		}
		if len(filter.Statuses) > 0 {
			placeholders := make([]string, 0, len(filter.Statuses))
			for _, status := range filter.Statuses {
				args = append(args, status)
				placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
			}
			conditions = append(conditions, fmt.Sprintf("schedule_status IN (%s)", strings.Join(placeholders, ", ")))
		}
		if filter.DueBefore != nil {
			args = append(args, *filter.DueBefore)
			conditions = append(conditions, fmt.Sprintf("due_date <= $%d", len(args)))
		}
		if filter.Unprocessed {
			conditions = append(conditions, "processed = false")
		}
	}

	query := `SELECT ` + dueScheduleColumns + ` FROM due_schedules WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY subscription_id, period_start`

	schedules := make([]*dueschedule.DueSchedule, 0)
	if err := r.db.Querier(ctx).SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, dbError(err, "Failed to list due schedules")
	}
	return schedules, nil
}

func (r *dueScheduleRepository) ListBySubscription(ctx context.Context, subscriptionID string) ([]*dueschedule.DueSchedule, error) {
	return r.List(ctx, &types.DueScheduleFilter{SubscriptionID: subscriptionID})
}

func (r *dueScheduleRepository) ListDue(ctx context.Context, cutoff time.Time) ([]*dueschedule.DueSchedule, error) {
	return r.List(ctx, &types.DueScheduleFilter{
		Statuses:    []types.DueScheduleStatus{types.DueScheduleStatusActive},
		DueBefore:   &cutoff,
		Unprocessed: true,
	})
}

func (r *dueScheduleRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM due_schedules WHERE schedule_number = $1)`
	if err := r.db.Querier(ctx).GetContext(ctx, &exists, query, number); err != nil {
		return false, dbError(err, "Failed to check schedule number")
	}
	return exists, nil
}
