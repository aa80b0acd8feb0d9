package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"library-backend/internal/model"
)

// Penalty calculator. A penalty is created at most once per (loan, cause)
// pair; the unique index backs the check so concurrent sweeps cannot slip
// a duplicate through. Amounts come from the circulation policy.

func penaltyExists(tx *gorm.DB, loanID int64, cause model.PenaltyCause) (bool, error) {
	var count int64
	err := tx.Model(&model.Penalty{}).
		Where("loan_id = ? AND cause = ?", loanID, cause).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count penalties for loan %d: %w", loanID, err)
	}
	return count > 0, nil
}

func (e *Engine) createPenalty(tx *gorm.DB, loanID int64, cause model.PenaltyCause, amountCents int64, now time.Time) (*model.Penalty, error) {
	exists, err := penaltyExists(tx, loanID, cause)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicatePenalty
	}

	penalty := model.Penalty{
		Uid:         newUID(),
		LoanID:      loanID,
		Cause:       cause,
		AmountCents: amountCents,
		DueDate:     now.Add(e.policy.PenaltyDue()),
		Paid:        false,
	}
	if err := tx.Create(&penalty).Error; err != nil {
		return nil, fmt.Errorf("create %s penalty for loan %d: %w", cause, loanID, err)
	}
	return &penalty, nil
}

// chargeOverdue creates the overdue fine for a past-due loan: the daily
// rate times full days late, at least one day. The amount is fixed at the
// moment of the overdue transition and never grows afterwards.
func (e *Engine) chargeOverdue(tx *gorm.DB, loan *model.Loan, now time.Time) (*model.Penalty, error) {
	daysLate := int64(now.Sub(loan.DueDate).Hours() / 24)
	if daysLate < 1 {
		daysLate = 1
	}
	return e.createPenalty(tx, loan.ID, model.CauseOverdue, daysLate*e.policy.OverdueDailyFineCents, now)
}

// chargeDamageOrLoss creates the flat fine for a damaged or lost return.
func (e *Engine) chargeDamageOrLoss(tx *gorm.DB, loan *model.Loan, condition model.ReturnCondition, now time.Time) (*model.Penalty, error) {
	switch condition {
	case model.ConditionDamaged:
		return e.createPenalty(tx, loan.ID, model.CauseDamaged, e.policy.DamageFineCents, now)
	case model.ConditionLost:
		return e.createPenalty(tx, loan.ID, model.CauseLost, e.policy.LostReplacementFineCents, now)
	default:
		return nil, ErrInvalidReturnCondition
	}
}

// MarkPenaltyPaid settles a penalty. The paid flag is the only mutable
// field on a penalty and it only moves one way.
func (e *Engine) MarkPenaltyPaid(ctx context.Context, penaltyID int64) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var penalty model.Penalty
		if err := tx.First(&penalty, penaltyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPenaltyNotFound
			}
			return err
		}
		if penalty.Paid {
			return ErrPenaltyAlreadyPaid
		}
		return tx.Model(&penalty).UpdateColumn("paid", true).Error
	})
}
