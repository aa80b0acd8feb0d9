package model

import "time"

// PenaltyCause identifies the event that produced a penalty. At most one
// penalty per (loan, cause) pair may exist; the unique index is what makes
// the maintenance sweep idempotent.
type PenaltyCause string

const (
	CauseOverdue PenaltyCause = "overdue"
	CauseDamaged PenaltyCause = "damaged"
	CauseLost    PenaltyCause = "lost"
)

// Penalty is a monetary charge attached to a loan. Immutable after
// creation except for the Paid flag.
type Penalty struct {
	ID          int64        `gorm:"primaryKey" json:"id"`
	Uid         string       `gorm:"uniqueIndex;size:36;not null" json:"uid"`
	LoanID      int64        `gorm:"not null;uniqueIndex:idx_penalty_loan_cause" json:"loanId"`
	Cause       PenaltyCause `gorm:"size:16;not null;uniqueIndex:idx_penalty_loan_cause" json:"cause"`
	AmountCents int64        `gorm:"not null" json:"amountCents"`
	DueDate     time.Time    `gorm:"not null" json:"dueDate"`
	Paid        bool         `gorm:"not null;default:false" json:"paid"`
	CreatedAt   time.Time    `json:"createdAt"`

	// Associations
	Loan Loan `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
