package model

import "time"

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanActive   LoanStatus = "active"
	LoanOverdue  LoanStatus = "overdue"
	LoanReturned LoanStatus = "returned"
)

// ReturnCondition describes the state of the copy when it is handed back.
type ReturnCondition string

const (
	ConditionGood    ReturnCondition = "good"
	ConditionDamaged ReturnCondition = "damaged"
	ConditionLost    ReturnCondition = "lost"
)

// ValidReturnConditions maps the accepted return-condition values.
var ValidReturnConditions = map[ReturnCondition]bool{
	ConditionGood:    true,
	ConditionDamaged: true,
	ConditionLost:    true,
}

// Loan records one copy of a book being held by one reader for a bounded
// period. Loans are never deleted; returned loans stay as history.
type Loan struct {
	ID              int64           `gorm:"primaryKey" json:"id"`
	Uid             string          `gorm:"uniqueIndex;size:36;not null" json:"uid"`
	BookID          int64           `gorm:"index;not null" json:"bookId"`
	ReaderID        int64           `gorm:"index;not null" json:"readerId"`
	LoanDate        time.Time       `gorm:"not null" json:"loanDate"`
	DueDate         time.Time       `gorm:"not null" json:"dueDate"`
	ReturnDate      *time.Time      `json:"returnDate,omitempty"`
	ReturnCondition ReturnCondition `gorm:"size:16" json:"returnCondition,omitempty"`
	Status          LoanStatus      `gorm:"size:16;index;not null" json:"status"`
	RenewalCount    int             `gorm:"not null" json:"renewalCount"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`

	// Associations
	Book   Book   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Reader Reader `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
