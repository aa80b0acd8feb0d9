package engine

import (
	"fmt"

	"gorm.io/gorm"

	"library-backend/internal/model"
)

// Copy inventory primitives. These are the only code paths that touch a
// book's copy counts, and they only run inside a per-title guarded
// transaction. The WHERE clauses double as the invariant guards: a zero
// rows-affected result means the caller's accounting is wrong.

// tryAllocate takes one available copy off the shelf. Returns false when
// no copy is free; the caller then enqueues instead of waiting.
func tryAllocate(tx *gorm.DB, bookID int64) (bool, error) {
	res := tx.Model(&model.Book{}).
		Where("id = ? AND available_copies > 0", bookID).
		UpdateColumn("available_copies", gorm.Expr("available_copies - 1"))
	if res.Error != nil {
		return false, fmt.Errorf("allocate copy of book %d: %w", bookID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// release puts a copy back into general circulation. Incrementing past
// TotalCopies means a copy was double-released, which is a fatal
// accounting breach, not a recoverable condition.
func release(tx *gorm.DB, bookID int64) error {
	res := tx.Model(&model.Book{}).
		Where("id = ? AND available_copies < total_copies", bookID).
		UpdateColumn("available_copies", gorm.Expr("available_copies + 1"))
	if res.Error != nil {
		return fmt.Errorf("release copy of book %d: %w", bookID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &InvariantBreachError{
			BookID: bookID,
			Detail: "release would raise available above total",
		}
	}
	return nil
}

// removeCopy permanently removes a lost copy from circulation. The copy
// was on loan and so never counted as available; only the total shrinks.
func removeCopy(tx *gorm.DB, bookID int64) error {
	res := tx.Model(&model.Book{}).
		Where("id = ? AND total_copies > 0", bookID).
		UpdateColumn("total_copies", gorm.Expr("total_copies - 1"))
	if res.Error != nil {
		return fmt.Errorf("remove lost copy of book %d: %w", bookID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &InvariantBreachError{
			BookID: bookID,
			Detail: "lost-copy removal on a title with zero total copies",
		}
	}
	return nil
}
