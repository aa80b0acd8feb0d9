package engine

import (
	"context"
	"fmt"

	"library-backend/internal/model"
)

// Catalog writes also go through the engine so copy counts start out
// consistent and stay owned by one writer.

// CreateBook registers a new title with the given number of copies, all
// initially available.
func (e *Engine) CreateBook(ctx context.Context, title, author, isbn string, copies int) (*model.Book, error) {
	book := model.Book{
		Uid:             newUID(),
		Title:           title,
		Author:          author,
		ISBN:            isbn,
		TotalCopies:     copies,
		AvailableCopies: copies,
	}
	if err := e.db.WithContext(ctx).Create(&book).Error; err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}
	return &book, nil
}

// CreateReader registers a new library member.
func (e *Engine) CreateReader(ctx context.Context, name, email string) (*model.Reader, error) {
	reader := model.Reader{
		Uid:   newUID(),
		Name:  name,
		Email: email,
	}
	if err := e.db.WithContext(ctx).Create(&reader).Error; err != nil {
		return nil, fmt.Errorf("create reader: %w", err)
	}
	return &reader, nil
}

// UnfreezeBook clears the invariant-breach flag after operator review.
func (e *Engine) UnfreezeBook(ctx context.Context, bookID int64) error {
	res := e.db.WithContext(ctx).Model(&model.Book{}).
		Where("id = ?", bookID).
		UpdateColumn("frozen", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}
