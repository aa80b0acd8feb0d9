package model

import "time"

// Book represents a catalog title together with its physical copy counts.
// AvailableCopies is only ever mutated by the lending engine inside a
// per-title guarded transaction; 0 <= AvailableCopies <= TotalCopies.
type Book struct {
	ID              int64  `gorm:"primaryKey" json:"id"`
	Uid             string `gorm:"uniqueIndex;size:36;not null" json:"uid"`
	Title           string `gorm:"size:256;not null" json:"title"`
	Author          string `gorm:"size:256" json:"author"`
	ISBN            string `gorm:"size:32" json:"isbn"`
	TotalCopies     int    `gorm:"not null" json:"totalCopies"`
	AvailableCopies int    `gorm:"not null" json:"availableCopies"`
	// Frozen is set when the engine detects a copy-accounting breach for
	// this title. Writes are rejected until an operator clears it.
	Frozen    bool      `gorm:"not null;default:false" json:"frozen"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
