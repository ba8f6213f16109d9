package dbmysql

import (
	"time"
)

// Message is one direct message between two handles. Rows are never updated.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Sender    string    `gorm:"size:30;not null;index:idx_messages_pair,priority:1" json:"sender"`
	Receiver  string    `gorm:"size:30;not null;index:idx_messages_pair,priority:2" json:"receiver"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
