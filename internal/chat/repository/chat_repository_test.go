package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"collegovibe/internal/common"
	"collegovibe/internal/dbmysql"
)

const conversationQuery = "SELECT \\* FROM `messages` WHERE .+ ORDER BY created_at ASC,id ASC"

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
	}

	return gormDB, mock, cleanup
}

func TestChatRepository_Save(t *testing.T) {
	sentAt := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		message     *dbmysql.Message
		mockSetup   func(sqlmock.Sqlmock)
		expectedID  uint
		expectError error
	}{
		{
			name:    "successful save",
			message: &dbmysql.Message{Sender: "alice", Receiver: "bob", Text: "hey", CreatedAt: sentAt},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(
					"INSERT INTO `messages` (`sender`,`receiver`,`text`,`created_at`) VALUES (?,?,?,?)")).
					WithArgs("alice", "bob", "hey", sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(7, 1))
				mock.ExpectCommit()
			},
			expectedID: 7,
		},
		{
			name:    "database error",
			message: &dbmysql.Message{Sender: "alice", Receiver: "bob", Text: "hey", CreatedAt: sentAt},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `messages`")).
					WillReturnError(assert.AnError)
				mock.ExpectRollback()
			},
			expectError: common.ErrTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, cleanup := setupTestDB(t)
			defer cleanup()

			tt.mockSetup(mock)

			repo := NewChatRepository(db)
			err := repo.Save(context.Background(), tt.message)

			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.ErrorIs(t, err, assert.AnError)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedID, tt.message.ID)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestChatRepository_FetchConversation(t *testing.T) {
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	columns := []string{"id", "sender", "receiver", "text", "created_at"}

	tests := []struct {
		name          string
		mockSetup     func(sqlmock.Sqlmock)
		expectedTexts []string
		expectError   bool
	}{
		{
			name: "both directions in order",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(columns).
					AddRow(1, "alice", "bob", "First", base).
					AddRow(2, "bob", "alice", "Second", base.Add(10*time.Minute)).
					AddRow(3, "alice", "bob", "Third", base.Add(10*time.Minute))
				mock.ExpectQuery(conversationQuery).
					WithArgs("alice", "bob", "bob", "alice").
					WillReturnRows(rows)
			},
			expectedTexts: []string{"First", "Second", "Third"},
		},
		{
			name: "empty conversation",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(conversationQuery).
					WithArgs("alice", "bob", "bob", "alice").
					WillReturnRows(sqlmock.NewRows(columns))
			},
			expectedTexts: []string{},
		},
		{
			name: "database error",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(conversationQuery).WillReturnError(assert.AnError)
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, cleanup := setupTestDB(t)
			defer cleanup()

			tt.mockSetup(mock)

			repo := NewChatRepository(db)
			messages, err := repo.FetchConversation(context.Background(), "alice", "bob")

			if tt.expectError {
				assert.ErrorIs(t, err, common.ErrTransient)
				assert.Nil(t, messages)
			} else {
				require.NoError(t, err)
				texts := make([]string, 0, len(messages))
				for _, m := range messages {
					texts = append(texts, m.Text)
				}
				assert.Equal(t, tt.expectedTexts, texts)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
