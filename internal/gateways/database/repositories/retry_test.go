package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNoRows(t *testing.T) {
	assert.True(t, isNoRows(sql.ErrNoRows))
	assert.True(t, isNoRows(fmt.Errorf("scan: %w", sql.ErrNoRows)))
	assert.False(t, isNoRows(errors.New("no such table: player_sync_records")))
	assert.False(t, isNoRows(nil))
}

func TestWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{name: "success", errs: []error{nil}, wantCalls: 1},
		{name: "busy then success", errs: []error{errors.New("SQLITE_BUSY"), nil}, wantCalls: 2},
		{name: "no rows is not retried", errs: []error{sql.ErrNoRows}, wantCalls: 1, wantErr: true},
		{
			name:      "gives up after max retries",
			errs:      []error{errors.New("database is locked")},
			wantCalls: defaultRetryConfig.maxRetries + 1,
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := withRetry(func() error {
				e := tt.errs[min(calls, len(tt.errs)-1)]
				calls++
				return e
			})
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}
