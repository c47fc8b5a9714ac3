package db

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm sentinel", gorm.ErrDuplicatedKey, true},
		{"wrapped gorm sentinel", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), true},
		{"postgres message", errors.New(`ERROR: duplicate key value violates unique constraint "uniq_content_active_per_category" (SQLSTATE 23505)`), true},
		{"sqlite message", errors.New("constraint failed: UNIQUE constraint failed: content_records.category (2067)"), true},
		{"unrelated", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		if got := IsDuplicateKeyErr(tc.err); got != tc.want {
			t.Fatalf("%s: IsDuplicateKeyErr = %v, want %v", tc.name, got, tc.want)
		}
	}
}
