package store

import (
	"testing"

	"saas-starter/internal/testutil"

	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.NewDB(t)
}

func strPtr(s string) *string { return &s }
