package dbtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertRule(t *testing.T, code string) {
	t.Helper()
	db := Open(t)
	require.NoError(t, db.Exec(`INSERT INTO approval_rules (id, code, name, approver_role, sla_hours, priority, is_active, created_at, updated_at)
		VALUES (1, ?, 'Rule', 'gerente', 8, 'high', true, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, code).Error)

	var count int64
	require.NoError(t, db.Table("approval_rules").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

// Subtests sharing a name stand in for -count reruns of the same test.
func TestOpenIsFreshForEveryRunOfTheSameTest(t *testing.T) {
	for range 3 {
		t.Run("same_name", func(t *testing.T) {
			insertRule(t, "margem-baixa")
		})
	}
}

func TestOpenCallsDoNotShareRows(t *testing.T) {
	first := Open(t)
	second := Open(t)

	require.NoError(t, first.Exec(`INSERT INTO approval_rules (id, code, name, approver_role, sla_hours, priority, is_active, created_at, updated_at)
		VALUES (1, 'only-here', 'Rule', 'gerente', 8, 'high', true, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`).Error)

	var count int64
	require.NoError(t, second.Table("approval_rules").Count(&count).Error)
	assert.Zero(t, count)
}
