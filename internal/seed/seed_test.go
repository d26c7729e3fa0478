package seed

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	approvalruledomain "github.com/smallbiznis/sellerflow/internal/approvalrule/domain"
	"github.com/smallbiznis/sellerflow/internal/authorization"
	"github.com/smallbiznis/sellerflow/internal/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEnsureDefaultsSeedsOnce(t *testing.T) {
	db := dbtest.Open(t)

	require.NoError(t, EnsureDefaults(db, testNode(t), zap.NewNop()))
	require.NoError(t, EnsureDefaults(db, testNode(t), zap.NewNop()))

	var rules []approvalruledomain.ApprovalRule
	require.NoError(t, db.WithContext(context.Background()).Order("code").Find(&rules).Error)
	require.Len(t, rules, 3)
	assert.Equal(t, "margem-baixa", rules[0].Code)

	var steps []approvalruledomain.ApprovalRuleStep
	require.NoError(t, db.Order("step_order").Find(&steps).Error)
	require.Len(t, steps, 2)
	assert.Equal(t, authorization.RoleDiretor, steps[1].ApproverRole)
}

func TestDefaultRulesCoverEveryBandBelowGreen(t *testing.T) {
	for _, margin := range []string{"-20", "0", "4.99", "5", "9.99"} {
		m := decimal.RequireFromString(margin)
		matched := 0
		for _, r := range defaultRules {
			rule := approvalruledomain.ApprovalRule{MarginMin: r.marginMin, MarginMax: r.marginMax}
			if rule.Matches(m) {
				matched++
			}
		}
		assert.Equal(t, 1, matched, "margin %s", margin)
	}
}

func TestEnsureDefaultsKeepsExistingRules(t *testing.T) {
	db := dbtest.Open(t)
	require.NoError(t, db.Exec(`INSERT INTO approval_rules (id, code, name, approver_role, sla_hours, priority, is_active, created_at, updated_at)
		VALUES (1, 'custom', 'Custom', 'admin', 4, 'low', true, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`).Error)

	require.NoError(t, EnsureDefaults(db, testNode(t), zap.NewNop()))

	var count int64
	require.NoError(t, db.Model(&approvalruledomain.ApprovalRule{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func testNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	return node
}
