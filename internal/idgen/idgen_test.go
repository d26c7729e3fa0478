package idgen

import (
	"testing"

	"github.com/smallbiznis/sellerflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNodeEmbedsNodeID(t *testing.T) {
	node, err := NewNode(config.Config{NodeID: 7})
	require.NoError(t, err)
	assert.EqualValues(t, 7, node.Generate().Node())
}

func TestNewNodeRejectsOutOfRange(t *testing.T) {
	_, err := NewNode(config.Config{NodeID: 4096})
	assert.Error(t, err)
}
