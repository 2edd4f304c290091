package idgen

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/procurebot/procurement-backend/pkg/types"
)

// Generator hands out snowflake ids for primary keys.
type Generator interface {
	Next() types.ID
}

type Node struct {
	node *snowflake.Node
}

// NewNode creates a generator bound to the snowflake node number (0-1023).
func NewNode(nodeID int64) (*Node, error) {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("init snowflake node %d: %w", nodeID, err)
	}
	return &Node{node: n}, nil
}

func (n *Node) Next() types.ID {
	return types.ID(n.node.Generate().Int64())
}

var (
	defaultOnce sync.Once
	defaultNode *Node
)

// Default returns the process-wide generator on node 1.
func Default() *Node {
	defaultOnce.Do(func() {
		n, err := NewNode(1)
		if err != nil {
			panic(err)
		}
		defaultNode = n
	})
	return defaultNode
}

// New returns the next id from the default node.
func New() types.ID {
	return Default().Next()
}
