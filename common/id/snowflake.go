package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID.
// Replicas sharing an audit table must use distinct node IDs.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a time-ordered int64 ID for exchange log entries.
// Falls back to node 0 when Init was never called (CLI and tests).
func New() int64 {
	_ = Init(0)
	return node.Generate().Int64()
}
