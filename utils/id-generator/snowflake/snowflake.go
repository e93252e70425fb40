package snowflake

import (
	"os"
	"strconv"
	"sync"

	"github.com/aisgo/gorm-behaviors/errors"

	"github.com/bwmarrin/snowflake"
)

/* ========================================================================
 * Snowflake ID Generator - 雪花算法 ID 生成器
 * ========================================================================
 * 职责: 为 repository.BaseModel 生成 64 位趋势递增主键
 * ID 结构: 41 位时间戳 / 10 位节点 / 12 位序列号
 * 环境变量: SNOWFLAKE_NODE_ID 设置节点 ID (0-1023)
 * ======================================================================== */

const (
	// MaxNodeID 最大节点 ID (10 位)
	MaxNodeID = 1023
	// DefaultNodeID 默认节点 ID
	DefaultNodeID = 0
	// EnvNodeID 环境变量名
	EnvNodeID = "SNOWFLAKE_NODE_ID"
)

// Generator ID 生成器
type Generator struct {
	node *snowflake.Node
}

// NewGenerator 创建新的 ID 生成器
func NewGenerator(nodeID int64) (*Generator, error) {
	if nodeID < 0 || nodeID > MaxNodeID {
		return nil, errors.Newf(errors.ErrCodeIdentifier, "snowflake node id %d out of range [0, %d]", nodeID, MaxNodeID)
	}

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIdentifier, "create snowflake node", err)
	}
	return &Generator{node: node}, nil
}

// Generate 生成雪花 ID
func (g *Generator) Generate() int64 {
	return g.node.Generate().Int64()
}

var (
	globalNode *Generator
	once       sync.Once
)

// Generate 使用全局节点生成雪花 ID
// 多实例部署时必须为每个实例配置不同的 SNOWFLAKE_NODE_ID
func Generate() int64 {
	once.Do(func() {
		gen, err := NewGenerator(getEnvNodeID())
		if err != nil {
			panic(err.Error())
		}
		globalNode = gen
	})
	return globalNode.Generate()
}

// Parse 解析雪花 ID
// 返回: 时间戳（毫秒）、节点 ID
func Parse(id int64) (timestamp int64, nodeID int64) {
	sid := snowflake.ID(id)
	return sid.Time(), sid.Node()
}

// getEnvNodeID 从环境变量获取节点 ID，非法值回退到默认值
func getEnvNodeID() int64 {
	val := os.Getenv(EnvNodeID)
	if val == "" {
		return DefaultNodeID
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil || id < 0 || id > MaxNodeID {
		return DefaultNodeID
	}
	return id
}
