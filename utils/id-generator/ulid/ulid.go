package ulid

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

/* ========================================================================
 * ULID Generator - ULID 生成器
 * ========================================================================
 * 职责: 生成按时间排序的 128 位标识，并以 UUID 形式写入 uuid 列
 * ID 结构:
 *   - 48 位时间戳（毫秒级）
 *   - 80 位随机数（加密安全，同一毫秒内单调递增）
 * ======================================================================== */

// Generator ULID 生成器
// Monotonic 熵源不是并发安全的，需要配合互斥锁使用
type Generator struct {
	entropy io.Reader
	mu      sync.Mutex
}

// NewGenerator 创建新的 ULID 生成器
// entropy 传 nil 则使用 crypto/rand.Reader
func NewGenerator(entropy io.Reader) *Generator {
	if entropy == nil {
		entropy = rand.Reader
	}
	if _, ok := entropy.(ulid.MonotonicEntropy); !ok {
		entropy = ulid.Monotonic(entropy, 0)
	}
	return &Generator{entropy: entropy}
}

// Generate 生成 ULID
func (g *Generator) Generate() (ulid.ULID, error) {
	return g.GenerateWithTime(time.Now())
}

// GenerateWithTime 使用指定时间生成 ULID
func (g *Generator) GenerateWithTime(t time.Time) (ulid.ULID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.New(ulid.Timestamp(t), g.entropy)
}

// NewUUID 生成 ULID 并转换为 UUID
func (g *Generator) NewUUID() (uuid.UUID, error) {
	id, err := g.Generate()
	if err != nil {
		return uuid.Nil, err
	}
	return ToUUID(id), nil
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

func global() *Generator {
	once.Do(func() { defaultGenerator = NewGenerator(nil) })
	return defaultGenerator
}

// Generate 使用全局生成器生成 ULID，熵源耗尽时 panic
func Generate() ulid.ULID {
	id, err := global().Generate()
	if err != nil {
		panic(err)
	}
	return id
}

// NewUUID 使用全局生成器生成 UUID 形式的 ULID
func NewUUID() (uuid.UUID, error) {
	return global().NewUUID()
}

// Time 提取 ULID 中的时间戳
func Time(id ulid.ULID) time.Time {
	return ulid.Time(id.Time())
}

// ToUUID 将 ULID 转换为 UUID，字节序保持不变
func ToUUID(id ulid.ULID) uuid.UUID {
	var u uuid.UUID
	copy(u[:], id[:])
	return u
}

// FromUUID 将 UUID 转换为 ULID
// 非 ULID 来源的 UUID 不包含有效时间戳
func FromUUID(u uuid.UUID) ulid.ULID {
	var id ulid.ULID
	copy(id[:], u[:])
	return id
}
