package uuidable

import (
	"strings"

	"github.com/aisgo/gorm-behaviors/errors"
	"github.com/aisgo/gorm-behaviors/utils/id-generator/ulid"

	"github.com/google/uuid"
)

// Generator 生成一个新的 UUID
type Generator func() (uuid.UUID, error)

// 支持的版本
const (
	VersionV4   = "v4"
	VersionV7   = "v7"
	VersionULID = "ulid"
)

// V4 随机 UUID
func V4() (uuid.UUID, error) { return uuid.NewRandom() }

// V7 按时间排序的 UUID
func V7() (uuid.UUID, error) { return uuid.NewV7() }

// ULID 以 UUID 形式保存的 ULID
func ULID() (uuid.UUID, error) { return ulid.NewUUID() }

// GeneratorFor 按配置名返回生成器，空值为 v4
func GeneratorFor(version string) (Generator, error) {
	switch strings.ToLower(version) {
	case "", VersionV4:
		return V4, nil
	case VersionV7:
		return V7, nil
	case VersionULID:
		return ULID, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidArgument, "unknown uuid version %q", version)
	}
}
