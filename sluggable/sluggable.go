package sluggable

import (
	stderrors "errors"
	"strings"

	"github.com/aisgo/gorm-behaviors/errors"

	"github.com/gosimple/slug"
)

/* ========================================================================
 * Sluggable - URL 友好标识
 * ========================================================================
 * 职责: 插入 / 更新前根据源字段生成 slug，可选保证唯一
 * 映射: 模型必须映射 slug 列，推荐嵌入 SlugFields
 * ======================================================================== */

// Name 行为名
const Name = "sluggable"

// Column slug 列名
const Column = "slug"

// DefaultDelimiter 默认分隔符
const DefaultDelimiter = "-"

var (
	// ErrNoSluggableFields 所有源字段都为空
	ErrNoSluggableFields = stderrors.New("sluggable expects at least one non-empty source field")
	// ErrSlugExhausted 在最大尝试次数内未找到唯一 slug
	ErrSlugExhausted = stderrors.New("unique slug attempts exhausted")
)

// Sluggable 需要生成 slug 的实体
type Sluggable interface {
	GetSlug() string
	SetSlug(s string)
	// SluggableFields 返回参与生成的源字段值，按顺序拼接
	SluggableFields() []string
}

// Delimited 自定义分隔符
type Delimited interface {
	SlugDelimiter() string
}

// Regenerating 控制已有 slug 时是否在更新中重新生成，默认 true
type Regenerating interface {
	ShouldRegenerateSlugOnUpdate() bool
}

// Unique 控制是否保证 slug 唯一，默认 false
type Unique interface {
	ShouldGenerateUniqueSlugs() bool
}

// SlugFields 可嵌入的 slug 列
type SlugFields struct {
	Slug string `gorm:"column:slug;size:255;index" json:"slug"`
}

// GetSlug 实现 Sluggable
func (f *SlugFields) GetSlug() string { return f.Slug }

// SetSlug 实现 Sluggable
func (f *SlugFields) SetSlug(s string) { f.Slug = s }

func delimiterOf(e Sluggable, fallback string) string {
	if d, ok := e.(Delimited); ok && d.SlugDelimiter() != "" {
		return d.SlugDelimiter()
	}
	return fallback
}

func shouldRegenerate(e Sluggable) bool {
	if r, ok := e.(Regenerating); ok {
		return r.ShouldRegenerateSlugOnUpdate()
	}
	return true
}

func shouldBeUnique(e Sluggable) bool {
	if u, ok := e.(Unique); ok {
		return u.ShouldGenerateUniqueSlugs()
	}
	return false
}

// GenerateSlug 根据源字段生成 slug 并写入实体
// 已有 slug 且不允许重新生成时保持不变
func GenerateSlug(e Sluggable) error {
	return generateSlug(e, DefaultDelimiter)
}

func generateSlug(e Sluggable, delimiter string) error {
	if e.GetSlug() != "" && !shouldRegenerate(e) {
		return nil
	}

	value, err := Slugify(e.SluggableFields(), delimiterOf(e, delimiter))
	if err != nil {
		return err
	}
	e.SetSlug(value)
	return nil
}

// Slugify 拼接非空值，转写为 ASCII 小写，并用 delimiter 连接单词
func Slugify(values []string, delimiter string) (string, error) {
	usable := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			usable = append(usable, v)
		}
	}
	if len(usable) == 0 {
		return "", errors.Wrap(errors.ErrCodeSluggable, "generate slug", ErrNoSluggableFields)
	}

	s := slug.Make(strings.Join(usable, " "))
	if s == "" {
		return "", errors.Wrap(errors.ErrCodeSluggable, "generate slug", ErrNoSluggableFields)
	}
	if delimiter != DefaultDelimiter {
		s = strings.ReplaceAll(s, DefaultDelimiter, delimiter)
	}
	return s, nil
}
