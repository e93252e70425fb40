package sluggable

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aisgo/gorm-behaviors/lifecycle"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UniquenessChecker 判断 slug 在持久化存储中是否可用
// tx 为当前语句所在的连接，查询应在同一事务内执行
type UniquenessChecker interface {
	IsSlugUnique(tx *gorm.DB, entity Sluggable, slug string) (bool, error)
}

// DBChecker 在实体所在表中查找同名 slug
// 已软删除的行同样占用 slug，实体自身的主键被排除
type DBChecker struct{}

// IsSlugUnique 实现 UniquenessChecker
func (DBChecker) IsSlugUnique(tx *gorm.DB, entity Sluggable, slug string) (bool, error) {
	stmt := tx.Statement
	q := tx.Session(&gorm.Session{NewDB: true}).
		Unscoped().
		Table(stmt.Table).
		Where(clause.Eq{Column: clause.Column{Name: Column}, Value: slug})

	if pk, ok := lifecycle.PrimaryKey(tx, entity); ok {
		for i, f := range stmt.Schema.PrimaryFields {
			q = q.Where(clause.Neq{Column: clause.Column{Name: f.DBName}, Value: pk[i]})
		}
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count == 0, nil
}

// Claimer 跨实例占位，*redis.Client 满足该接口
type Claimer interface {
	Claim(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, owner string) (bool, error)
}

// Reserver 在数据库检查之外，为 slug 候选值做短期占位
// 防止多个实例在各自事务中同时选中同一个值
type Reserver struct {
	claimer Claimer
	prefix  string
	ttl     time.Duration
}

// NewReserver 创建占位器，ttl 应覆盖一次写事务的耗时
func NewReserver(claimer Claimer, prefix string, ttl time.Duration) *Reserver {
	if prefix == "" {
		prefix = "slug"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Reserver{claimer: claimer, prefix: prefix, ttl: ttl}
}

func (r *Reserver) key(table, slug string) string {
	return r.prefix + ":" + table + ":" + slug
}

// Reserve 以 owner 身份占用 table 下的 slug
func (r *Reserver) Reserve(ctx context.Context, table, slug, owner string) (bool, error) {
	return r.claimer.Claim(ctx, r.key(table, slug), owner, r.ttl)
}

// Release 释放占位
func (r *Reserver) Release(ctx context.Context, table, slug, owner string) error {
	_, err := r.claimer.Release(ctx, r.key(table, slug), owner)
	return err
}

// ownerOf 已持久化实体按主键标识，新实体使用随机标识
func ownerOf(db *gorm.DB, entity Sluggable) string {
	if pk, ok := lifecycle.PrimaryKey(db, entity); ok {
		parts := make([]string, len(pk))
		for i, v := range pk {
			parts[i] = fmt.Sprint(v)
		}
		return db.Statement.Table + "#" + strings.Join(parts, ",")
	}
	return "new#" + uuid.NewString()
}

func candidate(base string, i int) string {
	if i == 0 {
		return base
	}
	return base + "-" + strconv.Itoa(i)
}
