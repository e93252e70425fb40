package sluggable

import (
	"github.com/aisgo/gorm-behaviors/errors"
	"github.com/aisgo/gorm-behaviors/lifecycle"
	"github.com/aisgo/gorm-behaviors/logger"
	"github.com/aisgo/gorm-behaviors/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultMaxAttempts 唯一 slug 的最大尝试次数
const DefaultMaxAttempts = 100

// Requirement slug 列映射检查
var Requirement = lifecycle.NewRequirement(Name, lifecycle.ModelImplements[Sluggable], Column)

// Option 插件选项
type Option func(*Plugin)

// WithChecker 替换数据库唯一性检查
func WithChecker(c UniquenessChecker) Option {
	return func(p *Plugin) {
		if c != nil {
			p.checker = c
		}
	}
}

// WithReserver 启用跨实例占位
func WithReserver(r *Reserver) Option {
	return func(p *Plugin) { p.reserver = r }
}

// WithMaxAttempts 设置最大尝试次数
func WithMaxAttempts(n int) Option {
	return func(p *Plugin) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithDelimiter 设置未实现 Delimited 的实体使用的分隔符
func WithDelimiter(d string) Option {
	return func(p *Plugin) {
		if d != "" {
			p.delimiter = d
		}
	}
}

// WithLogger 指定日志
func WithLogger(log *logger.Logger) Option {
	return func(p *Plugin) {
		if log != nil {
			p.log = log
		}
	}
}

// Plugin GORM 插件
type Plugin struct {
	checker     UniquenessChecker
	reserver    *Reserver
	maxAttempts int
	delimiter   string
	log         *logger.Logger
}

// New 创建插件
func New(opts ...Option) *Plugin {
	p := &Plugin{
		checker:     DBChecker{},
		maxAttempts: DefaultMaxAttempts,
		delimiter:   DefaultDelimiter,
		log:         logger.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name 实现 gorm.Plugin
func (p *Plugin) Name() string { return Name }

// Initialize 实现 gorm.Plugin
func (p *Plugin) Initialize(db *gorm.DB) error {
	match := lifecycle.ModelImplements[Sluggable]
	return lifecycle.Register(db, Name,
		lifecycle.Hook{Event: lifecycle.PrePersist, Match: match, Fn: p.prePersist},
		lifecycle.Hook{Event: lifecycle.PreUpdate, Match: match, Fn: p.preUpdate},
		lifecycle.Hook{Event: lifecycle.PersistFinished, Match: match, Fn: p.settle},
		lifecycle.Hook{Event: lifecycle.UpdateFinished, Match: match, Fn: p.settle},
	)
}

func (p *Plugin) prePersist(db *gorm.DB) {
	p.process(db, false)
}

// preUpdate 先把待更新的值写回实体，再按更新后的行生成
func (p *Plugin) preUpdate(db *gorm.DB) {
	lifecycle.ApplyPendingAssignments(db)
	if db.Error != nil {
		return
	}
	p.process(db, true)
}

type claim struct {
	slug  string
	owner string
}

const claimsKey = "behaviors:sluggable:claims"

func (p *Plugin) process(db *gorm.DB, updating bool) {
	if err := Requirement.Check(db.Statement.Schema); err != nil {
		_ = db.AddError(err)
		return
	}

	var entities []Sluggable
	for _, e := range lifecycle.Collect[Sluggable](db) {
		// 批量更新没有具体实体
		if updating {
			if _, ok := lifecycle.PrimaryKey(db, e); !ok {
				continue
			}
		}
		entities = append(entities, e)
	}

	for _, e := range entities {
		src := e
		if updating {
			// 源字段可能没有加载，按库中的行叠加本次写入的列计算
			row, err := lifecycle.CurrentRow(db, e)
			if err != nil {
				_ = db.AddError(errors.Wrapf(errors.ErrCodeSluggable, err, "load %s row", db.Statement.Table))
				return
			}
			if r, ok := row.(Sluggable); ok {
				src = r
			}
		}

		prev := src.GetSlug()
		if err := generateSlug(src, p.delimiter); err != nil {
			if updating && errors.Is(err, ErrNoSluggableFields) {
				continue
			}
			_ = db.AddError(err)
			return
		}
		next := src.GetSlug()
		if src != e {
			e.SetSlug(next)
		}
		if next != prev {
			lifecycle.PropertyChanged(db, e, Column, prev, next)
		}
	}

	var claims []claim
	defer func() { keepClaims(db, claims) }()

	// 按语句中的顺序处理，前面的实体优先保留原 slug
	for i, e := range entities {
		if !shouldBeUnique(e) || e.GetSlug() == "" {
			continue
		}

		unique, c, err := p.uniqueSlug(db, e, entities[:i])
		if c != nil {
			claims = append(claims, *c)
		}
		if err != nil {
			p.log.WithContext(db.Statement.Context).Warn("generate unique slug failed",
				zap.String("table", db.Statement.Table),
				zap.String("slug", e.GetSlug()),
				zap.Error(err))
			_ = db.AddError(err)
			return
		}
		lifecycle.Track(db, e, Column, func() { e.SetSlug(unique) })
	}
}

// uniqueSlug 依次尝试 slug、slug-1、slug-2…
// 候选值需要同时满足: 同批次中已确定的 slug 未使用、数据库中未被占用、占位成功
func (p *Plugin) uniqueSlug(db *gorm.DB, e Sluggable, settled []Sluggable) (string, *claim, error) {
	table := db.Statement.Table
	base := e.GetSlug()
	owner := ownerOf(db, e)

	for i := 0; i < p.maxAttempts; i++ {
		c := candidate(base, i)

		if takenBy(settled, c) {
			metrics.SlugCollisionTotal.WithLabelValues(table, "batch").Inc()
			continue
		}

		ok, err := p.checker.IsSlugUnique(db, e, c)
		if err != nil {
			return "", nil, errors.Wrapf(errors.ErrCodeSluggable, err, "check slug %q", c)
		}
		if !ok {
			metrics.SlugCollisionTotal.WithLabelValues(table, "database").Inc()
			continue
		}

		if p.reserver == nil {
			return c, nil, nil
		}
		ok, err = p.reserver.Reserve(db.Statement.Context, table, c, owner)
		if err != nil {
			return "", nil, errors.Wrapf(errors.ErrCodeSluggable, err, "reserve slug %q", c)
		}
		if !ok {
			metrics.SlugCollisionTotal.WithLabelValues(table, "reservation").Inc()
			continue
		}
		return c, &claim{slug: c, owner: owner}, nil
	}

	return "", nil, errors.Wrapf(errors.ErrCodeSluggable, ErrSlugExhausted,
		"slug %q after %d attempts", base, p.maxAttempts)
}

func takenBy(entities []Sluggable, slug string) bool {
	for _, o := range entities {
		if o.GetSlug() == slug {
			return true
		}
	}
	return false
}

// keepClaims 把本次占位挂到语句上，语句结束时由 settle 处理
func keepClaims(db *gorm.DB, claims []claim) {
	if len(claims) == 0 {
		return
	}
	if v, ok := db.InstanceGet(claimsKey); ok {
		if prev, ok := v.([]claim); ok {
			claims = append(prev, claims...)
		}
	}
	db.InstanceSet(claimsKey, claims)
}

// settle 语句失败（包括事务回滚）时释放占位；成功时占位保留到 TTL 过期
func (p *Plugin) settle(db *gorm.DB) {
	if db.Error == nil || p.reserver == nil {
		return
	}
	v, ok := db.InstanceGet(claimsKey)
	if !ok {
		return
	}
	claims, _ := v.([]claim)
	db.InstanceSet(claimsKey, []claim(nil))
	p.release(db, claims)
}

func (p *Plugin) release(db *gorm.DB, claims []claim) {
	for _, c := range claims {
		if err := p.reserver.Release(db.Statement.Context, db.Statement.Table, c.slug, c.owner); err != nil {
			p.log.WithContext(db.Statement.Context).Warn("release slug reservation failed",
				zap.String("slug", c.slug), zap.Error(err))
		}
	}
}
