package blameable

import (
	"github.com/aisgo/gorm-behaviors/lifecycle"

	"gorm.io/gorm"
)

// Plugin GORM 插件
type Plugin[U comparable] struct {
	users   UserProvider[U]
	columns Columns

	// Requirement 审计列映射检查
	Requirement *lifecycle.Requirement
}

// Option 插件选项
type Option[U comparable] func(*Plugin[U])

// WithColumns 指定审计列，RefFields 使用 ReferenceColumns
func WithColumns[U comparable](cols Columns) Option[U] {
	return func(p *Plugin[U]) { p.columns = cols }
}

// New 创建插件，默认使用 StringColumns
func New[U comparable](users UserProvider[U], opts ...Option[U]) *Plugin[U] {
	if users == nil {
		users = ContextProvider[U]{}
	}
	p := &Plugin[U]{users: users, columns: StringColumns}
	for _, opt := range opts {
		opt(p)
	}
	p.Requirement = lifecycle.NewRequirement(Name, lifecycle.ModelImplements[Blameable[U]], p.columns.list()...)
	return p
}

// Name 实现 gorm.Plugin
func (p *Plugin[U]) Name() string { return Name }

// Initialize 实现 gorm.Plugin
func (p *Plugin[U]) Initialize(db *gorm.DB) error {
	match := lifecycle.ModelImplements[Blameable[U]]
	return lifecycle.Register(db, Name,
		lifecycle.Hook{Event: lifecycle.PrePersist, Match: match, Fn: p.prePersist},
		lifecycle.Hook{Event: lifecycle.PreUpdate, Match: match, Fn: p.preUpdate},
		lifecycle.Hook{Event: lifecycle.PreRemove, Match: match, Fn: p.preRemove},
	)
}

// user 返回当前操作人；未认证或映射错误时返回 false
func (p *Plugin[U]) user(db *gorm.DB) (U, bool) {
	if err := p.Requirement.Check(db.Statement.Schema); err != nil {
		_ = db.AddError(err)
		var zero U
		return zero, false
	}
	return p.users.ProvideUser(db.Statement.Context)
}

func (p *Plugin[U]) prePersist(db *gorm.DB) {
	user, ok := p.user(db)
	if !ok {
		return
	}

	var zero U
	for _, e := range lifecycle.Collect[Blameable[U]](db) {
		if e.GetCreatedBy() == zero {
			lifecycle.Track(db, e, p.columns.CreatedBy, func() { e.SetCreatedBy(user) })
		}
		if e.GetUpdatedBy() == zero {
			lifecycle.Track(db, e, p.columns.UpdatedBy, func() { e.SetUpdatedBy(user) })
		}
	}
}

func (p *Plugin[U]) preUpdate(db *gorm.DB) {
	user, ok := p.user(db)
	if !ok {
		return
	}
	for _, e := range lifecycle.Collect[Blameable[U]](db) {
		lifecycle.Track(db, e, p.columns.UpdatedBy, func() { e.SetUpdatedBy(user) })
	}
}

func (p *Plugin[U]) preRemove(db *gorm.DB) {
	user, ok := p.user(db)
	if !ok {
		return
	}
	for _, e := range lifecycle.Collect[Blameable[U]](db) {
		lifecycle.Track(db, e, p.columns.DeletedBy, func() { e.SetDeletedBy(user) })
	}
}
