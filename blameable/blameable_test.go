package blameable_test

import (
	"context"
	"testing"

	"github.com/aisgo/gorm-behaviors/blameable"
	"github.com/aisgo/gorm-behaviors/errors"
	"github.com/aisgo/gorm-behaviors/internal/testdb"

	"gorm.io/gorm"
)

type Article struct {
	ID    uint `gorm:"primaryKey"`
	Title string
	blameable.BlameFields
}

type User struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

type Post struct {
	ID    uint `gorm:"primaryKey"`
	Title string
	blameable.RefFields[User]
}

type Unmapped struct {
	ID    uint `gorm:"primaryKey"`
	Owner string
}

func (u *Unmapped) GetCreatedBy() string { return u.Owner }
func (u *Unmapped) SetCreatedBy(string)  {}
func (u *Unmapped) GetUpdatedBy() string { return "" }
func (u *Unmapped) SetUpdatedBy(string)  {}
func (u *Unmapped) GetDeletedBy() string { return "" }
func (u *Unmapped) SetDeletedBy(string)  {}

func openStringDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testdb.Open(t, &Article{})
	if err := db.Use(blameable.New[string](nil)); err != nil {
		t.Fatalf("use: %v", err)
	}
	return db
}

func as(db *gorm.DB, user string) *gorm.DB {
	return db.WithContext(blameable.WithUser(context.Background(), user))
}

func TestPrePersist(t *testing.T) {
	db := openStringDB(t)

	a := Article{Title: "hello"}
	if err := as(db, "alice").Create(&a).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.GetCreatedBy() != "alice" || a.GetUpdatedBy() != "alice" {
		t.Fatalf("expected alice as creator and updater, got %q/%q", a.GetCreatedBy(), a.GetUpdatedBy())
	}
	if a.DeletedBy != nil {
		t.Fatalf("deleted_by must stay empty")
	}

	var stored Article
	db.First(&stored, a.ID)
	if stored.GetCreatedBy() != "alice" {
		t.Fatalf("expected created_by persisted, got %q", stored.GetCreatedBy())
	}
}

func TestPrePersistKeepsExistingValues(t *testing.T) {
	db := openStringDB(t)

	a := Article{Title: "imported"}
	a.SetCreatedBy("importer")
	if err := as(db, "alice").Create(&a).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.GetCreatedBy() != "importer" {
		t.Fatalf("existing creator must be kept, got %q", a.GetCreatedBy())
	}
	if a.GetUpdatedBy() != "alice" {
		t.Fatalf("empty updater must be filled, got %q", a.GetUpdatedBy())
	}
}

func TestNoUserSkips(t *testing.T) {
	db := openStringDB(t)

	a := Article{Title: "anonymous"}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.CreatedBy != nil || a.UpdatedBy != nil {
		t.Fatalf("expected no audit fields without user")
	}

	if err := as(db, "").Model(&a).Update("title", "still anonymous").Error; err != nil {
		t.Fatalf("update: %v", err)
	}
	if a.UpdatedBy != nil {
		t.Fatalf("empty user must be treated as absent")
	}
}

func TestPreUpdate(t *testing.T) {
	db := openStringDB(t)

	a := Article{Title: "v1"}
	as(db, "alice").Create(&a)

	if err := as(db, "bob").Model(&a).Updates(map[string]any{"title": "v2"}).Error; err != nil {
		t.Fatalf("update map: %v", err)
	}
	var stored Article
	db.First(&stored, a.ID)
	if stored.GetUpdatedBy() != "bob" || stored.GetCreatedBy() != "alice" {
		t.Fatalf("expected bob as updater and alice as creator, got %+v", stored.BlameFields)
	}

	stored.Title = "v3"
	if err := as(db, "carol").Save(&stored).Error; err != nil {
		t.Fatalf("save: %v", err)
	}
	db.First(&stored, a.ID)
	if stored.GetUpdatedBy() != "carol" {
		t.Fatalf("expected carol as updater, got %q", stored.GetUpdatedBy())
	}

	if err := as(db, "dave").Model(&Article{ID: a.ID}).Updates(&Article{Title: "v4"}).Error; err != nil {
		t.Fatalf("update struct: %v", err)
	}
	db.First(&stored, a.ID)
	if stored.GetUpdatedBy() != "dave" || stored.Title != "v4" {
		t.Fatalf("expected dave as updater on struct update, got %+v", stored)
	}
}

func TestPreRemove(t *testing.T) {
	db := openStringDB(t)

	a := Article{Title: "doomed"}
	as(db, "alice").Create(&a)

	if err := as(db, "bob").Delete(&a).Error; err != nil {
		t.Fatalf("delete: %v", err)
	}
	if a.GetDeletedBy() != "bob" {
		t.Fatalf("expected deleted_by set on entity, got %q", a.GetDeletedBy())
	}
}

func TestReferenceMode(t *testing.T) {
	db := testdb.Open(t, &User{}, &Post{})
	plugin := blameable.New[int64](nil, blameable.WithColumns[int64](blameable.ReferenceColumns))
	if err := db.Use(plugin); err != nil {
		t.Fatalf("use: %v", err)
	}

	author := User{ID: 7, Name: "alice"}
	db.Create(&author)

	ctx := blameable.WithUser(context.Background(), author.ID)
	p := Post{Title: "ref"}
	if err := db.WithContext(ctx).Create(&p).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.GetCreatedBy() != 7 {
		t.Fatalf("expected creator id 7, got %d", p.GetCreatedBy())
	}

	var stored Post
	if err := db.Preload("CreatedBy").First(&stored, p.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.CreatedBy == nil || stored.CreatedBy.Name != "alice" {
		t.Fatalf("expected creator association loaded, got %+v", stored.CreatedBy)
	}
}

func TestMissingMapping(t *testing.T) {
	db := testdb.Open(t, &Unmapped{})
	plugin := blameable.New[string](nil)
	if err := db.Use(plugin); err != nil {
		t.Fatalf("use: %v", err)
	}

	if err := plugin.Requirement.Validate(db, &Unmapped{}); !errors.Is(err, errors.ErrMapping) {
		t.Fatalf("expected mapping error, got %v", err)
	}
	if err := as(db, "alice").Create(&Unmapped{Owner: "x"}).Error; !errors.Is(err, errors.ErrMapping) {
		t.Fatalf("expected mapping error on create, got %v", err)
	}
}

func TestChainProvider(t *testing.T) {
	fixed := blameable.ProviderFunc[string](func(context.Context) (string, bool) { return "system", true })
	chain := blameable.Chain[string](blameable.ContextProvider[string]{}, fixed)

	if u, _ := chain.ProvideUser(context.Background()); u != "system" {
		t.Fatalf("expected fallback user, got %q", u)
	}
	if u, _ := chain.ProvideUser(blameable.WithUser(context.Background(), "alice")); u != "alice" {
		t.Fatalf("expected context user first, got %q", u)
	}
	if _, ok := blameable.UserFromContext[int64](blameable.WithUser(context.Background(), "alice")); ok {
		t.Fatalf("user types must not collide")
	}
}
