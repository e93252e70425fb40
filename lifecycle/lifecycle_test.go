package lifecycle_test

import (
	"testing"
	"time"

	"github.com/aisgo/gorm-behaviors/errors"
	"github.com/aisgo/gorm-behaviors/internal/testdb"
	"github.com/aisgo/gorm-behaviors/lifecycle"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type Stamped interface {
	Stamp(s string)
}

type note struct {
	ID    uint `gorm:"primaryKey"`
	Title string
	Mark  string
	Hits  int
}

func (n *note) Stamp(s string) { n.Mark = s }

type plain struct {
	ID    uint `gorm:"primaryKey"`
	Title string
}

func stampHook(event lifecycle.Event, calls *int) lifecycle.Hook {
	return lifecycle.Hook{
		Event: event,
		Match: lifecycle.ModelImplements[Stamped],
		Fn: func(db *gorm.DB) {
			*calls++
			for _, s := range lifecycle.Collect[Stamped](db) {
				s.Stamp(string(event))
			}
		},
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	db := testdb.Open(t, &note{})
	calls := 0

	for i := 0; i < 2; i++ {
		if err := lifecycle.Register(db, "stamp", stampHook(lifecycle.PrePersist, &calls)); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	n := note{Title: "a"}
	if err := db.Create(&n).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected hook to run once, ran %d times", calls)
	}
	if n.Mark != string(lifecycle.PrePersist) {
		t.Fatalf("expected mark to be set, got %q", n.Mark)
	}

	var stored note
	db.First(&stored, n.ID)
	if stored.Mark != string(lifecycle.PrePersist) {
		t.Fatalf("pre persist changes must be persisted, got %q", stored.Mark)
	}
}

func TestRegisterUnsupportedEvent(t *testing.T) {
	db := testdb.Open(t)
	err := lifecycle.Register(db, "x", lifecycle.Hook{Event: lifecycle.LoadMetadata, Fn: func(*gorm.DB) {}})
	if !errors.Is(err, errors.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestHookMatchAndBatch(t *testing.T) {
	db := testdb.Open(t, &note{}, &plain{})
	calls := 0
	if err := lifecycle.Register(db, "stamp", stampHook(lifecycle.PrePersist, &calls)); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := db.Create(&plain{Title: "p"}).Error; err != nil {
		t.Fatalf("create plain: %v", err)
	}
	if calls != 0 {
		t.Fatalf("hook must not run for models without the interface")
	}

	batch := []note{{Title: "a"}, {Title: "b"}, {Title: "c"}}
	if err := db.Create(&batch).Error; err != nil {
		t.Fatalf("create batch: %v", err)
	}
	for _, n := range batch {
		if n.Mark == "" {
			t.Fatalf("expected every batch entity stamped: %+v", batch)
		}
	}
}

func TestDisable(t *testing.T) {
	db := testdb.Open(t, &note{})
	calls := 0
	if err := lifecycle.Register(db, "stamp", stampHook(lifecycle.PrePersist, &calls)); err != nil {
		t.Fatalf("register: %v", err)
	}

	n := note{Title: "a"}
	if err := lifecycle.Disable(db, "stamp").Create(&n).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if calls != 0 || n.Mark != "" {
		t.Fatalf("disabled behavior must not run")
	}

	if err := lifecycle.Disable(db, "*").Create(&note{Title: "b"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if calls != 0 {
		t.Fatalf("wildcard must disable every behavior")
	}

	if err := db.Create(&note{Title: "c"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if calls != 1 {
		t.Fatalf("disable must be scoped to the session")
	}
}

func TestPropertyChangedWritesThroughMapUpdates(t *testing.T) {
	db := testdb.Open(t, &note{})
	err := lifecycle.Register(db, "stamp", lifecycle.Hook{
		Event: lifecycle.PreUpdate,
		Match: lifecycle.ModelImplements[Stamped],
		Fn: func(db *gorm.DB) {
			for _, e := range lifecycle.Entities(db) {
				n := e.(*note)
				old := n.Mark
				n.Mark = "updated"
				lifecycle.PropertyChanged(db, e, "mark", old, n.Mark)
			}
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	n := note{Title: "a"}
	db.Create(&n)

	if err := db.Model(&n).Updates(map[string]any{"title": "b"}).Error; err != nil {
		t.Fatalf("update: %v", err)
	}

	var stored note
	db.First(&stored, n.ID)
	if stored.Title != "b" || stored.Mark != "updated" {
		t.Fatalf("expected map update to carry the recorded column, got %+v", stored)
	}
}

func TestApplyPendingAssignments(t *testing.T) {
	db := testdb.Open(t, &note{})
	var seen string
	err := lifecycle.Register(db, "apply", lifecycle.Hook{
		Event: lifecycle.PreUpdate,
		Fn: func(db *gorm.DB) {
			lifecycle.ApplyPendingAssignments(db)
			for _, e := range lifecycle.Entities(db) {
				seen = e.(*note).Title
			}
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	n := note{Title: "old"}
	db.Create(&n)
	if err := db.Model(&n).Update("title", "new").Error; err != nil {
		t.Fatalf("update: %v", err)
	}
	if seen != "new" {
		t.Fatalf("expected pending assignment applied to entity, got %q", seen)
	}
}

func TestApplyPendingAssignmentsSkipsExpressions(t *testing.T) {
	db := testdb.Open(t, &note{})
	var seen note
	err := lifecycle.Register(db, "apply", lifecycle.Hook{
		Event: lifecycle.PreUpdate,
		Fn: func(db *gorm.DB) {
			lifecycle.ApplyPendingAssignments(db)
			for _, e := range lifecycle.Entities(db) {
				seen = *e.(*note)
			}
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	n := note{Title: "old", Hits: 1}
	db.Create(&n)
	err = db.Model(&n).Updates(map[string]any{"title": "new", "hits": gorm.Expr("hits + ?", 1)}).Error
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if seen.Title != "new" || seen.Hits != 1 {
		t.Fatalf("expected title applied and expression skipped, got %+v", seen)
	}
	var stored note
	db.First(&stored, n.ID)
	if stored.Hits != 2 {
		t.Fatalf("expected expression evaluated by the database, got %d", stored.Hits)
	}

	err = db.Model(&n).Updates(map[string]any{"hits": struct{}{}}).Error
	if !errors.Is(err, errors.ErrInvalidArgument) {
		t.Fatalf("expected assignment error, got %v", err)
	}
}

func TestAssignedColumnsAndCurrentRow(t *testing.T) {
	db := testdb.Open(t, &note{})
	var (
		assigned map[string]struct{}
		current  note
	)
	err := lifecycle.Register(db, "assigned", lifecycle.Hook{
		Event: lifecycle.PreUpdate,
		Fn: func(db *gorm.DB) {
			lifecycle.ApplyPendingAssignments(db)
			assigned = lifecycle.AssignedColumns(db)
			for _, e := range lifecycle.Entities(db) {
				row, err := lifecycle.CurrentRow(db, e)
				if err != nil {
					_ = db.AddError(err)
					return
				}
				if row != nil {
					current = *row.(*note)
				}
			}
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	n := note{Title: "a", Mark: "m", Hits: 3}
	db.Create(&n)

	if err := db.Model(&note{ID: n.ID}).Update("title", "b").Error; err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, ok := assigned["title"]; !ok || len(assigned) != 1 {
		t.Fatalf("expected only title assigned, got %v", assigned)
	}
	if current.Title != "b" || current.Mark != "m" || current.Hits != 3 {
		t.Fatalf("expected stored row with title applied, got %+v", current)
	}

	if err := db.Model(&note{ID: n.ID}).Select("mark", "hits").Updates(note{Title: "ignored"}).Error; err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, ok := assigned["title"]; ok || len(assigned) != 2 {
		t.Fatalf("expected selected columns only, got %v", assigned)
	}
	if current.Title != "b" || current.Mark != "" || current.Hits != 0 {
		t.Fatalf("unexpected current row %+v", current)
	}
}

func TestFinishedHookRunsOnFailure(t *testing.T) {
	db := testdb.Open(t, &note{})
	var failures []error
	err := lifecycle.Register(db, "finish", lifecycle.Hook{
		Event: lifecycle.PersistFinished,
		Fn: func(db *gorm.DB) {
			failures = append(failures, db.Error)
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := db.Create(&note{ID: 1, Title: "a"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.Create(&note{ID: 1, Title: "b"}).Error; err == nil {
		t.Fatalf("expected duplicate key error")
	}
	if len(failures) != 2 || failures[0] != nil || failures[1] == nil {
		t.Fatalf("expected hook after success and failure, got %v", failures)
	}
}

func TestRequirement(t *testing.T) {
	db := testdb.Open(t)
	req := lifecycle.NewRequirement("stamp", lifecycle.ModelImplements[Stamped], "mark", "stamped_at")

	err := req.Validate(db, &note{}, &plain{})
	if !errors.Is(err, errors.ErrMapping) {
		t.Fatalf("expected mapping error, got %v", err)
	}

	okReq := lifecycle.NewRequirement("stamp", func(s *schema.Schema) bool { return true }, "mark")
	if err := okReq.Validate(db, &note{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDiff(t *testing.T) {
	now := time.Now()
	sameInstant := now.In(time.UTC)
	title := "a"

	cs := lifecycle.Diff(
		map[string]any{"title": "a", "at": now, "ptr": &title, "n": 1},
		map[string]any{"title": "b", "at": sameInstant, "ptr": "a", "n": 1},
	)
	if len(cs) != 1 {
		t.Fatalf("expected only title to change, got %v", cs)
	}
	if ch := cs["title"]; ch.Old != "a" || ch.New != "b" {
		t.Fatalf("unexpected change %+v", ch)
	}

	merged := lifecycle.ChangeSet{"title": {Old: "x", New: "a"}}.Merge(cs)
	if merged["title"].Old != "x" || merged["title"].New != "b" {
		t.Fatalf("merge must keep earliest old value: %+v", merged["title"])
	}
	if cols := merged.Columns(); len(cols) != 1 || cols[0] != "title" {
		t.Fatalf("unexpected columns %v", cols)
	}
}
