package uuidable_test

import (
	"testing"

	"github.com/aisgo/gorm-behaviors/errors"
	"github.com/aisgo/gorm-behaviors/internal/testdb"
	"github.com/aisgo/gorm-behaviors/lifecycle"
	"github.com/aisgo/gorm-behaviors/uuidable"

	"github.com/google/uuid"
)

type Invoice struct {
	ID     uint `gorm:"primaryKey"`
	Number string
	uuidable.UUIDFields
}

type Broken struct {
	ID   uint `gorm:"primaryKey"`
	Name string
	Ref  uuid.UUID `gorm:"column:ref"`
}

func (b *Broken) GetUUID() uuid.UUID   { return b.Ref }
func (b *Broken) SetUUID(id uuid.UUID) { b.Ref = id }

func TestGenerateOnCreate(t *testing.T) {
	db := testdb.Open(t, &Invoice{})
	if err := db.Use(uuidable.New()); err != nil {
		t.Fatalf("use: %v", err)
	}

	inv := Invoice{Number: "A-1"}
	if err := db.Create(&inv).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if inv.UUID == uuid.Nil {
		t.Fatalf("expected uuid to be generated")
	}
	if inv.UUID.Version() != 4 {
		t.Fatalf("expected v4 uuid, got v%d", inv.UUID.Version())
	}

	var stored Invoice
	if err := db.First(&stored, inv.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.UUID != inv.UUID {
		t.Fatalf("stored uuid %s != %s", stored.UUID, inv.UUID)
	}
}

func TestKeepExistingUUID(t *testing.T) {
	db := testdb.Open(t, &Invoice{})
	if err := db.Use(uuidable.New()); err != nil {
		t.Fatalf("use: %v", err)
	}

	fixed := uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2")
	inv := Invoice{Number: "A-2"}
	inv.UUID = fixed
	if err := db.Create(&inv).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if inv.UUID != fixed {
		t.Fatalf("existing uuid must not be replaced")
	}
}

func TestBatchAndGenerators(t *testing.T) {
	for _, version := range []string{uuidable.VersionV4, uuidable.VersionV7, uuidable.VersionULID} {
		t.Run(version, func(t *testing.T) {
			db := testdb.Open(t, &Invoice{})
			gen, err := uuidable.GeneratorFor(version)
			if err != nil {
				t.Fatalf("generator: %v", err)
			}
			if err := db.Use(uuidable.New(uuidable.WithGenerator(gen))); err != nil {
				t.Fatalf("use: %v", err)
			}

			batch := []Invoice{{Number: "1"}, {Number: "2"}, {Number: "3"}}
			if err := db.Create(&batch).Error; err != nil {
				t.Fatalf("create: %v", err)
			}
			seen := map[uuid.UUID]bool{}
			for _, inv := range batch {
				if inv.UUID == uuid.Nil || seen[inv.UUID] {
					t.Fatalf("expected unique uuids, got %+v", batch)
				}
				seen[inv.UUID] = true
			}
			if version == uuidable.VersionV7 && batch[0].UUID.Version() != 7 {
				t.Fatalf("expected v7 uuid")
			}
		})
	}

	if _, err := uuidable.GeneratorFor("v1"); !errors.Is(err, errors.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for unknown version, got %v", err)
	}
}

func TestGeneratorFailure(t *testing.T) {
	db := testdb.Open(t, &Invoice{})
	failing := func() (uuid.UUID, error) { return uuid.Nil, errors.New(errors.ErrCodeInternal, "entropy exhausted") }
	if err := db.Use(uuidable.New(uuidable.WithGenerator(failing))); err != nil {
		t.Fatalf("use: %v", err)
	}

	err := db.Create(&Invoice{Number: "x"}).Error
	if !errors.Is(err, errors.ErrIdentifier) {
		t.Fatalf("expected identifier error, got %v", err)
	}
	var count int64
	db.Model(&Invoice{}).Count(&count)
	if count != 0 {
		t.Fatalf("failed create must not insert rows")
	}
}

func TestMissingColumn(t *testing.T) {
	db := testdb.Open(t, &Broken{})
	if err := db.Use(uuidable.New()); err != nil {
		t.Fatalf("use: %v", err)
	}

	if err := uuidable.Requirement.Validate(db, &Broken{}); !errors.Is(err, errors.ErrMapping) {
		t.Fatalf("expected mapping error from validate, got %v", err)
	}
	if err := db.Create(&Broken{Name: "b"}).Error; !errors.Is(err, errors.ErrMapping) {
		t.Fatalf("expected mapping error on create, got %v", err)
	}
}

func TestDisabled(t *testing.T) {
	db := testdb.Open(t, &Invoice{})
	if err := db.Use(uuidable.New()); err != nil {
		t.Fatalf("use: %v", err)
	}

	inv := Invoice{Number: "n"}
	if err := lifecycle.Disable(db, uuidable.Name).Create(&inv).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if inv.UUID != uuid.Nil {
		t.Fatalf("disabled behavior must not generate uuid")
	}
}
