package core

import (
	"errors"
	"testing"

	"mvpplanner/pkg/domain"
)

func TestRecordStoreStartsEmpty(t *testing.T) {
	store := NewRecordStore()
	for _, name := range domain.Collections() {
		if got := store.Get(name); len(got) != 0 {
			t.Fatalf("expected %s empty, got %d rows", name, len(got))
		}
	}
}

func TestRecordStoreLoadCopiesRows(t *testing.T) {
	store := NewRecordStore()
	rows := []domain.Record{{"clinician_id": "1"}}
	if err := store.Load(domain.CollectionClinicians, rows); err != nil {
		t.Fatalf("load: %v", err)
	}
	rows[0]["clinician_id"] = "mutated"
	if got := store.Get(domain.CollectionClinicians)[0]["clinician_id"]; got != "1" {
		t.Fatalf("store shares caller rows: %q", got)
	}
	if err := store.Load("patients", nil); !errors.Is(err, ErrUnknownCollection) {
		t.Fatalf("expected ErrUnknownCollection, got %v", err)
	}
}

func TestRecordStoreReplaceResetsMissingCollections(t *testing.T) {
	store := NewRecordStore()
	_ = store.Load(domain.CollectionMeasures, []domain.Record{{"measure_id": "M1"}})
	err := store.Replace(domain.Snapshot{
		domain.CollectionClinicians: {{"clinician_id": "1"}, {"clinician_id": "2"}},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if n := len(store.Get(domain.CollectionMeasures)); n != 0 {
		t.Fatalf("expected measures reset, got %d", n)
	}
	if n := len(store.Get(domain.CollectionClinicians)); n != 2 {
		t.Fatalf("expected two clinicians, got %d", n)
	}
}

func TestRecordStoreReplaceRejectsUnknownWithoutChanges(t *testing.T) {
	store := NewRecordStore()
	_ = store.Load(domain.CollectionMeasures, []domain.Record{{"measure_id": "M1"}})
	err := store.Replace(domain.Snapshot{"patients": nil})
	if !errors.Is(err, ErrUnknownCollection) {
		t.Fatalf("expected ErrUnknownCollection, got %v", err)
	}
	if n := len(store.Get(domain.CollectionMeasures)); n != 1 {
		t.Fatalf("failed replace must not touch existing data")
	}
}

func TestRecordStoreSnapshotIsDeepCopy(t *testing.T) {
	store := NewRecordStore()
	_ = store.Load(domain.CollectionConfig, []domain.Record{{"setting": "organization_name", "value": "A"}})
	snap := store.Snapshot()
	snap[domain.CollectionConfig][0]["value"] = "B"
	if got := store.Get(domain.CollectionConfig)[0]["value"]; got != "A" {
		t.Fatalf("snapshot shares rows with store")
	}
	if len(snap) != len(domain.Collections()) {
		t.Fatalf("snapshot should carry every collection, got %d", len(snap))
	}
}

func TestErrInvalidTarget(t *testing.T) {
	err := ErrInvalidTarget{Entity: domain.EntityMeasure, ID: "M9"}
	if err.Error() != "measure M9 not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if (ErrInvalidTarget{Entity: domain.EntityClinician}).Error() != "clinician id required" {
		t.Fatalf("unexpected message for empty id")
	}
	wrapped := errors.Join(errors.New("bulk_assign"), err)
	if !IsInvalidTarget(wrapped) {
		t.Fatalf("expected wrapped error to match")
	}
	if IsInvalidTarget(ErrUnknownCollection) {
		t.Fatalf("unexpected match")
	}
}
