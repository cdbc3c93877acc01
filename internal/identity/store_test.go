package identity_test

import (
	"context"
	"errors"
	"testing"

	"castsync/internal/identity"
	"castsync/internal/services"
	"castsync/internal/testsupport"
)

func TestFindMissReturnsNil(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	ctx := context.Background()

	finders := map[string]func(context.Context, string) (*identity.Record, error){
		"local":    store.FindByLocalID,
		"metadata": store.FindByMetadataID,
		"national": store.FindByNationalID,
		"regional": store.FindByRegionalID,
	}
	for name, find := range finders {
		rec, err := find(ctx, "missing")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if rec != nil {
			t.Fatalf("%s: expected nil record on miss, got %+v", name, rec)
		}
	}
}

func TestUpsertCreatesAndMerges(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	ctx := context.Background()

	created, err := store.Upsert(ctx, identity.Record{LocalID: "L1", DisplayName: "John Smith"})
	if err != nil {
		t.Fatalf("Upsert create: %v", err)
	}
	if created.ID == 0 || created.CreatedAt.IsZero() {
		t.Fatalf("expected persisted record, got %+v", created)
	}

	if _, err := store.Upsert(ctx, identity.Record{LocalID: "L1", MetadataID: "500", NationalID: "nm001"}); err != nil {
		t.Fatalf("Upsert merge: %v", err)
	}
	// A partial keyed only by an external id still reaches the same record.
	if _, err := store.Upsert(ctx, identity.Record{NationalID: "nm001", RegionalID: "R9", RegionalName: "约翰"}); err != nil {
		t.Fatalf("Upsert by national id: %v", err)
	}

	rec, err := store.FindByRegionalID(ctx, "R9")
	if err != nil || rec == nil {
		t.Fatalf("FindByRegionalID: %v %v", rec, err)
	}
	want := identity.Record{LocalID: "L1", MetadataID: "500", NationalID: "nm001", RegionalID: "R9", DisplayName: "John Smith", RegionalName: "约翰"}
	if rec.ID != created.ID || rec.LocalID != want.LocalID || rec.MetadataID != want.MetadataID ||
		rec.NationalID != want.NationalID || rec.RegionalID != want.RegionalID ||
		rec.DisplayName != want.DisplayName || rec.RegionalName != want.RegionalName {
		t.Fatalf("merged record mismatch: got %+v", rec)
	}
	if count, _ := store.Count(ctx); count != 1 {
		t.Fatalf("expected a single record, got %d", count)
	}
}

func TestUpsertNeverClearsFields(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, identity.Record{LocalID: "L1", MetadataID: "500", DisplayName: "Name"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Upsert(ctx, identity.Record{LocalID: "L1", MetadataID: "  ", DisplayName: ""}); err != nil {
		t.Fatalf("upsert blanks: %v", err)
	}
	rec, _ := store.FindByLocalID(ctx, "L1")
	if rec.MetadataID != "500" || rec.DisplayName != "Name" {
		t.Fatalf("expected fields to survive empty update, got %+v", rec)
	}
}

func TestUpsertRequiresAnID(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	_, err := store.Upsert(context.Background(), identity.Record{DisplayName: "Nobody"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpsertLocalIDTakesPrecedence(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	ctx := context.Background()

	// An orphan discovered through the metadata API before the server knew the person.
	orphan, err := store.Upsert(ctx, identity.Record{MetadataID: "700", DisplayName: "Orphan"})
	if err != nil {
		t.Fatalf("seed orphan: %v", err)
	}
	adopted, err := store.Upsert(ctx, identity.Record{LocalID: "L7", MetadataID: "700"})
	if err != nil {
		t.Fatalf("adopt orphan: %v", err)
	}
	if adopted.ID != orphan.ID {
		t.Fatalf("expected the orphan to be adopted, got new record %d", adopted.ID)
	}
	if adopted.LocalID != "L7" {
		t.Fatalf("expected local id to be attached, got %+v", adopted)
	}
}

func TestUpsertRecordsConflicts(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	ctx := context.Background()

	if _, err := store.Upsert(ctx, identity.Record{LocalID: "L1", MetadataID: "500"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rec, err := store.Upsert(ctx, identity.Record{LocalID: "L2", MetadataID: "500", NationalID: "nm002"})
	if err != nil {
		t.Fatalf("conflicting upsert: %v", err)
	}
	if rec.LocalID != "L2" || rec.MetadataID != "" || rec.NationalID != "nm002" {
		t.Fatalf("expected conflicting id to be dropped, got %+v", rec)
	}

	owner, _ := store.FindByMetadataID(ctx, "500")
	if owner == nil || owner.LocalID != "L1" {
		t.Fatalf("expected metadata id to stay with L1, got %+v", owner)
	}

	conflicts, err := store.Conflicts(ctx, 0)
	if err != nil {
		t.Fatalf("Conflicts: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("expected one conflict, got %d", len(conflicts))
	}
	c := conflicts[0]
	if c.Field != identity.FieldMetadataID || c.Value != "500" || c.ExistingLocalID != "L1" || c.IncomingLocalID != "L2" {
		t.Fatalf("unexpected conflict row: %+v", c)
	}
	if n, _ := store.ConflictCount(ctx, identity.FieldMetadataID, "500"); n != 1 {
		t.Fatalf("expected ConflictCount 1, got %d", n)
	}
}

func TestApplyBatchIsAtomic(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	ctx := context.Background()

	err := store.ApplyBatch(ctx, []identity.Record{
		{LocalID: "L1", DisplayName: "First"},
		{DisplayName: "no ids"},
	})
	if !errors.Is(err, services.ErrDataIntegrity) {
		t.Fatalf("expected data integrity error, got %v", err)
	}
	if count, _ := store.Count(ctx); count != 0 {
		t.Fatalf("expected rollback, found %d records", count)
	}

	if err := store.ApplyBatch(ctx, []identity.Record{
		{LocalID: "L1", DisplayName: "First"},
		{LocalID: "L1", MetadataID: "1"},
		{MetadataID: "2", NationalID: "nm2"},
	}); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if count, _ := store.Count(ctx); count != 2 {
		t.Fatalf("expected 2 records, got %d", count)
	}
}

func TestLookupAndList(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	ctx := context.Background()
	for _, rec := range []identity.Record{
		{LocalID: "L1"},
		{LocalID: "L2", NationalID: "nm2"},
		{LocalID: "L3"},
	} {
		if _, err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	rec, err := store.Lookup(ctx, "nm2")
	if err != nil || rec == nil || rec.LocalID != "L2" {
		t.Fatalf("Lookup by national id: %+v %v", rec, err)
	}
	all, err := store.List(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("List all: %d %v", len(all), err)
	}
	limited, _ := store.List(ctx, 2)
	if len(limited) != 2 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}
