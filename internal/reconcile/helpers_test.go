package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"castsync/internal/identity"
	"castsync/internal/reconcile"
	"castsync/internal/services/regional"
	"castsync/internal/services/tmdb"
	"castsync/internal/textnorm"
	"castsync/internal/translation"
)

func newReconciler(opts ...reconcile.Option) *reconcile.Reconciler {
	return reconcile.New(textnorm.MustNew("Han"), opts...)
}

// run reconciles against a fresh snapshot of store without applying writes.
func run(t *testing.T, store *identity.Store, r *reconcile.Reconciler, in reconcile.Input) *reconcile.Result {
	t.Helper()
	ctx := context.Background()
	snap, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	defer snap.Close()
	res, err := r.Reconcile(ctx, snap, in)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	return res
}

func seed(t *testing.T, store *identity.Store, records ...identity.Record) {
	t.Helper()
	if err := store.ApplyBatch(context.Background(), records); err != nil {
		t.Fatalf("seed identities: %v", err)
	}
}

func names(cast []reconcile.Entry) []string {
	out := make([]string, len(cast))
	for i, e := range cast {
		out[i] = e.Name
	}
	return out
}

func hasWrite(writes []identity.Record, match func(identity.Record) bool) bool {
	for _, w := range writes {
		if match(w) {
			return true
		}
	}
	return false
}

type fakeTranslator struct {
	results map[string]string
	err     error
	calls   [][]string
}

func (f *fakeTranslator) TranslateBatch(_ context.Context, texts []string, _ *translation.MediaContext) (map[string]string, error) {
	f.calls = append(f.calls, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]string)
	for _, text := range texts {
		if v, ok := f.results[text]; ok {
			out[text] = v
		}
	}
	return out, nil
}

func (f *fakeTranslator) sent() map[string]bool {
	seen := make(map[string]bool)
	for _, call := range f.calls {
		for _, text := range call {
			seen[text] = true
		}
	}
	return seen
}

type fakeDetailer struct {
	details map[string]*regional.PersonDetail
	errs    map[string]error
	calls   []string
}

func (f *fakeDetailer) GetPersonDetail(_ context.Context, id string) (*regional.PersonDetail, error) {
	f.calls = append(f.calls, id)
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return f.details[id], nil
}

type fakeFinder struct {
	people map[string]*tmdb.Person
	errs   map[string]error
	calls  map[string][]string
}

func (f *fakeFinder) FindPersonByExternalID(_ context.Context, bridge string, verify []string) (*tmdb.Person, error) {
	if f.calls == nil {
		f.calls = make(map[string][]string)
	}
	f.calls[bridge] = verify
	if err := f.errs[bridge]; err != nil {
		return nil, err
	}
	return f.people[bridge], nil
}

// brokenView fails every identity read.
type brokenView struct{}

var errStoreDown = errors.New("database is locked")

func (brokenView) FindByLocalID(context.Context, string) (*identity.Record, error) {
	return nil, errStoreDown
}

func (brokenView) FindByMetadataID(context.Context, string) (*identity.Record, error) {
	return nil, errStoreDown
}

func (brokenView) FindByNationalID(context.Context, string) (*identity.Record, error) {
	return nil, errStoreDown
}

func (brokenView) FindByRegionalID(context.Context, string) (*identity.Record, error) {
	return nil, errStoreDown
}

func (brokenView) Overlay(context.Context, identity.Record) error {
	return errStoreDown
}

func identityRecord(local, metadata, regionalID string) identity.Record {
	return identity.Record{LocalID: local, MetadataID: metadata, RegionalID: regionalID}
}
