package reconcile_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"castsync/internal/identity"
	"castsync/internal/queue"
	"castsync/internal/reconcile"
	"castsync/internal/services"
	"castsync/internal/services/regional"
	"castsync/internal/services/tmdb"
	"castsync/internal/testsupport"
)

func TestAltNameExactMatchMergesRegionalNaming(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	in := reconcile.Input{
		Server:   []reconcile.ServerPerson{{LocalID: "e1", Name: "John Smith", Role: "Hero", Type: "Actor"}},
		Metadata: []reconcile.MetadataCredit{{ID: "m1", Name: "John Smith", Character: "Hero"}},
		Regional: []reconcile.RegionalCredit{{ID: "r1", Name: "约翰·史密斯", AltName: "John Smith", Character: "英雄"}},
	}

	res := run(t, store, newReconciler(), in)

	if len(res.Cast) != 1 {
		t.Fatalf("expected one merged entry, got %+v", res.Cast)
	}
	got := res.Cast[0]
	if got.Name != "约翰·史密斯" || got.Character != "英雄" {
		t.Fatalf("expected regional naming, got name=%q character=%q", got.Name, got.Character)
	}
	if got.MatchedBy != "exact_match" {
		t.Fatalf("expected exact match, got %q", got.MatchedBy)
	}
	want := reconcile.PersonIDs{Local: "e1", Metadata: "m1", Regional: "r1"}
	if got.IDs != want {
		t.Fatalf("expected ids %+v, got %+v", want, got.IDs)
	}
	if got.AltName != "John Smith" {
		t.Fatalf("expected previous name kept as alt name, got %q", got.AltName)
	}
	if !hasWrite(res.Writes, func(r identity.Record) bool {
		return r.LocalID == "e1" && r.MetadataID == "m1" && r.RegionalID == "r1" && r.RegionalName == "约翰·史密斯"
	}) {
		t.Fatalf("expected identity write joining all three ids, got %+v", res.Writes)
	}
}

func TestUnknownRegionalEntryDroppedAtCap(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	details := &fakeDetailer{details: map[string]*regional.PersonDetail{
		"r9": {ID: "r9", BridgeID: "nm9"},
	}}
	finder := &fakeFinder{}
	r := newReconciler(reconcile.WithMaxCastSize(2), reconcile.WithDeepBridge(details, finder))
	in := reconcile.Input{
		Server: []reconcile.ServerPerson{
			{LocalID: "L1", Name: "Tony Leung", Role: "Chow"},
			{LocalID: "L2", Name: "Maggie Cheung", Role: "Su"},
		},
		Regional: []reconcile.RegionalCredit{{ID: "r9", Name: "无名氏", Character: "路人"}},
	}

	res := run(t, store, r, in)

	if len(res.Cast) != 2 {
		t.Fatalf("expected cast unchanged at cap, got %v", names(res.Cast))
	}
	if !res.Stats.CapReached || res.Stats.Dropped != 1 {
		t.Fatalf("expected cap reached and one drop, got %+v", res.Stats)
	}
	if len(details.calls) != 0 {
		t.Fatalf("expected no detail lookups once capped, got %v", details.calls)
	}
	if hasWrite(res.Writes, func(r identity.Record) bool { return r.RegionalID == "r9" }) {
		t.Fatalf("expected no identity write for the dropped entry, got %+v", res.Writes)
	}
}

func TestRegionalCharacterIsCleaned(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	in := reconcile.Input{
		Server:   []reconcile.ServerPerson{{LocalID: "L1", Name: "Jane Doe", Role: "Voice"}},
		Regional: []reconcile.RegionalCredit{{ID: "r1", Name: "简·多伊", AltName: "Jane Doe", Character: "(voice) 饰 配音角色"}},
	}

	res := run(t, store, newReconciler(), in)

	if got := res.Cast[0].Character; got != "配音角色" {
		t.Fatalf("expected cleaned character, got %q", got)
	}
}

func TestMissingTranslationKeepsOriginal(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	translator := &fakeTranslator{results: map[string]string{"Tom Hanks": "汤姆·汉克斯"}}
	in := reconcile.Input{
		Server: []reconcile.ServerPerson{{LocalID: "L1", Name: "Tom Hanks", Role: "Woody"}},
	}

	res := run(t, store, newReconciler(reconcile.WithTranslator(translator)), in)

	sent := translator.sent()
	if !sent["Tom Hanks"] || !sent["Woody"] {
		t.Fatalf("expected both strings requested, got %v", translator.calls)
	}
	got := res.Cast[0]
	if got.Name != "汤姆·汉克斯" {
		t.Fatalf("expected translated name, got %q", got.Name)
	}
	if got.Character != "Woody" {
		t.Fatalf("expected untranslated character kept, got %q", got.Character)
	}
	if got.AltName != "Tom Hanks" {
		t.Fatalf("expected source name kept as alt name, got %q", got.AltName)
	}
	if res.Stats.Translated != 1 {
		t.Fatalf("expected one translated field, got %d", res.Stats.Translated)
	}
	if !hasWrite(res.Writes, func(r identity.Record) bool { return r.LocalID == "L1" && r.DisplayName == "Tom Hanks" }) {
		t.Fatalf("expected identity stored with the source-script name, got %+v", res.Writes)
	}
}

func TestSameIdentityViaTwoPhasesYieldsOneEntry(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	seed(t, store, identity.Record{LocalID: "L1", MetadataID: "1337", RegionalID: "rB"})
	in := reconcile.Input{
		Server: []reconcile.ServerPerson{{LocalID: "L1", Name: "Tony Leung", Role: "Chow"}},
		Regional: []reconcile.RegionalCredit{
			{ID: "rA", Name: "梁朝伟", AltName: "Tony Leung", Character: "周慕云"},
			{ID: "rB", Name: "梁朝偉", AltName: "Leung Chiu-wai", Character: "周"},
		},
	}

	res := run(t, store, newReconciler(), in)

	if len(res.Cast) != 1 {
		t.Fatalf("expected a single surviving entry, got %v", names(res.Cast))
	}
	if res.Cast[0].Name != "梁朝伟" || res.Cast[0].Character != "周慕云" {
		t.Fatalf("expected first resolution to win, got %+v", res.Cast[0])
	}
	if res.Stats.Duplicates == 0 {
		t.Fatalf("expected duplicate recorded, got %+v", res.Stats)
	}
}

func TestIdentityFailureAbortsSession(t *testing.T) {
	in := reconcile.Input{
		Server: []reconcile.ServerPerson{{LocalID: "L1", Name: "Tony Leung"}},
	}
	res, err := newReconciler().Reconcile(context.Background(), brokenView{}, in)
	if !errors.Is(err, services.ErrDataIntegrity) {
		t.Fatalf("expected data integrity error, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected no result, got %+v", res)
	}
}

func TestCanceledContextStopsSession(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	snap, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	defer snap.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newReconciler().Reconcile(ctx, snap, reconcile.Input{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestMalformedInputIsNotAnError(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	in := reconcile.Input{
		Server:   []reconcile.ServerPerson{{LocalID: "L1", Name: "Tony Leung"}},
		Metadata: []reconcile.MetadataCredit{{}},
		Regional: []reconcile.RegionalCredit{{}, {ID: "r1"}},
	}
	res := run(t, store, newReconciler(), in)
	if len(res.Cast) != 1 || res.Cast[0].Name != "Tony Leung" {
		t.Fatalf("expected server cast passed through, got %+v", res.Cast)
	}
}

func TestMetadataCreditsAdapt(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	seed(t, store, identity.Record{LocalID: "L2", MetadataID: "380", NationalID: "nm0000134"})
	in := reconcile.Input{
		Server: []reconcile.ServerPerson{
			{LocalID: "L1", Name: "Al Pacino", Role: "Vincent Hanna", MetadataID: "1158"},
			{LocalID: "L2", Name: "Robert De Niro", Role: "Neil McCauley"},
		},
		Metadata: []reconcile.MetadataCredit{
			{ID: "1158", Name: "Al Pacino", Character: "Lt. Vincent Hanna"},
			{ID: "380", Name: "Robert De Niro", Character: "Neil McCauley"},
			{ID: "3197", Name: "Tom Sizemore", Character: "Michael Cheritto"},
		},
	}

	res := run(t, store, newReconciler(), in)

	if want := []string{"Al Pacino", "Robert De Niro", "Tom Sizemore"}; !slices.Equal(names(res.Cast), want) {
		t.Fatalf("expected %v, got %v", want, names(res.Cast))
	}
	if res.Cast[0].Character != "Vincent Hanna" {
		t.Fatalf("expected server role kept, got %q", res.Cast[0].Character)
	}
	if ids := res.Cast[1].IDs; ids.Metadata != "380" || ids.National != "nm0000134" {
		t.Fatalf("expected stored ids resolved for L2, got %+v", ids)
	}
	added := res.Cast[2]
	if added.Origin != reconcile.OriginMetadata || !added.NewlyAdded || added.IDs.Metadata != "3197" {
		t.Fatalf("expected metadata-only newly-added candidate, got %+v", added)
	}
}

func TestRegionalIDBridgeAddsKnownPerson(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	seed(t, store, identity.Record{LocalID: "L7", MetadataID: "77", RegionalID: "r7", DisplayName: "Maggie Cheung"})
	in := reconcile.Input{
		Server:   []reconcile.ServerPerson{{LocalID: "L1", Name: "Tony Leung", Role: "Chow"}},
		Regional: []reconcile.RegionalCredit{{ID: "r7", Name: "张曼玉", Character: "苏丽珍"}},
	}

	res := run(t, store, newReconciler(), in)

	if len(res.Cast) != 2 {
		t.Fatalf("expected bridged entry added, got %v", names(res.Cast))
	}
	added := res.Cast[1]
	if added.Origin != reconcile.OriginNewlyAdded || !added.NewlyAdded {
		t.Fatalf("expected newly-added entry, got %+v", added)
	}
	if added.IDs.Local != "L7" || added.Name != "张曼玉" || added.AltName != "Maggie Cheung" || added.Character != "苏丽珍" {
		t.Fatalf("unexpected bridged entry %+v", added)
	}
	if added.MatchedBy != "regional_id_bridge" || added.Order != 1 {
		t.Fatalf("expected bridge phase and trailing order, got %+v", added)
	}
}

func TestDeepBridgeDiscoversAndPersistsMapping(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	details := &fakeDetailer{details: map[string]*regional.PersonDetail{
		"r8": {ID: "r8", Name: "刘嘉玲", AltName: "Carina Lau", BridgeID: "nm0490489"},
	}}
	finder := &fakeFinder{people: map[string]*tmdb.Person{
		"nm0490489": {ID: 88, Name: "Carina Lau"},
	}}
	r := newReconciler(reconcile.WithDeepBridge(details, finder))
	in := reconcile.Input{
		Server:   []reconcile.ServerPerson{{LocalID: "L1", Name: "Tony Leung", Role: "Chow"}},
		Regional: []reconcile.RegionalCredit{{ID: "r8", Name: "刘嘉玲", AltName: "Carina Lau", Character: "露露"}},
	}

	res := run(t, store, r, in)

	if len(res.Cast) != 2 {
		t.Fatalf("expected deep-bridged entry added, got %v", names(res.Cast))
	}
	added := res.Cast[1]
	want := reconcile.PersonIDs{Metadata: "88", National: "nm0490489", Regional: "r8"}
	if added.IDs != want || added.Name != "刘嘉玲" || added.MatchedBy != "deep_bridge" {
		t.Fatalf("unexpected entry %+v", added)
	}
	verify := finder.calls["nm0490489"]
	if !slices.Contains(verify, "刘嘉玲") || !slices.Contains(verify, "Carina Lau") {
		t.Fatalf("expected regional names used for verification, got %v", verify)
	}

	if err := store.ApplyBatch(context.Background(), res.Writes); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	rec, err := store.FindByNationalID(context.Background(), "nm0490489")
	if err != nil || rec == nil {
		t.Fatalf("expected bridge mapping persisted: %v %v", rec, err)
	}
	if rec.MetadataID != "88" || rec.RegionalID != "r8" || rec.RegionalName != "刘嘉玲" {
		t.Fatalf("unexpected stored identity %+v", rec)
	}

	// A later item resolves the same person in the regional id phase.
	details.calls = nil
	res = run(t, store, r, reconcile.Input{
		Regional: []reconcile.RegionalCredit{{ID: "r8", Name: "刘嘉玲", Character: "阿露"}},
	})
	if len(res.Cast) != 1 || res.Cast[0].MatchedBy != "regional_id_bridge" {
		t.Fatalf("expected mapping reused, got %+v", res.Cast)
	}
	if len(details.calls) != 0 {
		t.Fatalf("expected no detail lookup for a known person, got %v", details.calls)
	}
}

func TestDeepBridgeMergesIntoExistingEntry(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	details := &fakeDetailer{details: map[string]*regional.PersonDetail{
		"r5": {ID: "r5", Name: "刘德华", BridgeID: "nm0490487"},
	}}
	finder := &fakeFinder{people: map[string]*tmdb.Person{
		"nm0490487": {ID: 99, Name: "Andy Lau"},
	}}
	r := newReconciler(reconcile.WithDeepBridge(details, finder))
	in := reconcile.Input{
		Server:   []reconcile.ServerPerson{{LocalID: "L2", Name: "Andy Lau", Role: "Ming", MetadataID: "99"}},
		Regional: []reconcile.RegionalCredit{{ID: "r5", Name: "刘德华", AltName: "Lau Tak-wah", Character: "刘健明"}},
	}

	res := run(t, store, r, in)

	if len(res.Cast) != 1 {
		t.Fatalf("expected merge, got %v", names(res.Cast))
	}
	got := res.Cast[0]
	if got.Name != "刘德华" || got.Character != "刘健明" || got.MatchedBy != "deep_bridge" {
		t.Fatalf("expected regional naming via deep bridge, got %+v", got)
	}
	if got.IDs.Local != "L2" || got.IDs.National != "nm0490487" || got.IDs.Regional != "r5" {
		t.Fatalf("expected ids unioned, got %+v", got.IDs)
	}
}

func TestDeepBridgeFailuresDegrade(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	details := &fakeDetailer{
		details: map[string]*regional.PersonDetail{"r2": {ID: "r2", BridgeID: "nm2"}},
		errs:    map[string]error{"r1": services.Wrap(services.ErrRateLimited, "regional", "person", "Returned HTTP 429", nil)},
	}
	finder := &fakeFinder{}
	r := newReconciler(reconcile.WithDeepBridge(details, finder))
	in := reconcile.Input{
		Server: []reconcile.ServerPerson{{LocalID: "L1", Name: "Tony Leung"}},
		Regional: []reconcile.RegionalCredit{
			{ID: "r1", Name: "甲"},
			{ID: "r2", Name: "乙"},
		},
	}

	res := run(t, store, r, in)

	if len(res.Cast) != 1 {
		t.Fatalf("expected only the server entry, got %v", names(res.Cast))
	}
	if res.Stats.DetailFailure != 1 || res.Stats.Dropped != 2 {
		t.Fatalf("expected one detail failure and two drops, got %+v", res.Stats)
	}
	if hasWrite(res.Writes, func(r identity.Record) bool { return r.RegionalID != "" }) {
		t.Fatalf("expected no regional writes, got %+v", res.Writes)
	}
}

func TestBridgeLookupRateLimitDefersItem(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	details := &fakeDetailer{details: map[string]*regional.PersonDetail{
		"r1": {ID: "r1", BridgeID: "nm1"},
	}}
	finder := &fakeFinder{errs: map[string]error{
		"nm1": services.Wrap(services.ErrRateLimited, "tmdb", "find", "Returned HTTP 429", nil),
	}}
	r := newReconciler(reconcile.WithDeepBridge(details, finder))

	snap, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	defer snap.Close()
	res, err := r.Reconcile(context.Background(), snap, reconcile.Input{
		Server:   []reconcile.ServerPerson{{LocalID: "L1", Name: "Tony Leung"}},
		Regional: []reconcile.RegionalCredit{{ID: "r1", Name: "甲"}},
	})
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected no result for a deferred item, got %+v", res)
	}
	if got := services.FailureStatus(err); got != queue.StatusDeferred {
		t.Fatalf("expected deferred status, got %s", got)
	}
}

func TestTranslationFailureDegrades(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	translator := &fakeTranslator{err: errors.New("engine offline")}
	in := reconcile.Input{
		Server: []reconcile.ServerPerson{{LocalID: "L1", Name: "Tom Hanks", Role: "Woody"}},
	}
	res := run(t, store, newReconciler(reconcile.WithTranslator(translator)), in)
	if res.Cast[0].Name != "Tom Hanks" || res.Cast[0].Character != "Woody" {
		t.Fatalf("expected originals kept, got %+v", res.Cast[0])
	}
}

func TestFuzzyPassMatchesAccentedNames(t *testing.T) {
	store := testsupport.MustOpenIdentities(t)
	in := reconcile.Input{
		Server:   []reconcile.ServerPerson{{LocalID: "L1", Name: "Penélope Cruz", Role: "Raimunda"}},
		Regional: []reconcile.RegionalCredit{{ID: "r1", Name: "佩内洛普·克鲁兹", AltName: "Penelope Cruz", Character: "雷蒙娜"}},
	}

	res := run(t, store, newReconciler(), in)
	if got := res.Cast[0]; got.Name != "佩内洛普·克鲁兹" || got.MatchedBy != "fuzzy_match" {
		t.Fatalf("expected fuzzy match, got %+v", got)
	}

	res = run(t, store, newReconciler(reconcile.WithFuzzyMatch(false)), in)
	if got := res.Cast[0]; got.Name != "Penélope Cruz" || got.Matched() {
		t.Fatalf("expected no match with fuzzy disabled, got %+v", got)
	}
}
