package main

import (
	"context"
	"testing"

	"castsync/internal/identity"
	"castsync/internal/logging"
	"castsync/internal/translation"
)

func TestIdentityCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"identity", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("identity list: %v", err)
	}
	requireContains(t, out, "No identities stored")

	store := identity.NewStore(env.db, logging.NewNop())
	ctx := context.Background()
	if err := store.ApplyBatch(ctx, []identity.Record{
		{LocalID: "p1", MetadataID: "1337", RegionalID: "r1", DisplayName: "Tony Leung Chiu-wai", RegionalName: "梁朝伟"},
		{LocalID: "p2", MetadataID: "1338", DisplayName: "Maggie Cheung"},
		{LocalID: "p3", RegionalID: "r1", DisplayName: "Impostor"},
	}); err != nil {
		t.Fatalf("seed identities: %v", err)
	}

	out, _, err = runCLI(t, []string{"identity", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("identity list: %v", err)
	}
	requireContains(t, out, "梁朝伟")
	requireContains(t, out, "Maggie Cheung")

	out, _, err = runCLI(t, []string{"identity", "show", "1337"}, env.configPath)
	if err != nil {
		t.Fatalf("identity show: %v", err)
	}
	requireContains(t, out, "Tony Leung Chiu-wai")
	requireContains(t, out, "Regional id:   r1")

	if _, _, err := runCLI(t, []string{"identity", "show", "nope"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown id")
	}

	out, _, err = runCLI(t, []string{"identity", "conflicts"}, env.configPath)
	if err != nil {
		t.Fatalf("identity conflicts: %v", err)
	}
	requireContains(t, out, "regional_person_id")
	requireContains(t, out, "Impostor")
}

func TestTranslationsCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	cache := translation.NewSQLiteCache(env.db)
	ctx := context.Background()

	out, _, err := runCLI(t, []string{"translations", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("translations list: %v", err)
	}
	requireContains(t, out, "No cached translations")

	for original, translated := range map[string]string{
		"Maggie Cheung": "张曼玉",
		"Rebecca Pan":   "潘迪华",
		"Mr. Chow":      "周先生",
	} {
		if err := cache.Put(ctx, original, translated, "llm"); err != nil {
			t.Fatalf("seed %s: %v", original, err)
		}
	}

	out, _, err = runCLI(t, []string{"translations", "list", "--filter", "Pan"}, env.configPath)
	if err != nil {
		t.Fatalf("translations list filter: %v", err)
	}
	requireContains(t, out, "潘迪华")
	requireNotContains(t, out, "张曼玉")

	out, _, err = runCLI(t, []string{"translations", "clear", "Rebecca Pan", "Nobody"}, env.configPath)
	if err != nil {
		t.Fatalf("translations clear one: %v", err)
	}
	requireContains(t, out, "Cleared 1 cached translations")

	out, _, err = runCLI(t, []string{"translations", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("translations clear: %v", err)
	}
	requireContains(t, out, "Cleared 2 cached translations")
}
