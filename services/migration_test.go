package services

import (
	"context"
	"strings"
	"testing"

	"altotrafico-web/internal/storage"
)

func TestMigrateSiteDocuments(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()

	set := func(key, doc string) {
		t.Helper()
		if err := kv.Set(ctx, key, []byte(doc), 0); err != nil {
			t.Fatal(err)
		}
	}
	// Legacy settings with an oversized logo and a script in the alt text.
	set(storage.KeySettings, `{"logoUrl":"/logo.png","logoAlt":"<b>Alto</b>","logoWidth":5000,"logoHeight":40,
		"footerLogoUrl":"javascript:alert(1)","footerLogoWidth":120,"footerLogoHeight":32}`)
	set(storage.KeyCases, `{"cases":[]}`)
	set(storage.KeyFooterLinks, `{"links":[]}`)

	tests := []struct {
		name   string
		dryRun bool
	}{
		{"dry run", true},
		{"apply", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := MigrateSiteDocuments(ctx, kv, tt.dryRun)
			if err != nil {
				t.Fatalf("MigrateSiteDocuments: %v", err)
			}

			got := map[string]string{}
			for _, r := range results {
				got[r.Key] = r.Status
			}
			want := map[string]string{
				storage.KeySettings:      MigrationUpdated,
				storage.KeyCases:         MigrationUnchanged,
				storage.KeyFooterLinks:   MigrationInvalid,
				storage.KeyHubSpotConfig: MigrationMissing,
			}
			for k, v := range want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}

			raw, _ := kv.Get(ctx, storage.KeySettings)
			rewritten := !strings.Contains(string(raw), "javascript:")
			if rewritten == tt.dryRun {
				t.Errorf("dryRun=%v but settings rewritten=%v: %s", tt.dryRun, rewritten, raw)
			}
		})
	}

	// A second pass has nothing left to do for settings.
	results, _ := MigrateSiteDocuments(ctx, kv, false)
	if results[0].Status != MigrationUnchanged {
		t.Errorf("second pass settings = %q", results[0].Status)
	}
}
