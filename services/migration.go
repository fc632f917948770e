package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"altotrafico-web/internal/storage"
	"altotrafico-web/models"
)

// Migration outcomes per document.
const (
	MigrationMissing   = "missing"
	MigrationUnchanged = "unchanged"
	MigrationUpdated   = "updated"
	MigrationInvalid   = "invalid"
)

type MigrationResult struct {
	Key    string `json:"key"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type documentRule struct {
	key      string
	validate func([]byte) (any, error)
}

var documentRules = []documentRule{
	{storage.KeySettings, func(raw []byte) (any, error) { return ValidateSettings(raw) }},
	{storage.KeyFooterLinks, func(raw []byte) (any, error) { return ValidateFooterLinks(raw) }},
	{storage.KeyCases, func(raw []byte) (any, error) { return ValidateCases(raw) }},
	{storage.KeyHubSpotConfig, func(raw []byte) (any, error) {
		var cfg models.HubSpotConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, ErrInvalidPayload
		}
		if cfg.AccessToken == "" {
			return cfg, nil
		}
		token, err := ValidateHubSpotToken(cfg.AccessToken)
		if err != nil {
			return nil, err
		}
		return models.HubSpotConfig{AccessToken: token}, nil
	}},
}

// MigrateSiteDocuments runs every stored site document through the same
// validation the admin API applies on save and rewrites the ones that come
// out different. Documents that fail validation are reported and left alone.
// With dryRun nothing is written.
func MigrateSiteDocuments(ctx context.Context, kv storage.KV, dryRun bool) ([]MigrationResult, error) {
	results := make([]MigrationResult, 0, len(documentRules))
	for _, rule := range documentRules {
		res := MigrationResult{Key: rule.key}

		raw, err := kv.Get(ctx, rule.key)
		if errors.Is(err, storage.ErrNotFound) {
			res.Status = MigrationMissing
			results = append(results, res)
			continue
		}
		if err != nil {
			return results, fmt.Errorf("read %s: %w", rule.key, err)
		}

		clean, err := rule.validate(raw)
		if err != nil {
			res.Status = MigrationInvalid
			res.Error = err.Error()
			results = append(results, res)
			continue
		}

		out, err := json.Marshal(clean)
		if err != nil {
			return results, fmt.Errorf("encode %s: %w", rule.key, err)
		}
		if sameJSON(raw, out) {
			res.Status = MigrationUnchanged
			results = append(results, res)
			continue
		}

		res.Status = MigrationUpdated
		if !dryRun {
			if err := kv.Set(ctx, rule.key, out, 0); err != nil {
				return results, fmt.Errorf("write %s: %w", rule.key, err)
			}
		}
		results = append(results, res)
	}
	return results, nil
}

func sameJSON(a, b []byte) bool {
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}
