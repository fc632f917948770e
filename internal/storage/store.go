// Package storage persists site content as JSON documents in a key-value store.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"altotrafico-web/models"
)

const (
	KeySettings      = "site:settings"
	KeyFooterLinks   = "site:footer-links"
	KeyCases         = "site:cases"
	KeyHubSpotConfig = "site:hubspot-config"
	KeyUsers         = "site:users"
)

type Store struct {
	kv KV
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// KV exposes the underlying store for token and cache bookkeeping.
func (s *Store) KV() KV { return s.kv }

func (s *Store) read(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) write(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, raw, 0); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// ── Settings ────────────────────────────────────────────

func (s *Store) ReadSettings(ctx context.Context) (models.SiteSettings, error) {
	var settings models.SiteSettings
	found, err := s.read(ctx, KeySettings, &settings)
	if err != nil {
		return models.SiteSettings{}, err
	}
	if !found {
		return models.DefaultSiteSettings(), nil
	}
	return settings, nil
}

func (s *Store) WriteSettings(ctx context.Context, settings models.SiteSettings) error {
	return s.write(ctx, KeySettings, settings)
}

// ── Footer Links ────────────────────────────────────────

func (s *Store) ReadFooterLinks(ctx context.Context) (models.FooterLinksData, error) {
	data := models.FooterLinksData{LegalLinks: []models.FooterLink{}}
	if _, err := s.read(ctx, KeyFooterLinks, &data); err != nil {
		return models.FooterLinksData{}, err
	}
	if data.LegalLinks == nil {
		data.LegalLinks = []models.FooterLink{}
	}
	return data, nil
}

func (s *Store) WriteFooterLinks(ctx context.Context, data models.FooterLinksData) error {
	return s.write(ctx, KeyFooterLinks, data)
}

// ReadFooterLinkBySlug returns ErrNotFound when no legal page has that slug.
func (s *Store) ReadFooterLinkBySlug(ctx context.Context, slug string) (models.FooterLink, error) {
	data, err := s.ReadFooterLinks(ctx)
	if err != nil {
		return models.FooterLink{}, err
	}
	for _, l := range data.LegalLinks {
		if l.Slug != "" && l.Slug == slug {
			return l, nil
		}
	}
	return models.FooterLink{}, ErrNotFound
}

// ── Cases ───────────────────────────────────────────────

func (s *Store) ReadCases(ctx context.Context) (models.CasesData, error) {
	data := models.CasesData{Cases: []models.CaseStudy{}}
	if _, err := s.read(ctx, KeyCases, &data); err != nil {
		return models.CasesData{}, err
	}
	if data.Cases == nil {
		data.Cases = []models.CaseStudy{}
	}
	return data, nil
}

func (s *Store) WriteCases(ctx context.Context, data models.CasesData) error {
	return s.write(ctx, KeyCases, data)
}

// ── HubSpot Config ──────────────────────────────────────

func (s *Store) ReadHubSpotConfig(ctx context.Context) (models.HubSpotConfig, error) {
	var cfg models.HubSpotConfig
	if _, err := s.read(ctx, KeyHubSpotConfig, &cfg); err != nil {
		return models.HubSpotConfig{}, err
	}
	return cfg, nil
}

func (s *Store) WriteHubSpotConfig(ctx context.Context, cfg models.HubSpotConfig) error {
	return s.write(ctx, KeyHubSpotConfig, cfg)
}

// ── Users ───────────────────────────────────────────────

func (s *Store) ReadUsers(ctx context.Context) ([]models.AdminUser, error) {
	users := []models.AdminUser{}
	if _, err := s.read(ctx, KeyUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) WriteUsers(ctx context.Context, users []models.AdminUser) error {
	return s.write(ctx, KeyUsers, users)
}

// FindUserByUsername returns (nil, nil) when no user matches.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	users, err := s.ReadUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Username == username {
			u := users[i]
			return &u, nil
		}
	}
	return nil, nil
}
