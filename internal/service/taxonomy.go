package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/kryzelc/poybash-furniture-sub001/internal/domain"
	"github.com/kryzelc/poybash-furniture-sub001/internal/repository"
	apperrors "github.com/kryzelc/poybash-furniture-sub001/pkg/errors"
)

// TaxonomyService manages the controlled vocabularies products reference.
// Entries are never hard deleted.
type TaxonomyService struct {
	repo   repository.TaxonomyRepository
	logger *slog.Logger
}

// NewTaxonomyService creates a new taxonomy service.
func NewTaxonomyService(repo repository.TaxonomyRepository, logger *slog.Logger) *TaxonomyService {
	return &TaxonomyService{repo: repo, logger: logger}
}

func validateKind(kind domain.TaxonomyKind) error {
	if !domain.IsValidTaxonomyKind(string(kind)) {
		return domain.NewValidationError("kind", "unknown taxonomy kind %q", kind)
	}
	return nil
}

// ensureUnique fails with DuplicateNameError when another active entry of
// kind already uses name.
func (s *TaxonomyService) ensureUnique(ctx context.Context, kind domain.TaxonomyKind, name string, selfID int64) error {
	existing, err := s.repo.FindActiveByName(ctx, kind, name)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find taxonomy entry: %w", err)
	}
	if existing.ID != selfID {
		return &domain.DuplicateNameError{Kind: kind, Name: name}
	}
	return nil
}

func (s *TaxonomyService) get(ctx context.Context, kind domain.TaxonomyKind, id int64) (*domain.TaxonomyEntry, error) {
	e, err := s.repo.Get(ctx, kind, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound(string(kind), strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("get taxonomy entry: %w", err)
	}
	return e, nil
}

// Add creates a new active entry.
func (s *TaxonomyService) Add(ctx context.Context, actor domain.Actor, kind domain.TaxonomyKind, name string) (*domain.TaxonomyEntry, error) {
	if err := actor.Require(domain.PermManageTaxonomy); err != nil {
		return nil, err
	}
	if err := validateKind(kind); err != nil {
		return nil, err
	}
	name = domain.NormalizeName(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	if err := s.ensureUnique(ctx, kind, name, 0); err != nil {
		return nil, err
	}

	entry := &domain.TaxonomyEntry{Kind: kind, Name: name, Active: true}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("add taxonomy entry: %w", err)
	}

	s.logger.InfoContext(ctx, "taxonomy entry added",
		slog.String("kind", string(kind)),
		slog.Int64("id", entry.ID),
		slog.String("name", entry.Name),
	)
	return entry, nil
}

// Update renames an entry. Existing products keep the name they stored.
func (s *TaxonomyService) Update(ctx context.Context, actor domain.Actor, kind domain.TaxonomyKind, id int64, name string) (*domain.TaxonomyEntry, error) {
	if err := actor.Require(domain.PermManageTaxonomy); err != nil {
		return nil, err
	}
	if err := validateKind(kind); err != nil {
		return nil, err
	}
	name = domain.NormalizeName(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}

	entry, err := s.get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if entry.Active {
		if err := s.ensureUnique(ctx, kind, name, id); err != nil {
			return nil, err
		}
	}

	entry.Name = name
	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("update taxonomy entry: %w", err)
	}
	return entry, nil
}

// Deactivate hides an entry from selection lists.
func (s *TaxonomyService) Deactivate(ctx context.Context, actor domain.Actor, kind domain.TaxonomyKind, id int64) (*domain.TaxonomyEntry, error) {
	return s.setActive(ctx, actor, kind, id, false)
}

// Reactivate restores a deactivated entry unless an active entry with the
// same name was added meanwhile.
func (s *TaxonomyService) Reactivate(ctx context.Context, actor domain.Actor, kind domain.TaxonomyKind, id int64) (*domain.TaxonomyEntry, error) {
	return s.setActive(ctx, actor, kind, id, true)
}

func (s *TaxonomyService) setActive(ctx context.Context, actor domain.Actor, kind domain.TaxonomyKind, id int64, active bool) (*domain.TaxonomyEntry, error) {
	if err := actor.Require(domain.PermManageTaxonomy); err != nil {
		return nil, err
	}
	if err := validateKind(kind); err != nil {
		return nil, err
	}

	entry, err := s.get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if entry.Active == active {
		return entry, nil
	}
	if active {
		if err := s.ensureUnique(ctx, kind, entry.Name, id); err != nil {
			return nil, err
		}
	}

	entry.Active = active
	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("update taxonomy entry: %w", err)
	}

	s.logger.InfoContext(ctx, "taxonomy entry state changed",
		slog.String("kind", string(kind)),
		slog.Int64("id", id),
		slog.Bool("active", active),
	)
	return entry, nil
}

// Get returns one entry.
func (s *TaxonomyService) Get(ctx context.Context, kind domain.TaxonomyKind, id int64) (*domain.TaxonomyEntry, error) {
	if err := validateKind(kind); err != nil {
		return nil, err
	}
	return s.get(ctx, kind, id)
}

// List returns the entries of kind ordered by id.
func (s *TaxonomyService) List(ctx context.Context, kind domain.TaxonomyKind, includeInactive bool) ([]domain.TaxonomyEntry, error) {
	if err := validateKind(kind); err != nil {
		return nil, err
	}
	entries, err := s.repo.List(ctx, kind, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list taxonomy: %w", err)
	}
	return entries, nil
}

// ResolveActive returns the active entry of kind named name or an
// UnknownTaxonomyReferenceError.
func (s *TaxonomyService) ResolveActive(ctx context.Context, kind domain.TaxonomyKind, name string) (*domain.TaxonomyEntry, error) {
	e, err := s.repo.FindActiveByName(ctx, kind, name)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, &domain.UnknownTaxonomyReferenceError{Kind: kind, Name: name}
		}
		return nil, fmt.Errorf("resolve taxonomy: %w", err)
	}
	return e, nil
}
