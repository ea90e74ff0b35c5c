package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jmdto/linkshort/internal/auth"
	"github.com/jmdto/linkshort/internal/metrics"
	"github.com/jmdto/linkshort/internal/models"
	"github.com/jmdto/linkshort/internal/repository"
	"github.com/jmdto/linkshort/internal/shortcode"
	"github.com/jmdto/linkshort/pkg/logger"
)

// ErrInvalidCustomCode is returned when a caller-supplied code does not
// match the short code format. Custom codes must be well formed or the
// redirect path would never match them.
var ErrInvalidCustomCode = errors.New("custom short code must be 6 characters from the code alphabet")

// writeRaceRetries bounds how often an auto-generated allocation loops back
// after losing the check-then-write race at the store.
const writeRaceRetries = 3

// CreateLinkRequest is the input for creating a base link.
type CreateLinkRequest struct {
	LongURL    string
	CustomCode string
}

// CreateVariantRequest is the input for creating a UTM variant.
type CreateVariantRequest struct {
	LinkID      string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	UTMTerm     string
	UTMContent  string
}

// LinkService manages links and variants on behalf of authenticated callers.
type LinkService struct {
	repo    repository.LinkRepository
	alloc   *shortcode.Allocator
	baseURL string
	log     *logger.Logger
}

// NewLinkService creates a LinkService.
func NewLinkService(repo repository.LinkRepository, alloc *shortcode.Allocator, baseURL string, log *logger.Logger) *LinkService {
	return &LinkService{repo: repo, alloc: alloc, baseURL: baseURL, log: log}
}

// ShortURL returns the public URL for a short code.
func (s *LinkService) ShortURL(code string) string {
	return fmt.Sprintf("%s/%s", s.baseURL, code)
}

// Create allocates a short code and stores a new link for the caller.
//
// With a custom code the allocation check happens exactly once and a
// collision is surfaced as shortcode.ErrCodeTaken. With an auto-generated
// code a lost write race re-runs allocation, since the caller never chose
// the colliding code.
func (s *LinkService) Create(ctx context.Context, caller *auth.Identity, req CreateLinkRequest) (*models.Link, error) {
	if req.LongURL == "" {
		return nil, models.ErrEmptyURL
	}
	if !models.IsValidURL(req.LongURL) {
		return nil, models.ErrInvalidURL
	}
	if req.CustomCode != "" && !shortcode.IsWellFormed(req.CustomCode) {
		return nil, ErrInvalidCustomCode
	}

	for attempt := 0; ; attempt++ {
		code, err := s.alloc.Allocate(ctx, req.CustomCode, s.repo.CodeExists)
		if err != nil {
			s.recordAllocationFailure(err)
			return nil, err
		}

		link := &models.Link{
			ID:        uuid.NewString(),
			ShortCode: code,
			LongURL:   req.LongURL,
			OwnerID:   caller.UserID,
		}

		created, err := s.repo.Create(ctx, link)
		if err == nil {
			metrics.LinksCreatedTotal.WithLabelValues(string(models.KindBase)).Inc()
			return created, nil
		}
		if errors.Is(err, shortcode.ErrCodeTaken) && req.CustomCode == "" && attempt < writeRaceRetries {
			metrics.AllocationCollisionsTotal.Inc()
			s.log.Warn("lost short code write race, reallocating", "code", code)
			continue
		}
		return nil, err
	}
}

// CreateVariant allocates a code in the shared namespace and attaches a UTM
// variant to the caller's link. Variant codes are always auto-generated.
func (s *LinkService) CreateVariant(ctx context.Context, caller *auth.Identity, req CreateVariantRequest) (*models.Variant, error) {
	link, err := s.authorizedLink(ctx, caller, req.LinkID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		code, err := s.alloc.Allocate(ctx, "", s.repo.CodeExists)
		if err != nil {
			s.recordAllocationFailure(err)
			return nil, err
		}

		variant := &models.Variant{
			ID:          uuid.NewString(),
			ShortCode:   code,
			LinkID:      link.ID,
			UTMSource:   req.UTMSource,
			UTMMedium:   req.UTMMedium,
			UTMCampaign: req.UTMCampaign,
			UTMTerm:     req.UTMTerm,
			UTMContent:  req.UTMContent,
		}

		created, err := s.repo.CreateVariant(ctx, variant)
		if err == nil {
			metrics.LinksCreatedTotal.WithLabelValues(string(models.KindVariant)).Inc()
			return created, nil
		}
		if errors.Is(err, shortcode.ErrCodeTaken) && attempt < writeRaceRetries {
			metrics.AllocationCollisionsTotal.Inc()
			s.log.Warn("lost short code write race, reallocating", "code", code)
			continue
		}
		return nil, err
	}
}

// List returns the caller's links with their variants.
func (s *LinkService) List(ctx context.Context, caller *auth.Identity) ([]models.Link, error) {
	return s.repo.ListByOwner(ctx, caller.UserID)
}

// Update changes a link's destination URL.
func (s *LinkService) Update(ctx context.Context, caller *auth.Identity, linkID, longURL string) (*models.Link, error) {
	if _, err := s.authorizedLink(ctx, caller, linkID); err != nil {
		return nil, err
	}
	return s.repo.UpdateLongURL(ctx, linkID, longURL)
}

// Delete removes a link and, by cascade, all its variants.
func (s *LinkService) Delete(ctx context.Context, caller *auth.Identity, linkID string) error {
	if _, err := s.authorizedLink(ctx, caller, linkID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, linkID)
}

// DeleteVariant removes a single variant from the caller's link.
func (s *LinkService) DeleteVariant(ctx context.Context, caller *auth.Identity, variantID string) error {
	// Ownership is checked through the parent: the variant carries no
	// owner of its own.
	variant, err := s.repo.GetVariantByID(ctx, variantID)
	if err != nil {
		return err
	}
	if _, err := s.authorizedLink(ctx, caller, variant.LinkID); err != nil {
		return err
	}
	_, err = s.repo.DeleteVariant(ctx, variantID)
	return err
}

// authorizedLink fetches a link and checks the caller may act on it.
// Admins may act on any link.
func (s *LinkService) authorizedLink(ctx context.Context, caller *auth.Identity, linkID string) (*models.Link, error) {
	link, err := s.repo.GetByID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if link.OwnerID != caller.UserID && !caller.IsAdmin {
		return nil, models.ErrForbidden
	}
	return link, nil
}

func (s *LinkService) recordAllocationFailure(err error) {
	if errors.Is(err, shortcode.ErrAllocationExhausted) {
		metrics.AllocationExhaustedTotal.Inc()
		s.log.Error("short code allocation exhausted")
	}
}
