// Package services contains business logic.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/jmdto/linkshort/internal/analytics"
	"github.com/jmdto/linkshort/internal/metrics"
	"github.com/jmdto/linkshort/internal/models"
	"github.com/jmdto/linkshort/internal/repository"
	"github.com/jmdto/linkshort/internal/shortcode"
	"github.com/jmdto/linkshort/pkg/logger"
)

// ClickRecorder schedules a best-effort click increment.
type ClickRecorder interface {
	Record(kind models.TargetKind, code string)
}

// Resolver turns an inbound short code into a redirect target.
type Resolver struct {
	repo     repository.LinkRepository
	clicks   ClickRecorder
	notifier analytics.Notifier
	log      *logger.Logger
}

// NewResolver creates a Resolver. clicks and notifier may be nil, in which
// case the corresponding side effect is skipped.
func NewResolver(repo repository.LinkRepository, clicks ClickRecorder, notifier analytics.Notifier, log *logger.Logger) *Resolver {
	if notifier == nil {
		notifier = analytics.NoopNotifier{}
	}
	return &Resolver{repo: repo, clicks: clicks, notifier: notifier, log: log}
}

// Resolve maps code to its target URL.
//
// A code names either a base link (target is the long URL unchanged) or a
// variant (target is the parent's long URL with the variant's UTM
// parameters merged in). The two namespaces are mutually exclusive by
// allocation, so lookup order only affects which query runs first. The
// click increment and the analytics event are scheduled after the target is
// computed and never delay or fail the redirect.
func (s *Resolver) Resolve(ctx context.Context, code, referrer string) (*models.ResolvedTarget, error) {
	if !shortcode.IsWellFormed(code) {
		metrics.RedirectsNotFoundTotal.Inc()
		return nil, models.ErrLinkNotFound
	}

	link, err := s.repo.GetByCode(ctx, code)
	if err == nil {
		target := &models.ResolvedTarget{
			Kind:     models.KindBase,
			Code:     code,
			FinalURL: link.LongURL,
			Tags:     map[string]string{},
		}
		s.finish(target, referrer)
		return target, nil
	}
	if !errors.Is(err, models.ErrLinkNotFound) {
		return nil, err
	}

	variant, err := s.repo.GetVariantByCode(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrLinkNotFound) {
			metrics.RedirectsNotFoundTotal.Inc()
		}
		return nil, err
	}
	if variant.Parent == nil {
		return nil, fmt.Errorf("variant %s has no parent link", code)
	}

	tags := variant.UTMTags()
	finalURL, err := mergeUTM(variant.Parent.LongURL, tags)
	if err != nil {
		return nil, fmt.Errorf("failed to build target url: %w", err)
	}

	target := &models.ResolvedTarget{
		Kind:     models.KindVariant,
		Code:     code,
		FinalURL: finalURL,
		Tags:     tags,
	}
	s.finish(target, referrer)
	return target, nil
}

// finish schedules the post-resolution side effects.
func (s *Resolver) finish(target *models.ResolvedTarget, referrer string) {
	metrics.RecordRedirect(string(target.Kind))

	if s.clicks != nil {
		s.clicks.Record(target.Kind, target.Code)
	}

	data := make(map[string]string, len(target.Tags)+2)
	for k, v := range target.Tags {
		data[k] = v
	}
	data["shortCode"] = target.Code
	data["kind"] = string(target.Kind)

	s.notifier.Notify(analytics.Event{
		URL:      target.FinalURL,
		Title:    target.Code,
		Referrer: referrer,
		Data:     data,
	})
}

// mergeUTM sets each tag as a query parameter on rawURL, overwriting any
// parameter of the same name already present. The variant's intent wins
// over tracking parameters baked into the stored URL; untouched parameters
// survive as-is.
func mergeUTM(rawURL string, tags map[string]string) (string, error) {
	if len(tags) == 0 {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	for key, value := range tags {
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
