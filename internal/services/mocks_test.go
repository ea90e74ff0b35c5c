package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jmdto/linkshort/internal/models"
)

// MockLinkRepository is a mock implementation of repository.LinkRepository.
type MockLinkRepository struct {
	mock.Mock
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.Link) (*models.Link, error) {
	args := m.Called(ctx, link)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Link), args.Error(1)
}

func (m *MockLinkRepository) CreateVariant(ctx context.Context, variant *models.Variant) (*models.Variant, error) {
	args := m.Called(ctx, variant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Variant), args.Error(1)
}

func (m *MockLinkRepository) GetByCode(ctx context.Context, code string) (*models.Link, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Link), args.Error(1)
}

func (m *MockLinkRepository) GetVariantByCode(ctx context.Context, code string) (*models.Variant, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Variant), args.Error(1)
}

func (m *MockLinkRepository) GetByID(ctx context.Context, id string) (*models.Link, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Link), args.Error(1)
}

func (m *MockLinkRepository) GetVariantByID(ctx context.Context, id string) (*models.Variant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Variant), args.Error(1)
}

func (m *MockLinkRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Link, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Link), args.Error(1)
}

func (m *MockLinkRepository) UpdateLongURL(ctx context.Context, id, longURL string) (*models.Link, error) {
	args := m.Called(ctx, id, longURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Link), args.Error(1)
}

func (m *MockLinkRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockLinkRepository) DeleteVariant(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockLinkRepository) IncrementLinkClicks(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockLinkRepository) IncrementVariantClicks(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockLinkRepository) BatchIncrementClicks(ctx context.Context, counts map[models.ClickKey]int64) error {
	args := m.Called(ctx, counts)
	return args.Error(0)
}

func (m *MockLinkRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockLinkRepository) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// recordedClick captures a click recorded during a test.
type recordedClick struct {
	Kind models.TargetKind
	Code string
}

// fakeClickRecorder collects recorded clicks.
type fakeClickRecorder struct {
	clicks []recordedClick
}

func (f *fakeClickRecorder) Record(kind models.TargetKind, code string) {
	f.clicks = append(f.clicks, recordedClick{Kind: kind, Code: code})
}
