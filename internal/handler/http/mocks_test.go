package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/RelistGo/internal/content"
	"github.com/utafrali/RelistGo/internal/domain"
	"github.com/utafrali/RelistGo/internal/event"
	"github.com/utafrali/RelistGo/internal/harvester"
	"github.com/utafrali/RelistGo/internal/imaging"
	"github.com/utafrali/RelistGo/internal/rakuten"
	"github.com/utafrali/RelistGo/internal/repository"
	"github.com/utafrali/RelistGo/internal/service"
	"github.com/utafrali/RelistGo/internal/storage/memory"
	"github.com/utafrali/RelistGo/internal/translator"
	"github.com/utafrali/RelistGo/pkg/health"
)

// --- Mock repositories ---

type mockOriginRepo struct {
	mock.Mock
}

func (m *mockOriginRepo) UpsertBatch(ctx context.Context, products []domain.OriginProduct) (*repository.OriginUpsertResult, error) {
	args := m.Called(ctx, products)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.OriginUpsertResult), args.Error(1)
}

func (m *mockOriginRepo) GetByProductID(ctx context.Context, productID string) (*domain.OriginProduct, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OriginProduct), args.Error(1)
}

func (m *mockOriginRepo) ListByProductIDs(ctx context.Context, productIDs []string) ([]domain.OriginProduct, error) {
	args := m.Called(ctx, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.OriginProduct), args.Error(1)
}

func (m *mockOriginRepo) List(ctx context.Context, filter repository.OriginFilter) ([]domain.OriginProduct, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.OriginProduct), args.Int(1), args.Error(2)
}

func (m *mockOriginRepo) SetRegistrationStatus(ctx context.Context, productIDs []string, status int) (int64, error) {
	args := m.Called(ctx, productIDs, status)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockOriginRepo) MarkPreviouslyRegistered(ctx context.Context, productIDs []string) (int64, error) {
	args := m.Called(ctx, productIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockOriginRepo) PropagateDimension(ctx context.Context, categoryIDs []string, field domain.DimensionField, value *float64) (int64, error) {
	args := m.Called(ctx, categoryIDs, field, value)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockOriginRepo) SyncRakutenCategories(ctx context.Context, categoryIDs []string, rakutenIDs []string) (int64, error) {
	args := m.Called(ctx, categoryIDs, rakutenIDs)
	return args.Get(0).(int64), args.Error(1)
}

type mockCanonicalRepo struct {
	mock.Mock
}

func (m *mockCanonicalRepo) Upsert(ctx context.Context, p *domain.CanonicalProduct) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockCanonicalRepo) GetByItemNumber(ctx context.Context, itemNumber string) (*domain.CanonicalProduct, error) {
	args := m.Called(ctx, itemNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CanonicalProduct), args.Error(1)
}

func (m *mockCanonicalRepo) List(ctx context.Context, filter repository.CanonicalFilter) ([]domain.CanonicalProduct, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.CanonicalProduct), args.Int(1), args.Error(2)
}

func (m *mockCanonicalRepo) UpdateHideItem(ctx context.Context, itemNumbers []string, hidden bool) (int64, error) {
	args := m.Called(ctx, itemNumbers, hidden)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCanonicalRepo) Delete(ctx context.Context, itemNumbers []string) (int64, error) {
	args := m.Called(ctx, itemNumbers)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCanonicalRepo) RemoveImage(ctx context.Context, itemNumber string, location string) error {
	args := m.Called(ctx, itemNumber, location)
	return args.Error(0)
}

func (m *mockCanonicalRepo) SetRegistrationStatus(ctx context.Context, itemNumber string, status *string) error {
	args := m.Called(ctx, itemNumber, status)
	return args.Error(0)
}

func (m *mockCanonicalRepo) SetImageRegistrationStatus(ctx context.Context, itemNumber string, status string) error {
	args := m.Called(ctx, itemNumber, status)
	return args.Error(0)
}

func (m *mockCanonicalRepo) SetInventoryRegistrationStatus(ctx context.Context, itemNumber string, status string) error {
	args := m.Called(ctx, itemNumber, status)
	return args.Error(0)
}

func (m *mockCanonicalRepo) UpdateRCatID(ctx context.Context, itemNumber string, rCatID []string) error {
	args := m.Called(ctx, itemNumber, rCatID)
	return args.Error(0)
}

type mockCategoryRepo struct {
	mock.Mock
}

func (m *mockCategoryRepo) Create(ctx context.Context, category *domain.Category) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *mockCategoryRepo) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategoryRepo) Update(ctx context.Context, category *domain.Category) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *mockCategoryRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockCategoryRepo) ListAll(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Category), args.Error(1)
}

func (m *mockCategoryRepo) GetByMemberCode(ctx context.Context, code string) (*domain.Category, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *mockCategoryRepo) RakutenCategoryMap(ctx context.Context) (map[string][]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]string), args.Error(1)
}

func (m *mockCategoryRepo) CreatePrimary(ctx context.Context, category *domain.PrimaryCategory) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *mockCategoryRepo) ListPrimaries(ctx context.Context) ([]domain.PrimaryCategory, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PrimaryCategory), args.Error(1)
}

func (m *mockCategoryRepo) DeletePrimary(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockSettingsRepo struct {
	mock.Mock
}

func (m *mockSettingsRepo) GetPricingSettings(ctx context.Context) (domain.PricingSettings, []string, error) {
	args := m.Called(ctx)
	var unknown []string
	if args.Get(1) != nil {
		unknown = args.Get(1).([]string)
	}
	return args.Get(0).(domain.PricingSettings), unknown, args.Error(2)
}

func (m *mockSettingsRepo) SavePricingSettings(ctx context.Context, settings domain.PricingSettings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

type mockHarvesterClient struct {
	mock.Mock
}

func (m *mockHarvesterClient) SearchByKeyword(ctx context.Context, keyword string, page, pageSize int) (*harvester.SearchResult, error) {
	args := m.Called(ctx, keyword, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*harvester.SearchResult), args.Error(1)
}

func (m *mockHarvesterClient) SearchByCategory(ctx context.Context, categoryIDs []string, page, pageSize int) (*harvester.SearchResult, error) {
	args := m.Called(ctx, categoryIDs, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*harvester.SearchResult), args.Error(1)
}

func (m *mockHarvesterClient) GetProductDetail(ctx context.Context, productID string) (map[string]any, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]any), args.Error(1)
}

func (m *mockHarvesterClient) SearchByImage(ctx context.Context, imageBase64 string, page, pageSize int) (*harvester.SearchResult, error) {
	args := m.Called(ctx, imageBase64, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*harvester.SearchResult), args.Error(1)
}

// --- Fakes ---

type stubEngine struct{}

func (stubEngine) Translate(context.Context, string, string, string) (string, error) {
	return "", errors.New("no translation engine in tests")
}

func (stubEngine) Detect(context.Context, string) (string, error) {
	return "", errors.New("no translation engine in tests")
}

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, *domain.OriginProduct) (*content.Result, error) {
	return &content.Result{
		Title:            "コットンTシャツ",
		Catchphrase:      "定番の一枚",
		Description:      "柔らかなコットン素材です。",
		SalesDescription: "サイズをお選びください。",
	}, nil
}

// --- Test environment ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testEnv wires the production router over mocked repositories. The
// marketplace client points at an unroutable address; tests exercising
// registration stop at the store layer.
type testEnv struct {
	origins    *mockOriginRepo
	canonical  *mockCanonicalRepo
	categories *mockCategoryRepo
	settings   *mockSettingsRepo
	client     *mockHarvesterClient
	quota      *imaging.QuotaFlag
	router     http.Handler
}

func newTestEnv() *testEnv {
	logger := testLogger()

	env := &testEnv{
		origins:    new(mockOriginRepo),
		canonical:  new(mockCanonicalRepo),
		categories: new(mockCategoryRepo),
		settings:   new(mockSettingsRepo),
		client:     new(mockHarvesterClient),
		quota:      imaging.NewQuotaFlag(),
	}

	producer := event.NewProducer(nil, logger)
	store := memory.New("https://objstore.test")
	pipeline := imaging.NewPipeline(store, nil, env.quota, 0, logger)
	rmsClient := rakuten.NewClient(rakuten.Config{
		BaseURL:       "http://127.0.0.1:1",
		ServiceSecret: "secret",
		LicenseKey:    "license",
	}, logger)

	productService := service.NewProductService(env.canonical, env.origins, logger)
	harvestService := service.NewHarvestService(env.client, env.origins, env.categories, producer, logger)
	materializerService := service.NewMaterializerService(
		env.origins, env.canonical, env.categories, env.settings,
		translator.NewService(stubEngine{}, logger),
		stubGenerator{},
		pipeline,
		producer,
		2,
		logger,
	)
	registrationService := service.NewRegistrationService(env.canonical, env.origins, rmsClient, store, producer, logger)
	categoryService := service.NewCategoryService(env.categories, env.origins, producer, logger)
	settingsService := service.NewSettingsService(env.settings, logger)
	exportService := service.NewExportService(env.canonical, logger)

	env.router = NewRouter(
		productService,
		harvestService,
		materializerService,
		registrationService,
		categoryService,
		settingsService,
		exportService,
		env.quota,
		health.NewHandler(),
		RouterConfig{Environment: "development"},
		logger,
	)
	return env
}

// do runs one request through the production router. A non-nil body is
// JSON-encoded and sent with the matching Content-Type.
func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

// envelope mirrors the httputil response wrapper for decoding in tests.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *errorBody      `json:"error"`
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var resp envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}
