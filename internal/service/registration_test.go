package service

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/RelistGo/internal/domain"
	"github.com/utafrali/RelistGo/internal/rakuten"
	"github.com/utafrali/RelistGo/internal/storage"
	"github.com/utafrali/RelistGo/internal/storage/memory"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
)

func newRMSClient(t *testing.T, handler http.Handler) *rakuten.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return rakuten.NewClient(rakuten.Config{
		BaseURL:       srv.URL,
		ServiceSecret: "secret",
		LicenseKey:    "license",
	}, newTestLogger())
}

func newRegistration(canonical *mockCanonicalRepo, origins *mockOriginRepo, client *rakuten.Client, store storage.Storage) *RegistrationService {
	if store == nil {
		store = memory.New("https://objstore.test")
	}
	return NewRegistrationService(canonical, origins, client, store, noopProducer(), newTestLogger())
}

// registeredProduct is a minimal canonical row ready for registration.
func registeredProduct() *domain.CanonicalProduct {
	return &domain.CanonicalProduct{
		ItemNumber: "712498123",
		Title:      "コットンTシャツ 全2色",
		GenreID:    "201198",
		RCatID:     []string{"407533", "100001"},
		HideItem:   true,
		ItemType:   domain.ItemTypeNormal,
		Variants: map[string]domain.Variant{
			"S": {StandardPrice: "1200"},
		},
		Inventory: domain.Inventory{
			ManageNumber: "712498123",
			Variants: []domain.InventoryVariant{
				{VariantID: "S", Quantity: 100, Mode: domain.InventoryModeAbsolute,
					OperationLeadTime: &domain.OperationLeadTime{NormalDeliveryTimeID: domain.NormalDeliveryTimeID}},
			},
		},
	}
}

func statusIs(want string) any {
	return mock.MatchedBy(func(s *string) bool { return s != nil && *s == want })
}

func cabinetXML(inner string) string {
	return `<result><status><interfaceId>cabinet</interfaceId><systemStatus>OK</systemStatus><message>OK</message></status>` + inner + `</result>`
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRegister_UpsertsItemAndMapsCategories(t *testing.T) {
	var itemBody, categoryBody []byte
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "ESA "))
		body, _ := readAllBody(r)
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/es/2.0/items/manage-numbers/712498123":
			itemBody = body
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPut && r.URL.Path == "/es/2.0/categories/item-mappings/manage-numbers/712498123":
			categoryBody = body
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	canonical := new(mockCanonicalRepo)
	canonical.On("GetByItemNumber", mock.Anything, "712498123").Return(registeredProduct(), nil)
	canonical.On("SetRegistrationStatus", mock.Anything, "712498123", statusIs(domain.StatusRegistered)).Return(nil)

	svc := newRegistration(canonical, new(mockOriginRepo), newRMSClient(t, handler), nil)
	outcome, err := svc.Register(context.Background(), "712498123")
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.False(t, outcome.PriceOnly)
	assert.True(t, outcome.CategoryMapped)
	assert.Empty(t, outcome.Error)

	var item map[string]any
	require.NoError(t, json.Unmarshal(itemBody, &item))
	assert.Equal(t, "コットンTシャツ 全2色", item["title"])
	assert.Equal(t, "201198", item["genreId"])
	assert.Equal(t, true, item["hideItem"])

	assert.JSONEq(t, `{"categoryIds":[407533,100001]}`, string(categoryBody))
	canonical.AssertExpectations(t)
}

func TestRegister_BlockedProductPatchesPricesOnly(t *testing.T) {
	var patched []byte
	var calls []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		body, _ := readAllBody(r)
		patched = body
		if r.Method != http.MethodPatch {
			t.Errorf("blocked product must PATCH, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	p := registeredProduct()
	p.Block = true
	canonical := new(mockCanonicalRepo)
	canonical.On("GetByItemNumber", mock.Anything, "712498123").Return(p, nil)
	canonical.On("SetRegistrationStatus", mock.Anything, "712498123", statusIs(domain.StatusRegistered)).Return(nil)

	svc := newRegistration(canonical, new(mockOriginRepo), newRMSClient(t, handler), nil)
	outcome, err := svc.Register(context.Background(), "712498123")
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.True(t, outcome.PriceOnly)
	assert.False(t, outcome.CategoryMapped, "blocked products are never category-mapped")
	assert.JSONEq(t, `{"variants":{"S":{"standardPrice":1200}},"genreId":"201198"}`, string(patched))
	require.Len(t, calls, 1)
	assert.Equal(t, "PATCH /es/2.0/items/manage-numbers/712498123", calls[0])
}

func TestRegister_MarketplaceRejectionRecordedAsOutcome(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"code":"ITEM-0001","message":"title too long"}]}`))
	})

	canonical := new(mockCanonicalRepo)
	canonical.On("GetByItemNumber", mock.Anything, "712498123").Return(registeredProduct(), nil)
	canonical.On("SetRegistrationStatus", mock.Anything, "712498123", statusIs(domain.StatusFailed)).Return(nil)

	svc := newRegistration(canonical, new(mockOriginRepo), newRMSClient(t, handler), nil)
	outcome, err := svc.Register(context.Background(), "712498123")
	require.NoError(t, err, "a marketplace rejection is an outcome, not an error")

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "status 400")
	assert.Contains(t, outcome.Error, "ITEM-0001: title too long")
	canonical.AssertExpectations(t)
}

func TestRegisterBatch_MixesOutcomesAndErrors(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	p := registeredProduct()
	p.RCatID = nil
	canonical := new(mockCanonicalRepo)
	canonical.On("GetByItemNumber", mock.Anything, "712498123").Return(p, nil)
	canonical.On("GetByItemNumber", mock.Anything, "missing").Return(nil, apperrors.NotFound("product", "missing"))
	canonical.On("SetRegistrationStatus", mock.Anything, "712498123", statusIs(domain.StatusRegistered)).Return(nil)

	svc := newRegistration(canonical, new(mockOriginRepo), newRMSClient(t, handler), nil)
	result := svc.RegisterBatch(context.Background(), []string{"712498123", "missing"})

	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)
	require.Len(t, result.Items, 2)
	assert.True(t, result.Items[0].Success)
	assert.Contains(t, result.Items[1].Error, "not found")
}

func TestRegisterImages_UploadsIntoExistingFolder(t *testing.T) {
	var calls []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/es/1.0/cabinet/folders/get":
			assert.Equal(t, "1", r.URL.Query().Get("offset"))
			assert.Equal(t, "100", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(cabinetXML(`<cabinetFoldersGetResult><resultCode>0</resultCode><folderAllCount>1</folderAllCount><folderCount>1</folderCount><folders><folder><FolderId>777</FolderId><FolderName>10000001</FolderName><DirectoryName>10000001</DirectoryName><FileCount>0</FileCount></folder></folders></cabinetFoldersGetResult>`)))
		case "/es/1.0/cabinet/file/insert":
			assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
			_, _ = w.Write([]byte(cabinetXML(`<cabinetFileInsertResult><resultCode>0</resultCode><FileId>9001</FileId></cabinetFileInsertResult>`)))
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	store := memory.New("https://objstore.test")
	_, err := store.Upload(context.Background(), &storage.UploadInput{
		Key:         "products/10000001/10000001_1.png",
		ContentType: "image/png",
		Data:        bytes.NewReader(tinyPNG(t)),
	})
	require.NoError(t, err)

	p := registeredProduct()
	p.ProductImageCode = "10000001"
	p.Images = []domain.Image{
		{Type: domain.ImageTypeCabinet, Location: "/img10000001/10000001_1.png", Alt: p.Title},
	}

	canonical := new(mockCanonicalRepo)
	canonical.On("GetByItemNumber", mock.Anything, "712498123").Return(p, nil)
	canonical.On("SetImageRegistrationStatus", mock.Anything, "712498123", domain.StatusRegistered).Return(nil)

	svc := newRegistration(canonical, new(mockOriginRepo), newRMSClient(t, handler), store)
	result, err := svc.RegisterImages(context.Background(), "712498123")
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 0, result.ErrorCount)
	for _, call := range calls {
		assert.NotContains(t, call, "folder/insert", "existing folder must be reused")
	}
	canonical.AssertExpectations(t)
}

func TestRegisterImages_CreatesFolderOnFirstUse(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/es/1.0/cabinet/folders/get":
			_, _ = w.Write([]byte(cabinetXML(`<cabinetFoldersGetResult><resultCode>0</resultCode><folderAllCount>0</folderAllCount><folderCount>0</folderCount><folders></folders></cabinetFoldersGetResult>`)))
		case "/es/1.0/cabinet/folder/insert":
			_, _ = w.Write([]byte(cabinetXML(`<cabinetFolderInsertResult><resultCode>0</resultCode><FolderId>778</FolderId></cabinetFolderInsertResult>`)))
		case "/es/1.0/cabinet/file/insert":
			_, _ = w.Write([]byte(cabinetXML(`<cabinetFileInsertResult><resultCode>0</resultCode><FileId>9002</FileId></cabinetFileInsertResult>`)))
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	store := memory.New("https://objstore.test")
	_, err := store.Upload(context.Background(), &storage.UploadInput{
		Key:         "products/10000001/10000001_1.png",
		ContentType: "image/png",
		Data:        bytes.NewReader(tinyPNG(t)),
	})
	require.NoError(t, err)

	p := registeredProduct()
	p.ProductImageCode = "10000001"
	p.Images = []domain.Image{
		{Type: domain.ImageTypeCabinet, Location: "/img10000001/10000001_1.png"},
	}

	canonical := new(mockCanonicalRepo)
	canonical.On("GetByItemNumber", mock.Anything, "712498123").Return(p, nil)
	canonical.On("SetImageRegistrationStatus", mock.Anything, "712498123", domain.StatusRegistered).Return(nil)

	svc := newRegistration(canonical, new(mockOriginRepo), newRMSClient(t, handler), store)
	result, err := svc.RegisterImages(context.Background(), "712498123")
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
}

func TestRegisterImages_RequiresMaterializedImages(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no marketplace call expected, got %s %s", r.Method, r.URL.Path)
	})

	noCode := registeredProduct()
	noImages := registeredProduct()
	noImages.ProductImageCode = "10000001"

	canonical := new(mockCanonicalRepo)
	canonical.On("GetByItemNumber", mock.Anything, "nocode").Return(noCode, nil)
	canonical.On("GetByItemNumber", mock.Anything, "noimages").Return(noImages, nil)

	svc := newRegistration(canonical, new(mockOriginRepo), newRMSClient(t, handler), nil)

	_, err := svc.RegisterImages(context.Background(), "nocode")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = svc.RegisterImages(context.Background(), "noimages")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRegisterInventory_UpsertsEachVariant(t *testing.T) {
	bodies := map[string]string{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		body, _ := readAllBody(r)
		bodies[r.URL.Path] = string(body)
		w.WriteHeader(http.StatusNoContent)
	})

	p := registeredProduct()
	p.Inventory.Variants = []domain.InventoryVariant{
		{VariantID: "1", Quantity: 100, Mode: domain.InventoryModeAbsolute,
			OperationLeadTime: &domain.OperationLeadTime{NormalDeliveryTimeID: domain.NormalDeliveryTimeID}},
		{VariantID: "2", Quantity: 0, Mode: domain.InventoryModeAbsolute,
			OperationLeadTime: &domain.OperationLeadTime{NormalDeliveryTimeID: domain.NormalDeliveryTimeID}},
	}

	canonical := new(mockCanonicalRepo)
	canonical.On("GetByItemNumber", mock.Anything, "712498123").Return(p, nil)
	canonical.On("SetInventoryRegistrationStatus", mock.Anything, "712498123", domain.StatusRegistered).Return(nil)

	svc := newRegistration(canonical, new(mockOriginRepo), newRMSClient(t, handler), nil)
	result, err := svc.RegisterInventory(context.Background(), "712498123")
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessCount)
	assert.JSONEq(t,
		`{"mode":"ABSOLUTE","quantity":100,"operationLeadTime":{"normalDeliveryTimeId":225554}}`,
		bodies["/es/2.1/inventories/manage-numbers/712498123/variants/1"])
	assert.JSONEq(t,
		`{"mode":"ABSOLUTE","quantity":0,"operationLeadTime":{"normalDeliveryTimeId":225554}}`,
		bodies["/es/2.1/inventories/manage-numbers/712498123/variants/2"])
	canonical.AssertExpectations(t)
}

func TestDelete_MarksDeletedAndFlipsOrigin(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/es/2.0/items/manage-numbers/712498123", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	canonical := new(mockCanonicalRepo)
	canonical.On("GetByItemNumber", mock.Anything, "712498123").Return(registeredProduct(), nil)
	canonical.On("SetRegistrationStatus", mock.Anything, "712498123", statusIs(domain.StatusDeleted)).Return(nil)
	origins := new(mockOriginRepo)
	origins.On("MarkPreviouslyRegistered", mock.Anything, []string{"712498123"}).Return(int64(1), nil)

	svc := newRegistration(canonical, origins, newRMSClient(t, handler), nil)
	result := svc.Delete(context.Background(), []string{"712498123"})

	assert.Equal(t, 1, result.SuccessCount)
	canonical.AssertExpectations(t)
	origins.AssertExpectations(t)
}

func TestDelete_MarketplaceNotFoundCountsAsGone(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	canonical := new(mockCanonicalRepo)
	canonical.On("GetByItemNumber", mock.Anything, "712498123").Return(registeredProduct(), nil)
	canonical.On("SetRegistrationStatus", mock.Anything, "712498123", statusIs(domain.StatusDeleted)).Return(nil)
	origins := new(mockOriginRepo)
	origins.On("MarkPreviouslyRegistered", mock.Anything, []string{"712498123"}).Return(int64(1), nil)

	svc := newRegistration(canonical, origins, newRMSClient(t, handler), nil)
	result := svc.Delete(context.Background(), []string{"712498123"})

	assert.Equal(t, 1, result.SuccessCount)
	canonical.AssertExpectations(t)
}

func TestDelete_MarketplaceErrorLeavesRowUntouched(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	canonical := new(mockCanonicalRepo)
	canonical.On("GetByItemNumber", mock.Anything, "712498123").Return(registeredProduct(), nil)
	origins := new(mockOriginRepo)

	svc := newRegistration(canonical, origins, newRMSClient(t, handler), nil)
	result := svc.Delete(context.Background(), []string{"712498123"})

	assert.Equal(t, 1, result.ErrorCount)
	assert.Contains(t, result.Items[0].Error, "status 500")
	canonical.AssertNotCalled(t, "SetRegistrationStatus", mock.Anything, mock.Anything, mock.Anything)
	origins.AssertNotCalled(t, "MarkPreviouslyRegistered", mock.Anything, mock.Anything)
}

func TestReconcile_MapsMarketplaceVisibility(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"visible item is on sale", http.StatusOK, `{"itemNumber":"712498123","hideItem":false}`, domain.StatusOnSale},
		{"hidden item is stopped", http.StatusOK, `{"itemNumber":"712498123","hideItem":true}`, domain.StatusStopped},
		{"absent item is deleted", http.StatusNotFound, `{"errors":[{"code":"ITEM-0404","message":"not found"}]}`, domain.StatusDeleted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			canonical := new(mockCanonicalRepo)
			canonical.On("GetByItemNumber", mock.Anything, "712498123").Return(registeredProduct(), nil)
			canonical.On("SetRegistrationStatus", mock.Anything, "712498123", statusIs(tc.want)).Return(nil)

			svc := newRegistration(canonical, new(mockOriginRepo), newRMSClient(t, handler), nil)
			status, err := svc.Reconcile(context.Background(), "712498123")
			require.NoError(t, err)
			assert.Equal(t, tc.want, status)
			canonical.AssertExpectations(t)
		})
	}
}

func TestReconcile_UpstreamErrorKeepsStoredStatus(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	})

	canonical := new(mockCanonicalRepo)
	canonical.On("GetByItemNumber", mock.Anything, "712498123").Return(registeredProduct(), nil)

	svc := newRegistration(canonical, new(mockOriginRepo), newRMSClient(t, handler), nil)
	_, err := svc.Reconcile(context.Background(), "712498123")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	canonical.AssertNotCalled(t, "SetRegistrationStatus", mock.Anything, mock.Anything, mock.Anything)
}

func readAllBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	buf := new(bytes.Buffer)
	_, err := buf.ReadFrom(r.Body)
	return buf.Bytes(), err
}
