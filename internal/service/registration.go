package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/utafrali/RelistGo/internal/domain"
	"github.com/utafrali/RelistGo/internal/event"
	"github.com/utafrali/RelistGo/internal/imaging"
	"github.com/utafrali/RelistGo/internal/rakuten"
	"github.com/utafrali/RelistGo/internal/repository"
	"github.com/utafrali/RelistGo/internal/storage"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
	"github.com/utafrali/RelistGo/pkg/managenum"
)

// cabinetFolderPageSize is the RMS maximum for one folder search page.
const cabinetFolderPageSize = 100

// RegistrationService drives the marketplace registration protocol:
// item PUT/PATCH, cabinet image upload, per-variant inventory upsert,
// delete and status reconciliation.
type RegistrationService struct {
	canonical repository.CanonicalProductRepository
	origins   repository.OriginProductRepository
	client    *rakuten.Client
	store     storage.Storage
	producer  *event.Producer
	logger    *slog.Logger
}

// NewRegistrationService creates a registration service.
func NewRegistrationService(
	canonical repository.CanonicalProductRepository,
	origins repository.OriginProductRepository,
	client *rakuten.Client,
	store storage.Storage,
	producer *event.Producer,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		canonical: canonical,
		origins:   origins,
		client:    client,
		store:     store,
		producer:  producer,
		logger:    logger,
	}
}

// RegistrationOutcome reports one registration attempt. A failed
// marketplace call is an outcome, not an error: the formatted message
// is kept for display and the row is marked failed.
type RegistrationOutcome struct {
	ItemNumber       string `json:"item_number"`
	Success          bool   `json:"success"`
	PriceOnly        bool   `json:"price_only"`
	CategoryMapped   bool   `json:"category_mapped"`
	CategoryMapError string `json:"category_map_error,omitempty"`
	Error            string `json:"error,omitempty"`
}

// Register pushes one canonical product to the marketplace. Blocked
// products only get their variant prices patched and are never
// category-mapped; everything else goes through a full item PUT
// followed by an optional category mapping whose failure is a warning,
// not a rollback.
func (s *RegistrationService) Register(ctx context.Context, itemNumber string) (*RegistrationOutcome, error) {
	p, err := s.canonical.GetByItemNumber(ctx, itemNumber)
	if err != nil {
		return nil, err
	}

	outcome := &RegistrationOutcome{ItemNumber: itemNumber, PriceOnly: p.Block}
	mn := manageNumber(p)
	wasRegistered := p.RakutenRegistrationStatus != nil

	var res *rakuten.Result
	if p.Block {
		res = s.client.ProductPricePatch(ctx, mn, rakuten.BuildPricePatch(p))
	} else {
		res = s.client.ProductUpsert(ctx, mn, rakuten.BuildItemPayload(p))
	}

	if !res.Success {
		outcome.Error = res.FormatErrorMessage()
		registrations.WithLabelValues(resultFailure).Inc()

		status := domain.StatusFailed
		if err := s.canonical.SetRegistrationStatus(ctx, itemNumber, &status); err != nil {
			return nil, fmt.Errorf("record failed registration: %w", err)
		}
		if err := s.producer.PublishRegistrationFailed(ctx, itemNumber, outcome.Error); err != nil {
			s.logger.WarnContext(ctx, "registration_failed event not published",
				slog.String("item_number", itemNumber),
				slog.Any("error", err),
			)
		}
		s.logger.WarnContext(ctx, "registration failed",
			slog.String("item_number", itemNumber),
			slog.String("error", outcome.Error),
		)
		return outcome, nil
	}

	if !p.Block && len(p.RCatID) > 0 {
		if mres := s.client.CategoryMap(ctx, mn, p.RCatID, nil); mres.Success {
			outcome.CategoryMapped = true
		} else {
			outcome.CategoryMapError = mres.FormatErrorMessage()
			s.logger.WarnContext(ctx, "category mapping failed after registration",
				slog.String("item_number", itemNumber),
				slog.String("error", outcome.CategoryMapError),
			)
		}
	}

	status := domain.StatusRegistered
	if err := s.canonical.SetRegistrationStatus(ctx, itemNumber, &status); err != nil {
		return nil, fmt.Errorf("record registration: %w", err)
	}
	outcome.Success = true
	registrations.WithLabelValues(resultSuccess).Inc()

	if err := s.producer.PublishProductRegistered(ctx, itemNumber, wasRegistered); err != nil {
		s.logger.WarnContext(ctx, "registered event not published",
			slog.String("item_number", itemNumber),
			slog.Any("error", err),
		)
	}
	s.logger.InfoContext(ctx, "product registered",
		slog.String("item_number", itemNumber),
		slog.Bool("price_only", outcome.PriceOnly),
		slog.Bool("category_mapped", outcome.CategoryMapped),
	)
	return outcome, nil
}

// RegisterBatch registers items sequentially. The marketplace rate
// limit leaves no room for fan-out here, and registration is not
// idempotent, so one item's failure simply moves on to the next.
func (s *RegistrationService) RegisterBatch(ctx context.Context, itemNumbers []string) *BatchResult {
	result := &BatchResult{}
	for _, itemNumber := range itemNumbers {
		if err := ctx.Err(); err != nil {
			result.Add(itemNumber, err)
			continue
		}
		outcome, err := s.Register(ctx, itemNumber)
		switch {
		case err != nil:
			result.Add(itemNumber, err)
		case !outcome.Success:
			result.AddFailure(itemNumber, outcome.Error)
		default:
			result.AddSuccess(itemNumber)
		}
	}
	return result
}

// RegisterImages uploads a product's stored images into its cabinet
// folder, creating the folder on first use. The per-image outcomes are
// aggregated and the image registration status reflects the whole.
func (s *RegistrationService) RegisterImages(ctx context.Context, itemNumber string) (*BatchResult, error) {
	p, err := s.canonical.GetByItemNumber(ctx, itemNumber)
	if err != nil {
		return nil, err
	}
	if p.ProductImageCode == "" {
		return nil, apperrors.InvalidInput("product has no image code")
	}
	if len(p.Images) == 0 {
		return nil, apperrors.InvalidInput("product has no images")
	}

	folderID, err := s.ensureCabinetFolder(ctx, p.ProductImageCode)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	for _, img := range p.Images {
		if err := s.uploadCabinetImage(ctx, folderID, img); err != nil {
			result.AddFailure(img.Location, err.Error())
			continue
		}
		result.AddSuccess(img.Location)
	}

	status := domain.StatusRegistered
	if result.ErrorCount > 0 {
		status = domain.StatusFailed
	}
	if err := s.canonical.SetImageRegistrationStatus(ctx, itemNumber, status); err != nil {
		return result, fmt.Errorf("record image registration: %w", err)
	}

	s.logger.InfoContext(ctx, "cabinet images registered",
		slog.String("item_number", itemNumber),
		slog.Int("uploaded", result.SuccessCount),
		slog.Int("failed", result.ErrorCount),
	)
	return result, nil
}

// RegisterInventory upserts each inventory variant sequentially and
// aggregates the outcomes into the inventory registration status.
func (s *RegistrationService) RegisterInventory(ctx context.Context, itemNumber string) (*BatchResult, error) {
	p, err := s.canonical.GetByItemNumber(ctx, itemNumber)
	if err != nil {
		return nil, err
	}
	if len(p.Inventory.Variants) == 0 {
		return nil, apperrors.InvalidInput("product has no inventory variants")
	}

	mn := manageNumber(p)
	result := &BatchResult{}
	for _, v := range p.Inventory.Variants {
		if err := ctx.Err(); err != nil {
			result.Add(v.VariantID, err)
			continue
		}
		req := &rakuten.InventoryUpsertRequest{
			Mode:              v.Mode,
			Quantity:          v.Quantity,
			OperationLeadTime: v.OperationLeadTime,
		}
		if req.Mode == "" {
			req.Mode = domain.InventoryModeAbsolute
		}
		if res := s.client.InventoryUpsert(ctx, mn, v.VariantID, req); !res.Success {
			result.AddFailure(v.VariantID, res.FormatErrorMessage())
			continue
		}
		result.AddSuccess(v.VariantID)
	}

	status := domain.StatusRegistered
	if result.ErrorCount > 0 {
		status = domain.StatusFailed
	}
	if err := s.canonical.SetInventoryRegistrationStatus(ctx, itemNumber, status); err != nil {
		return result, fmt.Errorf("record inventory registration: %w", err)
	}
	return result, nil
}

// Delete removes items from the marketplace, marks the canonical rows
// deleted and flips their origin rows to previously-registered. A 404
// from the marketplace counts as already gone.
func (s *RegistrationService) Delete(ctx context.Context, itemNumbers []string) *BatchResult {
	result := &BatchResult{}
	for _, itemNumber := range itemNumbers {
		if err := ctx.Err(); err != nil {
			result.Add(itemNumber, err)
			continue
		}
		result.Add(itemNumber, s.deleteOne(ctx, itemNumber))
	}
	return result
}

func (s *RegistrationService) deleteOne(ctx context.Context, itemNumber string) error {
	p, err := s.canonical.GetByItemNumber(ctx, itemNumber)
	if err != nil {
		return err
	}

	res := s.client.ProductDelete(ctx, manageNumber(p))
	if !res.Success && res.StatusCode != http.StatusNotFound {
		return newResultError(res)
	}

	status := domain.StatusDeleted
	if err := s.canonical.SetRegistrationStatus(ctx, itemNumber, &status); err != nil {
		return fmt.Errorf("record deletion: %w", err)
	}
	if _, err := s.origins.MarkPreviouslyRegistered(ctx, []string{itemNumber}); err != nil {
		return fmt.Errorf("flip origin status: %w", err)
	}

	if err := s.producer.PublishProductDeleted(ctx, itemNumber); err != nil {
		s.logger.WarnContext(ctx, "deleted event not published",
			slog.String("item_number", itemNumber),
			slog.Any("error", err),
		)
	}
	s.logger.InfoContext(ctx, "product deleted from marketplace", slog.String("item_number", itemNumber))
	return nil
}

// Reconcile aligns the stored status with what the marketplace
// reports: a visible item is on sale, a hidden one is stopped, a 404
// means deleted. Any other failure leaves the row untouched.
func (s *RegistrationService) Reconcile(ctx context.Context, itemNumber string) (string, error) {
	p, err := s.canonical.GetByItemNumber(ctx, itemNumber)
	if err != nil {
		return "", err
	}

	res := s.client.ProductGet(ctx, manageNumber(p))
	var status string
	switch {
	case res.Success && res.StatusCode == http.StatusOK:
		if hidden, _ := res.Data["hideItem"].(bool); hidden {
			status = domain.StatusStopped
		} else {
			status = domain.StatusOnSale
		}
	case res.StatusCode == http.StatusNotFound:
		status = domain.StatusDeleted
	default:
		return "", newResultError(res)
	}

	if err := s.canonical.SetRegistrationStatus(ctx, itemNumber, &status); err != nil {
		return "", fmt.Errorf("record reconciled status: %w", err)
	}
	reconciliations.WithLabelValues(status).Inc()

	s.logger.InfoContext(ctx, "product status reconciled",
		slog.String("item_number", itemNumber),
		slog.String("status", status),
	)
	return status, nil
}

// ReconcileMany reconciles items sequentially and aggregates counts.
func (s *RegistrationService) ReconcileMany(ctx context.Context, itemNumbers []string) *BatchResult {
	result := &BatchResult{}
	for _, itemNumber := range itemNumbers {
		if err := ctx.Err(); err != nil {
			result.Add(itemNumber, err)
			continue
		}
		_, err := s.Reconcile(ctx, itemNumber)
		result.Add(itemNumber, err)
	}
	return result
}

// ensureCabinetFolder finds the cabinet folder named after the image
// code, creating it on first use.
func (s *RegistrationService) ensureCabinetFolder(ctx context.Context, code string) (int, error) {
	for offset := 1; ; offset++ {
		res := s.client.CabinetSearchFolders(ctx, offset, cabinetFolderPageSize)
		if !res.Success {
			return 0, newResultError(res)
		}
		folders := res.Folders()
		for _, f := range folders {
			if f.FolderName == code || f.DirectoryName == code {
				return f.FolderID, nil
			}
		}
		if len(folders) < cabinetFolderPageSize {
			break
		}
	}

	res := s.client.CabinetCreateFolder(ctx, code, code, nil)
	if !res.Success {
		return 0, newResultError(res)
	}
	id, ok := res.FolderID()
	if !ok {
		return 0, apperrors.Upstream("rakuten cabinet", res.StatusCode, "folder id missing from response")
	}
	s.logger.InfoContext(ctx, "cabinet folder created",
		slog.String("folder", code),
		slog.Int("folder_id", id),
	)
	return id, nil
}

// uploadCabinetImage reads one stored image back from the object store
// and pushes it into the cabinet folder. Upload validation (size,
// extension, dimensions) happens inside the client.
func (s *RegistrationService) uploadCabinetImage(ctx context.Context, folderID int, img domain.Image) error {
	key := imaging.StorageKey(img.Location)
	if key == "" {
		return apperrors.InvalidInput("image location is empty")
	}

	rc, err := s.store.Download(ctx, key)
	if err != nil {
		return fmt.Errorf("fetch %s from object store: %w", key, err)
	}
	defer rc.Close()

	file, err := io.ReadAll(io.LimitReader(rc, rakuten.MaxCabinetFileBytes+1))
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}

	if res := s.client.CabinetUploadFile(ctx, file, path.Base(key), folderID, img.Location, true); !res.Success {
		return newResultError(res)
	}
	return nil
}

// manageNumber is the marketplace identity of a canonical row.
func manageNumber(p *domain.CanonicalProduct) string {
	if p.Inventory.ManageNumber != "" {
		return p.Inventory.ManageNumber
	}
	return managenum.Sanitize(p.ItemNumber)
}

// resultError wraps a failed client result so callers display the
// formatted marketplace message while errors.Is still sees the
// classification.
type resultError struct {
	msg string
	err error
}

func newResultError(res *rakuten.Result) error {
	return &resultError{msg: res.FormatErrorMessage(), err: res.Err}
}

func (e *resultError) Error() string { return e.msg }

func (e *resultError) Unwrap() error { return e.err }
