package translator

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	translate "google.golang.org/api/translate/v2"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
)

const googleService = "google translate"

// GoogleMT backs Engine with the Google Translation v2 API.
type GoogleMT struct {
	svc    *translate.Service
	logger *slog.Logger
}

// NewGoogleMT builds the engine with API-key auth.
func NewGoogleMT(ctx context.Context, apiKey string, logger *slog.Logger) (*GoogleMT, error) {
	if apiKey == "" {
		return nil, apperrors.InvalidInput("translation api key is required")
	}
	svc, err := translate.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create translate service: %w", err)
	}
	return &GoogleMT{svc: svc, logger: logger}, nil
}

// Translate implements Engine. format=text keeps the API from
// HTML-escaping the output; the response is unescaped anyway because
// older deployments of the endpoint ignore the parameter.
func (g *GoogleMT) Translate(ctx context.Context, text, source, target string) (string, error) {
	call := g.svc.Translations.List([]string{text}, target).Format("text").Context(ctx)
	if source != "" {
		call = call.Source(source)
	}
	resp, err := call.Do()
	if err != nil {
		return "", mapGoogleError(err)
	}
	if len(resp.Translations) == 0 {
		return "", apperrors.Upstream(googleService, http.StatusOK, "empty translation response")
	}
	return html.UnescapeString(resp.Translations[0].TranslatedText), nil
}

// Detect implements Engine.
func (g *GoogleMT) Detect(ctx context.Context, text string) (string, error) {
	resp, err := g.svc.Detections.List([]string{text}).Context(ctx).Do()
	if err != nil {
		return "", mapGoogleError(err)
	}
	if len(resp.Detections) == 0 || len(resp.Detections[0]) == 0 {
		return "", apperrors.Upstream(googleService, http.StatusOK, "empty detection response")
	}
	return resp.Detections[0][0].Language, nil
}

// mapGoogleError folds googleapi errors into the application error
// taxonomy. Daily-limit 403s are quota errors in disguise.
func mapGoogleError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return apperrors.Transient("google translate unreachable", err)
	}
	switch {
	case gerr.Code == http.StatusTooManyRequests:
		return apperrors.QuotaExceeded(googleService)
	case gerr.Code == http.StatusForbidden && looksLikeQuota(gerr):
		return apperrors.QuotaExceeded(googleService)
	case gerr.Code >= 500:
		return apperrors.Transient("google translate unavailable", err)
	default:
		return apperrors.Upstream(googleService, gerr.Code, gerr.Message)
	}
}

func looksLikeQuota(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded", "quotaExceeded":
			return true
		}
	}
	return strings.Contains(strings.ToLower(gerr.Message), "quota")
}
