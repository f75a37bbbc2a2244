package content

import (
	"context"
	"log/slog"
	"strings"

	"github.com/utafrali/RelistGo/internal/domain"
)

// Length targets for generated copy, in runes. The title has a lower
// target too because marketplace search rewards long keyword-rich
// titles; the rest are hard marketplace caps.
const (
	MinTitleRunes       = 100
	MaxTitleRunes       = 110
	MaxCatchphraseRunes = 80
	MaxDescriptionPC    = 800
	MaxDescriptionSP    = 400
)

// DeliveryMessage is the fixed shipping notice shown to buyers. It
// appears exactly once in every sales description and never inside the
// PC/SP description bodies.
const DeliveryMessage = "【配送について】ご注文確定後、通常7〜14営業日前後での発送となります。" +
	"海外倉庫からのお取り寄せのため、通関や交通事情により前後する場合がございます。あらかじめご了承ください。"

// Result is the generated listing copy for one product.
type Result struct {
	Title            string `json:"title"`
	Catchphrase      string `json:"catchphrase"`
	Description      string `json:"description"`
	SalesDescription string `json:"sales_description"`
}

// ProductDescription splits the description into the PC body and the
// shorter smartphone body.
func (r *Result) ProductDescription() domain.ProductDescription {
	return domain.ProductDescription{
		PC: ClampRunes(r.Description, MaxDescriptionPC),
		SP: ClampRunes(r.Description, MaxDescriptionSP),
	}
}

// Generator produces listing copy from a harvested product.
type Generator interface {
	Generate(ctx context.Context, origin *domain.OriginProduct) (*Result, error)
}

// NewWithFallback wraps primary so that any generation failure falls
// back to the deterministic generator instead of failing the product.
// A nil primary yields the deterministic generator alone.
func NewWithFallback(primary Generator, logger *slog.Logger) Generator {
	static := NewStatic()
	if primary == nil {
		return static
	}
	return &fallbackGenerator{primary: primary, static: static, logger: logger}
}

type fallbackGenerator struct {
	primary Generator
	static  *StaticGenerator
	logger  *slog.Logger
}

func (g *fallbackGenerator) Generate(ctx context.Context, origin *domain.OriginProduct) (*Result, error) {
	res, err := g.primary.Generate(ctx, origin)
	if err != nil {
		g.logger.WarnContext(ctx, "content generation failed, using static copy",
			slog.String("product_id", origin.ProductID),
			slog.Any("error", err),
		)
		return g.static.Generate(ctx, origin)
	}
	return res, nil
}

// normalize enforces the length caps and the delivery-message
// discipline on generated copy. Every generator runs its output
// through this before returning.
func (r *Result) normalize() *Result {
	r.Title = ClampRunes(collapseSpace(r.Title), MaxTitleRunes)
	r.Catchphrase = ClampRunes(collapseSpace(r.Catchphrase), MaxCatchphraseRunes)
	r.Description = ClampRunes(StripDeliveryMessage(r.Description), MaxDescriptionPC)

	sales := StripDeliveryMessage(r.SalesDescription)
	if sales == "" {
		r.SalesDescription = DeliveryMessage
	} else {
		r.SalesDescription = sales + "\n\n" + DeliveryMessage
	}
	return r
}

// StripDeliveryMessage removes every occurrence of the delivery notice
// and trims the result.
func StripDeliveryMessage(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, DeliveryMessage, ""))
}

// ClampRunes truncates s to at most n runes without splitting UTF-8.
func ClampRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
