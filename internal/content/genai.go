package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/utafrali/RelistGo/internal/domain"

	apperrors "github.com/utafrali/RelistGo/pkg/errors"
)

// DefaultModel is the generation model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// GenAIGenerator produces listing copy with the Gemini API. Responses
// are requested as JSON matching the Result shape.
type GenAIGenerator struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGenAI creates an LLM-backed generator. The model falls back to
// DefaultModel when empty.
func NewGenAI(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, apperrors.InvalidInput("content generator api key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GenAIGenerator{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

// Generate implements Generator.
func (g *GenAIGenerator) Generate(ctx context.Context, origin *domain.OriginProduct) (*Result, error) {
	prompt := buildPrompt(origin)

	// Low temperature keeps re-materializations of the same product
	// close to each other.
	temperature := float32(0.3)
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temperature,
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		if strings.Contains(err.Error(), "429") || strings.Contains(strings.ToLower(err.Error()), "quota") {
			return nil, apperrors.QuotaExceeded("content generator")
		}
		return nil, fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, apperrors.Upstream("content generator", 200, "empty generation response")
	}

	var res Result
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &res); err != nil {
		return nil, fmt.Errorf("decode generation response: %w", err)
	}
	if strings.TrimSpace(res.Title) == "" {
		return nil, apperrors.Upstream("content generator", 200, "generation produced no title")
	}

	g.logger.DebugContext(ctx, "content generated",
		slog.String("product_id", origin.ProductID),
		slog.Int("title_runes", len([]rune(res.Title))),
	)

	return res.normalize(), nil
}

func buildPrompt(origin *domain.OriginProduct) string {
	var b strings.Builder
	b.WriteString("あなたは楽天市場の商品ページを作成するECコピーライターです。\n")
	b.WriteString("以下の商品情報から、日本語の商品コピーをJSONで生成してください。\n\n")
	b.WriteString("商品情報:\n")
	if origin.TitleT != "" {
		fmt.Fprintf(&b, "- 商品名(日本語): %s\n", origin.TitleT)
	}
	if origin.TitleC != "" {
		fmt.Fprintf(&b, "- 商品名(原語): %s\n", origin.TitleC)
	}
	if origin.MainCategory != "" {
		fmt.Fprintf(&b, "- カテゴリ: %s\n", origin.MainCategory)
	}
	if origin.MiddleCategory != "" {
		fmt.Fprintf(&b, "- サブカテゴリ: %s\n", origin.MiddleCategory)
	}
	b.WriteString("\n出力要件:\n")
	fmt.Fprintf(&b, "- title: 検索キーワードを織り込んだ%d〜%d文字の商品タイトル\n", MinTitleRunes, MaxTitleRunes)
	fmt.Fprintf(&b, "- catchphrase: %d文字以内のキャッチコピー\n", MaxCatchphraseRunes)
	fmt.Fprintf(&b, "- description: %d文字以内の商品説明文\n", MaxDescriptionPC)
	b.WriteString("- sales_description: 短い販売説明文(配送に関する記述は含めないこと)\n")
	b.WriteString("- ブランド名の言及、誇大広告表現、絵文字は禁止\n")
	b.WriteString("\nJSONのキーは title, catchphrase, description, sales_description としてください。")
	return b.String()
}

// stripCodeFence unwraps ```json fences some models insist on adding
// even in JSON response mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
