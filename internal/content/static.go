package content

import (
	"context"
	"strings"

	"github.com/utafrali/RelistGo/internal/domain"
)

// titleFillers are keyword tokens appended to short titles until the
// title reaches its search-friendly length target. The order is fixed
// so the same origin row always yields the same title.
var titleFillers = []string{
	"送料無料",
	"海外インポート",
	"新作",
	"人気",
	"トレンド",
	"おしゃれ",
	"カジュアル",
	"シンプル",
	"大人可愛い",
	"ギフト",
	"プレゼント",
	"デイリー使い",
	"オールシーズン",
	"通勤通学",
	"お出かけ",
	"旅行",
	"誕生日プレゼント",
	"記念日ギフト",
	"ルームウェア",
}

// StaticGenerator assembles deterministic listing copy from the origin
// titles and categories. It needs no external service and backs the
// LLM generator as its failure fallback.
type StaticGenerator struct{}

// NewStatic creates the deterministic generator.
func NewStatic() *StaticGenerator {
	return &StaticGenerator{}
}

// Generate implements Generator.
func (g *StaticGenerator) Generate(_ context.Context, origin *domain.OriginProduct) (*Result, error) {
	base := strings.TrimSpace(origin.TitleT)
	if base == "" {
		base = strings.TrimSpace(origin.TitleC)
	}
	category := strings.TrimSpace(origin.MiddleCategory)
	if category == "" {
		category = strings.TrimSpace(origin.MainCategory)
	}

	res := &Result{
		Title:            buildTitle(base, category),
		Catchphrase:      buildCatchphrase(base, category),
		Description:      buildDescription(base, category),
		SalesDescription: buildSalesDescription(base),
	}
	return res.normalize(), nil
}

// buildTitle pads the base title with category and filler keywords
// until it reaches the length target, then stops.
func buildTitle(base, category string) string {
	parts := make([]string, 0, 4)
	if base != "" {
		parts = append(parts, base)
	}
	if category != "" {
		parts = append(parts, category)
	}
	title := strings.Join(parts, " ")
	for _, filler := range titleFillers {
		if len([]rune(title)) >= MinTitleRunes {
			break
		}
		if strings.Contains(title, filler) {
			continue
		}
		parts = append(parts, filler)
		title = strings.Join(parts, " ")
	}
	return title
}

func buildCatchphrase(base, category string) string {
	head := category
	if head == "" {
		head = ClampRunes(base, 20)
	}
	if head == "" {
		return "送料無料でお届けする新作アイテム"
	}
	return "【送料無料】" + head + " 新作入荷"
}

func buildDescription(base, category string) string {
	var b strings.Builder
	if base != "" {
		b.WriteString(base)
		b.WriteString("。\n")
	}
	if category != "" {
		b.WriteString(category)
		b.WriteString("カテゴリの人気商品です。\n")
	}
	b.WriteString("素材の質感とシルエットにこだわった、毎日のコーディネートに取り入れやすいアイテムです。")
	b.WriteString("カラーやサイズのバリエーションは選択肢からお選びください。\n")
	b.WriteString("※モニター環境により実際の色味と多少異なって見える場合がございます。")
	b.WriteString("※生産時期によりデザインや仕様が若干変更となる場合がございます。")
	return b.String()
}

func buildSalesDescription(base string) string {
	if base == "" {
		return "ご覧いただきありがとうございます。"
	}
	return ClampRunes(base, 60) + " をお求めやすい価格でご提供しています。"
}
