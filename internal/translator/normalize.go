package translator

import "strings"

// SelectorKey is the normalized form of an upstream specification axis
// name: a snake_case ascii key plus the Japanese display name shown to
// buyers.
type SelectorKey struct {
	Key     string
	Display string
}

// selectorKeyTable maps the axis names the upstream actually ships to
// their normalized form. Hits here never touch machine translation.
var selectorKeyTable = map[string]SelectorKey{
	"颜色":   {Key: "color", Display: "カラー"},
	"颜色分类": {Key: "color", Display: "カラー"},
	"色":    {Key: "color", Display: "カラー"},
	"カラー":  {Key: "color", Display: "カラー"},
	"尺码":   {Key: "size", Display: "サイズ"},
	"尺寸":   {Key: "size", Display: "サイズ"},
	"大小":   {Key: "size", Display: "サイズ"},
	"サイズ":  {Key: "size", Display: "サイズ"},
	"材质":   {Key: "material", Display: "素材"},
	"素材":   {Key: "material", Display: "素材"},
	"款式":   {Key: "style", Display: "スタイル"},
	"样式":   {Key: "style", Display: "スタイル"},
	"型号":   {Key: "model", Display: "タイプ"},
	"类型":   {Key: "type", Display: "タイプ"},
	"规格":   {Key: "variation", Display: "バリエーション"},
	"套餐":   {Key: "set", Display: "セット"},
}

// variantValueTable canonicalizes color terms. Machine translation
// drifts between カタカナ and 漢字 renderings of the same color, which
// fragments Rakuten variant axes, so known terms are pinned here.
var variantValueTable = map[string]string{
	"黑色":  "ブラック",
	"黑":   "ブラック",
	"黒色":  "ブラック",
	"黒":   "ブラック",
	"白色":  "ホワイト",
	"白":   "ホワイト",
	"乳白色": "オフホワイト",
	"红色":  "レッド",
	"红":   "レッド",
	"大红色": "レッド",
	"赤":   "レッド",
	"蓝色":  "ブルー",
	"蓝":   "ブルー",
	"青":   "ブルー",
	"青色":  "ブルー",
	"天蓝色": "スカイブルー",
	"深蓝色": "ネイビー",
	"藏青色": "ネイビー",
	"藏蓝色": "ネイビー",
	"绿色":  "グリーン",
	"绿":   "グリーン",
	"军绿色": "カーキ",
	"卡其色": "カーキ",
	"黄色":  "イエロー",
	"黄":   "イエロー",
	"粉色":  "ピンク",
	"粉红色": "ピンク",
	"粉":   "ピンク",
	"紫色":  "パープル",
	"紫":   "パープル",
	"灰色":  "グレー",
	"灰":   "グレー",
	"深灰色": "ダークグレー",
	"浅灰色": "ライトグレー",
	"棕色":  "ブラウン",
	"咖啡色": "ブラウン",
	"褐色":  "ブラウン",
	"橙色":  "オレンジ",
	"橘色":  "オレンジ",
	"金色":  "ゴールド",
	"银色":  "シルバー",
	"米色":  "ベージュ",
	"米白色": "ベージュ",
	"酒红色": "ワインレッド",
	"玫红色": "ローズレッド",
}

// LookupSelectorKey returns the normalized form of a specification axis
// name when the table knows it.
func LookupSelectorKey(keyT string) (SelectorKey, bool) {
	entry, ok := selectorKeyTable[strings.TrimSpace(keyT)]
	return entry, ok
}

// LookupVariantValue returns the canonical Japanese form of a variant
// value when the table knows it.
func LookupVariantValue(value string) (string, bool) {
	out, ok := variantValueTable[strings.TrimSpace(value)]
	return out, ok
}
