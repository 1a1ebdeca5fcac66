package ingest

import (
	"time"

	"github.com/david/campaign-radar/internal/models"
)

// SampleCampaigns returns a fixed set of development campaigns, used when a
// collection run yields nothing. The order is stable.
func SampleCampaigns(now time.Time) []models.Campaign {
	day := 24 * time.Hour
	capped := "還元率は高いが上限500円のため、実質還元額が低い"

	out := []models.Campaign{
		{
			ID:                "rakuten_super_sale",
			Title:             "楽天スーパーセール",
			Description:       "全ショップ対象！ポイント最大44倍",
			URL:               "https://event.rakuten.co.jp/campaign/supersale/",
			Source:            "楽天市場",
			Window:            models.Window{Start: now.Add(-2 * day), End: now.Add(5 * day)},
			BaseAmount:        20000,
			ReturnRatePercent: 10,
			RequiredCards:     []string{"楽天カード"},
			TargetStores:      []string{"楽天市場"},
			ActionSteps:       []string{"1. エントリーページでエントリー", "2. 期間中に買い物"},
		},
		{
			ID:                "paypay_jumbo",
			Title:             "PayPay ジャンボ",
			Description:       "最大1,000%還元！全国のPayPay加盟店で",
			URL:               "https://paypay.ne.jp/event/jumbo/",
			Source:            "PayPay",
			Window:            models.Window{Start: now.Add(-5 * day), End: now.Add(2 * day)},
			BaseAmount:        10000,
			ReturnRatePercent: 5,
			TargetStores:      []string{"コンビニ", "スーパー"},
			ActionSteps:       []string{"1. PayPayアプリを開く", "2. 対象店舗で決済"},
		},
		{
			ID:                "dcard_gold_20percent",
			Title:             "dカードGOLD 20%還元",
			Description:       "ドコモ料金の支払いで20%ポイント還元",
			URL:               "https://d-card.jp/st/campaigns/gold20/",
			Source:            "dカード",
			Window:            models.Window{Start: now.Add(-10 * day), End: now.Add(20 * day)},
			BaseAmount:        15000,
			ReturnRatePercent: 20,
			RequiredCards:     []string{"dカード GOLD"},
			TargetStores:      []string{"ドコモ"},
			ActionSteps:       []string{"1. dカードGOLD支払い設定", "2. 自動適用（手続き不要）"},
		},
		{
			ID:                "aupay_50percent",
			Title:             "au PAY 50%還元（要注意）",
			Description:       "条件達成で50%還元！ただし上限500円",
			URL:               "https://aupay.auone.jp/campaign/50percent/",
			Source:            "au PAY",
			Window:            models.Window{Start: now.Add(-1 * day), End: now.Add(14 * day)},
			BaseAmount:        5000,
			ReturnRatePercent: 50,
			TargetStores:      []string{"ローソン"},
			IsDangerous:       true,
			DangerReason:      &capped,
			ActionSteps:       []string{"1. au PAYアプリ起動", "2. ローソンで決済"},
		},
		{
			ID:                "amazon_prime_day",
			Title:             "Amazonプライムデー",
			Description:       "プライム会員限定セール！最大50%オフ",
			URL:               "https://www.amazon.co.jp/primeday",
			Source:            "Amazon",
			Window:            models.Window{Start: now.Add(1 * day), End: now.Add(3 * day)},
			BaseAmount:        30000,
			ReturnRatePercent: 15,
			TargetStores:      []string{"Amazon"},
			ActionSteps:       []string{"1. プライム会員確認", "2. セール商品をチェック"},
		},
	}
	for i := range out {
		NormalizeCampaign(&out[i])
	}
	return out
}
