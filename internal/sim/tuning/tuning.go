package tuning

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. PROCOIN_SAVE_EVERY=1m.
const EnvPrefix = "PROCOIN_"

type Tuning struct {
	StartingBalance int64 `yaml:"starting_balance" env:"STARTING_BALANCE"`

	Store Store `yaml:"store" envPrefix:"STORE_"`

	RestockEvery        time.Duration `yaml:"restock_every" env:"RESTOCK_EVERY"`
	SaveEvery           time.Duration `yaml:"save_every" env:"SAVE_EVERY"`
	PassiveIncomePeriod time.Duration `yaml:"passive_income_period" env:"PASSIVE_INCOME_PERIOD"`

	SellPriceMin float64 `yaml:"sell_price_min" env:"SELL_PRICE_MIN"`
	SellPriceMax float64 `yaml:"sell_price_max" env:"SELL_PRICE_MAX"`

	Curse Curse `yaml:"curse" envPrefix:"CURSE_"`

	InventoryPageChars int   `yaml:"inventory_page_chars" env:"INVENTORY_PAGE_CHARS"`
	PrizeMaxCost       int64 `yaml:"prize_max_cost" env:"PRIZE_MAX_COST"`
}

type Store struct {
	OrdinarySlots int   `yaml:"ordinary_stock_slots" env:"ORDINARY_SLOTS"`
	BigSlots      int   `yaml:"big_stock_slots" env:"BIG_SLOTS"`
	BigItemCost   int64 `yaml:"big_item_cost" env:"BIG_ITEM_COST"`
}

type Curse struct {
	ScrollItemID    string `yaml:"scroll_item_id" env:"SCROLL_ITEM_ID"`
	WealthThreshold int64  `yaml:"wealth_threshold" env:"WEALTH_THRESHOLD"`
	RiskOneIn       int    `yaml:"risk_one_in" env:"RISK_ONE_IN"`
}

func Defaults() Tuning {
	return Tuning{
		StartingBalance: 1_000_000,
		Store: Store{
			OrdinarySlots: 6,
			BigSlots:      3,
			BigItemCost:   100_000_000,
		},
		RestockEvery:        time.Hour,
		SaveEvery:           5 * time.Minute,
		PassiveIncomePeriod: 20 * time.Second,
		SellPriceMin:        0.85,
		SellPriceMax:        1.05,
		Curse: Curse{
			ScrollItemID:    "remove_curse",
			WealthThreshold: 1_500_000_000,
			RiskOneIn:       3,
		},
		InventoryPageChars: 2048,
		PrizeMaxCost:       1_000_000_000,
	}
}

// Load reads path over Defaults, applies PROCOIN_* overrides and validates.
// An empty path skips the file.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return t, err
		}
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return t, fmt.Errorf("tuning.yaml: %w", err)
		}
	}
	if err := env.ParseWithOptions(&t, env.Options{Prefix: EnvPrefix}); err != nil {
		return t, fmt.Errorf("tuning env: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.StartingBalance < 0 {
		errs = append(errs, errors.New("starting_balance must be >= 0"))
	}
	if t.Store.OrdinarySlots < 0 || t.Store.BigSlots < 0 {
		errs = append(errs, errors.New("store slots must be >= 0"))
	}
	if t.Store.BigItemCost <= 0 {
		errs = append(errs, errors.New("store.big_item_cost must be > 0"))
	}
	if t.RestockEvery <= 0 || t.SaveEvery <= 0 || t.PassiveIncomePeriod <= 0 {
		errs = append(errs, errors.New("restock_every, save_every and passive_income_period must be > 0"))
	}
	if t.SellPriceMin < 0 || t.SellPriceMax < t.SellPriceMin {
		errs = append(errs, fmt.Errorf("sell price range [%v, %v] is invalid", t.SellPriceMin, t.SellPriceMax))
	}
	if t.Curse.RiskOneIn < 1 {
		errs = append(errs, errors.New("curse.risk_one_in must be >= 1"))
	}
	if t.Curse.ScrollItemID == "" {
		errs = append(errs, errors.New("curse.scroll_item_id is required"))
	}
	if t.InventoryPageChars < 64 {
		errs = append(errs, errors.New("inventory_page_chars must be >= 64"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("tuning.yaml: %w", errors.Join(errs...))
	}
	return nil
}
