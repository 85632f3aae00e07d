package lotto

// MaxAmount caps card price and line bonus, in minor units.
const MaxAmount int64 = 1_000_000_000_000

// Settings holds the per-game prices in minor currency units.
type Settings struct {
	CardPrice int64 `json:"card_price"`
	LineBonus int64 `json:"line_bonus"`
}

func NewSettings(cardPrice, lineBonus int64) (Settings, error) {
	s := Settings{CardPrice: cardPrice, LineBonus: lineBonus}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) Validate() error {
	if s.CardPrice <= 0 {
		return validationError("card price must be positive")
	}
	if s.LineBonus <= 0 {
		return validationError("line bonus must be positive")
	}
	if s.CardPrice > MaxAmount || s.LineBonus > MaxAmount {
		return validationError("card price and line bonus must not exceed 1000000000000")
	}
	return nil
}
