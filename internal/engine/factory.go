package engine

import (
	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/store"
)

func New(cfg *store.Config, ex interfaces.Exchange, adv interfaces.Advisor, opts Options) interfaces.Engine {
	return newEngine(cfg, ex, adv, opts)
}
