package eod

import (
	"time"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/tradelog"
)

func NewSummarizer(journal *tradelog.Journal) interfaces.EodSummarizer {
	return &eodSummarizer{journal: journal, now: time.Now}
}
