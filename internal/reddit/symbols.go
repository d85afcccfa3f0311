package reddit

import (
	"regexp"
	"strings"
)

// symbolPattern matches cashtags in any case and bare all-caps tokens of
// one to five letters. Bare lowercase words are deliberately not
// candidates: missing a real ticker is acceptable, a flood of false
// positives is not.
var symbolPattern = regexp.MustCompile(`\$[A-Za-z]{1,5}\b|\b[A-Z]{1,5}\b`)

// falsePositives holds common words, abbreviations and internet slang
// that look like tickers. Tokens in this set are never treated as
// symbols no matter where they appear.
var falsePositives = map[string]bool{
	// articles, pronouns, short words
	"A": true, "I": true, "AM": true, "AN": true, "AND": true, "ANY": true,
	"ARE": true, "ALL": true, "AS": true, "AT": true, "BE": true, "BIG": true,
	"BUT": true, "BY": true, "CAN": true, "DO": true, "DONT": true, "FOR": true,
	"GET": true, "GO": true, "HAS": true, "HE": true, "HER": true, "HIS": true,
	"IF": true, "IN": true, "IS": true, "IT": true, "ITS": true, "JUST": true,
	"ME": true, "MY": true, "NEW": true, "NO": true, "NOT": true, "NOW": true,
	"OF": true, "OK": true, "ON": true, "ONE": true, "OR": true, "OUT": true,
	"SO": true, "THE": true, "THIS": true, "TO": true, "UP": true, "US": true,
	"WAS": true, "WE": true, "WHAT": true, "WHO": true, "WHY": true, "WILL": true,
	"WITH": true, "YES": true, "YOU": true, "YOUR": true,
	// finance abbreviations that are not tickers
	"ATH": true, "ATM": true, "AVG": true, "BUY": true, "CALL": true,
	"CALLS": true, "CEO": true, "CFO": true, "COO": true, "CPI": true,
	"DD": true, "EOD": true, "EOY": true, "EPS": true, "ETF": true,
	"FED": true, "GDP": true, "HOLD": true, "IPO": true, "IRS": true,
	"LLC": true, "NYSE": true, "OTC": true, "PE": true, "PUT": true,
	"PUTS": true, "REIT": true, "ROI": true, "SEC": true, "SELL": true,
	"USD": true, "YTD": true,
	// internet slang
	"AKA": true, "BRB": true, "BTW": true, "DIY": true, "EDIT": true,
	"FAQ": true, "FOMO": true, "FYI": true, "HODL": true, "IMO": true,
	"IMHO": true, "LOL": true, "LMAO": true, "MOON": true, "OP": true,
	"PSA": true, "RIP": true, "TLDR": true, "USA": true, "WSB": true,
	"WTF": true, "YOLO": true,
}

// ExtractSymbols scans the given texts for candidate ticker symbols,
// drops known false positives and returns the survivors deduplicated in
// first-seen order.
func ExtractSymbols(texts ...string) []string {
	var symbols []string
	seen := make(map[string]bool)

	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, match := range symbolPattern.FindAllString(text, -1) {
			symbol := strings.ToUpper(strings.TrimPrefix(match, "$"))
			if len(symbol) == 0 || len(symbol) > 5 {
				continue
			}
			if falsePositives[symbol] || seen[symbol] {
				continue
			}
			seen[symbol] = true
			symbols = append(symbols, symbol)
		}
	}

	return symbols
}

// financeKeywords marks content as finance discussion when any of these
// appear in the title or body.
var financeKeywords = []string{
	"stock", "stocks", "share", "shares", "ticker", "market", "markets",
	"invest", "investing", "investment", "earnings", "dividend", "dividends",
	"portfolio", "trading", "trader", "bullish", "bearish", "options",
	"calls", "puts", "valuation", "buyback", "short squeeze", "hedge",
	"etf", "index fund", "mutual fund", "401k", "brokerage",
}

// financeFlairs are link flair tags that mark a post as analysis or
// discussion content regardless of its body text.
var financeFlairs = map[string]bool{
	"dd":          true,
	"discussion":  true,
	"analysis":    true,
	"news":        true,
	"earnings":    true,
	"fundamental": true,
	"technical":   true,
}

// isFinanceRelated reports whether the title/body/flair mark the content
// as finance discussion, or symbols were already extracted from it.
func isFinanceRelated(title, body, flair string, mentionsStocks bool) bool {
	if mentionsStocks {
		return true
	}

	if flair != "" && financeFlairs[strings.ToLower(strings.TrimSpace(flair))] {
		return true
	}

	content := strings.ToLower(title + " " + body)
	for _, keyword := range financeKeywords {
		if strings.Contains(content, keyword) {
			return true
		}
	}

	return false
}
