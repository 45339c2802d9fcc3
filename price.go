package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// PriceLabels are the localized texts for prices without an amount
type PriceLabels struct {
	Free         string
	NotAvailable string
}

// LabelsFromConfig extracts the price labels from the configuration
func LabelsFromConfig(cfg Config) PriceLabels {
	return PriceLabels{Free: cfg.FreeLabel, NotAvailable: cfg.NotAvailableLabel}
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"BRL": "R$",
	"ARS": "ARS$ ",
	"CAD": "CDN$ ",
	"AUD": "A$ ",
	"RUB": "₽ ",
	"PLN": "zł ",
}

// formatCents renders an amount in cents with the currency symbol
func formatCents(cents int, currency string) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	amount := fmt.Sprintf("%s%s.%02d", sign, humanize.Comma(int64(cents/100)), cents%100)
	if symbol, ok := currencySymbols[currency]; ok {
		return symbol + amount
	}
	if currency == "" {
		return amount
	}
	return fmt.Sprintf("%s %s", currency, amount)
}

// discountedPrice builds a discounted price only when the original amount is
// really greater than the final one, otherwise a plain price
func discountedPrice(final, initial int, finalText, initialText string, percent int) Price {
	if percent <= 0 || initial <= final {
		return Price{DisplayText: finalText}
	}
	original := initialText
	return Price{
		DisplayText:         finalText,
		OriginalDisplayText: &original,
		DiscountPercent:     percent,
	}
}

func orFormatted(formatted string, cents int, currency string) string {
	if formatted != "" {
		return formatted
	}
	return formatCents(cents, currency)
}

// PriceFromOverview normalizes the appdetails price block
func PriceFromOverview(isFree bool, po *PriceOverview, labels PriceLabels) Price {
	if isFree {
		return Price{DisplayText: labels.Free}
	}
	if po == nil {
		return Price{DisplayText: labels.NotAvailable}
	}
	if po.Final == 0 && po.FinalFormatted == "" {
		return Price{DisplayText: labels.NotAvailable}
	}

	finalText := orFormatted(po.FinalFormatted, po.Final, po.Currency)
	if po.DiscountPercent > 0 {
		initialText := orFormatted(po.InitialFormatted, po.Initial, po.Currency)
		return discountedPrice(po.Final, po.Initial, finalText, initialText, po.DiscountPercent)
	}
	return Price{DisplayText: finalText}
}

// PriceFromSearch normalizes a storesearch price, which may be missing,
// a bare zero for free titles, or a cents object with or without a discount
func PriceFromSearch(item SearchItem, labels PriceLabels) Price {
	p := item.Price
	if p == nil {
		if item.IsFree {
			return Price{DisplayText: labels.Free}
		}
		return Price{DisplayText: labels.NotAvailable}
	}
	if p.Final == nil && p.FinalFormatted == "" {
		return Price{DisplayText: labels.NotAvailable}
	}

	final := 0
	if p.Final != nil {
		final = *p.Final
	}
	if final == 0 && p.FinalFormatted == "" {
		return Price{DisplayText: labels.Free}
	}
	finalText := orFormatted(p.FinalFormatted, final, p.Currency)

	if p.Initial == nil {
		return Price{DisplayText: finalText}
	}
	initial := *p.Initial
	percent := p.DiscountPercent
	if percent <= 0 && initial > final {
		percent = int(math.Round(float64(initial-final) * 100 / float64(initial)))
	}
	initialText := orFormatted(p.InitialFormatted, initial, p.Currency)
	return discountedPrice(final, initial, finalText, initialText, percent)
}

// PriceFromFeatured normalizes a featured listing item
func PriceFromFeatured(item FeaturedItem, labels PriceLabels) Price {
	if item.FinalPrice == 0 {
		return Price{DisplayText: labels.Free}
	}
	finalText := formatCents(item.FinalPrice, item.Currency)
	if !item.Discounted || item.OriginalPrice == nil {
		return Price{DisplayText: finalText}
	}
	return discountedPrice(item.FinalPrice, *item.OriginalPrice, finalText,
		formatCents(*item.OriginalPrice, item.Currency), item.DiscountPercent)
}

// UnmarshalJSON accepts the price field either as an object or as a bare number
func (s *SearchItem) UnmarshalJSON(data []byte) error {
	type alias SearchItem
	aux := struct {
		*alias
		RawPrice json.RawMessage `json:"price"`
	}{alias: (*alias)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	raw := bytes.TrimSpace(aux.RawPrice)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		s.Price = nil
	case raw[0] == '{':
		var p SearchPrice
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("failed to parse search price: %w", err)
		}
		s.Price = &p
	default:
		var cents int
		if err := json.Unmarshal(raw, &cents); err != nil {
			return fmt.Errorf("failed to parse search price: %w", err)
		}
		s.Price = &SearchPrice{Final: &cents}
	}

	return nil
}
