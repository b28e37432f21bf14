package crawler

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/meliscraper/helpers"
	"sjsage522/meliscraper/internal/models"
)

// Guessed field names recorded in ProductRecord.GuessedFields.
const (
	GuessedSeller    = "seller"
	GuessedLocation  = "location"
	GuessedCondition = "condition"
	GuessedSold      = "sold_quantity"
)

const maxHeuristicTextLen = 60

var (
	sellerHint    = regexp.MustCompile(`(?i)(tienda oficial|loja oficial|official store|\bstore\b|^por\s|^vendido por)`)
	conditionHint = regexp.MustCompile(`(?i)^(nuevo|usado|reacondicionado|novo|recondicionado)\b`)
	soldHint      = regexp.MustCompile(`(?i)\d.*\bvendid`)
	locationHint  = regexp.MustCompile(`(?i)\b(capital federal|buenos aires|gba (norte|sur|oeste)|córdoba|cordoba|santa fe|mendoza|rosario|tucumán|tucuman|neuquén|neuquen|salta|entre ríos|entre rios|la plata|mar del plata|ciudad de méxico|cdmx|jalisco|nuevo león|nuevo leon|são paulo|sao paulo|rio de janeiro|minas gerais|bogotá|bogota|antioquia|medellín|medellin|santiago|valparaíso|valparaiso|lima|arequipa|montevideo|canelones|maldonado)`)
)

// guessMissingFields is a best-effort pass over the short text nodes of a
// listing. It only fills fields the selector chains left empty.
func guessMissingFields(s *goquery.Selection, metadataGroup string, raw *models.RawListing) {
	if raw.Seller != "" && raw.Location != "" && raw.Condition != "" && raw.SoldText != "" {
		return
	}

	scope := s
	if metadataGroup != "" {
		if group := s.Find(metadataGroup); group.Length() > 0 {
			scope = group
		}
	}

	for _, text := range shortTexts(scope, raw.Title) {
		switch {
		case raw.Seller == "" && sellerHint.MatchString(text):
			raw.Seller = text
			raw.Guessed = append(raw.Guessed, GuessedSeller)
		case raw.Condition == "" && conditionHint.MatchString(text):
			raw.Condition = text
			raw.Guessed = append(raw.Guessed, GuessedCondition)
		case raw.SoldText == "" && soldHint.MatchString(text):
			raw.SoldText = text
			raw.Guessed = append(raw.Guessed, GuessedSold)
		case raw.Location == "" && locationHint.MatchString(text):
			raw.Location = text
			raw.Guessed = append(raw.Guessed, GuessedLocation)
		}
	}
}

// shortTexts returns the collapsed text of leaf elements no longer than
// maxHeuristicTextLen runes, in document order, skipping the title.
func shortTexts(scope *goquery.Selection, title string) []string {
	var texts []string
	seen := make(map[string]bool)
	scope.Find("*").Each(func(_ int, el *goquery.Selection) {
		if el.Children().Length() > 0 || goquery.NodeName(el) == "script" || goquery.NodeName(el) == "style" {
			return
		}
		text := helpers.CollapseSpaces(el.Text())
		if text == "" || text == title || seen[text] || utf8.RuneCountInString(text) > maxHeuristicTextLen {
			return
		}
		seen[text] = true
		texts = append(texts, text)
	})
	return texts
}

// hasFreeShipping reports whether any shipping badge advertises free delivery.
func hasFreeShipping(s *goquery.Selection, selector string) bool {
	if selector == "" {
		return false
	}
	found := false
	s.Find(selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		text := strings.ToLower(el.Text())
		if strings.Contains(text, "gratis") || strings.Contains(text, "grátis") || strings.Contains(text, "free") {
			found = true
			return false
		}
		return true
	})
	return found
}

// collectPromotions returns the distinct promotional labels of a listing.
func collectPromotions(s *goquery.Selection, selector string) []string {
	if selector == "" {
		return nil
	}
	var promos []string
	seen := make(map[string]bool)
	s.Find(selector).Each(func(_ int, el *goquery.Selection) {
		text := helpers.CollapseSpaces(el.Text())
		if text == "" || seen[text] || utf8.RuneCountInString(text) > maxHeuristicTextLen {
			return
		}
		seen[text] = true
		promos = append(promos, text)
	})
	return promos
}
