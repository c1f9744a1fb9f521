package extraction

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	sourceDateLayout = "02/01/2006"
	isoDateLayout    = "2006-01-02"

	defaultInstallments = 1
)

// rule matches a single label and stores its captured value on the result
type rule struct {
	name    string
	pattern *regexp.Regexp
	apply   func(r *Result, value string)
}

// All label patterns are case-insensitive and treat non-breaking spaces as whitespace.
// The first capture group is the value.
var rules = []rule{
	{
		name:    "company_name",
		pattern: regexp.MustCompile(`(?i)RAZÃO\p{Z}SOCIAL:[\s\p{Z}]*([^\n]+)`),
		apply: func(r *Result, value string) {
			name := strings.TrimSpace(value)
			r.CompanyName = &name
		},
	},
	{
		name:    "issue_date",
		pattern: regexp.MustCompile(`(?i)DATA[\s\p{Z}]+D[AE][\s\p{Z}]+EMISSÃO:[\s\p{Z}]*(\d{2}/\d{2}/\d{4})`),
		apply: func(r *Result, value string) {
			r.IssueDate = formatDate(value)
		},
	},
	{
		name:    "due_date",
		pattern: regexp.MustCompile(`(?i)DATA[\s\p{Z}]+D[OE][\s\p{Z}]+VENCIMENTO:[\s\p{Z}]*(\d{2}/\d{2}/\d{4})`),
		apply: func(r *Result, value string) {
			r.DueDate = formatDate(value)
		},
	},
	{
		name:    "total_value",
		pattern: regexp.MustCompile(`(?i)VALOR[\s\p{Z}]+TOTAL:[\s\p{Z}]*R?\$?[\s\p{Z}]*([\d.,]+)`),
		apply: func(r *Result, value string) {
			r.TotalValue = parseValue(value)
		},
	},
	{
		name:    "installment_count",
		pattern: regexp.MustCompile(`(?i)PARCELAS?:[\s\p{Z}]*(\d+)`),
		apply: func(r *Result, value string) {
			if n, err := strconv.Atoi(value); err == nil {
				r.InstallmentCount = n
			}
		},
	},
}

var (
	// itemsPattern captures everything between the item header line and the first total line
	itemsPattern = regexp.MustCompile(`(?is)ITEM[\s\p{Z}]+DESCRIÇÃO.*?\n(.*?)(?:VALOR\p{Z}TOTAL|TOTAL\p{Z}GERAL)`)
	digitPattern = regexp.MustCompile(`\d`)
	spacePattern = regexp.MustCompile(`[\s\p{Z}]+`)
)

// Parse extracts the invoice fields from the concatenated text of a document
func Parse(text string) *Result {
	result := &Result{
		InstallmentCount: defaultInstallments,
		Items:            []string{},
	}

	for _, rl := range rules {
		match := rl.pattern.FindStringSubmatch(text)
		if match == nil {
			slog.Debug("Label not found", "field", rl.name)
			continue
		}
		rl.apply(result, match[1])
	}

	result.Items = parseItems(text)
	return result
}

// formatDate converts a DD/MM/YYYY date to YYYY-MM-DD; invalid dates return nil
func formatDate(value string) *string {
	date, err := time.Parse(sourceDateLayout, value)
	if err != nil {
		slog.Debug("Invalid date", "value", value, "error", err)
		return nil
	}
	formatted := date.Format(isoDateLayout)
	return &formatted
}

// parseValue parses a Brazilian formatted amount such as 1.234,56.
// Dots are thousands separators and the comma is the decimal separator.
func parseValue(value string) *float64 {
	normalized := strings.ReplaceAll(value, ".", "")
	normalized = strings.ReplaceAll(normalized, ",", ".")

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		slog.Debug("Invalid amount", "value", value, "error", err)
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

// parseItems returns the whitespace-normalized lines of the items block that contain a digit
func parseItems(text string) []string {
	items := []string{}

	match := itemsPattern.FindStringSubmatch(text)
	if match == nil {
		return items
	}

	for _, line := range strings.Split(strings.TrimSpace(match[1]), "\n") {
		if !digitPattern.MatchString(line) {
			continue
		}
		item := strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
