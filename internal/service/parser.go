package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	maxServiceIDLen = 20
	minLinkLen      = 5
	maxLinkLen      = 2048
	maxQuantity     = 5_000_000
)

var serviceIDPattern = regexp.MustCompile(`^\d+$`)

// ParsedLine is one validated batch line: serviceId|link|quantity.
type ParsedLine struct {
	LineNo    int
	Raw       string
	ServiceID string
	Link      string
	Quantity  int
}

// RowResult reports the outcome of one batch line, whether it failed parsing
// or was attempted against the provider.
type RowResult struct {
	LineNo          int    `json:"line_no"`
	ServiceID       string `json:"service_id"`
	Link            string `json:"link"`
	Quantity        int    `json:"quantity"`
	Status          string `json:"status"` // "ok" or "error"
	Message         string `json:"message"`
	ProviderOrderID string `json:"provider_order_id,omitempty"`
}

const (
	RowStatusOK    = "ok"
	RowStatusError = "error"
)

// ParseLines splits raw batch text into validated lines and per-line errors.
// Blank lines are dropped; remaining lines are numbered from 1. Each line
// must split on "|" into at least serviceId, link and quantity (extra fields
// ignored). A failing line is reported and parsing continues — this is the
// only validation gate before submission.
func ParseLines(raw string) ([]ParsedLine, []RowResult) {
	var (
		valid  []ParsedLine
		errs   []RowResult
		lineNo int
	)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}
		lineNo++

		parts := strings.Split(line, "|")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) < 3 {
			errs = append(errs, RowResult{
				LineNo:  lineNo,
				Status:  RowStatusError,
				Message: "invalid format, expected serviceId|link|quantity",
			})
			continue
		}

		serviceID, link, quantityRaw := parts[0], parts[1], parts[2]

		fail := func(msg string) {
			quantity, _ := strconv.Atoi(quantityRaw)
			errs = append(errs, RowResult{
				LineNo:    lineNo,
				ServiceID: serviceID,
				Link:      link,
				Quantity:  quantity,
				Status:    RowStatusError,
				Message:   msg,
			})
		}

		if !serviceIDPattern.MatchString(serviceID) {
			fail("service id must be numeric")
			continue
		}
		if len(serviceID) > maxServiceIDLen {
			fail("service id too long")
			continue
		}
		if len(link) < minLinkLen || len(link) > maxLinkLen {
			fail(fmt.Sprintf("link must be %d to %d characters", minLinkLen, maxLinkLen))
			continue
		}
		quantity, err := strconv.Atoi(quantityRaw)
		if err != nil {
			fail("quantity must be an integer")
			continue
		}
		if quantity <= 0 {
			fail("quantity must be greater than 0")
			continue
		}
		if quantity > maxQuantity {
			fail(fmt.Sprintf("quantity must not exceed %d", maxQuantity))
			continue
		}

		valid = append(valid, ParsedLine{
			LineNo:    lineNo,
			Raw:       line,
			ServiceID: serviceID,
			Link:      link,
			Quantity:  quantity,
		})
	}

	return valid, errs
}
