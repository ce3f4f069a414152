package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"dealscope/models"
	"dealscope/money"
)

// ParseRentRoll reads label,rent,beds,baths,sqft rows. A header row is
// optional; beds, baths and sqft may be left blank or omitted.
func ParseRentRoll(r io.Reader) ([]models.RentUnit, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var units []models.RentUnit
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, &ValidationError{Field: "rent_roll", Message: fmt.Sprintf("line %d could not be read: %v", line, err)}
		}
		if isBlank(record) {
			continue
		}
		if line == 1 && isHeader(record) {
			continue
		}

		unit, err := parseRentRow(record)
		if err != nil {
			return nil, &ValidationError{Field: "rent_roll", Message: fmt.Sprintf("line %d: %v", line, err)}
		}
		units = append(units, unit)
	}

	if len(units) == 0 {
		return nil, &ValidationError{Field: "rent_roll", Message: "the rent roll file has no units"}
	}
	return units, nil
}

func parseRentRow(record []string) (models.RentUnit, error) {
	if len(record) < 2 {
		return models.RentUnit{}, fmt.Errorf("expected at least a label and a rent")
	}
	unit := models.RentUnit{Label: strings.TrimSpace(record[0])}

	rent, err := money.ParseCurrency(record[1])
	if err != nil {
		return unit, fmt.Errorf("rent %q is not a number", record[1])
	}
	if rent < 0 {
		return unit, fmt.Errorf("rent cannot be negative")
	}
	unit.MonthlyRent = rent

	if unit.Beds, err = optionalInt(record, 2); err != nil {
		return unit, fmt.Errorf("beds: %w", err)
	}
	if baths := field(record, 3); baths != "" {
		v, err := strconv.ParseFloat(baths, 64)
		if err != nil || v < 0 {
			return unit, fmt.Errorf("baths %q is not a number", baths)
		}
		unit.Baths = &v
	}
	if unit.SqFt, err = optionalInt(record, 4); err != nil {
		return unit, fmt.Errorf("sqft: %w", err)
	}
	return unit, nil
}

func optionalInt(record []string, i int) (*int, error) {
	raw := field(record, i)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(strings.ReplaceAll(raw, ",", ""))
	if err != nil || v < 0 {
		return nil, fmt.Errorf("%q is not a whole number", raw)
	}
	return &v, nil
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func isHeader(record []string) bool {
	return len(record) > 1 && money.Sanitize(record[1]) == ""
}
