package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"dealscope/engine"
	"dealscope/models"
)

var (
	streetReplacements = map[string]string{
		"street":    "st",
		"avenue":    "ave",
		"drive":     "dr",
		"road":      "rd",
		"boulevard": "blvd",
		"lane":      "ln",
		"court":     "ct",
		"place":     "pl",
		"circle":    "cir",
		"terrace":   "ter",
		"highway":   "hwy",
		"parkway":   "pkwy",
		"north":     "n",
		"south":     "s",
		"east":      "e",
		"west":      "w",
		"apartment": "apt",
		"suite":     "ste",
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
)

// AddressKey is the owner-scoped duplicate key for a property address
func AddressKey(ownerID, address string) string {
	input := fmt.Sprintf("%s|%s", ownerID, NormalizeAddress(address))
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeAddress lowercases, strips punctuation and abbreviates common
// street words so "12 North Main Street" and "12 n main st." compare equal.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")
	words := strings.Fields(addr)
	for i, w := range words {
		if abbrev, ok := streetReplacements[w]; ok {
			words[i] = abbrev
		}
	}
	addr = strings.Join(words, " ")
	return multiSpaceRegex.ReplaceAllString(addr, " ")
}

// evaluationInput is everything an evaluation depends on
type evaluationInput struct {
	PurchasePrice    float64             `json:"p"`
	RentRoll         []models.RentUnit   `json:"r"`
	Expenses         models.ExpenseModel `json:"e"`
	Financing        models.Financing    `json:"f"`
	MarginalTaxRate  *float64            `json:"m"`
	LandValuePercent *float64            `json:"l"`
	Profile          models.GradeProfile `json:"g"`
	Signals          engine.Signals      `json:"s"`
}

// EvaluationKey hashes the inputs of an evaluation. Two calls with equal
// inputs yield the same key, so cached results can be reused until any
// input changes.
func EvaluationKey(p *models.Property, profile models.GradeProfile, sig engine.Signals) string {
	in := evaluationInput{
		PurchasePrice:    p.PurchasePrice,
		RentRoll:         p.RentRoll,
		Expenses:         p.Expenses,
		Financing:        p.Financing,
		MarginalTaxRate:  p.MarginalTaxRate,
		LandValuePercent: p.LandValuePercent,
		Profile:          profile,
		Signals:          sig,
	}
	// Marshal of plain structs cannot fail
	data, _ := json.Marshal(in)
	hash := sha256.Sum256(append([]byte(p.ID.String()+"|"), data...))
	return hex.EncodeToString(hash[:16])
}
