package shared

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// ParseID parses a textual identifier into a UUID.
func ParseID(value string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil, WrapError("shared", "ParseID", ErrInvalidID, "invalid identifier", err)
	}
	return id, nil
}

// ParseOptionalID parses an identifier that may be empty.
func ParseOptionalID(value string) (*uuid.UUID, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	id, err := ParseID(value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Grade Scale
// ═══════════════════════════════════════════════════════════════════════════

// GradeScale is the upper bound of every normalized score and GPA.
const GradeScale = 20

// Precision is the number of decimal places kept on stored scores and GPAs.
const Precision = 2

var (
	// MaxGrade is GradeScale as a decimal.
	MaxGrade = decimal.NewFromInt(GradeScale)

	// PassMark is the minimum annual GPA for promotion. Ties promote.
	PassMark = decimal.NewFromInt(10)
)

// RoundGrade rounds a score or GPA to the stored precision (half away from zero).
func RoundGrade(d decimal.Decimal) decimal.Decimal {
	return d.Round(Precision)
}

// InGradeRange reports whether d lies in [0, GradeScale].
func InGradeRange(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(MaxGrade)
}

// ═══════════════════════════════════════════════════════════════════════════
// Money
// ═══════════════════════════════════════════════════════════════════════════

// RoundMoney rounds a monetary amount to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
