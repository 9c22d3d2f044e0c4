package student

import (
	"github.com/shopspring/decimal"

	"github.com/campus-registrar/deliberation/internal/domain/academic"
	"github.com/campus-registrar/deliberation/internal/domain/shared"
)

// Remarks attached to a promotion.
const (
	RemarkProgramComplete = "Program complete - eligible for graduation"
	RemarkRepeat          = "Repeat year"
	remarkAdmittedPrefix  = "Admitted to "
)

// Decide applies the promotion threshold. The comparison is inclusive.
func Decide(annualGPA decimal.Decimal) Decision {
	if annualGPA.GreaterThanOrEqual(shared.PassMark) {
		return DecisionPromoted
	}
	return DecisionRepeated
}

// Verdict is the level a student lands on after deliberation.
type Verdict struct {
	Decision Decision
	LevelTo  academic.Level
	Remarks  string
	// Completed is set when a promoted student has no level left to reach.
	Completed bool
}

// Resolve turns a decision into a destination level. next is the level whose
// order follows current's, or nil when current is the last one.
func Resolve(decision Decision, current academic.Level, next *academic.Level) Verdict {
	if decision != DecisionPromoted {
		return Verdict{Decision: DecisionRepeated, LevelTo: current, Remarks: RemarkRepeat}
	}
	if next == nil {
		return Verdict{Decision: DecisionPromoted, LevelTo: current, Remarks: RemarkProgramComplete, Completed: true}
	}
	return Verdict{Decision: DecisionPromoted, LevelTo: *next, Remarks: remarkAdmittedPrefix + next.Name}
}
