// Package student holds the student aggregate and everything the annual
// deliberation decides about it: promotions and next-year enrollments.
//
// # Deliberation rule
//
// A student whose credit-weighted annual GPA is at least 10 out of 20 is
// PROMOTED to the level whose order immediately follows the current one.
// When no such level exists the student stays at the current level and the
// promotion is marked as a program completion. Every other student REPEATS
// the current level.
//
//	verdict := student.Resolve(student.Decide(annualGPA), current, next)
//
// Both outcomes enroll the student into the next academic year.
package student
