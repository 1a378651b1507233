// Package access decides what a session may see and change.
//
// Proprietors and teachers see every student. Parents only see the students whose parent email is
// theirs, and the results, behavior records and documents of those students. Unknown roles see nothing.
package access

import (
	"github.com/zhuluh247/MySchool/core/behavior"
	"github.com/zhuluh247/MySchool/core/class"
	"github.com/zhuluh247/MySchool/core/document"
	"github.com/zhuluh247/MySchool/core/result"
	"github.com/zhuluh247/MySchool/core/student"
	"github.com/zhuluh247/MySchool/core/user"
)

// Session identifies the user performing an operation.
type Session struct {
	UserID string    `json:"userId"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Role   user.Role `json:"role"`
}

func NewSession(usr user.User) Session {
	return Session{UserID: usr.ID, Email: usr.Email, Name: usr.Name, Role: usr.Role}
}

// Kind of record a permission applies to.
type Kind string

const (
	KindStudent  Kind = "student"
	KindClass    Kind = "class"
	KindSubject  Kind = "subject"
	KindResult   Kind = "result"
	KindBehavior Kind = "behavior"
	KindDocument Kind = "document"
	KindUser     Kind = "user"
)

type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Policy is the access policy of a role.
type Policy interface {
	Session() Session
	// Can reports whether the session may perform action on records of kind.
	Can(kind Kind, action Action) bool
	// restricted reports whether the session only sees some students, chosen by sees.
	restricted() bool
	sees(st student.Student) bool
}

// PolicyFor returns the policy of the session's role.
func PolicyFor(s Session) Policy {
	switch s.Role {
	case user.RoleProprietor:
		return Proprietor{s}
	case user.RoleTeacher:
		return Teacher{s}
	case user.RoleParent:
		return Parent{s}
	}
	return noAccess{s}
}

// Proprietor may do everything.
type Proprietor struct{ session Session }

func (p Proprietor) Session() Session                  { return p.session }
func (p Proprietor) Can(kind Kind, action Action) bool { return true }
func (p Proprietor) restricted() bool                  { return false }
func (p Proprietor) sees(st student.Student) bool      { return true }

// Teacher may do everything a proprietor does. Teachers are not limited to their assigned classes.
type Teacher struct{ session Session }

func (p Teacher) Session() Session                  { return p.session }
func (p Teacher) Can(kind Kind, action Action) bool { return true }
func (p Teacher) restricted() bool                  { return false }
func (p Teacher) sees(st student.Student) bool      { return true }

// Parent sees the records of its children. It may add and remove behavior records, and upload documents.
type Parent struct{ session Session }

func (p Parent) Session() Session { return p.session }

func (p Parent) Can(kind Kind, action Action) bool {
	switch kind {
	case KindStudent, KindClass, KindSubject, KindResult:
		return action == ActionView
	case KindBehavior:
		return action == ActionView || action == ActionCreate || action == ActionDelete
	case KindDocument:
		return action == ActionView || action == ActionCreate
	}
	return false
}

func (p Parent) restricted() bool { return true }

// sees matches the parent email exactly.
func (p Parent) sees(st student.Student) bool {
	return p.session.Email != "" && st.Parent == p.session.Email
}

// noAccess is the policy of unknown roles.
type noAccess struct{ session Session }

func (p noAccess) Session() Session                  { return p.session }
func (p noAccess) Can(kind Kind, action Action) bool { return false }
func (p noAccess) restricted() bool                  { return true }
func (p noAccess) sees(st student.Student) bool      { return false }

// CanDeleteUser reports whether the session may delete the user with the given id.
// Nobody may delete their own account.
func CanDeleteUser(p Policy, targetID string) bool {
	return p.Can(KindUser, ActionDelete) && targetID != "" && targetID != p.Session().UserID
}

// CanSeeStudent reports whether the student is visible to the policy.
func CanSeeStudent(p Policy, st student.Student) bool {
	return !p.restricted() || p.sees(st)
}

// VisibleStudents returns the students of the roster visible to the policy, in roster order.
func VisibleStudents(p Policy, roster []student.Student) []student.Student {
	if !p.restricted() {
		return roster
	}
	out := make([]student.Student, 0)
	for _, st := range roster {
		if p.sees(st) {
			out = append(out, st)
		}
	}
	return out
}

func VisibleResults(p Policy, results []result.Result, roster []student.Student) []result.Result {
	return visible(p, results, roster, func(r result.Result) string { return r.StudentID })
}

func VisibleBehavior(p Policy, records []behavior.Record, roster []student.Student) []behavior.Record {
	return visible(p, records, roster, func(r behavior.Record) string { return r.StudentID })
}

func VisibleDocuments(p Policy, docs []document.Document, roster []student.Student) []document.Document {
	return visible(p, docs, roster, func(d document.Document) string { return d.StudentID })
}

// VisibleClassSummaries returns the class summaries with student counts limited to the students
// visible to the policy.
func VisibleClassSummaries(p Policy, summaries []class.Summary, roster []student.Student) []class.Summary {
	if !p.restricted() {
		return summaries
	}
	counts := make(map[string]int)
	for _, st := range VisibleStudents(p, roster) {
		counts[st.Class]++
	}
	out := make([]class.Summary, len(summaries))
	for i, sum := range summaries {
		sum.StudentCount = counts[sum.Name]
		out[i] = sum
	}
	return out
}

// visible keeps the items linked to a student visible to the policy.
func visible[T any](p Policy, items []T, roster []student.Student, studentID func(T) string) []T {
	if !p.restricted() {
		return items
	}
	ids := make(map[string]bool)
	for _, st := range VisibleStudents(p, roster) {
		ids[st.ID] = true
	}
	out := make([]T, 0)
	for _, it := range items {
		if ids[studentID(it)] {
			out = append(out, it)
		}
	}
	return out
}
