// Package authz resolves what the caller of an attempt operation may do.
// Capabilities are checked once at the service boundary instead of comparing
// role strings in every handler.
package authz

import "online_exam_backend/internal/model"

// Actor is the capability set of a caller.
type Actor interface {
	ID() uint
	Role() model.UserRole
	// IsOwner reports whether the actor is the student the record belongs to.
	IsOwner(studentID uint) bool
	IsAdmin() bool
	IsTeacherOf(exam *model.Exam) bool
}

// New returns the actor for an authenticated user.
func New(userID uint, role model.UserRole) Actor {
	switch role {
	case model.Admin:
		return admin{id: userID}
	case model.Teacher:
		return teacher{id: userID}
	case model.Student:
		return student{id: userID}
	}
	return anonymous{id: userID, role: role}
}

// System is the actor of background jobs. It acts on behalf of the owning
// student and holds no teacher or admin capability.
func System() Actor { return system{} }

type student struct{ id uint }

func (s student) ID() uint                    { return s.id }
func (student) Role() model.UserRole          { return model.Student }
func (s student) IsOwner(studentID uint) bool { return s.id == studentID }
func (student) IsAdmin() bool                 { return false }
func (student) IsTeacherOf(*model.Exam) bool  { return false }

type teacher struct{ id uint }

func (t teacher) ID() uint           { return t.id }
func (teacher) Role() model.UserRole { return model.Teacher }
func (teacher) IsOwner(uint) bool    { return false }
func (teacher) IsAdmin() bool        { return false }
func (t teacher) IsTeacherOf(exam *model.Exam) bool {
	return exam != nil && exam.TeacherID == t.id
}

type admin struct{ id uint }

func (a admin) ID() uint                   { return a.id }
func (admin) Role() model.UserRole         { return model.Admin }
func (admin) IsOwner(uint) bool            { return false }
func (admin) IsAdmin() bool                { return true }
func (admin) IsTeacherOf(*model.Exam) bool { return false }

type system struct{}

func (system) ID() uint                     { return 0 }
func (system) Role() model.UserRole         { return model.System }
func (system) IsOwner(uint) bool            { return true }
func (system) IsAdmin() bool                { return false }
func (system) IsTeacherOf(*model.Exam) bool { return false }

type anonymous struct {
	id   uint
	role model.UserRole
}

func (a anonymous) ID() uint                   { return a.id }
func (a anonymous) Role() model.UserRole       { return a.role }
func (anonymous) IsOwner(uint) bool            { return false }
func (anonymous) IsAdmin() bool                { return false }
func (anonymous) IsTeacherOf(*model.Exam) bool { return false }

// CanManage reports whether the actor may review or grade work for the exam.
func CanManage(a Actor, exam *model.Exam) bool {
	return a.IsAdmin() || a.IsTeacherOf(exam)
}

// CanView reports whether the actor may read a student's record in the exam.
func CanView(a Actor, exam *model.Exam, studentID uint) bool {
	return a.IsOwner(studentID) || CanManage(a, exam)
}
