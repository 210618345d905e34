package hrapi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Employment statuses reported by the backend.
const (
	StatusActive     = "active"
	StatusProbation  = "probation"
	StatusInactive   = "inactive"
	StatusTerminated = "terminated"
)

// Employee is an employee record, normalised from the backend's shapes.
type Employee struct {
	ID             string `json:"id"`
	EmployeeNumber string `json:"employee_number,omitempty"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	FullName       string `json:"full_name"`
	Position       string `json:"position,omitempty"`
	Department     string `json:"department,omitempty"`
	EmploymentType string `json:"employment_type,omitempty"`
	Status         string `json:"status"`
	Role           string `json:"role,omitempty"`
	StartDate      string `json:"start_date,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
	VacationDays   int    `json:"vacation_days,omitempty"`
	IsActive       bool   `json:"is_active"`
}

type employeeWire struct {
	ID         json.RawMessage `json:"id"`
	EmployeeID json.RawMessage `json:"employee_id"`
	Name       string          `json:"name"`
	EmpNumber  string          `json:"employeeNumber"`
	IsActive   *bool           `json:"is_active"`
	employeeFields
}

// employeeFields strips Employee's methods so decoding does not recurse.
type employeeFields Employee

// UnmarshalJSON accepts numeric or string ids, employee_id, and the
// legacy name / employeeNumber fields. Missing values are derived:
// full name from first and last name, status defaults to active, and
// is_active follows the status unless sent explicitly.
func (e *Employee) UnmarshalJSON(data []byte) error {
	var w employeeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*e = Employee(w.employeeFields)

	e.ID = rawID(w.ID)
	if e.ID == "" {
		e.ID = rawID(w.EmployeeID)
	}
	if e.EmployeeNumber == "" {
		e.EmployeeNumber = w.EmpNumber
	}

	e.Status = strings.ToLower(strings.TrimSpace(e.Status))
	if e.Status == "" {
		e.Status = StatusActive
	}

	if e.FullName == "" {
		e.FullName = strings.TrimSpace(e.FirstName + " " + e.LastName)
	}
	if e.FullName == "" {
		e.FullName = w.Name
	}

	if w.IsActive != nil {
		e.IsActive = *w.IsActive
	} else {
		e.IsActive = e.Status == StatusActive || e.Status == StatusProbation
	}

	return nil
}

func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

// EmployeeList is the list endpoint response.
type EmployeeList struct {
	Employees []Employee `json:"employees"`
	Total     int        `json:"total"`
	Page      int        `json:"page,omitempty"`
	Size      int        `json:"size,omitempty"`
}

// UnmarshalJSON also accepts a bare array, which older backends return.
func (l *EmployeeList) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var items []Employee
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*l = EmployeeList{Employees: items, Total: len(items)}
		return nil
	}

	type plain EmployeeList
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = EmployeeList(p)
	if l.Total < len(l.Employees) {
		l.Total = len(l.Employees)
	}
	return nil
}

// EmployeeCreate is the body of a create request.
type EmployeeCreate struct {
	Email          string `json:"email"`
	Password       string `json:"password,omitempty"`
	EmployeeNumber string `json:"employee_number,omitempty"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Position       string `json:"position,omitempty"`
	Department     string `json:"department,omitempty"`
	EmploymentType string `json:"employment_type,omitempty"`
	StartDate      string `json:"start_date,omitempty"`
	Status         string `json:"status,omitempty"`
	Role           string `json:"role,omitempty"`
	VacationDays   int    `json:"vacation_days,omitempty"`
}

// EmployeeUpdate is a partial update; nil fields are left unchanged.
type EmployeeUpdate struct {
	Email          *string `json:"email,omitempty"`
	FirstName      *string `json:"first_name,omitempty"`
	LastName       *string `json:"last_name,omitempty"`
	Position       *string `json:"position,omitempty"`
	Department     *string `json:"department,omitempty"`
	EmploymentType *string `json:"employment_type,omitempty"`
	Status         *string `json:"status,omitempty"`
	Role           *string `json:"role,omitempty"`
	VacationDays   *int    `json:"vacation_days,omitempty"`
}

// Apply returns e with the non-nil fields of u applied.
func (u EmployeeUpdate) Apply(e Employee) Employee {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&e.Email, u.Email)
	set(&e.FirstName, u.FirstName)
	set(&e.LastName, u.LastName)
	set(&e.Position, u.Position)
	set(&e.Department, u.Department)
	set(&e.EmploymentType, u.EmploymentType)
	set(&e.Role, u.Role)
	if u.Status != nil {
		e.Status = strings.ToLower(*u.Status)
		e.IsActive = e.Status == StatusActive || e.Status == StatusProbation
	}
	if u.VacationDays != nil {
		e.VacationDays = *u.VacationDays
	}
	if u.FirstName != nil || u.LastName != nil {
		e.FullName = strings.TrimSpace(e.FirstName + " " + e.LastName)
	}
	return e
}
