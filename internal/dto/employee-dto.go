// Файл: internal/dto/employee-dto.go
package dto

import (
	"bytes"
	"encoding/json"
	"strconv"

	"roster-sync/internal/entities"
)

// ExternalEmployeeNode - сотрудник, перехваченный из ответа портала. Живёт только в рамках запуска.
type ExternalEmployeeNode struct {
	ID            string
	Name          string
	Email         string
	CurrentStatus string
	Image         string
	JoinedDate    string
}

// NormalizedEmployeeRecord - сотрудник в форме записи состава с проставленными значениями по умолчанию.
type NormalizedEmployeeRecord struct {
	ID               string
	Name             string
	Email            string
	Role             string
	OnboardingStatus string
	Department       string
	JoinedDate       string
	Image            string
	Stats            entities.Stats
	Progress         int
}

// EmploymentsPayload - корень ответа GraphQL с сотрудниками расписания.
type EmploymentsPayload struct {
	Data *struct {
		EmploymentsInScheduleTimeRange *struct {
			Edges *[]EmploymentEdge `json:"edges"`
		} `json:"employmentsInScheduleTimeRange"`
	} `json:"data"`
}

type EmploymentEdge struct {
	Node *EmploymentNode `json:"node"`
}

type EmploymentNode struct {
	UserID        FlexibleID `json:"userId"`
	ID            FlexibleID `json:"id"`
	ComputedName  string     `json:"computedName"`
	Email         string     `json:"email"`
	CurrentStatus string     `json:"currentStatus"`
	DuringFrom    string     `json:"duringFrom"`
	Image         string     `json:"image"`
}

// FlexibleID принимает идентификатор и строкой, и числом.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*f = FlexibleID(strconv.FormatInt(i, 10))
		return nil
	}
	*f = FlexibleID(n.String())
	return nil
}
