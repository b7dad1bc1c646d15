// Файл: internal/entities/team-member-entity.go
package entities

import (
	"time"

	"github.com/aarondl/null/v8"

	"roster-sync/pkg/types"
)

const (
	DepartmentUnassigned = "Unassigned"
	DefaultRole          = "Team Member"
	DefaultStatus        = "Onboarding"
	NeutralStat          = 50
	InitialProgress      = 0
)

type Stats struct {
	Speed       int `json:"speed" db:"speed" bson:"speed"`
	Accuracy    int `json:"accuracy" db:"accuracy" bson:"accuracy"`
	Hospitality int `json:"hospitality" db:"hospitality" bson:"hospitality"`
	Knowledge   int `json:"knowledge" db:"knowledge" bson:"knowledge"`
	Leadership  int `json:"leadership" db:"leadership" bson:"leadership"`
}

func NeutralStats() Stats {
	return Stats{
		Speed:       NeutralStat,
		Accuracy:    NeutralStat,
		Hospitality: NeutralStat,
		Knowledge:   NeutralStat,
		Leadership:  NeutralStat,
	}
}

// TeamMember - запись состава команды. Department, Role, Status, RoleRank, Pairing
// и HasLogin после создания меняет только оператор.
type TeamMember struct {
	ID         string      `json:"id" db:"id"`
	Name       string      `json:"name" db:"name"`
	Email      string      `json:"email" db:"email"`
	Role       string      `json:"role" db:"role"`
	Status     string      `json:"status" db:"status"`
	Department string      `json:"department" db:"department"`
	Joined     string      `json:"joined" db:"joined"`
	Image      null.String `json:"image" db:"image"`
	Stats      Stats       `json:"stats"`
	Progress   int         `json:"progress" db:"progress"`
	RoleRank   null.Int    `json:"role_rank" db:"role_rank"`
	Pairing    null.String `json:"pairing" db:"pairing"`
	HasLogin   bool        `json:"has_login" db:"has_login"`

	types.BaseEntity
}

// TeamMemberIdentity - поля, которые синхронизация может обновлять у существующей записи.
type TeamMemberIdentity struct {
	ID     string
	Name   string
	Email  string
	Joined string
	Image  string
}

type WriteKind string

const (
	WriteCreate WriteKind = "create"
	WriteUpdate WriteKind = "update"
)

// TeamMemberPatch - обновление идентификационных полей. Пустой Image не трогает сохранённое значение.
type TeamMemberPatch struct {
	ID     string
	Name   string
	Email  string
	Joined string
	Image  string
}

// TeamMemberWrite - одна операция пакета: либо Member (create), либо Patch (update).
type TeamMemberWrite struct {
	Kind   WriteKind
	Member *TeamMember
	Patch  *TeamMemberPatch
	At     time.Time
}

func (w TeamMemberWrite) MemberID() string {
	switch w.Kind {
	case WriteCreate:
		if w.Member != nil {
			return w.Member.ID
		}
	case WriteUpdate:
		if w.Patch != nil {
			return w.Patch.ID
		}
	}
	return ""
}

// ApplyPatch применяет обновление к записи, не трогая операторские поля.
func (m *TeamMember) ApplyPatch(p TeamMemberPatch, at time.Time) {
	m.Name = p.Name
	m.Email = p.Email
	m.Joined = p.Joined
	if p.Image != "" {
		m.Image = null.StringFrom(p.Image)
	}
	m.UpdatedAt = at
}

func (m *TeamMember) Identity() TeamMemberIdentity {
	return TeamMemberIdentity{
		ID:     m.ID,
		Name:   m.Name,
		Email:  m.Email,
		Joined: m.Joined,
		Image:  m.Image.String,
	}
}
