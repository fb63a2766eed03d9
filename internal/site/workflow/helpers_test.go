package workflow

import (
	"time"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
)

var testNow = time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

func user(id, role string, projects ...string) *entity.User {
	return &entity.User{
		ID:               id,
		Name:             "User " + id,
		Email:            id + "@cmg.test",
		Role:             role,
		Status:           entity.UserStatusApproved,
		AssignedProjects: projects,
	}
}

func project() *entity.Project {
	return &entity.Project{ID: "p1", Number: "CMG-2024-015", Name: "Riverside"}
}

func swo() *entity.SiteWorkOrder {
	return &entity.SiteWorkOrder{
		ID:             "s1",
		ProjectID:      "p1",
		SWONo:          "015-SWO-001",
		WorkName:       "Foundation",
		SupervisorID:   "sup",
		SupervisorName: "User sup",
		Status:         entity.SWOStatusAssigned,
		Activities:     []entity.Activity{
			{ID: "a1", Description: "Excavation", Unit: "m3", RequiredQty: 100},
			{ID: "a2", Description: "Rebar", Unit: "t", RequiredQty: 0},
		},
	}
}

func approved(id, date string, a1, a2 float64) entity.DailyReport {
	return entity.DailyReport{
		ID:       id,
		SWOID:    "s1",
		Date:     date,
		Status:   entity.ReportStatusApproved,
		Progress: []entity.ActivityProgress{
			{ActivityID: "a1", Today: a1},
			{ActivityID: "a2", Today: a2},
		},
	}
}

func content(a1 float64) ReportContent {
	return ReportContent{Progress: []entity.ActivityProgress{{ActivityID: "a1", Today: a1}}}
}
