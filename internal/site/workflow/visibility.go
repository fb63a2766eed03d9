package workflow

import "github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"

// IsTiered reports whether role sees every project unconditionally.
func IsTiered(role string) bool {
	r, _ := entity.NormalizeRole(role)
	return in(r, entity.RoleAdmin, entity.RoleMD, entity.RoleGM, entity.RoleCD)
}

// InScope decides whether user may see an entity of projectID addressed to
// the given supervisor.
func InScope(user *entity.User, projectID, supervisorID, supervisorName string) bool {
	if user == nil {
		return false
	}
	if IsTiered(user.Role) {
		return true
	}
	if projectID != "" && user.IsAssigned(projectID) {
		return true
	}
	r, _ := entity.NormalizeRole(user.Role)
	return r == entity.RoleSupervisor && IsSupervisor(user, supervisorID, supervisorName)
}

// ProjectInScope applies InScope to a project.
func ProjectInScope(user *entity.User, p *entity.Project) bool {
	return p != nil && InScope(user, p.ID, "", "")
}

// SWOInScope applies InScope to an SWO.
func SWOInScope(user *entity.User, s *entity.SiteWorkOrder) bool {
	return s != nil && InScope(user, s.ProjectID, s.SupervisorID, s.SupervisorName)
}

// ReportInScope applies InScope to a report. swo may be nil.
func ReportInScope(user *entity.User, r *entity.DailyReport, swo *entity.SiteWorkOrder) bool {
	if r == nil {
		return false
	}
	if InScope(user, r.ProjectID, r.SupervisorID, r.SupervisorName) {
		return true
	}
	return swo != nil && SWOInScope(user, swo)
}

// FilterProjects keeps the projects visible to user.
func FilterProjects(user *entity.User, projects []entity.Project) []entity.Project {
	out := make([]entity.Project, 0, len(projects))
	for i := range projects {
		if ProjectInScope(user, &projects[i]) {
			out = append(out, projects[i])
		}
	}
	return out
}

// FilterSWOs keeps the SWOs visible to user.
func FilterSWOs(user *entity.User, swos []entity.SiteWorkOrder) []entity.SiteWorkOrder {
	out := make([]entity.SiteWorkOrder, 0, len(swos))
	for i := range swos {
		if SWOInScope(user, &swos[i]) {
			out = append(out, swos[i])
		}
	}
	return out
}

// FilterReports keeps the reports visible to user. swos resolves each
// report's SWO by id and may be nil.
func FilterReports(user *entity.User, reports []entity.DailyReport, swos map[string]*entity.SiteWorkOrder) []entity.DailyReport {
	out := make([]entity.DailyReport, 0, len(reports))
	for i := range reports {
		if ReportInScope(user, &reports[i], swos[reports[i].SWOID]) {
			out = append(out, reports[i])
		}
	}
	return out
}
