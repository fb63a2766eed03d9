package entity

// All returns every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Project{},
		&SiteWorkOrder{},
		&DailyReport{},
		&ProjectSupervisor{},
		&ProjectEquipment{},
		&ProjectWorkerTeam{},
		&ActivityLog{},
	}
}
