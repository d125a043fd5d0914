package config

// SchedulerConfig defines configuration for watch mode
type SchedulerConfig struct {
	CycleMinutes int    `json:"cycle_minutes,omitempty" yaml:"cycle_minutes,omitempty" validate:"min=1"` // in minutes
	SQLiteDBPath string `json:"sqlite_db_path,omitempty" yaml:"sqlite_db_path,omitempty" validate:"required"`
}

// NewDefaultSchedulerConfig creates default scheduler configuration
func NewDefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		CycleMinutes: DefaultSchedulerCycleMinutes,
		SQLiteDBPath: DefaultSchedulerSQLiteDBPath,
	}
}
