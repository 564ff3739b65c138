package sqlite

import "github.com/Ironbeetle/TCN-Communications-sub000/internal/timesheet"

// Ensure SQLite stores implement the storage interfaces.
var _ timesheet.Store = (*TimesheetStore)(nil)
