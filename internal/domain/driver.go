package domain

// Driver is owned outside this service and referenced by id.
// Location is the last known position and may be unknown.
type Driver struct {
	ID       int64
	Name     string
	Location *Coordinates
	Active   bool
}
