package model

// Project is a registry entry consumed from the external project feed.
// It exists only to scope which tasks a site manager may see; the service
// never creates or mutates projects itself.
type Project struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	ManagerIDs []int64 `json:"manager_ids"`
}

// VisibleTo reports whether the given manager belongs to the project.
func (p Project) VisibleTo(managerID int64) bool {
	for _, id := range p.ManagerIDs {
		if id == managerID {
			return true
		}
	}
	return false
}
