package roles

// Role is the permission level of an actor.
type Role string

const (
	Technician Role = "technician"
	Manager    Role = "manager"
	Admin      Role = "admin"
)

type HierarchyLevel int

const (
	TechnicianLevel HierarchyLevel = 1
	ManagerLevel    HierarchyLevel = 2
	AdminLevel      HierarchyLevel = 3
)

func (r Role) GetHierarchyLevel() HierarchyLevel {
	switch r {
	case Technician:
		return TechnicianLevel
	case Manager:
		return ManagerLevel
	case Admin:
		return AdminLevel
	default:
		return TechnicianLevel
	}
}

func (r Role) HasPermission(requiredRole Role) bool {
	return r.GetHierarchyLevel() >= requiredRole.GetHierarchyLevel()
}

// Elevated roles bypass the routing policy guard entirely.
func (r Role) IsElevated() bool {
	return r == Manager || r == Admin
}

func (r Role) IsValid() bool {
	switch r {
	case Technician, Manager, Admin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}
