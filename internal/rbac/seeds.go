package rbac

// BootstrapRole describes a role created by the seed command.
type BootstrapRole struct {
	Name        string
	Description string
	IsAdmin     bool
	Permissions Document
}

// TechnicianLegacyDocument is the technician grant set as it was first
// written. "assigned_only" is not a boolean, so ParseDocument rejects it and
// LoadDocument drops the jobs entry.
const TechnicianLegacyDocument = `{"jobs": "assigned_only", "checkin": true, "media_upload": true}`

// BootstrapRoles returns fresh copies of the default roles.
func BootstrapRoles() []BootstrapRole {
	return []BootstrapRole{
		{
			Name:        "Super Admin",
			Description: "Unrestricted access",
			IsAdmin:     true,
			Permissions: Document{SuperGrantKey: Leaf(true)},
		},
		{
			Name:        "Admin",
			Description: "Operations administration",
			IsAdmin:     true,
			Permissions: Document{
				"jobs":        Leaf(true),
				"users":       Leaf(true),
				"reports":     Leaf(true),
				"maintenance": Leaf(true),
			},
		},
		{
			Name:        "Supervisor",
			Description: "Team supervision and dispatch",
			Permissions: Document{
				"jobs":                Leaf(true),
				"technician_tracking": Leaf(true),
				"reports":             Leaf(true),
			},
		},
		{
			Name:        "Technician",
			Description: "Field technician",
			Permissions: Document{
				"jobs": Group{
					"read:assigned": Leaf(true),
					"update":        Leaf(true),
				},
				"tracking":     Leaf(true),
				"checkin":      Leaf(true),
				"media_upload": Leaf(true),
			},
		},
	}
}
