package models

// NavItem is one entry of a navigation tree.
type NavItem struct {
	Label    string    `json:"label" yaml:"label"`
	Href     string    `json:"href,omitempty" yaml:"href"`
	Icon     string    `json:"icon,omitempty" yaml:"icon"`
	Roles    []Role    `json:"roles,omitempty" yaml:"roles"`
	Children []NavItem `json:"children,omitempty" yaml:"children"`
}

// VisibleTo reports whether role is listed in the item's roles.
func (n NavItem) VisibleTo(role Role) bool {
	for _, r := range n.Roles {
		if r == role {
			return true
		}
	}
	return false
}
