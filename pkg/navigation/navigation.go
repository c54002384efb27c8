// Package navigation resolves the role-gated navigation trees of the
// front-end applications.
package navigation

import (
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"bizhub-backend/pkg/models"
)

//go:embed menus/*.yaml
var menuFS embed.FS

var ErrUnknownApp = errors.New("unknown application")

var (
	menus     map[string][]models.NavItem
	menusErr  error
	menusOnce sync.Once
)

func load() (map[string][]models.NavItem, error) {
	menusOnce.Do(func() {
		entries, err := menuFS.ReadDir("menus")
		if err != nil {
			menusErr = err
			return
		}
		menus = make(map[string][]models.NavItem, len(entries))
		for _, e := range entries {
			data, err := menuFS.ReadFile("menus/" + e.Name())
			if err != nil {
				menusErr = err
				return
			}
			items, err := Parse(data)
			if err != nil {
				menusErr = fmt.Errorf("menu %s: %w", e.Name(), err)
				return
			}
			menus[strings.TrimSuffix(e.Name(), ".yaml")] = items
		}
	})
	return menus, menusErr
}

// Parse decodes a YAML navigation tree.
func Parse(data []byte) ([]models.NavItem, error) {
	var items []models.NavItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Apps lists the applications that have a navigation tree.
func Apps() []string {
	m, err := load()
	if err != nil {
		return nil
	}
	apps := make([]string, 0, len(m))
	for app := range m {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	return apps
}

// Resolve returns the navigation tree of app as seen by role.
func Resolve(app string, role models.Role) ([]models.NavItem, error) {
	m, err := load()
	if err != nil {
		return nil, err
	}
	items, ok := m[app]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownApp, app)
	}
	return Filter(items, role), nil
}

// Filter keeps exactly the items whose roles contain role, in order.
// Children are filtered the same way; a group without href is dropped
// when none of its children survive.
func Filter(items []models.NavItem, role models.Role) []models.NavItem {
	out := make([]models.NavItem, 0, len(items))
	for _, item := range items {
		if !item.VisibleTo(role) {
			continue
		}
		if len(item.Children) > 0 {
			item.Children = Filter(item.Children, role)
			if len(item.Children) == 0 {
				item.Children = nil
				if item.Href == "" {
					continue
				}
			}
		}
		out = append(out, item)
	}
	return out
}
