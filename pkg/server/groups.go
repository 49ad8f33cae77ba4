package server

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/shadowroom/pkg/model"
)

// GroupsConfig is the top-level YAML config for groups created on startup.
type GroupsConfig struct {
	Groups []model.Group `yaml:"groups"`
}

// UserYAML represents a user in YAML export.
type UserYAML struct {
	Username string `yaml:"username"`
}

// UsersExport is the top-level YAML for user export.
type UsersExport struct {
	Users []UserYAML `yaml:"users"`
}

// LoadGroupsFromYAML reads a groups YAML file.
func LoadGroupsFromYAML(path string) ([]model.Group, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from server config
	if err != nil {
		return nil, fmt.Errorf("read groups config: %w", err)
	}
	return ParseGroupsYAML(data)
}

// ParseGroupsYAML parses groups YAML data.
func ParseGroupsYAML(data []byte) ([]model.Group, error) {
	var cfg GroupsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse groups config: %w", err)
	}
	return cfg.Groups, nil
}

// seedGroups creates each configured group with no members. Names that a
// client could never address (empty or containing spaces) are skipped.
func (s *Server) seedGroups(groups []model.Group) int {
	created := 0
	for _, g := range groups {
		if g.Name == "" || strings.ContainsAny(g.Name, " \t\r\n") {
			slog.Warn("skipping invalid group name from config", "group", g.Name)
			continue
		}
		if err := s.dir.CreateGroup(g.Name, ""); err != nil {
			slog.Warn("skipping group from config", "group", g.Name, "err", err)
			continue
		}
		s.metrics.GroupsCreated.Add(1)
		created++
	}
	slog.Info("seeded groups from config", "count", created)
	return created
}

// ExportUsersYAML exports usernames as YAML.
func ExportUsersYAML(usernames []string) ([]byte, error) {
	export := UsersExport{Users: make([]UserYAML, 0, len(usernames))}
	for _, u := range usernames {
		export.Users = append(export.Users, UserYAML{Username: u})
	}
	return yaml.Marshal(&export)
}
