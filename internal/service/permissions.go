package service

import (
	"context"
	"slices"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

// AllowAll grants every identified caller full rights on any namespace.
// Anonymous callers may resolve public URLs only.
type AllowAll struct{}

func (AllowAll) CanView(ctx context.Context, caller domain.Caller, namespaceID string) (bool, error) {
	return !caller.IsAnonymous(), nil
}

func (AllowAll) CanUpdate(ctx context.Context, caller domain.Caller, namespaceID string) (bool, error) {
	return !caller.IsAnonymous(), nil
}

func (AllowAll) CanAdmin(ctx context.Context, caller domain.Caller, namespaceID string) (bool, error) {
	return !caller.IsAnonymous(), nil
}

func (AllowAll) NamespaceExists(ctx context.Context, namespaceID string) (bool, error) {
	return true, nil
}

// NamespaceACL lists the members of a namespace by role
type NamespaceACL struct {
	Admins  []string `yaml:"admins"`
	Editors []string `yaml:"editors"`
	Viewers []string `yaml:"viewers"`
}

// StaticPermissions answers permission checks from a fixed namespace table.
// Admins may also update and view; editors may also view.
type StaticPermissions struct {
	namespaces map[string]NamespaceACL
}

// NewStaticPermissions creates permissions from a namespace table
func NewStaticPermissions(namespaces map[string]NamespaceACL) *StaticPermissions {
	copied := make(map[string]NamespaceACL, len(namespaces))
	for ns, acl := range namespaces {
		copied[ns] = acl
	}
	return &StaticPermissions{namespaces: copied}
}

func (p *StaticPermissions) role(caller domain.Caller, namespaceID string) int {
	if caller.IsAnonymous() {
		return roleNone
	}
	acl, ok := p.namespaces[namespaceID]
	switch {
	case !ok:
		return roleNone
	case slices.Contains(acl.Admins, caller.UserID):
		return roleAdmin
	case slices.Contains(acl.Editors, caller.UserID):
		return roleEditor
	case slices.Contains(acl.Viewers, caller.UserID):
		return roleViewer
	default:
		return roleNone
	}
}

const (
	roleNone = iota
	roleViewer
	roleEditor
	roleAdmin
)

func (p *StaticPermissions) CanView(ctx context.Context, caller domain.Caller, namespaceID string) (bool, error) {
	return p.role(caller, namespaceID) >= roleViewer, nil
}

func (p *StaticPermissions) CanUpdate(ctx context.Context, caller domain.Caller, namespaceID string) (bool, error) {
	return p.role(caller, namespaceID) >= roleEditor, nil
}

func (p *StaticPermissions) CanAdmin(ctx context.Context, caller domain.Caller, namespaceID string) (bool, error) {
	return p.role(caller, namespaceID) >= roleAdmin, nil
}

func (p *StaticPermissions) NamespaceExists(ctx context.Context, namespaceID string) (bool, error) {
	_, ok := p.namespaces[namespaceID]
	return ok, nil
}

var (
	_ Permissions = AllowAll{}
	_ Permissions = (*StaticPermissions)(nil)
)
