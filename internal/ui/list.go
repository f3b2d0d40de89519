package ui

import (
	"fmt"

	"github.com/authshift/authshift/internal/repositories"
	"github.com/charmbracelet/bubbles/list"
)

var _ list.Item = userItem{}

// userItem wraps [repositories.MigratedUser] to implement [list.Item].
type userItem struct {
	user repositories.MigratedUser
}

func (i userItem) FilterValue() string { return i.user.Username }
func (i userItem) Title() string       { return i.user.Username }
func (i userItem) Description() string {
	desc := fmt.Sprintf("%s • created %s", i.user.ID, i.user.CreatedAt.Format("2006-01-02"))
	if i.user.LockedAt != nil {
		desc = fmt.Sprintf("%s • locked", desc)
	}
	if i.user.Admin {
		desc = fmt.Sprintf("%s • admin", desc)
	}
	return desc
}
