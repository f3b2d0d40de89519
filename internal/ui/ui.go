package ui

import (
	"context"
	"fmt"

	"github.com/authshift/authshift/internal/repositories"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// pageSize is how many migrated users are fetched per page.
const pageSize = 200

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	target   *repositories.TargetStore
	width    int
	height   int
	userList list.Model
	loaded   bool
	offset   int
	lastPage bool
	err      error
	help     help.Model
	keys     keyMap
}

// keyMap defines the key bindings for the TUI.
type keyMap struct {
	up   key.Binding
	down key.Binding
	more key.Binding
	quit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		more: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "load more"),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down},
		{k.more, k.quit},
	}
}

type usersFetchedMsg struct {
	users []repositories.MigratedUser
	err   error
}

// NewModel creates a new TUI model backed by the given target store.
func NewModel(ctx context.Context, target *repositories.TargetStore) *Model {
	return &Model{
		ctx:    ctx,
		target: target,
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init initializes the TUI by fetching the first page of migrated users.
func (m *Model) Init() tea.Cmd {
	return m.fetchUsers()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.loaded {
			m.userList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "m":
			if !m.lastPage {
				return m, m.fetchUsers()
			}
			return m, nil
		}

	case usersFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}

		m.offset += len(msg.users)
		m.lastPage = len(msg.users) < pageSize

		if !m.loaded {
			items := make([]list.Item, len(msg.users))
			for i, u := range msg.users {
				items[i] = userItem{user: u}
			}
			m.userList = list.New(items, list.NewDefaultDelegate(), 0, 0)
			m.userList.Title = "Migrated Users"
			m.userList.SetSize(m.width-4, m.height-8)
			m.loaded = true
			return m, nil
		}

		for _, u := range msg.users {
			m.userList.InsertItem(len(m.userList.Items()), userItem{user: u})
		}
		return m, nil
	}

	if !m.loaded {
		return m, nil
	}

	var cmd tea.Cmd
	m.userList, cmd = m.userList.Update(msg)
	return m, cmd
}

// View renders the user list.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	if !m.loaded {
		return styles.help.Render("Loading migrated users...")
	}

	helpKeys := []key.Binding{m.keys.up, m.keys.down, m.keys.more, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.userList.View(), helpView)
}

func (m *Model) fetchUsers() tea.Cmd {
	offset := m.offset
	return func() tea.Msg {
		users, err := m.target.ListUsers(m.ctx, pageSize, offset)
		return usersFetchedMsg{users: users, err: err}
	}
}
