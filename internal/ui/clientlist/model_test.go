package clientlist

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/sitebook/internal/keys"
	"github.com/nhle/sitebook/internal/model"
)

func rows() []Row {
	return []Row{
		{Client: model.Client{ID: "c1", Name: "Harbour Homes", Email: "ops@harbour.test", Status: model.ClientStatusActive}, Currency: "USD"},
		{Client: model.Client{ID: "c2", Name: "Pine Street Dental", Email: "admin@pine.test", Status: model.ClientStatusPending},
			UnbilledHours: decimal.RequireFromString("3.5"), UnbilledAmount: decimal.RequireFromString("210"), Currency: "USD"},
	}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestSelectEmitsClientID(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 100, 20)
	m.SetRows(rows())

	_, cmd := m.Update(keyMsg("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, SelectedClientMsg{ClientID: "c1"}, cmd())
}

func TestSearchFiltersRows(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 100, 20)
	m.SetRows(rows())

	m, _ = m.Update(keyMsg("/"))
	assert.True(t, m.Searching())
	for _, r := range "dental" {
		m, _ = m.Update(keyMsg(string(r)))
	}
	m, _ = m.Update(keyMsg("enter"))
	assert.False(t, m.Searching())

	require.Len(t, m.list.Items(), 1)
	row, ok := m.SelectedClient()
	require.True(t, ok)
	assert.Equal(t, "c2", row.Client.ID)

	// new rows keep the filter
	m.SetRows(rows())
	assert.Len(t, m.list.Items(), 1)

	m, _ = m.Update(keyMsg("/"))
	m, _ = m.Update(keyMsg("esc"))
	assert.Len(t, m.list.Items(), 2)
}

func TestViewShowsTotals(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 100, 20)
	m.SetRows(rows())
	out := m.View()
	assert.Contains(t, out, "Pine Street Dental")
	assert.Contains(t, out, "USD 210.00")

	empty := New(keys.DefaultKeyMap(), 100, 20)
	assert.Contains(t, empty.View(), "No clients yet")
}
