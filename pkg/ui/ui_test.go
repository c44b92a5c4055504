package ui

import (
	"bytes"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssh-session-launcher/pkg/manager"
)

func sampleHosts() []manager.HostProfile {
	return []manager.HostProfile{
		{Name: "Bastion", Hostname: "bastion.example.com", Username: "ops", Port: 22},
		{Name: "Web 1", Hostname: "web1.example.com", Username: "deploy", Port: 22, Tags: []string{"web", "production"}},
		{Name: "DB primary", Hostname: "db1.example.com", Username: "dba", Port: 5022, Tags: []string{"database", "production"}},
		{Name: "Web 2", Hostname: "web2.example.com", Username: "deploy", Port: 22, Tags: []string{"web"}},
	}
}

func plain() *Theme {
	t := PlainTheme()
	return &t
}

func names(cs []candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Host.Name)
	}
	return out
}

func TestBuildCandidates_GroupOrder(t *testing.T) {
	cs := buildCandidates(sampleHosts())
	assert.Equal(t, []string{"DB primary", "Web 1", "Web 2", "Bastion"}, names(cs))
	assert.Equal(t, 2, cs[0].Index)
	assert.Equal(t, "", cs[3].Group)
}

func TestMatchField_Tiers(t *testing.T) {
	_, ok := matchField("xyz", "web 1")
	assert.False(t, ok)

	exact, _ := matchField("web", "web")
	prefix, _ := matchField("web", "web 1")
	word, _ := matchField("web", "prod web")
	sub, _ := matchField("web", "cobweb")
	loose, ok := matchField("web", "w x e y b")
	require.True(t, ok)

	assert.Greater(t, exact, prefix)
	assert.Greater(t, prefix, word)
	assert.Greater(t, word, sub)
	assert.Greater(t, sub, loose)
	assert.Positive(t, loose)
}

func TestRankMatches_ContiguousBeatsScattered(t *testing.T) {
	cs := buildCandidates([]manager.HostProfile{
		{Name: "w x e y b", Hostname: "a.lan", Username: "u"},
		{Name: "Cobweb", Hostname: "b.lan", Username: "u"},
		{Name: "Web 1", Hostname: "c.lan", Username: "u"},
		{Name: "Mail", Hostname: "d.lan", Username: "u", Tags: []string{"web"}},
	})
	assert.Equal(t, []string{"Mail", "Web 1", "Cobweb", "w x e y b"}, names(rankMatches(cs, "web")))
}

func TestRankMatches_TokensMatchFieldsSeparately(t *testing.T) {
	cs := buildCandidates(sampleHosts())
	assert.Equal(t, []string{"Web 1"}, names(rankMatches(cs, "web prod")))
	assert.Empty(t, rankMatches(cs, "wbp"), "a token never spans name and tag")
}

func TestRankMatches_SearchesNameAndTagsOnly(t *testing.T) {
	cs := buildCandidates(sampleHosts())

	assert.Equal(t, []string{"DB primary"}, names(rankMatches(cs, "database")))
	assert.ElementsMatch(t, []string{"Web 1", "DB primary"}, names(rankMatches(cs, "production")))
	assert.Empty(t, rankMatches(cs, "ops"), "username is not searchable")
	assert.Empty(t, rankMatches(cs, "example.com"), "hostname is not searchable")
	assert.Len(t, rankMatches(cs, "  "), 4)
}

func typeText(m model, s string) model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return next.(model)
}

func press(m model, k tea.KeyType) (model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(model), cmd
}

func TestModel_FilterMoveAndChoose(t *testing.T) {
	m := newModel(sampleHosts(), Options{Theme: plain()})
	assert.Len(t, m.filtered, 4)

	m = typeText(m, "web")
	assert.Equal(t, "web", m.input.Value())
	require.Len(t, m.filtered, 2)

	m, _ = press(m, tea.KeyDown)
	assert.Equal(t, 1, m.selected)
	m, _ = press(m, tea.KeyDown)
	assert.Equal(t, 1, m.selected, "selection stays on the last row")

	m, cmd := press(m, tea.KeyEnter)
	require.NotNil(t, m.chosen)
	assert.NotNil(t, cmd)
	assert.Equal(t, m.filtered[1].Index, m.chosen.Index)
}

func TestModel_EscapeCancels(t *testing.T) {
	m := newModel(sampleHosts(), Options{})
	m, cmd := press(m, tea.KeyEsc)
	assert.Nil(t, m.chosen)
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
}

func TestModel_EnterWithNoMatchesDoesNothing(t *testing.T) {
	m := newModel(sampleHosts(), Options{InitialQuery: "zzz"})
	assert.Empty(t, m.filtered)
	m, cmd := press(m, tea.KeyEnter)
	assert.Nil(t, m.chosen)
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "no hosts match")
}

func TestModel_ViewGroupsWhenUnfiltered(t *testing.T) {
	m := newModel(sampleHosts(), Options{Theme: plain()})
	v := m.View()
	assert.Contains(t, v, "── DATABASE ──")
	assert.Contains(t, v, "── WEB ──")
	assert.Contains(t, v, "── UNTAGGED ──")
	assert.Less(t, strings.Index(v, "DATABASE"), strings.Index(v, "UNTAGGED"))
	assert.Contains(t, v, "> DB primary (dba@db1.example.com:5022)")

	m = typeText(m, "web")
	assert.NotContains(t, m.View(), "── WEB ──")
}

func TestModel_ScrollFollowsSelection(t *testing.T) {
	m := newModel(sampleHosts(), Options{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 8})
	m = next.(model)
	require.Equal(t, 3, m.listHeight())

	for i := 0; i < 3; i++ {
		m, _ = press(m, tea.KeyDown)
	}
	assert.Equal(t, 3, m.selected)
	assert.Equal(t, 1, m.scroll)
}

func TestSimpleMenu_PickByNumber(t *testing.T) {
	var out bytes.Buffer
	menu := NewSimpleMenu(strings.NewReader("9\nabc\n4\n"), &out)

	h, ok, err := menu.Pick(sampleHosts())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Bastion", h.Name)

	s := out.String()
	assert.Contains(t, s, "Available SSH Hosts (4 total):")
	assert.Contains(t, s, " 1. DB primary (dba@db1.example.com:5022) [database, production]")
	assert.Contains(t, s, " 4. Bastion (ops@bastion.example.com:22)")
	assert.Contains(t, s, "Please enter a number between 1 and 4")
	assert.Contains(t, s, "Invalid choice.")
}

func TestSimpleMenu_SearchThenPick(t *testing.T) {
	var out bytes.Buffer
	menu := NewSimpleMenu(strings.NewReader("s\nnothing\ns\nweb\n2\n"), &out)

	h, ok, err := menu.Pick(sampleHosts())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Web 2", h.Name)
	assert.Contains(t, out.String(), "No hosts found matching 'nothing'")
	assert.Contains(t, out.String(), "Available SSH Hosts (2 total):")
}

func TestSimpleMenu_ExitAndEOF(t *testing.T) {
	_, ok, err := NewSimpleMenu(strings.NewReader("0\n"), &bytes.Buffer{}).Pick(sampleHosts())
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = NewSimpleMenu(strings.NewReader(""), &bytes.Buffer{}).Pick(sampleHosts())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSimpleMenu_UntaggedOnlyHasNoHeader(t *testing.T) {
	var out bytes.Buffer
	hosts := sampleHosts()[:1]
	_, _, err := NewSimpleMenu(strings.NewReader("0\n"), &out).Pick(hosts)
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "UNTAGGED")
}
