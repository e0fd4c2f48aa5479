package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_DeclarationOrder(t *testing.T) {
	r, err := NewRegistry([]string{"carol", "alice", "bob"}, nil)
	require.NoError(t, err)

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "carol", all[0].Name)
	assert.Equal(t, "alice", all[1].Name)
	assert.Equal(t, "bob", all[2].Name)
	assert.Equal(t, 3, r.Len())
}

func TestNewRegistry_AttachesConfig(t *testing.T) {
	r, err := NewRegistry([]string{"alice", "bob"}, []AgentConfig{
		{Agent: "bob", Entries: []ConfigEntry{{Key: "lightning_listen", Value: "localhost:9735"}}},
	})
	require.NoError(t, err)

	assert.Empty(t, r.Get("alice").Config)
	require.Len(t, r.Get("bob").Config, 1)
	assert.Equal(t, "localhost:9735", r.Get("bob").Config[0].Value)
}

func TestNewRegistry_ConcatenatesRepeatedConfig(t *testing.T) {
	r, err := NewRegistry([]string{"bob"}, []AgentConfig{
		{Agent: "bob", Entries: []ConfigEntry{{Key: "a", Value: "1"}}},
		{Agent: "bob", Entries: []ConfigEntry{{Key: "b", Value: "2"}}},
	})
	require.NoError(t, err)

	entries := Expand(r.Get("bob"))
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "b", entries[1].Key)
}

func TestNewRegistry_UnknownAgentInConfig(t *testing.T) {
	_, err := NewRegistry([]string{"alice", "bob"}, []AgentConfig{
		{Agent: "carol", Entries: []ConfigEntry{{Key: "k", Value: "v"}}},
	})
	require.Error(t, err)
	assert.True(t, IsDefinitionError(err))

	var de *DefinitionError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "carol", de.Agent)
	assert.Contains(t, err.Error(), "not in the declared agent set")
}

func TestNewRegistry_DuplicateAgent(t *testing.T) {
	_, err := NewRegistry([]string{"alice", "alice"}, nil)
	require.Error(t, err)
	assert.True(t, IsDefinitionError(err))
}

func TestNewRegistry_EmptyNames(t *testing.T) {
	_, err := NewRegistry([]string{""}, nil)
	assert.True(t, IsDefinitionError(err))

	_, err = NewRegistry([]string{"alice"}, []AgentConfig{
		{Agent: "alice", Entries: []ConfigEntry{{Key: "", Value: "x"}}},
	})
	assert.True(t, IsDefinitionError(err))
}

func TestNewRegistry_NoAgents(t *testing.T) {
	r, err := NewRegistry(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, r.All())
	assert.False(t, r.Exists("alice"))
}

func TestRegistry_Exists(t *testing.T) {
	r, err := NewRegistry([]string{"alice"}, nil)
	require.NoError(t, err)
	assert.True(t, r.Exists("alice"))
	assert.False(t, r.Exists("bob"))
	assert.Nil(t, r.Get("bob"))
}

func TestRegistry_FreshAgentsPerRegistry(t *testing.T) {
	names := []string{"alice"}
	r1, err := NewRegistry(names, nil)
	require.NoError(t, err)
	require.NoError(t, r1.Get("alice").Advance(Configured))

	r2, err := NewRegistry(names, nil)
	require.NoError(t, err)
	assert.Equal(t, Uninitialized, r2.Get("alice").State())
}

func TestDefinitionError_Messages(t *testing.T) {
	assert.Equal(t, `scenario group "ab": agent "carol": bad`,
		(&DefinitionError{Group: "ab", Agent: "carol", Message: "bad"}).Error())
	assert.Equal(t, `scenario group "ab": bad`,
		(&DefinitionError{Group: "ab", Message: "bad"}).Error())
	assert.Equal(t, `agent "carol": bad`,
		(&DefinitionError{Agent: "carol", Message: "bad"}).Error())
	assert.Equal(t, "bad", (&DefinitionError{Message: "bad"}).Error())
}
