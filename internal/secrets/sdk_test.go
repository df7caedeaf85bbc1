package secrets

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/acolita/termdriver/internal/outcome"
)

func TestParameters_StoredKey(t *testing.T) {
	tests := []struct {
		name   string
		params Parameters
		want   string
	}{
		{"no variant", Parameters{}, "db"},
		{"default separator", Parameters{Variant: "prod"}, "db__prod"},
		{"custom separator", Parameters{Variant: "prod", Separator: "-"}, "db-prod"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.params.StoredKey("db"))
		})
	}
}

func TestSDK_CreateReadRoundTrip(t *testing.T) {
	backend := NewMemoryBackend()
	sdk := NewSDK(backend)

	created, err := sdk.Create(Parameters{
		Entries: map[string]any{
			"password": "hunter2",
			"creds":    map[string]any{"user": "admin", "port": 22},
		},
		Variant: "lab",
	})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", created["password"])
	assert.JSONEq(t, `{"user":"admin","port":22}`, created["creds"])
	assert.Equal(t, []string{"creds__lab", "password__lab"}, backend.Keys())

	got, err := sdk.Read(Parameters{Keys: []string{"password", "creds"}, Variant: "lab"})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got["password"])
	assert.Equal(t, map[string]any{"user": "admin", "port": float64(22)}, got["creds"])
}

func TestSDK_CreateExisting(t *testing.T) {
	sdk := NewSDK(NewMemoryBackend())
	_, err := sdk.Create(Parameters{Entries: map[string]any{"k": "v"}})
	require.NoError(t, err)

	_, err = sdk.Create(Parameters{Entries: map[string]any{"k": "other"}})
	require.Error(t, err)
	assert.True(t, outcome.IsFatal(err))
	assert.ErrorIs(t, err, ErrExists)
}

func TestSDK_UpdateMissing(t *testing.T) {
	sdk := NewSDK(NewMemoryBackend())
	_, err := sdk.Update(Parameters{Entries: map[string]any{"k": "v"}})
	require.Error(t, err)
	assert.True(t, outcome.IsFatal(err))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSDK_UpdateOverwrites(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Set("k", "old"))

	_, err := NewSDK(backend).Update(Parameters{Entries: map[string]any{"k": []int{1, 2}}})
	require.NoError(t, err)

	v, err := backend.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", v)
}

func TestSDK_ReadRawString(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Set("motd", "not {json"))

	got, err := NewSDK(backend).Read(Parameters{Keys: []string{"motd"}})
	require.NoError(t, err)
	assert.Equal(t, "not {json", got["motd"])
}

func TestSDK_ReadMissing(t *testing.T) {
	_, err := NewSDK(NewMemoryBackend()).Read(Parameters{Keys: []string{"nope"}})
	require.Error(t, err)
	assert.True(t, outcome.IsFatal(err))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSDK_Delete(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Set("a__x", "1"))
	require.NoError(t, backend.Set("b__x", "2"))
	sdk := NewSDK(backend)

	require.NoError(t, sdk.Delete(Parameters{Variant: "x", DoNotDelete: true}, []string{"a"}))
	assert.Len(t, backend.Keys(), 2)

	require.NoError(t, sdk.Delete(Parameters{Variant: "x"}, []string{"a", "missing"}))
	assert.Equal(t, []string{"b__x"}, backend.Keys())
}

type failingBackend struct{ err error }

func (f failingBackend) Get(string) (string, error) { return "", f.err }
func (f failingBackend) Set(string, string) error   { return f.err }
func (f failingBackend) Delete(string) error        { return f.err }

func TestSDK_BackendErrorsAreFatal(t *testing.T) {
	boom := errors.New("dbus unavailable")
	sdk := NewSDK(failingBackend{err: boom})

	_, err := sdk.Create(Parameters{Entries: map[string]any{"k": "v"}})
	assert.True(t, outcome.IsFatal(err))
	assert.ErrorIs(t, err, boom)

	err = sdk.Delete(Parameters{}, []string{"k"})
	assert.True(t, outcome.IsFatal(err))
	assert.ErrorIs(t, err, boom)
}

func TestKeyringBackend(t *testing.T) {
	keyring.MockInit()
	b := NewKeyringBackend("termdriver-test")

	assert.True(t, b.Available())

	_, err := b.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, b.Delete("missing"), ErrNotFound)

	require.NoError(t, b.Set("token", "s3cret"))
	v, err := b.Get("token")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)
	require.NoError(t, b.Delete("token"))
}

func TestKeyringBackend_WithSDK(t *testing.T) {
	keyring.MockInit()
	sdk := NewSDK(NewKeyringBackend("termdriver-test"))

	_, err := sdk.Create(Parameters{Entries: map[string]any{"enable": "cisco"}, Variant: "r1"})
	require.NoError(t, err)
	got, err := sdk.Read(Parameters{Keys: []string{"enable"}, Variant: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "cisco", got["enable"])

	require.NoError(t, sdk.Delete(Parameters{Variant: "r1"}, []string{"enable"}))
	_, err = sdk.Read(Parameters{Keys: []string{"enable"}, Variant: "r1"})
	assert.Error(t, err)
}
