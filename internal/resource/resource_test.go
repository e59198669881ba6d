package resource

import (
	"strings"
	"testing"

	"github.com/deppfellow/crudrouter/internal/errs"
	"github.com/deppfellow/crudrouter/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePrefix(t *testing.T) {
	cases := map[string]string{
		"/users/":        "/users",
		"users":          "/users",
		"/api/v1/users/": "/api/v1/users",
		"/memory-users/": "/memory-users",
	}
	for in, want := range cases {
		got, err := NormalizePrefix(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "/", "//", "/users//all", "/users/:id", "/a/*"} {
		_, err := NormalizePrefix(bad)
		assert.Error(t, err, bad)
	}
}

func TestOverlaps(t *testing.T) {
	assert.True(t, Overlaps("/users", "/users"))
	assert.True(t, Overlaps("/users", "/users/admins"))
	assert.True(t, Overlaps("/api/users", "/api"))
	assert.False(t, Overlaps("/users", "/users-archive"))
	assert.False(t, Overlaps("/users", "/memory-users"))
}

func TestNewDerivesUpdateShape(t *testing.T) {
	d := Users()

	assert.Equal(t, "/users", d.Prefix)
	require.Equal(t, d.Create.Names(), d.Update.Names())
	for _, f := range d.Update.Fields() {
		assert.False(t, f.Required, f.Name)
	}
}

func TestDefaults(t *testing.T) {
	descs := Defaults()
	require.Len(t, descs, 2)

	users, mem := descs[0], descs[1]
	assert.Equal(t, StoreDefault, users.Store)
	assert.Equal(t, "memory_users", mem.Name)
	assert.Equal(t, "/memory-users", mem.Prefix)
	assert.Equal(t, StoreMemory, mem.Store)
	assert.False(t, Overlaps(users.Prefix, mem.Prefix))
	assert.Equal(t, users.Columns().Names(), mem.Columns().Names())
}

func TestNewMergesColumns(t *testing.T) {
	d, err := New(Spec{
		Name:   "accounts",
		Prefix: "/accounts",
		Create: schema.MustNew(
			schema.Field{Name: "login", Type: schema.TypeString, Required: true, Unique: true},
			schema.Field{Name: "password", Type: schema.TypeString, Required: true},
		),
		Read: schema.MustNew(
			schema.Field{Name: "login", Type: schema.TypeString},
			schema.Field{Name: "created_at", Type: schema.TypeTimestamp},
		),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"login", "created_at", "password"}, d.Columns().Names())
	login, _ := d.Columns().Field("login")
	assert.True(t, login.Unique)
	assert.False(t, login.Required)
}

func TestNewRejectsMalformedDescriptors(t *testing.T) {
	name := schema.MustNew(schema.Field{Name: "name", Type: schema.TypeString})
	count := schema.MustNew(schema.Field{Name: "name", Type: schema.TypeInteger})
	paged := schema.MustNew(schema.Field{Name: "page", Type: schema.TypeInteger})
	sized := schema.MustNew(schema.Field{Name: "page_size", Type: schema.TypeInteger})

	cases := map[string]Spec{
		"no name":         {Prefix: "/x", Create: name, Read: name},
		"bad name":        {Name: "Users", Prefix: "/x", Create: name, Read: name},
		"root prefix":     {Name: "x", Prefix: "/", Create: name, Read: name},
		"empty create":    {Name: "x", Prefix: "/x", Read: name},
		"empty read":      {Name: "x", Prefix: "/x", Create: name},
		"unknown store":   {Name: "x", Prefix: "/x", Create: name, Read: name, Store: "mongo"},
		"type clash":      {Name: "x", Prefix: "/x", Create: name, Read: count},
		"page field":      {Name: "x", Prefix: "/x", Create: name, Read: paged},
		"page_size field": {Name: "x", Prefix: "/x", Create: sized, Read: name},
	}
	for label, spec := range cases {
		t.Run(label, func(t *testing.T) {
			_, err := New(spec)
			var cfgErr *errs.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoad(t *testing.T) {
	descs, err := Load(strings.NewReader(`
resources:
  - name: users
    prefix: /users/
    create:
      - {name: name, type: string, required: true}
      - {name: email, type: string, unique: true, rules: email}
    read:
      - {name: name, type: string}
      - {name: email, type: string}
  - name: memory_users
    prefix: /memory-users/
    store: memory
    strict: false
    create:
      - {name: name, type: string, required: true}
    read:
      - {name: name, type: string}
    update:
      - {name: name, type: string}
`))
	require.NoError(t, err)
	require.Len(t, descs, 2)

	assert.Equal(t, "/users", descs[0].Prefix)
	email, ok := descs[0].Create.Field("email")
	require.True(t, ok)
	assert.True(t, email.Unique)
	assert.Equal(t, "email", email.Rules)

	assert.Equal(t, StoreMemory, descs[1].Store)
	assert.False(t, descs[1].IsStrict(true))
	assert.True(t, descs[0].IsStrict(true))
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(strings.NewReader(`
resources:
  - name: users
    prefix: /users
    craete:
      - {name: name, type: string}
`))
	var cfgErr *errs.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoadRejectsBadField(t *testing.T) {
	_, err := Load(strings.NewReader(`
resources:
  - name: users
    prefix: /users
    create:
      - {name: id, type: integer}
    read:
      - {name: name, type: string}
`))
	var cfgErr *errs.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "users", cfgErr.Resource)
}
