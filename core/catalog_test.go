package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopModule struct{}

func (nopModule) Setup(context.Context, *Runtime, map[string]interface{}) Result {
	return Ready()
}

type nopDomain struct{}

func (nopDomain) SetupDomain(context.Context, *Runtime, map[string]interface{}, string) Result {
	return Ready()
}

func TestCatalog_Components(t *testing.T) {
	cat := NewCatalog()
	cat.RegisterComponent("camera", func() Module { return nopModule{} })

	f, ok := cat.Component("camera")
	require.True(t, ok)
	assert.NotNil(t, f())

	_, ok = cat.Component("unknown")
	assert.False(t, ok)
}

func TestCatalog_DuplicateComponentPanics(t *testing.T) {
	cat := NewCatalog()
	cat.RegisterComponent("camera", func() Module { return nopModule{} })
	assert.Panics(t, func() {
		cat.RegisterComponent("camera", func() Module { return nopModule{} })
	})
}

func TestCatalog_Domains(t *testing.T) {
	cat := NewCatalog()
	cat.RegisterDomain("camera", "camera", func() DomainModule { return nopDomain{} })

	f, ok := cat.Domain("camera", "camera")
	require.True(t, ok)
	assert.NotNil(t, f())

	// The same domain under another component is a separate entry.
	_, ok = cat.Domain("other", "camera")
	assert.False(t, ok)
}

func TestCatalog_Names(t *testing.T) {
	cat := NewCatalog()
	cat.RegisterComponent("webserver", func() Module { return nopModule{} })
	cat.RegisterComponent("camera", func() Module { return nopModule{} })
	cat.RegisterDomain("camera", "camera", func() DomainModule { return nopDomain{} })

	assert.Equal(t, []string{"camera", "webserver"}, cat.ComponentNames())
	assert.Equal(t, []string{"camera.camera"}, cat.DomainNames())
}
