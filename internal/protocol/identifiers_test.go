package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shopware/exthost/internal/rpc"
)

func TestNamespacesAreSplitBySide(t *testing.T) {
	for _, id := range MainContext.Identifiers() {
		assert.Equal(t, rpc.SideMain, id.Side(), id.Name())
		assert.True(t, strings.HasPrefix(id.Name(), "MainThread"), id.Name())
	}
	for _, id := range ExtHostContext.Identifiers() {
		assert.Equal(t, rpc.SideExtension, id.Side(), id.Name())
		assert.True(t, strings.HasPrefix(id.Name(), "ExtHost"), id.Name())
	}
}

func TestStateSyncMethodsAreEvents(t *testing.T) {
	for _, id := range []*rpc.Identifier{ExtHostDocuments, ExtHostDocumentsAndEditors, ExtHostEditors, ExtHostConfiguration, ExtHostFileSystemEventService} {
		for _, name := range id.Methods() {
			m, ok := id.Method(name)
			assert.True(t, ok)
			assert.Equal(t, rpc.KindEvent, m.Kind, "%s.%s", id.Name(), name)
		}
	}
}

func TestLookup(t *testing.T) {
	id, ok := MainContext.Lookup("MainThreadCommands")
	assert.True(t, ok)
	assert.Same(t, MainThreadCommands, id)

	_, ok = MainContext.Lookup("ExtHostCommands")
	assert.False(t, ok)
}
