package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/geocatalog/pkg/catalog"
	"github.com/geocatalog/pkg/utils"
)

// AssertLogged asserts that logs holds a line at level containing substr.
func AssertLogged(t *testing.T, logs string, level utils.LogLevel, substr string) {
	t.Helper()
	tag := "[" + level.String() + "] "
	for _, line := range strings.Split(logs, "\n") {
		if strings.Contains(line, tag) && strings.Contains(line, substr) {
			return
		}
	}
	t.Errorf("no %s line containing %q in:\n%s", level, substr, logs)
}

// AssertNotLogged asserts that logs holds no line at level.
func AssertNotLogged(t *testing.T, logs string, level utils.LogLevel) {
	t.Helper()
	assert.NotContains(t, logs, "["+level.String()+"] ")
}

// AssertCounts asserts the number of catalog objects per kind. Kinds that
// are not listed are not checked.
func AssertCounts(t *testing.T, c *catalog.Catalog, want map[catalog.Kind]int) {
	t.Helper()
	for kind, n := range want {
		assert.Equal(t, n, c.Count(kind), "number of %s", kind)
	}
}

// AssertNoDangling asserts that every reference of every stored object
// points to a stored object.
func AssertNoDangling(t *testing.T, c *catalog.Catalog) {
	t.Helper()
	assert.Empty(t, c.Dangling())
}

// AssertDefaultStyle asserts the name of the default style of l.
func AssertDefaultStyle(t *testing.T, l *catalog.Layer, name string) {
	t.Helper()
	if !assert.NotNil(t, l.DefaultStyle, "layer %s has no default style", l.Name) {
		return
	}
	if s := l.DefaultStyle.Get(); assert.NotNil(t, s, "default style of %s is unbound", l.Name) {
		assert.Equal(t, name, s.Name, "default style of %s", l.Name)
	}
}
