package catalog

import (
	"sort"
	"strings"
	"sync"

	apperrors "github.com/geocatalog/pkg/errors"
)

// MutationHook observes every mutating call. It is invoked with enter=true
// before the catalog lock is taken and with enter=false once the call returns.
type MutationHook func(op string, info Info, enter bool)

// Catalog is an in-memory catalog. It is safe for concurrent readers; the
// loader mutates it from a single goroutine.
type Catalog struct {
	mu sync.RWMutex

	objects map[Kind]map[string]Info
	// names maps a natural key (scope + lower-cased name) to an id, per kind.
	names map[Kind]map[string]string

	defaultWorkspace   *Workspace
	defaultNamespace   *Namespace
	extendedValidation bool

	hook MutationHook
}

// New returns an empty catalog with extended validation enabled.
func New() *Catalog {
	c := &Catalog{
		objects:            make(map[Kind]map[string]Info, len(Kinds)),
		names:              make(map[Kind]map[string]string, len(Kinds)),
		extendedValidation: true,
	}
	for _, k := range Kinds {
		c.objects[k] = make(map[string]Info)
		c.names[k] = make(map[string]string)
	}
	return c
}

// SetMutationHook installs a hook observing Add, Remove and default changes.
func (c *Catalog) SetMutationHook(hook MutationHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hook = hook
}

func (c *Catalog) observe(op string, info Info) func() {
	c.mu.RLock()
	hook := c.hook
	c.mu.RUnlock()
	if hook == nil {
		return func() {}
	}
	hook(op, info, true)
	return func() { hook(op, info, false) }
}

// ExtendedValidation reports whether Add runs the full integrity checks.
func (c *Catalog) ExtendedValidation() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.extendedValidation
}

// SetExtendedValidation toggles the full integrity checks on Add. Identifier
// and natural key uniqueness are always enforced.
func (c *Catalog) SetExtendedValidation(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.extendedValidation = enabled
}

// Add inserts info. The first workspace and namespace added become the defaults.
func (c *Catalog) Add(info Info) error {
	if info == nil {
		return apperrors.New(apperrors.CodeValidation, "cannot add a nil object")
	}
	defer c.observe("add", info)()

	c.mu.Lock()
	defer c.mu.Unlock()

	id := info.GetID()
	if id == "" {
		return apperrors.Newf(apperrors.CodeValidation, "%s has no id", Describe(info))
	}
	if s, ok := info.(*Style); ok && s.IsSynthetic() {
		return apperrors.Newf(apperrors.CodeValidation, "%s is a named style alias and cannot be stored", Describe(info))
	}
	if _, exists := c.objects[info.Kind()][id]; exists {
		return apperrors.Newf(apperrors.CodeDuplicate, "%s already exists", Describe(info))
	}
	if c.extendedValidation {
		if err := c.validate(info); err != nil {
			return err
		}
	}

	key := naturalKey(info)
	if other, taken := c.names[info.Kind()][key]; taken {
		return apperrors.Newf(apperrors.CodeDuplicate, "%s has the same name as %s", Describe(info), other)
	}

	c.objects[info.Kind()][id] = info
	c.names[info.Kind()][key] = id

	switch v := info.(type) {
	case *Workspace:
		if c.defaultWorkspace == nil {
			c.defaultWorkspace = v
		}
	case *Namespace:
		if c.defaultNamespace == nil {
			c.defaultNamespace = v
		}
	}
	return nil
}

// Remove deletes info by id.
func (c *Catalog) Remove(info Info) error {
	defer c.observe("remove", info)()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(info)
}

func (c *Catalog) removeLocked(info Info) error {
	stored, ok := c.objects[info.Kind()][info.GetID()]
	if !ok {
		return apperrors.Newf(apperrors.CodeNotFound, "%s not found", Describe(info))
	}
	delete(c.objects[info.Kind()], info.GetID())
	key := naturalKey(stored)
	if c.names[info.Kind()][key] == info.GetID() {
		delete(c.names[info.Kind()], key)
	}
	if c.defaultWorkspace != nil && stored == Info(c.defaultWorkspace) {
		c.defaultWorkspace = nil
	}
	if c.defaultNamespace != nil && stored == Info(c.defaultNamespace) {
		c.defaultNamespace = nil
	}
	return nil
}

// Get returns the object of the given kind and id.
func (c *Catalog) Get(kind Kind, id string) (Info, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.objects[kind][id]
	return info, ok
}

// Contains reports whether info itself (not a copy with the same id) is stored.
func (c *Catalog) Contains(info Info) bool {
	if info == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.containsLocked(info)
}

func (c *Catalog) containsLocked(info Info) bool {
	stored, ok := c.objects[info.Kind()][info.GetID()]
	return ok && stored == info
}

// Lookup returns the object of the given kind and id typed as T.
func Lookup[T Info](c *Catalog, kind Kind, id string) (T, bool) {
	var zero T
	if id == "" {
		return zero, false
	}
	info, ok := c.Get(kind, id)
	if !ok {
		return zero, false
	}
	t, ok := info.(T)
	return t, ok
}

func (c *Catalog) byName(kind Kind, key string) Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.names[kind][key]
	if !ok {
		return nil
	}
	return c.objects[kind][id]
}

// Workspace returns the workspace with the given id, or nil.
func (c *Catalog) Workspace(id string) *Workspace {
	ws, _ := Lookup[*Workspace](c, KindWorkspace, id)
	return ws
}

// WorkspaceByName returns the workspace with the given name, or nil.
func (c *Catalog) WorkspaceByName(name string) *Workspace {
	ws, _ := c.byName(KindWorkspace, strings.ToLower(name)).(*Workspace)
	return ws
}

// NamespaceByPrefix returns the namespace with the given prefix, or nil.
func (c *Catalog) NamespaceByPrefix(prefix string) *Namespace {
	ns, _ := c.byName(KindNamespace, strings.ToLower(prefix)).(*Namespace)
	return ns
}

// StoreByName returns the store named name in the workspace with id wsID, or nil.
func (c *Catalog) StoreByName(wsID, name string) *Store {
	s, _ := c.byName(KindStore, scopeKey(wsID, name)).(*Store)
	return s
}

// StyleByName returns the global style with the given name, or nil.
func (c *Catalog) StyleByName(name string) *Style {
	return c.StyleByScopedName("", name)
}

// StyleByScopedName returns the style named name in workspace wsID ("" for global), or nil.
func (c *Catalog) StyleByScopedName(wsID, name string) *Style {
	s, _ := c.byName(KindStyle, scopeKey(wsID, name)).(*Style)
	return s
}

// LayerGroupByName returns the group named name in workspace wsID ("" for global), or nil.
func (c *Catalog) LayerGroupByName(wsID, name string) *LayerGroup {
	g, _ := c.byName(KindLayerGroup, scopeKey(wsID, name)).(*LayerGroup)
	return g
}

// List returns every object of a kind, sorted by id.
func (c *Catalog) List(kind Kind) []Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listLocked(kind)
}

func (c *Catalog) listLocked(kind Kind) []Info {
	out := make([]Info, 0, len(c.objects[kind]))
	for _, info := range c.objects[kind] {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetID() < out[j].GetID() })
	return out
}

func listOf[T Info](c *Catalog, kind Kind) []T {
	infos := c.List(kind)
	out := make([]T, 0, len(infos))
	for _, info := range infos {
		if t, ok := info.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

func (c *Catalog) Workspaces() []*Workspace   { return listOf[*Workspace](c, KindWorkspace) }
func (c *Catalog) Namespaces() []*Namespace   { return listOf[*Namespace](c, KindNamespace) }
func (c *Catalog) Stores() []*Store           { return listOf[*Store](c, KindStore) }
func (c *Catalog) Resources() []*Resource     { return listOf[*Resource](c, KindResource) }
func (c *Catalog) Layers() []*Layer           { return listOf[*Layer](c, KindLayer) }
func (c *Catalog) LayerGroups() []*LayerGroup { return listOf[*LayerGroup](c, KindLayerGroup) }
func (c *Catalog) Styles() []*Style           { return listOf[*Style](c, KindStyle) }

// Count returns the number of objects of a kind.
func (c *Catalog) Count(kind Kind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects[kind])
}

// Size returns the total number of objects.
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, m := range c.objects {
		n += len(m)
	}
	return n
}

// DefaultWorkspace returns the default workspace, or nil.
func (c *Catalog) DefaultWorkspace() *Workspace {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultWorkspace
}

// SetDefaultWorkspace makes a stored workspace the default.
func (c *Catalog) SetDefaultWorkspace(ws *Workspace) error {
	defer c.observe("setDefaultWorkspace", ws)()

	c.mu.Lock()
	defer c.mu.Unlock()
	if ws != nil && !c.containsLocked(ws) {
		return apperrors.Newf(apperrors.CodeNotFound, "%s is not in the catalog", Describe(ws))
	}
	c.defaultWorkspace = ws
	return nil
}

// DefaultNamespace returns the default namespace, or nil.
func (c *Catalog) DefaultNamespace() *Namespace {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultNamespace
}

// SetDefaultNamespace makes a stored namespace the default.
func (c *Catalog) SetDefaultNamespace(ns *Namespace) error {
	defer c.observe("setDefaultNamespace", ns)()

	c.mu.Lock()
	defer c.mu.Unlock()
	if ns != nil && !c.containsLocked(ns) {
		return apperrors.Newf(apperrors.CodeNotFound, "%s is not in the catalog", Describe(ns))
	}
	c.defaultNamespace = ns
	return nil
}
