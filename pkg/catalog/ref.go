package catalog

// Target is what a reference can point at. It is narrower than Info so that
// object structs can hold references without a recursive constraint.
type Target interface {
	GetID() string
	Kind() Kind
}

// Ref is a typed link to another catalog object. Until Bind is called it is a
// proxy: it only carries the target identifier (or, for by-name references,
// the target name) and the declared kind.
type Ref[T Target] struct {
	ID   string
	Kind Kind
	// Name is set for references that carry a name instead of an id.
	Name string

	target   T
	resolved bool
}

// NewRef returns an unresolved reference to the object with the given id.
func NewRef[T Target](kind Kind, id string) *Ref[T] {
	return &Ref[T]{ID: id, Kind: kind}
}

// NewNameRef returns an unresolved reference that only knows the target name.
func NewNameRef[T Target](kind Kind, name string) *Ref[T] {
	return &Ref[T]{Name: name, Kind: kind}
}

// RefTo returns a reference already bound to obj.
func RefTo[T Target](obj T) *Ref[T] {
	r := &Ref[T]{ID: obj.GetID(), Kind: obj.Kind()}
	r.Bind(obj)
	return r
}

// Bind resolves the reference to obj.
func (r *Ref[T]) Bind(obj T) {
	r.target = obj
	r.resolved = true
	if id := obj.GetID(); id != "" {
		r.ID = id
	}
	r.Kind = obj.Kind()
}

// Unbind turns the reference back into a proxy, keeping its id.
func (r *Ref[T]) Unbind() {
	var zero T
	r.target = zero
	r.resolved = false
}

// Resolved reports whether the reference is bound. A nil Ref is not resolved.
func (r *Ref[T]) Resolved() bool {
	return r != nil && r.resolved
}

// Get returns the bound target, or the zero value for unresolved or nil refs.
func (r *Ref[T]) Get() T {
	if r == nil {
		var zero T
		return zero
	}
	return r.target
}

// Key returns the identifier, or the name for by-name references.
func (r *Ref[T]) Key() string {
	if r == nil {
		return ""
	}
	if r.ID != "" {
		return r.ID
	}
	return r.Name
}

// IsNameOnly reports whether the reference carries a name but no id.
func (r *Ref[T]) IsNameOnly() bool {
	return r != nil && r.ID == "" && r.Name != ""
}

// link is a type-erased view of one reference field, used by the
// consistency pass and the integrity checks.
type link struct {
	field  string
	kind   Kind
	key    string
	target Info
	bind   func(Info) bool
}

func linkOf[T Info](field string, r *Ref[T]) link {
	l := link{field: field, kind: r.Kind, key: r.Key()}
	if r.Resolved() {
		l.target = r.Get()
	}
	l.bind = func(info Info) bool {
		t, ok := info.(T)
		if !ok {
			return false
		}
		r.Bind(t)
		return true
	}
	return l
}
