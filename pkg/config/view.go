package config

import (
	"strings"
	"time"
)

// View is a Reader bound to a key prefix, e.g. the "greeter.thrift" subtree.
type View struct {
	store  *Store
	prefix string
}

var _ Reader = View{}

// Prefix returns the key prefix of the view.
func (v View) Prefix() string {
	return v.prefix
}

// Key returns the absolute key for a key relative to the view.
func (v View) Key(key string) string {
	key = strings.Trim(key, ".")
	if v.prefix == "" {
		return key
	}
	if key == "" {
		return v.prefix
	}
	return v.prefix + "." + key
}

// Sub narrows the view further.
func (v View) Sub(prefix string) View {
	return View{store: v.store, prefix: v.Key(prefix)}
}

// Decode decodes the whole subtree of the view into target.
func (v View) Decode(target any) error {
	return v.store.Decode(v.prefix, target)
}

// Get implements Reader.
func (v View) Get(key string) (any, bool) {
	return v.store.Get(v.Key(key))
}

// String implements Reader.
func (v View) String(key string) (string, bool) {
	return v.store.String(v.Key(key))
}

// Int implements Reader.
func (v View) Int(key string) (int, bool, error) {
	return v.store.Int(v.Key(key))
}

// Bool implements Reader.
func (v View) Bool(key string) (bool, bool, error) {
	return v.store.Bool(v.Key(key))
}

// Duration implements Reader.
func (v View) Duration(key string) (time.Duration, bool, error) {
	return v.store.Duration(v.Key(key))
}

// IsSet implements Reader.
func (v View) IsSet(key string) bool {
	return v.store.IsSet(v.Key(key))
}
