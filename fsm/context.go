package fsm

import "encoding/json"

// Context is the per-chat, JSON-valued scratch space carried across
// actions. A Context instance is owned by exactly one in-flight action at a
// time and is not safe for concurrent mutation.
type Context struct {
	data map[string]any
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{data: make(map[string]any)}
}

// LoadContext parses a JSON object into a new Context. An empty or nil
// payload yields an empty Context.
func LoadContext(raw []byte) (*Context, error) {
	if len(raw) == 0 {
		return NewContext(), nil
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = make(map[string]any)
	}
	return &Context{data: data}, nil
}

// Get returns the value stored at key, or ok=false if absent.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.data[key]
	return v, ok
}

// Set stores value at key, overwriting any previous value.
func (c *Context) Set(key string, value any) {
	c.data[key] = value
}

// DeleteKeys removes the given keys. Missing keys are silently ignored.
func (c *Context) DeleteKeys(keys ...string) {
	for _, key := range keys {
		delete(c.data, key)
	}
}

// Snapshot serializes the context to its JSON representation.
func (c *Context) Snapshot() ([]byte, error) {
	if c.data == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.data)
}

// Clone returns a deep copy via a JSON round-trip, used by storage backends
// that must not let a reader alias a writer's live map.
func (c *Context) Clone() (*Context, error) {
	raw, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	return LoadContext(raw)
}
