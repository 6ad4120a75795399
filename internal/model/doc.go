// Package model implements the runtime object graph: elements typed by a
// meta.EntityType, reflective access by feature name, ordered synchronous
// change events, automatic invalidation of references to deleted elements,
// collection views and expression proxies over single features, and the
// Repository elements live in.
//
// Every mutation, whatever the access path, goes through Element.Assign and
// fires exactly one Changing/Changed pair. A graph is not safe for
// concurrent mutation.
package model
