package model

import "context"

// Actor identifies who performed a mutation. Authentication happens upstream;
// the workflow core only records identity.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SystemActor is used for mutations triggered by the service itself, such as
// auto-advance transitions.
var SystemActor = Actor{ID: "system", Name: "system"}

type actorKey struct{}

// WithActor attaches an actor to the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom extracts the actor from the context. The second return value is
// false when no actor is present.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
