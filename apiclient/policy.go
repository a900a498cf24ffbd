package apiclient

import "context"

type policyKey struct{}

// policy controls how Do treats a single request.
type policy struct {
	public     bool   // send without a bearer credential
	noRecovery bool   // return 401 responses without refreshing
	retried    bool   // the request has already been resubmitted once
	bearer     string // explicit credential overriding the store
}

func policyFrom(ctx context.Context) policy {
	p, _ := ctx.Value(policyKey{}).(policy)
	return p
}

func withPolicy(ctx context.Context, p policy) context.Context {
	return context.WithValue(ctx, policyKey{}, p)
}

// Public marks requests made with ctx as anonymous: no bearer credential is
// attached and a 401 is returned to the caller untouched. Login and
// registration use it so that bad credentials are never mistaken for an
// expired session.
func Public(ctx context.Context) context.Context {
	p := policyFrom(ctx)
	p.public = true
	p.noRecovery = true
	return withPolicy(ctx, p)
}

// NoRecovery disables the refresh-and-retry path for requests made with ctx.
func NoRecovery(ctx context.Context) context.Context {
	p := policyFrom(ctx)
	p.noRecovery = true
	return withPolicy(ctx, p)
}

// WithBearer sends requests made with ctx with access instead of the stored
// credential.
func WithBearer(ctx context.Context, access string) context.Context {
	p := policyFrom(ctx)
	p.bearer = access
	return withPolicy(ctx, p)
}

// Retried reports whether a request context belongs to a resubmission.
func Retried(ctx context.Context) bool {
	return policyFrom(ctx).retried
}
