package bridgegql

import (
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"

	"github.com/hydrotel/hydrobridge/bridge"
	"github.com/hydrotel/hydrobridge/graphiql"
)

// Routes mounts the graphql endpoint and its playground on a router.
func Routes(r chi.Router, b *bridge.Bridge) error {
	handler, err := GraphQLRelay(NewResolver(b))
	if err != nil {
		return err
	}

	r.Post("/graphql", middleware.NoCache(handler).ServeHTTP)
	r.Get("/graphql", graphiql.New("/graphql"))
	return nil
}

// Construct an http relay that handles graphql requests
func GraphQLRelay(resolver *Resolver) (*relay.Handler, error) {
	opts := []graphql.SchemaOpt{
		graphql.MaxDepth(15),
		graphql.UseFieldResolvers(),
	}

	schema, err := graphql.ParseSchema(Schema, resolver, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse schema: %w", err)
	}

	return &relay.Handler{Schema: schema}, nil
}
