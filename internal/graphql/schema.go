package graphql

import (
	"fmt"
	"log/slog"

	"github.com/graphql-go/graphql"

	"github.com/shelflineapp/shelfline-server/internal/domain"
	domainerrors "github.com/shelflineapp/shelfline-server/internal/errors"
	"github.com/shelflineapp/shelfline-server/internal/events"
	"github.com/shelflineapp/shelfline-server/internal/service"
	"github.com/shelflineapp/shelfline-server/internal/store"
)

// Schema wires the catalog services into an executable GraphQL schema.
type Schema struct {
	schema   graphql.Schema
	catalog  *service.CatalogService
	users    *service.UserService
	notifier *events.Notifier
	logger   *slog.Logger
}

// NewSchema creates the executable schema.
func NewSchema(
	catalog *service.CatalogService,
	users *service.UserService,
	notifier *events.Notifier,
	logger *slog.Logger,
) (*Schema, error) {
	s := &Schema{
		catalog:  catalog,
		users:    users,
		notifier: notifier,
		logger:   logger,
	}

	authorType := s.defineAuthorType()
	bookType := s.defineBookType(authorType)
	userType := s.defineUserType()
	tokenType := s.defineTokenType()

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"bookCount": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Int),
				Resolve: s.guard(s.resolveBookCount),
			},
			"authorCount": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Int),
				Resolve: s.guard(s.resolveAuthorCount),
			},
			"allBooks": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(bookType))),
				Args: graphql.FieldConfigArgument{
					"author": &graphql.ArgumentConfig{
						Type:        graphql.String,
						Description: "Accepted for schema compatibility; not applied",
					},
					"genre": &graphql.ArgumentConfig{
						Type:        graphql.String,
						Description: "Return only books carrying this genre",
					},
				},
				Resolve: s.guard(s.resolveAllBooks),
			},
			"allAuthors": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(authorType))),
				Resolve: s.guard(s.resolveAllAuthors),
			},
			"me": &graphql.Field{
				Type:    userType,
				Resolve: s.guard(s.resolveMe),
			},
			"searchBooks": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(bookType))),
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{
						Type:        graphql.NewNonNull(graphql.String),
						Description: "Full-text query over titles, author names, and genres",
					},
					"limit": &graphql.ArgumentConfig{
						Type:         graphql.Int,
						DefaultValue: 20,
					},
					"offset": &graphql.ArgumentConfig{
						Type:         graphql.Int,
						DefaultValue: 0,
					},
				},
				Resolve: s.guard(s.resolveSearchBooks),
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"addBook": &graphql.Field{
				Type: bookType,
				Args: graphql.FieldConfigArgument{
					"title":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"author":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"published": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"genres": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String))),
					},
				},
				Resolve: s.guard(s.resolveAddBook),
			},
			"editAuthor": &graphql.Field{
				Type: authorType,
				Args: graphql.FieldConfigArgument{
					"name":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"setBornTo": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: s.guard(s.resolveEditAuthor),
			},
			"createUser": &graphql.Field{
				Type: userType,
				Args: graphql.FieldConfigArgument{
					"username":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"favouriteGenre": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: s.guard(s.resolveCreateUser),
			},
			"login": &graphql.Field{
				Type: tokenType,
				Args: graphql.FieldConfigArgument{
					"username": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"password": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: s.guard(s.resolveLogin),
			},
		},
	})

	subscriptionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Subscription",
		Fields: graphql.Fields{
			"bookAdded": &graphql.Field{
				Type: graphql.NewNonNull(bookType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					// Source carries the book pushed by the subscribe channel.
					return p.Source, nil
				},
				Subscribe: s.subscribeBookAdded,
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query:        queryType,
		Mutation:     mutationType,
		Subscription: subscriptionType,
	})
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}

	s.schema = schema
	return s, nil
}

// Schema returns the underlying executable schema.
func (s *Schema) Schema() graphql.Schema {
	return s.schema
}

func (s *Schema) defineAuthorType() *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Author",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: graphql.NewNonNull(graphql.ID),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*domain.Author).ID, nil
				},
			},
			"name": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*domain.Author).Name, nil
				},
			},
			"born": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					author := p.Source.(*domain.Author)
					if author.Born == nil {
						return nil, nil
					}
					return *author.Born, nil
				},
			},
			"bookCount": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Resolve: s.guard(func(p graphql.ResolveParams) (any, error) {
					author := p.Source.(*domain.Author)
					return s.catalog.BookCountByAuthor(p.Context, author.ID)
				}),
			},
		},
	})
}

func (s *Schema) defineBookType(authorType *graphql.Object) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Book",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: graphql.NewNonNull(graphql.ID),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*domain.Book).ID, nil
				},
			},
			"title": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*domain.Book).Title, nil
				},
			},
			"published": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*domain.Book).Published, nil
				},
			},
			"genres": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String))),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*domain.Book).Genres, nil
				},
			},
			"author": &graphql.Field{
				// Nullable: a dangling author reference resolves to null
				// instead of poisoning the whole result.
				Type: authorType,
				Resolve: s.guard(func(p graphql.ResolveParams) (any, error) {
					book := p.Source.(*domain.Book)
					author, err := s.catalog.GetAuthor(p.Context, book.AuthorID)
					if err != nil {
						if domainerrors.Is(err, store.ErrNotFound) {
							s.logger.Warn("book references missing author",
								"book_id", book.ID, "author_id", book.AuthorID)
							return nil, nil
						}
						return nil, err
					}
					return author, nil
				}),
			},
		},
	})
}

func (s *Schema) defineUserType() *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: graphql.NewNonNull(graphql.ID),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*domain.User).ID, nil
				},
			},
			"username": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*domain.User).Username, nil
				},
			},
			"favouriteGenre": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*domain.User).FavouriteGenre, nil
				},
			},
		},
	})
}

func (s *Schema) defineTokenType() *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Token",
		Fields: graphql.Fields{
			"value": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(*service.TokenResponse).Value, nil
				},
			},
		},
	})
}
