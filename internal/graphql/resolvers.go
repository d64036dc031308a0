package graphql

import (
	"github.com/graphql-go/graphql"

	domainerrors "github.com/shelflineapp/shelfline-server/internal/errors"
	"github.com/shelflineapp/shelfline-server/internal/service"
)

// guard wraps a resolver so that only domain errors reach clients. Anything
// else is logged server-side and replaced with a generic internal error, and
// wrapped causes are stripped before the message is formatted.
func (s *Schema) guard(resolve graphql.FieldResolveFn) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		result, err := resolve(p)
		if err == nil {
			return result, nil
		}

		var domainErr *domainerrors.Error
		if domainerrors.As(err, &domainErr) {
			if cause := domainErr.Unwrap(); cause != nil {
				s.logger.Error("resolver failed",
					"field", p.Info.FieldName, "code", domainErr.Code, "error", cause)
				return nil, &domainerrors.Error{
					Code:    domainErr.Code,
					Message: domainErr.Message,
					Details: domainErr.Details,
				}
			}
			return nil, domainErr
		}

		s.logger.Error("resolver failed", "field", p.Info.FieldName, "error", err)
		return nil, domainerrors.Internal("internal server error")
	}
}

func (s *Schema) resolveBookCount(p graphql.ResolveParams) (any, error) {
	return s.catalog.BookCount(p.Context)
}

func (s *Schema) resolveAuthorCount(p graphql.ResolveParams) (any, error) {
	return s.catalog.AuthorCount(p.Context)
}

func (s *Schema) resolveAllBooks(p graphql.ResolveParams) (any, error) {
	var author, genre *string
	if v, ok := p.Args["author"].(string); ok {
		author = &v
	}
	if v, ok := p.Args["genre"].(string); ok {
		genre = &v
	}
	return s.catalog.AllBooks(p.Context, author, genre)
}

func (s *Schema) resolveAllAuthors(p graphql.ResolveParams) (any, error) {
	return s.catalog.AllAuthors(p.Context)
}

// resolveMe returns the authenticated user, or null for anonymous requests.
// Anonymity is not an error here.
func (s *Schema) resolveMe(p graphql.ResolveParams) (any, error) {
	user := CurrentUser(p.Context)
	if user == nil {
		return nil, nil
	}
	return user, nil
}

func (s *Schema) resolveSearchBooks(p graphql.ResolveParams) (any, error) {
	query, _ := p.Args["query"].(string)
	limit, _ := p.Args["limit"].(int)
	offset, _ := p.Args["offset"].(int)
	return s.catalog.SearchBooks(p.Context, query, limit, offset)
}

func (s *Schema) resolveAddBook(p graphql.ResolveParams) (any, error) {
	if _, err := RequireUser(p.Context); err != nil {
		return nil, err
	}

	genresArg, _ := p.Args["genres"].([]any)
	genres := make([]string, 0, len(genresArg))
	for _, g := range genresArg {
		if v, ok := g.(string); ok {
			genres = append(genres, v)
		}
	}

	title, _ := p.Args["title"].(string)
	author, _ := p.Args["author"].(string)
	published, _ := p.Args["published"].(int)

	return s.catalog.AddBook(p.Context, service.AddBookRequest{
		Title:     title,
		Author:    author,
		Published: published,
		Genres:    genres,
	})
}

func (s *Schema) resolveEditAuthor(p graphql.ResolveParams) (any, error) {
	if _, err := RequireUser(p.Context); err != nil {
		return nil, err
	}

	name, _ := p.Args["name"].(string)
	setBornTo, _ := p.Args["setBornTo"].(int)

	author, err := s.catalog.EditAuthor(p.Context, name, setBornTo)
	if err != nil {
		return nil, err
	}
	if author == nil {
		// Unknown author resolves to null, not an error.
		return nil, nil
	}
	return author, nil
}

func (s *Schema) resolveCreateUser(p graphql.ResolveParams) (any, error) {
	username, _ := p.Args["username"].(string)
	favouriteGenre, _ := p.Args["favouriteGenre"].(string)

	return s.users.CreateUser(p.Context, service.CreateUserRequest{
		Username:       username,
		FavouriteGenre: favouriteGenre,
	})
}

func (s *Schema) resolveLogin(p graphql.ResolveParams) (any, error) {
	username, _ := p.Args["username"].(string)
	password, _ := p.Args["password"].(string)

	return s.users.Login(p.Context, service.LoginRequest{
		Username: username,
		Password: password,
	})
}
