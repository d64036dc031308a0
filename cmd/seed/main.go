// Package main provides a tool to seed the catalog with sample data.
//
// This fills an empty database with a handful of well-known books, their
// authors, and a demo user so the GraphQL API has something to serve.
//
// Usage:
//
//	DATA_PATH=~/Shelfline/data go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/shelflineapp/shelfline-server/internal/domain"
	"github.com/shelflineapp/shelfline-server/internal/id"
	"github.com/shelflineapp/shelfline-server/internal/service"
	"github.com/shelflineapp/shelfline-server/internal/store"
)

var username = flag.String("username", "mluukkai", "Username for the demo account")

// seedBook is one catalog entry to create.
type seedBook struct {
	title     string
	author    string
	published int
	genres    []string
}

var seedBooks = []seedBook{
	{"Clean Code", "Robert Martin", 2008, []string{"refactoring"}},
	{"Agile software development", "Robert Martin", 2002, []string{"agile", "patterns", "design"}},
	{"Refactoring, edition 2", "Martin Fowler", 2018, []string{"refactoring"}},
	{"Refactoring to patterns", "Joshua Kerievsky", 2008, []string{"refactoring", "patterns"}},
	{"Practical Object-Oriented Design, An Agile Primer Using Ruby", "Sandi Metz", 2012, []string{"refactoring", "design"}},
	{"Crime and punishment", "Fyodor Dostoevsky", 1866, []string{"classic", "crime"}},
	{"Demons", "Fyodor Dostoevsky", 1872, []string{"classic", "revolution"}},
}

// birthYears holds the known birth years applied after the authors exist.
var birthYears = map[string]int{
	"Robert Martin":     1952,
	"Martin Fowler":     1963,
	"Fyodor Dostoevsky": 1821,
}

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/Shelfline/data")
	}
	dbPath := filepath.Join(dataPath, "db")

	fmt.Printf("Opening document store at: %s\n", dbPath)

	s, err := store.New(dbPath, nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	// No search index or notifier: the server rebuilds the index at startup
	// and there is nobody to notify yet.
	catalog := service.NewCatalogService(s, nil, nil, nil)

	created := 0
	for _, b := range seedBooks {
		_, err := catalog.AddBook(ctx, service.AddBookRequest{
			Title:     b.title,
			Author:    b.author,
			Published: b.published,
			Genres:    b.genres,
		})
		if err != nil {
			log.Printf("Failed to add %q: %v", b.title, err)
			continue
		}
		fmt.Printf("  Added: %s (%s, %d)\n", b.title, b.author, b.published)
		created++
	}

	for name, born := range birthYears {
		if _, err := catalog.EditAuthor(ctx, name, born); err != nil {
			log.Printf("Failed to set birth year for %s: %v", name, err)
		}
	}

	if err := createDemoUser(ctx, s, *username); err != nil {
		log.Printf("Failed to create demo user: %v", err)
	}

	fmt.Printf("\nSeeding complete: %d books created\n", created)
}

// createDemoUser creates the demo account unless the username is taken.
func createDemoUser(ctx context.Context, s *store.Store, username string) error {
	user := &domain.User{
		Username:       username,
		FavouriteGenre: "refactoring",
	}
	user.ID = id.MustGenerate("user")
	user.InitTimestamps()

	if err := s.Users.Create(ctx, user.ID, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			fmt.Printf("  User %q already exists, skipping\n", username)
			return nil
		}
		return err
	}

	fmt.Printf("  Created user: %s\n", username)
	return nil
}
