package recipe

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"
)

// EmbeddingDimensions matches the output size of text-embedding-004.
const EmbeddingDimensions = 768

// ErrNotFound is returned when no recipe matches the lookup.
var ErrNotFound = errors.New("recipe not found")

// Store defines the interface for recipe data operations.
type Store interface {
	GetRecipe(ctx context.Context, id uuid.UUID) (*Recipe, error)
	GetRecipeByRequestHash(ctx context.Context, requestHash string) (*Recipe, error)
	SaveRecipe(ctx context.Context, recipe *Recipe) error
	DeleteRecipe(ctx context.Context, id uuid.UUID) error
	ListRecipes(ctx context.Context, cuisine, dietaryPreference string) ([]*Recipe, error)
	SaveEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	FindSimilar(ctx context.Context, id uuid.UUID, limit int) ([]*Recipe, error)
}

// PostgresStore implements the Store interface for PostgreSQL with pgvector.
type PostgresStore struct {
	db *sqlx.DB
}

var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS recipes (
		id UUID PRIMARY KEY,
		request_hash TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		servings INTEGER NOT NULL DEFAULT 0,
		ingredients JSONB NOT NULL DEFAULT '[]',
		instructions JSONB NOT NULL DEFAULT '[]',
		nutrition JSONB NOT NULL DEFAULT '{}',
		sources JSONB NOT NULL DEFAULT '[]',
		cuisine TEXT NOT NULL DEFAULT '',
		dietary_preference TEXT NOT NULL DEFAULT '',
		image_path TEXT NOT NULL DEFAULT '',
		embedding vector(%d),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, EmbeddingDimensions),
	`CREATE INDEX IF NOT EXISTS recipes_request_hash_idx ON recipes (request_hash)`,
}

const recipeColumns = `id, request_hash, title, servings, ingredients, instructions, nutrition, sources,
	cuisine, dietary_preference, image_path, created_at, updated_at`

// recipeRow is the database shape of a Recipe.
type recipeRow struct {
	ID                uuid.UUID `db:"id"`
	RequestHash       string    `db:"request_hash"`
	Title             string    `db:"title"`
	Servings          int       `db:"servings"`
	Ingredients       []byte    `db:"ingredients"`
	Instructions      []byte    `db:"instructions"`
	Nutrition         []byte    `db:"nutrition"`
	Sources           []byte    `db:"sources"`
	Cuisine           string    `db:"cuisine"`
	DietaryPreference string    `db:"dietary_preference"`
	ImagePath         string    `db:"image_path"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (row *recipeRow) toRecipe() (*Recipe, error) {
	r := &Recipe{
		ID:                row.ID,
		RequestHash:       row.RequestHash,
		Title:             row.Title,
		Servings:          row.Servings,
		Cuisine:           row.Cuisine,
		DietaryPreference: row.DietaryPreference,
		ImagePath:         row.ImagePath,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
	if err := json.Unmarshal(row.Ingredients, &r.Ingredients); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ingredients: %w", err)
	}
	if err := json.Unmarshal(row.Instructions, &r.Instructions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instructions: %w", err)
	}
	if err := json.Unmarshal(row.Nutrition, &r.Nutrition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nutrition: %w", err)
	}
	if err := json.Unmarshal(row.Sources, &r.Sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
	}
	return r, nil
}

// NewPostgresStore connects to dataSourceName and creates the schema.
func NewPostgresStore(dataSourceName string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create recipes schema: %w", err)
		}
	}

	return &PostgresStore{db: db}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetRecipe retrieves a recipe by id.
func (s *PostgresStore) GetRecipe(ctx context.Context, id uuid.UUID) (*Recipe, error) {
	var row recipeRow
	err := s.db.GetContext(ctx, &row, "SELECT "+recipeColumns+" FROM recipes WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	return row.toRecipe()
}

// GetRecipeByRequestHash retrieves the most recent recipe generated for a request.
func (s *PostgresStore) GetRecipeByRequestHash(ctx context.Context, requestHash string) (*Recipe, error) {
	var row recipeRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+recipeColumns+" FROM recipes WHERE request_hash = $1 ORDER BY updated_at DESC LIMIT 1", requestHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get recipe by hash: %w", err)
	}
	return row.toRecipe()
}

// SaveRecipe inserts or updates a recipe. A zero ID is replaced with a new one.
func (s *PostgresStore) SaveRecipe(ctx context.Context, recipe *Recipe) error {
	if recipe.ID == uuid.Nil {
		recipe.ID = uuid.New()
	}

	ingredientsJSON, err := jsonText(recipe.Ingredients, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal ingredients: %w", err)
	}
	instructionsJSON, err := jsonText(recipe.Instructions, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal instructions: %w", err)
	}
	nutritionJSON, err := jsonText(recipe.Nutrition, "{}")
	if err != nil {
		return fmt.Errorf("failed to marshal nutrition: %w", err)
	}
	sourcesJSON, err := jsonText(recipe.Sources, "[]")
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	err = s.db.QueryRowxContext(ctx,
		`INSERT INTO recipes (id, request_hash, title, servings, ingredients, instructions, nutrition, sources, cuisine, dietary_preference, image_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET request_hash = $2, title = $3, servings = $4, ingredients = $5, instructions = $6,
			nutrition = $7, sources = $8, cuisine = $9, dietary_preference = $10, image_path = $11, updated_at = now()
		RETURNING created_at, updated_at`,
		recipe.ID,
		recipe.RequestHash,
		recipe.Title,
		recipe.Servings,
		ingredientsJSON,
		instructionsJSON,
		nutritionJSON,
		sourcesJSON,
		recipe.Cuisine,
		recipe.DietaryPreference,
		recipe.ImagePath,
	).Scan(&recipe.CreatedAt, &recipe.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save recipe: %w", err)
	}

	return nil
}

// DeleteRecipe removes a recipe.
func (s *PostgresStore) DeleteRecipe(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM recipes WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRecipes retrieves recipes by cuisine and/or dietary preference. Empty
// filters match everything.
func (s *PostgresStore) ListRecipes(ctx context.Context, cuisine, dietaryPreference string) ([]*Recipe, error) {
	var args []interface{}
	query := "SELECT " + recipeColumns + " FROM recipes WHERE 1=1"

	paramCount := 1
	if cuisine != "" {
		query += fmt.Sprintf(" AND cuisine = $%d", paramCount)
		args = append(args, cuisine)
		paramCount++
	}
	if dietaryPreference != "" {
		query += fmt.Sprintf(" AND dietary_preference = $%d", paramCount)
		args = append(args, dietaryPreference)
		paramCount++
	}
	query += " ORDER BY created_at DESC"

	var rows []recipeRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get recipes: %w", err)
	}
	return toRecipes(rows)
}

// SaveEmbedding stores the vector used for similarity search.
func (s *PostgresStore) SaveEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	if len(embedding) != EmbeddingDimensions {
		return fmt.Errorf("embedding has %d dimensions, want %d", len(embedding), EmbeddingDimensions)
	}
	res, err := s.db.ExecContext(ctx, "UPDATE recipes SET embedding = $2 WHERE id = $1", id, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("failed to save embedding: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindSimilar returns the recipes closest to id by cosine distance. A recipe
// without an embedding has no neighbours.
func (s *PostgresStore) FindSimilar(ctx context.Context, id uuid.UUID, limit int) ([]*Recipe, error) {
	var target pgvector.Vector
	err := s.db.GetContext(ctx, &target, "SELECT embedding FROM recipes WHERE id = $1 AND embedding IS NOT NULL", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []*Recipe{}, nil
		}
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}

	var rows []recipeRow
	err = s.db.SelectContext(ctx, &rows,
		"SELECT "+recipeColumns+" FROM recipes WHERE id <> $1 AND embedding IS NOT NULL ORDER BY embedding <=> $2 LIMIT $3",
		id, target, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find similar recipes: %w", err)
	}
	return toRecipes(rows)
}

func toRecipes(rows []recipeRow) ([]*Recipe, error) {
	recipes := make([]*Recipe, 0, len(rows))
	for i := range rows {
		r, err := rows[i].toRecipe()
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, r)
	}
	return recipes, nil
}

// jsonText encodes v for a JSONB parameter. lib/pq sends []byte as bytea, so
// the document goes over the wire as text.
func jsonText(v interface{}, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}
