package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"github.com/bookwormhq/bookworm-service/internal/config"
	"github.com/bookwormhq/bookworm-service/internal/storage"
	"github.com/bookwormhq/bookworm-service/internal/types"
	"github.com/bookwormhq/bookworm-service/internal/types/users"
)

type Postgres struct {
	Db *sql.DB
}

func NewPostgres(cfg *config.Config) (*Postgres, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.PGSQL.Host, cfg.PGSQL.Port, cfg.PGSQL.User, cfg.PGSQL.Password, cfg.PGSQL.DBName, cfg.PGSQL.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		return nil, err
	}

	pg := &Postgres{Db: db}
	if err := pg.CreateTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return pg, nil
}

func (p *Postgres) Close() error {
	return p.Db.Close()
}

// CreateTables sets up the schema. The UNIQUE constraints on username and
// email are the backstop for concurrent duplicate registrations; the
// handlers additionally pre-check both fields to report the collision in a
// defined order.
func (p *Postgres) CreateTables() error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username VARCHAR(255) UNIQUE NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			password TEXT NOT NULL,
			profile_image TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS books (
			id SERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			caption TEXT NOT NULL,
			rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			image TEXT NOT NULL,
			user_id INTEGER NOT NULL REFERENCES users(id),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		`,
		`CREATE INDEX IF NOT EXISTS books_created_at_idx ON books (created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS books_user_id_idx ON books (user_id);`,
	}

	for _, q := range queries {
		if _, err := p.Db.Exec(q); err != nil {
			return err
		}
	}

	return nil
}

func (p *Postgres) CreateUser(ctx context.Context, username, email, hashedPassword, profileImage string) (users.User, error) {
	var u users.User
	var id int
	query := `
	INSERT INTO users (username, email, password, profile_image)
	VALUES ($1, $2, $3, $4)
	RETURNING id, created_at
	`

	err := p.Db.QueryRowContext(ctx, query, username, email, hashedPassword, profileImage).Scan(&id, &u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case "users_email_key":
				return users.User{}, storage.ErrDuplicateEmail
			case "users_username_key":
				return users.User{}, storage.ErrDuplicateUsername
			}
		}
		return users.User{}, err
	}

	u.ID = strconv.Itoa(id)
	u.Username = username
	u.Email = email
	u.Password = hashedPassword
	u.ProfileImage = profileImage

	return u, nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (users.User, error) {
	return p.getUser(ctx, `SELECT id, username, email, password, profile_image, created_at FROM users WHERE email = $1`, email)
}

func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (users.User, error) {
	return p.getUser(ctx, `SELECT id, username, email, password, profile_image, created_at FROM users WHERE username = $1`, username)
}

func (p *Postgres) GetUserByID(ctx context.Context, id string) (users.User, error) {
	n, err := parseID(id)
	if err != nil {
		return users.User{}, storage.ErrNotFound
	}
	return p.getUser(ctx, `SELECT id, username, email, password, profile_image, created_at FROM users WHERE id = $1`, n)
}

func (p *Postgres) getUser(ctx context.Context, query string, arg interface{}) (users.User, error) {
	var u users.User
	var id int

	err := p.Db.QueryRowContext(ctx, query, arg).Scan(&id, &u.Username, &u.Email, &u.Password, &u.ProfileImage, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return users.User{}, storage.ErrNotFound
	}
	if err != nil {
		return users.User{}, err
	}

	u.ID = strconv.Itoa(id)
	return u, nil
}

func (p *Postgres) CreateBook(ctx context.Context, userID, title, caption, image string, rating int) (types.Book, error) {
	ownerID, err := parseID(userID)
	if err != nil {
		return types.Book{}, storage.ErrNotFound
	}

	var b types.Book
	var id int
	query := `
	INSERT INTO books (title, caption, rating, image, user_id)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at
	`

	err = p.Db.QueryRowContext(ctx, query, title, caption, rating, image, ownerID).Scan(&id, &b.CreatedAt)
	if err != nil {
		return types.Book{}, err
	}

	b.ID = strconv.Itoa(id)
	b.Title = title
	b.Caption = caption
	b.Rating = rating
	b.Image = image
	b.UserID = userID

	return b, nil
}

// ListBooks returns a feed page ordered newest first, each book joined with
// its owner's username and profile image. Ordering among equal timestamps is
// left to the database.
func (p *Postgres) ListBooks(ctx context.Context, limit, offset int) ([]types.FeedBook, error) {
	query := `
	SELECT b.id, b.title, b.caption, b.rating, b.image, b.created_at, u.username, u.profile_image
	FROM books b
	JOIN users u ON u.id = b.user_id
	ORDER BY b.created_at DESC
	LIMIT $1 OFFSET $2
	`

	rows, err := p.Db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []types.FeedBook{}
	for rows.Next() {
		var b types.FeedBook
		var id int
		if err := rows.Scan(&id, &b.Title, &b.Caption, &b.Rating, &b.Image, &b.CreatedAt, &b.User.Username, &b.User.ProfileImage); err != nil {
			return nil, err
		}
		b.ID = strconv.Itoa(id)
		books = append(books, b)
	}

	return books, rows.Err()
}

func (p *Postgres) CountBooks(ctx context.Context) (int, error) {
	var count int
	err := p.Db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&count)
	return count, err
}

func (p *Postgres) ListBooksByUser(ctx context.Context, userID string) ([]types.Book, error) {
	ownerID, err := parseID(userID)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	query := `
	SELECT id, title, caption, rating, image, created_at
	FROM books
	WHERE user_id = $1
	ORDER BY created_at DESC
	`

	rows, err := p.Db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []types.Book{}
	for rows.Next() {
		var b types.Book
		var id int
		if err := rows.Scan(&id, &b.Title, &b.Caption, &b.Rating, &b.Image, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.ID = strconv.Itoa(id)
		b.UserID = userID
		books = append(books, b)
	}

	return books, rows.Err()
}

func (p *Postgres) GetBookByID(ctx context.Context, id string) (types.Book, error) {
	n, err := parseID(id)
	if err != nil {
		return types.Book{}, storage.ErrNotFound
	}

	var b types.Book
	var bookID, ownerID int
	query := `SELECT id, title, caption, rating, image, user_id, created_at FROM books WHERE id = $1`

	err = p.Db.QueryRowContext(ctx, query, n).Scan(&bookID, &b.Title, &b.Caption, &b.Rating, &b.Image, &ownerID, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Book{}, storage.ErrNotFound
	}
	if err != nil {
		return types.Book{}, err
	}

	b.ID = strconv.Itoa(bookID)
	b.UserID = strconv.Itoa(ownerID)
	return b, nil
}

func (p *Postgres) DeleteBook(ctx context.Context, id string) error {
	n, err := parseID(id)
	if err != nil {
		return storage.ErrNotFound
	}

	result, err := p.Db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, n)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// ListBookImages returns every stored image URL. Used by the cleanup worker
// to detect orphaned objects in the object store.
func (p *Postgres) ListBookImages(ctx context.Context) ([]string, error) {
	rows, err := p.Db.QueryContext(ctx, `SELECT image FROM books`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	urls := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}

	return urls, rows.Err()
}

func parseID(id string) (int, error) {
	return strconv.Atoi(id)
}
